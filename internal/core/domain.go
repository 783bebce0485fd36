package core

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Checking AccountType = "checking"
	Savings  AccountType = "savings"
	Credit   AccountType = "credit"

	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Give GiveTakeType = "give"
	Take GiveTakeType = "take"

	Pending GiveTakeStatus = "pending"
	Settled GiveTakeStatus = "settled"
)

// DateLayout is the wire and storage format of a calendar day.
const DateLayout = "2006-01-02"

type (
	AccountType     string
	TransactionType string
	GiveTakeType    string
	GiveTakeStatus  string

	// Date is a calendar day without a time component.
	Date struct {
		time.Time
	}

	Account struct {
		ID        string          `json:"id"`
		UserID    string          `json:"user_id"`
		Name      string          `json:"name"`
		Type      AccountType     `json:"type"`
		Balance   decimal.Decimal `json:"balance"`
		Currency  string          `json:"currency"`
		CreatedAt time.Time       `json:"created_at"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id"`
		AccountID   string          `json:"account_id"`
		Amount      decimal.Decimal `json:"amount"` // signed, see SignedAmount
		Description string          `json:"description"`
		Category    string          `json:"category"` // category name, not id
		Date        Date            `json:"date"`
		Type        TransactionType `json:"type"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	BudgetCategory struct {
		ID        string          `json:"id"`
		UserID    string          `json:"user_id"`
		Name      string          `json:"name"`
		Budgeted  decimal.Decimal `json:"budgeted"`
		Spent     decimal.Decimal `json:"spent"` // cached counter
		Color     string          `json:"color"`
		CreatedAt time.Time       `json:"created_at"`
	}

	GiveTakeRecord struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id"`
		Name        string          `json:"name"` // counterparty
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
		Type        GiveTakeType    `json:"type"`
		Status      GiveTakeStatus  `json:"status"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// Category is a free-floating registry tag referenced by name from transactions.
	Category struct {
		ID        string          `json:"id"`
		UserID    string          `json:"user_id"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		CreatedAt time.Time       `json:"created_at"`
	}

	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidDay         = fmt.Errorf("%w: invalid day", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyName          = fmt.Errorf("%w: empty name", ErrValidation)
	ErrEmptyDescription   = fmt.Errorf("%w: empty description", ErrValidation)
	ErrEmptyCategory      = fmt.Errorf("%w: empty category", ErrValidation)
	ErrEmptyAccount       = fmt.Errorf("%w: empty account id", ErrValidation)
	ErrInvalidAccountType = fmt.Errorf("%w: invalid account type", ErrValidation)
	ErrInvalidType        = fmt.Errorf("%w: invalid type", ErrValidation)
	ErrInvalidStatus      = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidCurrency    = fmt.Errorf("%w: invalid currency", ErrValidation)
	ErrNegativeBudget     = fmt.Errorf("%w: budgeted amount cannot be negative", ErrValidation)
	ErrReopenSettled      = fmt.Errorf("%w: settled records cannot return to pending", ErrValidation)
)

func (t AccountType) Valid() bool {
	switch t {
	case Checking, Savings, Credit:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t GiveTakeType) Valid() bool {
	return t == Give || t == Take
}

func (s GiveTakeStatus) Valid() bool {
	return s == Pending || s == Settled
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDay
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// SameMonth reports whether d falls in the calendar month and year of t.
func (d Date) SameMonth(t time.Time) bool {
	return d.Year() == t.Year() && d.Month() == t.Month()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps from clients that send ISO strings.
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for TEXT (sqlite) and DATE (postgres) columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("unsupported date column type %T", src)
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	if len(strings.TrimSpace(a.Currency)) != 3 {
		return ErrInvalidCurrency
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccount
	}
	return nil
}

// Normalized returns t with its amount signed by its type.
func (t Transaction) Normalized() Transaction {
	t.Amount = SignedAmount(t.Type, t.Amount)
	return t
}

func (b BudgetCategory) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.Budgeted.IsNegative() {
		return ErrNegativeBudget
	}
	return nil
}

// Remaining is budgeted minus spent; negative when over budget.
func (b BudgetCategory) Remaining() decimal.Decimal {
	return b.Budgeted.Sub(b.Spent)
}

func (g GiveTakeRecord) Validate() error {
	if err := g.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if !g.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !g.Type.Valid() {
		return ErrInvalidType
	}
	if !g.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// RowID accessors let generic mirrors address rows.
func (a Account) RowID() string        { return a.ID }
func (t Transaction) RowID() string    { return t.ID }
func (b BudgetCategory) RowID() string { return b.ID }
func (g GiveTakeRecord) RowID() string { return g.ID }
func (c Category) RowID() string       { return c.ID }
