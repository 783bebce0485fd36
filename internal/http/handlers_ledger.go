package http

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/ledger"
)

type (
	accountInput struct {
		Name     string           `json:"name"`
		Type     core.AccountType `json:"type"`
		Balance  decimal.Decimal  `json:"balance"`
		Currency string           `json:"currency"`
	}

	balanceInput struct {
		Balance *decimal.Decimal `json:"balance"`
	}

	transactionInput struct {
		// ID is optional; a repeated id makes a retried create harmless.
		ID          string               `json:"id"`
		AccountID   string               `json:"account_id"`
		Amount      core.Amount          `json:"amount"`
		Description string               `json:"description"`
		Category    string               `json:"category"`
		Date        core.Date            `json:"date"`
		Type        core.TransactionType `json:"type"`
	}

	budgetInput struct {
		Name     string          `json:"name"`
		Budgeted decimal.Decimal `json:"budgeted"`
		Spent    decimal.Decimal `json:"spent"`
		Color    string          `json:"color"`
	}

	// transactionPatchInput reads the amount as entered; the embedded patch
	// keeps the other fields.
	transactionPatchInput struct {
		core.TransactionPatch
		Amount *core.Amount `json:"amount,omitempty"`
	}

	amountInput struct {
		Amount *core.Amount `json:"amount"`
	}

	giveTakeInput struct {
		Name        string              `json:"name"`
		Amount      core.Amount         `json:"amount"`
		Date        core.Date           `json:"date"`
		Type        core.GiveTakeType   `json:"type"`
		Status      core.GiveTakeStatus `json:"status"`
		Description string              `json:"description"`
	}

	giveTakePatchInput struct {
		core.GiveTakePatch
		Amount *core.Amount `json:"amount,omitempty"`
	}

	categoryInput struct {
		Name string               `json:"name"`
		Type core.TransactionType `json:"type"`
	}
)

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", core.ErrValidation, field)
}

// Accounts

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	NewResponse().JSON(nonNil(sess.Accounts.Items())).Write(w)
	return nil
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in accountInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	a, err := sess.AddAccount(r.Context(), core.Account{
		Name:     sanitizeInput(in.Name),
		Type:     in.Type,
		Balance:  in.Balance,
		Currency: sanitizeInput(in.Currency),
	})
	if err != nil {
		return err
	}
	NewResponse().Status(http.StatusCreated).JSON(a).Write(w)
	return nil
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var p core.AccountPatch
	if err := decodeJSON(w, r, &p); err != nil {
		return err
	}
	sanitizePtr(p.Name)
	sanitizePtr(p.Currency)
	a, err := sess.UpdateAccount(r.Context(), r.PathValue("id"), p)
	if err != nil {
		return err
	}
	NewResponse().JSON(a).Write(w)
	return nil
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in balanceInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	if in.Balance == nil {
		return missing("balance")
	}
	a, err := sess.UpdateAccountBalance(r.Context(), r.PathValue("id"), *in.Balance)
	if err != nil {
		return err
	}
	NewResponse().JSON(a).Write(w)
	return nil
}

// Transactions

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		return err
	}
	NewResponse().JSON(nonNil(sess.FilterTransactions(f))).Write(w)
	return nil
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in transactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	tx, err := sess.AddTransaction(r.Context(), core.Transaction{
		ID:          sanitizeInput(in.ID),
		AccountID:   sanitizeInput(in.AccountID),
		Amount:      in.Amount.Decimal,
		Description: sanitizeInput(in.Description),
		Category:    sanitizeInput(in.Category),
		Date:        in.Date,
		Type:        in.Type,
	})
	if err != nil {
		return err
	}
	NewResponse().Status(http.StatusCreated).JSON(tx).Write(w)
	return nil
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in transactionPatchInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	p := in.TransactionPatch
	p.Amount = in.Amount.Ptr()
	sanitizePtr(p.AccountID)
	sanitizePtr(p.Description)
	sanitizePtr(p.Category)
	tx, err := sess.UpdateTransaction(r.Context(), r.PathValue("id"), p)
	if err != nil {
		return err
	}
	NewResponse().JSON(tx).Write(w)
	return nil
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	if err := sess.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
	return nil
}

// Budget categories

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	NewResponse().JSON(nonNil(sess.Budgets.Items())).Write(w)
	return nil
}

func (s *Server) handleAddBudget(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in budgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	b, err := sess.AddBudgetCategory(r.Context(), core.BudgetCategory{
		Name:     sanitizeInput(in.Name),
		Budgeted: in.Budgeted,
		Spent:    in.Spent,
		Color:    sanitizeInput(in.Color),
	})
	if err != nil {
		return err
	}
	NewResponse().Status(http.StatusCreated).JSON(b).Write(w)
	return nil
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var p core.BudgetCategoryPatch
	if err := decodeJSON(w, r, &p); err != nil {
		return err
	}
	sanitizePtr(p.Name)
	sanitizePtr(p.Color)
	b, err := sess.UpdateBudgetCategory(r.Context(), r.PathValue("id"), p)
	if err != nil {
		return err
	}
	NewResponse().JSON(b).Write(w)
	return nil
}

func (s *Server) handleIncrementSpent(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in amountInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	if in.Amount == nil {
		return missing("amount")
	}
	b, err := sess.IncrementBudgetSpent(r.Context(), r.PathValue("id"), in.Amount.Decimal)
	if err != nil {
		return err
	}
	NewResponse().JSON(b).Write(w)
	return nil
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	fixed, err := sess.ReconcileBudgets(r.Context())
	if err != nil {
		return err
	}
	NewResponse().JSON(nonNil(fixed)).Write(w)
	return nil
}

// Give/take

func (s *Server) handleListGiveTake(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	f, err := ParseGiveTakeFilter(r.URL.Query())
	if err != nil {
		return err
	}
	NewResponse().JSON(nonNil(sess.FilterGiveTake(f))).Write(w)
	return nil
}

func (s *Server) handleAddGiveTake(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in giveTakeInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	g, err := sess.AddGiveTake(r.Context(), core.GiveTakeRecord{
		Name:        sanitizeInput(in.Name),
		Amount:      in.Amount.Decimal,
		Date:        in.Date,
		Type:        in.Type,
		Status:      in.Status,
		Description: sanitizeInput(in.Description),
	})
	if err != nil {
		return err
	}
	NewResponse().Status(http.StatusCreated).JSON(g).Write(w)
	return nil
}

func (s *Server) handleUpdateGiveTake(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in giveTakePatchInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	p := in.GiveTakePatch
	p.Amount = in.Amount.Ptr()
	sanitizePtr(p.Name)
	sanitizePtr(p.Description)
	g, err := sess.UpdateGiveTake(r.Context(), r.PathValue("id"), p)
	if err != nil {
		return err
	}
	NewResponse().JSON(g).Write(w)
	return nil
}

func (s *Server) handleMarkSettled(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	g, err := sess.MarkSettled(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	NewResponse().JSON(g).Write(w)
	return nil
}

func (s *Server) handleDeleteGiveTake(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	if err := sess.DeleteGiveTake(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
	return nil
}

// Category registry

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	typ := r.URL.Query().Get("type")
	if typ == "" {
		NewResponse().JSON(nonNil(sess.Categories.Items())).Write(w)
		return nil
	}
	if err := oneOf("type", typ, string(core.Income), string(core.Expense)); err != nil {
		return err
	}
	NewResponse().JSON(nonNil(sess.CategoriesByType(core.TransactionType(typ)))).Write(w)
	return nil
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	var in categoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	c, err := sess.AddCategory(r.Context(), sanitizeInput(in.Name), in.Type)
	if err != nil {
		return err
	}
	NewResponse().Status(http.StatusCreated).JSON(c).Write(w)
	return nil
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	if err := sess.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
	return nil
}
