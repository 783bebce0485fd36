// Package ledger is the per-user aggregator: four table mirrors, the category
// registry, the rules that keep cached balances and budget counters in step
// with new transactions, and the derived views over them.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/mirror"
	"tally/internal/report"
	"tally/internal/store"
)

// DefaultCurrency applies to accounts created without one.
const DefaultCurrency = "USD"

// ErrSessionClosed is returned by a session the manager has dropped. Callers
// holding one should reopen it through the manager.
var ErrSessionClosed = fmt.Errorf("ledger session closed: %w", core.ErrAuthRequired)

// Notifier receives an event for every persisted change.
type Notifier interface {
	Publish(ctx context.Context, ev core.ChangeEvent) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, core.ChangeEvent) error { return nil }

// Session holds one user's mirrors. Mutations are serialized by mu, so a
// multi-step operation never interleaves with another on the same session.
type Session struct {
	mu       sync.Mutex
	closed   atomic.Bool
	userID   string
	logger   *log.Logger
	notifier Notifier
	now      func() time.Time

	Accounts     *mirror.Mirror[core.Account, core.AccountPatch]
	Transactions *mirror.Mirror[core.Transaction, core.TransactionPatch]
	Budgets      *mirror.Mirror[core.BudgetCategory, core.BudgetCategoryPatch]
	GiveTake     *mirror.Mirror[core.GiveTakeRecord, core.GiveTakePatch]
	Categories   *mirror.Mirror[core.Category, core.CategoryPatch]
}

type Option func(*Session)

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithNotifier publishes change events through n.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time used for monthly views.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession binds the mirrors to userID. It does not load; call Load.
func NewSession(tables store.Tables, userID string, opts ...Option) *Session {
	s := &Session{
		userID:   userID,
		logger:   log.New(log.DefaultConfig()),
		notifier: nopNotifier{},
		now:      time.Now,

		Accounts:     mirror.New(tables.Accounts, core.TableAccounts, userID, mirror.Append[core.Account]()),
		Transactions: mirror.New(tables.Transactions, core.TableTransactions, userID, mirror.Prepend[core.Transaction]()),
		Budgets:      mirror.New(tables.BudgetCategories, core.TableBudgetCategories, userID, mirror.Append[core.BudgetCategory]()),
		GiveTake:     mirror.New(tables.GiveTake, core.TableGiveTake, userID, mirror.Prepend[core.GiveTakeRecord]()),
		Categories: mirror.New(tables.Categories, core.TableCategories, userID, mirror.Sorted(func(a, b core.Category) bool {
			if a.Type != b.Type {
				return a.Type < b.Type
			}
			return a.Name < b.Name
		})),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	return s
}

func (s *Session) UserID() string { return s.userID }

// Load refreshes every mirror concurrently. A failed table is left empty and
// its *core.FetchError returned; the other tables still load.
func (s *Session) Load(ctx context.Context) error {
	if s.userID == "" {
		return core.ErrAuthRequired
	}
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return s.Accounts.Load(ctx) })
	g.Go(func() error { return s.Transactions.Load(ctx) })
	g.Go(func() error { return s.Budgets.Load(ctx) })
	g.Go(func() error { return s.GiveTake.Load(ctx) })
	g.Go(func() error { return s.Categories.Load(ctx) })
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Ledger load failed", log.NewFields().WithOperation(log.OpLoad).WithError(err, log.ErrorTypeDatabase).ToSlice()...)
		return err
	}
	s.logger.DebugContext(ctx, "Ledger loaded",
		"accounts", s.Accounts.Len(),
		"transactions", s.Transactions.Len(),
		"budget_categories", s.Budgets.Len(),
		"give_take", s.GiveTake.Len(),
		"categories", s.Categories.Len())
	return nil
}

// Close marks the session dropped. Its mirrors stay intact for an operation
// already running; later operations fail with ErrSessionClosed. Close never
// waits on the session lock.
func (s *Session) Close() {
	s.closed.Store(true)
}

func (s *Session) Closed() bool { return s.closed.Load() }

// lock takes the session lock unless the session is closed.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) requireUser() error {
	if s.userID == "" {
		return core.ErrAuthRequired
	}
	return nil
}

// written logs a persisted change and publishes its event. Publish failures
// are logged and never fail the mutation.
func (s *Session) written(ctx context.Context, table, op, rowID string) {
	s.logger.InfoContext(ctx, "Row persisted", log.NewFields().WithRow(s.userID, table, rowID).WithOperation(op).ToSlice()...)
	if err := s.notifier.Publish(ctx, core.NewChangeEvent(s.userID, table, op, rowID)); err != nil {
		s.logger.WarnContext(ctx, "Change event not published",
			log.NewFields().WithRow(s.userID, table, rowID).WithOperation(log.OpPublish).WithError(err, log.ErrorTypeNetwork).ToSlice()...)
	}
}

// Dashboard computes the aggregate landing view from the current mirrors.
func (s *Session) Dashboard() report.Dashboard {
	return report.BuildDashboard(s.Accounts.Items(), s.Transactions.Items(), s.Budgets.Items(), s.GiveTake.Items(), s.now())
}

// FilterTransactions applies a list filter to the mirror, newest first.
func (s *Session) FilterTransactions(f report.TransactionFilter) []core.Transaction {
	return report.FilterTransactions(s.Transactions.Items(), f)
}

func (s *Session) FilterGiveTake(f report.GiveTakeFilter) []core.GiveTakeRecord {
	return report.FilterGiveTake(s.GiveTake.Items(), f)
}

func (s *Session) BudgetProgress() []report.BudgetProgress {
	return report.BudgetProgressList(s.Budgets.Items())
}
