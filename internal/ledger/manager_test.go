package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/store/memory"
)

func TestManagerOpenCachesSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memory.New().Tables(), 4, time.Minute, log.Discard())
	a, err := m.Open(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.Open(ctx, "u1")
	if a != b {
		t.Fatalf("expected the cached session")
	}
	if _, err := m.Open(ctx, ""); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
}

func TestManagerSwitchReloadsForNewUser(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	st.Tables().Accounts.Insert(ctx, "u2", core.Account{Name: "Theirs", Type: core.Savings, Currency: "EUR"})

	m := NewManager(st.Tables(), 4, time.Minute, log.Discard())
	old, _ := m.Open(ctx, "u1")
	old.AddAccount(ctx, core.Account{Name: "Mine", Type: core.Checking})

	s, err := m.Switch(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}
	if s.UserID() != "u2" || s.Accounts.Len() != 1 || s.Accounts.Items()[0].Name != "Theirs" {
		t.Fatalf("unexpected session after switch: %s %+v", s.UserID(), s.Accounts.Items())
	}
	if _, ok := m.Get("u1"); ok {
		t.Fatalf("old session must be dropped")
	}
	if !old.Closed() {
		t.Fatalf("old session must be closed")
	}
	if _, err := old.AddAccount(ctx, core.Account{Name: "Late", Type: core.Checking}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("write on a dropped session: expected ErrSessionClosed, got %v", err)
	}

	if s, err := m.Switch(ctx, "u2", ""); err != nil || s != nil {
		t.Fatalf("sign-out switch: %v %v", s, err)
	}
	if m.Size() != 0 {
		t.Fatalf("expected no sessions, got %d", m.Size())
	}
}

func TestManagerFailedLoadNotCached(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	st.FailNext(core.TableAccounts, memory.OpSelect, errors.New("down"))
	m := NewManager(st.Tables(), 4, time.Minute, log.Discard())
	if _, err := m.Open(ctx, "u1"); !core.IsFetchError(err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if m.Size() != 0 {
		t.Fatalf("failed session must not be cached")
	}
	if _, err := m.Open(ctx, "u1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestManagerCapacityEvicts(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memory.New().Tables(), 1, time.Minute, log.Discard())
	m.Open(ctx, "u1")
	m.Open(ctx, "u2")
	if _, ok := m.Get("u1"); ok {
		t.Fatalf("u1 should have been evicted")
	}
	if m.Size() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Size())
	}
}

func TestManagerEvictedSessionRefusesWrites(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := NewManager(st.Tables(), 1, time.Minute, log.Discard())

	a, err := m.Open(ctx, "user-a")
	if err != nil {
		t.Fatal(err)
	}
	acc, err := a.AddAccount(ctx, core.Account{Name: "Main", Type: core.Checking, Balance: decimal.NewFromInt(50)})
	if err != nil {
		t.Fatal(err)
	}

	// user-b takes the only slot while a request still holds user-a's session
	if _, err := m.Open(ctx, "user-b"); err != nil {
		t.Fatal(err)
	}
	if a.Accounts.Len() != 1 {
		t.Fatalf("eviction must not clear mirrors in use, got %d accounts", a.Accounts.Len())
	}

	_, err = a.AddTransaction(ctx, tx(acc.ID, core.Income, "100", "Salary"))
	if !errors.Is(err, ErrSessionClosed) || !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	stored, _ := st.Tables().Transactions.Select(ctx, "user-a")
	if len(stored) != 0 {
		t.Fatalf("nothing may be persisted through a dropped session, got %d rows", len(stored))
	}

	fresh, err := m.Open(ctx, "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if fresh == a {
		t.Fatal("expected a newly loaded session")
	}
	if _, err := fresh.AddTransaction(ctx, tx(acc.ID, core.Income, "100", "Salary")); err != nil {
		t.Fatal(err)
	}
	accounts, _ := st.Tables().Accounts.Select(ctx, "user-a")
	if len(accounts) != 1 || !accounts[0].Balance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("stored balance = %+v, want 150", accounts)
	}
}

func TestManagerCloseDoesNotWaitOnBusySession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memory.New().Tables(), 4, time.Minute, log.Discard())
	s, err := m.Open(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	done := make(chan struct{})
	go func() {
		m.Close("u1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on the session lock")
	}
	s.mu.Unlock()

	if _, ok := m.Get("u1"); ok {
		t.Fatal("session must be dropped")
	}
	if err := s.Load(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
