package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func (s *Session) AddAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := s.requireUser(); err != nil {
		return core.Account{}, err
	}
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	if a.Currency == "" {
		a.Currency = DefaultCurrency
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	if err := s.lock(); err != nil {
		return core.Account{}, err
	}
	defer s.mu.Unlock()
	stored, err := s.Accounts.Insert(ctx, a)
	if err != nil {
		return core.Account{}, err
	}
	s.written(ctx, core.TableAccounts, core.OpInsert, stored.ID)
	return stored, nil
}

func (s *Session) UpdateAccount(ctx context.Context, id string, p core.AccountPatch) (core.Account, error) {
	if err := s.requireUser(); err != nil {
		return core.Account{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Account{}, err
	}

	if err := s.lock(); err != nil {
		return core.Account{}, err
	}
	defer s.mu.Unlock()
	return s.updateAccount(ctx, id, p)
}

// UpdateAccountBalance overwrites the cached balance of an account.
func (s *Session) UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) (core.Account, error) {
	return s.UpdateAccount(ctx, id, core.AccountPatch{Balance: &balance})
}

// must hold s.mu
func (s *Session) updateAccount(ctx context.Context, id string, p core.AccountPatch) (core.Account, error) {
	merged, err := s.Accounts.Update(ctx, id, p)
	if err != nil {
		return core.Account{}, err
	}
	s.written(ctx, core.TableAccounts, core.OpUpdate, id)
	return merged, nil
}
