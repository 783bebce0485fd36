package ledger

import (
	"context"

	"tally/internal/core"
)

// AddGiveTake records a loan. Records start pending unless a status is given.
func (s *Session) AddGiveTake(ctx context.Context, g core.GiveTakeRecord) (core.GiveTakeRecord, error) {
	if err := s.requireUser(); err != nil {
		return core.GiveTakeRecord{}, err
	}
	if g.Status == "" {
		g.Status = core.Pending
	}
	if err := g.Validate(); err != nil {
		return core.GiveTakeRecord{}, err
	}

	if err := s.lock(); err != nil {
		return core.GiveTakeRecord{}, err
	}
	defer s.mu.Unlock()
	stored, err := s.GiveTake.Insert(ctx, g)
	if err != nil {
		return core.GiveTakeRecord{}, err
	}
	s.written(ctx, core.TableGiveTake, core.OpInsert, stored.ID)
	return stored, nil
}

// UpdateGiveTake applies a partial edit; settled records cannot be reopened.
func (s *Session) UpdateGiveTake(ctx context.Context, id string, p core.GiveTakePatch) (core.GiveTakeRecord, error) {
	if err := s.requireUser(); err != nil {
		return core.GiveTakeRecord{}, err
	}
	if err := p.Validate(); err != nil {
		return core.GiveTakeRecord{}, err
	}

	if err := s.lock(); err != nil {
		return core.GiveTakeRecord{}, err
	}
	defer s.mu.Unlock()
	if cur, ok := s.GiveTake.Find(id); ok {
		if err := p.ValidateTransition(cur); err != nil {
			return core.GiveTakeRecord{}, err
		}
	}
	merged, err := s.GiveTake.Update(ctx, id, p)
	if err != nil {
		return core.GiveTakeRecord{}, err
	}
	s.written(ctx, core.TableGiveTake, core.OpUpdate, id)
	return merged, nil
}

// MarkSettled moves a record to settled. Settling twice succeeds.
func (s *Session) MarkSettled(ctx context.Context, id string) (core.GiveTakeRecord, error) {
	return s.UpdateGiveTake(ctx, id, core.GiveTakePatch{Status: core.Ptr(core.Settled)})
}

func (s *Session) DeleteGiveTake(ctx context.Context, id string) error {
	if err := s.requireUser(); err != nil {
		return err
	}

	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if err := s.GiveTake.Remove(ctx, id); err != nil {
		return err
	}
	s.written(ctx, core.TableGiveTake, core.OpDelete, id)
	return nil
}
