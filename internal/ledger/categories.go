package ledger

import (
	"context"
	"strings"

	"tally/internal/core"
)

// AddCategory adds a registry entry. Blank names are rejected.
func (s *Session) AddCategory(ctx context.Context, name string, typ core.TransactionType) (core.Category, error) {
	if err := s.requireUser(); err != nil {
		return core.Category{}, err
	}
	c := core.Category{Name: strings.TrimSpace(name), Type: typ}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	if err := s.lock(); err != nil {
		return core.Category{}, err
	}
	defer s.mu.Unlock()
	stored, err := s.Categories.Insert(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.written(ctx, core.TableCategories, core.OpInsert, stored.ID)
	return stored, nil
}

func (s *Session) DeleteCategory(ctx context.Context, id string) error {
	if err := s.requireUser(); err != nil {
		return err
	}

	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if err := s.Categories.Remove(ctx, id); err != nil {
		return err
	}
	s.written(ctx, core.TableCategories, core.OpDelete, id)
	return nil
}

// CategoriesByType lists registry entries of one type, by name.
func (s *Session) CategoriesByType(typ core.TransactionType) []core.Category {
	var out []core.Category
	for _, c := range s.Categories.Items() {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}
