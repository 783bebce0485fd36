package http

import (
	"net/http"

	"tally/internal/ledger"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	NewResponse().JSON(sess.Dashboard()).Write(w)
	return nil
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	NewResponse().JSON(nonNil(sess.BudgetProgress())).Write(w)
	return nil
}

func (s *Server) handleBudgetDrift(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	NewResponse().JSON(nonNil(sess.BudgetDrift())).Write(w)
	return nil
}

// handleReload refreshes every mirror from the store.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error {
	if err := sess.Load(r.Context()); err != nil {
		return err
	}
	NewResponse().JSON(sess.Dashboard()).Write(w)
	return nil
}
