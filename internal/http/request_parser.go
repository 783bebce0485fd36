package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"tally/internal/core"
	"tally/internal/report"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// decodeJSON reads exactly one JSON value into dst. Unknown fields and
// trailing data are rejected as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", core.ErrValidation, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", core.ErrValidation)
		default:
			return fmt.Errorf("%w: malformed body: %v", core.ErrValidation, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: body must hold a single object", core.ErrValidation)
	}
	return nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) {
	if s != nil {
		*s = sanitizeInput(*s)
	}
}

// oneOf checks an optional query value against its allowed set.
func oneOf(name, v string, allowed ...string) error {
	if v == "" {
		return nil
	}
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %v", core.ErrValidation, name, allowed)
}

// ParseTransactionFilter reads ?type=&search= from a query string.
func ParseTransactionFilter(q url.Values) (report.TransactionFilter, error) {
	f := report.TransactionFilter{
		Type:   strings.TrimSpace(q.Get("type")),
		Search: sanitizeInput(q.Get("search")),
	}
	if err := oneOf("type", f.Type, report.All, string(core.Income), string(core.Expense)); err != nil {
		return report.TransactionFilter{}, err
	}
	return f, nil
}

// ParseGiveTakeFilter reads ?type=&status= from a query string.
func ParseGiveTakeFilter(q url.Values) (report.GiveTakeFilter, error) {
	f := report.GiveTakeFilter{
		Type:   strings.TrimSpace(q.Get("type")),
		Status: strings.TrimSpace(q.Get("status")),
	}
	if err := oneOf("type", f.Type, report.All, string(core.Give), string(core.Take)); err != nil {
		return report.GiveTakeFilter{}, err
	}
	if err := oneOf("status", f.Status, report.All, string(core.Pending), string(core.Settled)); err != nil {
		return report.GiveTakeFilter{}, err
	}
	return f, nil
}
