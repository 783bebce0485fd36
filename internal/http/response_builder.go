// Package http is the JSON API over the ledger aggregator and the auth
// service.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"tally/internal/auth"
	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/log"
	"tally/internal/middleware/trace"
	"tally/internal/store"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(key, value string) *ResponseBuilder {
	b.headers[key] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A 204 carries no body.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.statusCode == http.StatusNoContent || b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse builds an error body with the given status.
func ErrorResponse(code int, msg string) *ResponseBuilder {
	return NewResponse().Status(code).JSON(errorBody{Error: msg})
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrSessionClosed):
		// dropped while the request was in flight; a retry opens a new one
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrAuthRequired),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes its mapped response. Internal failures are
// reported to the client without detail, only with the request id to quote.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	logger := log.FromContext(r.Context())
	body := errorBody{Error: err.Error()}
	switch code {
	case http.StatusInternalServerError:
		errType := log.ErrorTypeInternal
		if core.IsFetchError(err) || core.IsWriteError(err) {
			errType = log.ErrorTypeDatabase
		}
		logger.ErrorContext(r.Context(), "Request failed", log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
			WithError(err, errType).ToSlice()...)
		body = errorBody{Error: http.StatusText(code), RequestID: trace.GetRequestID(r.Context())}
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		logger.InfoContext(r.Context(), "Request raced a session close", log.FieldPath, r.URL.Path)
	default:
		logger.DebugContext(r.Context(), "Request rejected", log.FieldPath, r.URL.Path, log.FieldStatusCode, code, log.FieldError, body.Error)
	}
	NewResponse().Status(code).JSON(body).Write(w)
}
