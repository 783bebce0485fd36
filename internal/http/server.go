package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tally/internal/auth"
	"tally/internal/ledger"
	"tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/store"
)

const readyTimeout = 2 * time.Second

// Deps are the collaborators served by the API.
type Deps struct {
	Ledgers *ledger.Manager
	Auth    *auth.Service
	// Pinger backs /readyz; nil means always ready.
	Pinger             store.Pinger
	Logger             *log.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	ledgers  *ledger.Manager
	auth     *auth.Service
	pinger   store.Pinger
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Sign-in and sign-out through the auth service open and close
// ledger sessions.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	limitCfg := ratelimit.DefaultConfig()
	if d.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = d.RateLimitPerMinute
	}

	s := &Server{
		ledgers:  d.Ledgers,
		auth:     d.Auth,
		pinger:   d.Pinger,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(limitCfg),
		detector: security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.auth.Subscribe(func(ctx context.Context, oldID, newID string) {
		if _, err := s.ledgers.Switch(ctx, oldID, newID); err != nil {
			// the session is opened again on the user's next request
			s.logger.WarnContext(ctx, "Session switch failed", log.FieldUserID, newID, log.FieldError, err)
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /auth/signin", s.handleSignIn)
	mux.Handle("POST /auth/signout", s.auth.Middleware(http.HandlerFunc(s.handleSignOut)))
	mux.Handle("GET /auth/me", s.auth.Middleware(http.HandlerFunc(s.handleMe)))
	mux.Handle("PUT /auth/email", s.auth.Middleware(http.HandlerFunc(s.handleUpdateEmail)))
	mux.Handle("PUT /auth/password", s.auth.Middleware(http.HandlerFunc(s.handleUpdatePassword)))

	mux.Handle("/api/", s.auth.Middleware(s.apiRoutes()))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig(), s.detector)
	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP)(h)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) apiRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/dashboard", s.withSession(s.handleDashboard))
	mux.HandleFunc("POST /api/reload", s.withSession(s.handleReload))

	mux.HandleFunc("GET /api/accounts", s.withSession(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.withSession(s.handleAddAccount))
	mux.HandleFunc("PATCH /api/accounts/{id}", s.withSession(s.handleUpdateAccount))
	mux.HandleFunc("PUT /api/accounts/{id}/balance", s.withSession(s.handleUpdateBalance))

	mux.HandleFunc("GET /api/transactions", s.withSession(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withSession(s.handleAddTransaction))
	mux.HandleFunc("PATCH /api/transactions/{id}", s.withSession(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withSession(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/budgets", s.withSession(s.handleListBudgets))
	mux.HandleFunc("POST /api/budgets", s.withSession(s.handleAddBudget))
	mux.HandleFunc("GET /api/budgets/progress", s.withSession(s.handleBudgetProgress))
	mux.HandleFunc("GET /api/budgets/drift", s.withSession(s.handleBudgetDrift))
	mux.HandleFunc("POST /api/budgets/reconcile", s.withSession(s.handleReconcile))
	mux.HandleFunc("PATCH /api/budgets/{id}", s.withSession(s.handleUpdateBudget))
	mux.HandleFunc("POST /api/budgets/{id}/spent", s.withSession(s.handleIncrementSpent))

	mux.HandleFunc("GET /api/give-take", s.withSession(s.handleListGiveTake))
	mux.HandleFunc("POST /api/give-take", s.withSession(s.handleAddGiveTake))
	mux.HandleFunc("PATCH /api/give-take/{id}", s.withSession(s.handleUpdateGiveTake))
	mux.HandleFunc("DELETE /api/give-take/{id}", s.withSession(s.handleDeleteGiveTake))
	mux.HandleFunc("POST /api/give-take/{id}/settle", s.withSession(s.handleMarkSettled))

	mux.HandleFunc("GET /api/categories", s.withSession(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withSession(s.handleAddCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withSession(s.handleDeleteCategory))

	return mux
}

// sessionHandler serves one request against the caller's ledger session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *ledger.Session) error

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		sess, err := s.ledgers.Open(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := h(w, r, sess); err != nil {
			writeError(w, r, err)
		}
	}
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "backend unavailable").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics reports request, security and session counters in the
// Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	counters := []struct {
		name, kind, help string
		value            int64
	}{
		{"http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests},
		{"http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime},
		{"security_suspicious_requests_total", "counter", "Requests matching a scanner or injection pattern", securityMetrics.SuspiciousRequests},
		{"rate_limit_rejected_total", "counter", "Writes refused by the rate limiter", s.limiter.Rejected()},
		{"rate_limit_active_clients", "gauge", "Clients tracked by the rate limiter", int64(s.limiter.ActiveClients())},
		{"ledger_sessions_active", "gauge", "Loaded ledger sessions", int64(s.ledgers.Size())},
	}
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", c.name, c.help, c.name, c.kind, c.name, c.value)
	}
}
