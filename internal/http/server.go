package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/family"
	"kanakku/internal/log"
	"kanakku/internal/middleware/ratelimit"
	"kanakku/internal/middleware/security"
	"kanakku/internal/middleware/trace"
	"kanakku/internal/services"
	"kanakku/internal/watch"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API is served from.
type Deps struct {
	Families *family.Service
	Ledger   *services.LedgerService
	Planning *services.PlanningService
	Reports  *services.ReportService
	Store    Pinger
	Logger   *log.Logger

	RateLimitPerMinute int
	AuthProxySecret    string
	// Location is the reporting timezone used for dates and default months.
	Location *time.Location
	// Heartbeat is the interval of SSE keepalive comments (default: 25s).
	Heartbeat time.Duration
}

type Server struct {
	http.Server
	deps     Deps
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// streams owns every live SSE subscription; closing it ends them all.
	streams *watch.Scope

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 25 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: security.NewDetector(),
		streams:  watch.NewScope(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/v1/session", s.handleSignIn)
	mux.HandleFunc("GET /api/v1/me", s.withActor(s.handleMe))
	mux.HandleFunc("POST /api/v1/family", s.withActor(s.handleCreateFamily))
	mux.HandleFunc("GET /api/v1/family", s.withActor(s.handleFamily))
	mux.HandleFunc("POST /api/v1/family/join", s.withActor(s.handleJoinFamily))
	mux.HandleFunc("POST /api/v1/family/invite-code", s.withActor(s.handleRotateInviteCode))
	mux.HandleFunc("GET /api/v1/family/members", s.withActor(s.handleMembers))

	mux.HandleFunc("GET /api/v1/accounts", s.withActor(s.handleListAccounts))
	mux.HandleFunc("POST /api/v1/accounts", s.withActor(s.handleOpenAccount))
	mux.HandleFunc("GET /api/v1/accounts/reconcile", s.withActor(s.handleReconcile))

	mux.HandleFunc("GET /api/v1/transactions", s.withActor(s.handleListTransactions))
	mux.HandleFunc("POST /api/v1/transactions", s.withActor(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/v1/transactions/{id}", s.withActor(s.handleGetTransaction))
	mux.HandleFunc("PATCH /api/v1/transactions/{id}", s.withActor(s.handleEditTransaction))
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", s.withActor(s.handleDeleteTransaction))
	mux.HandleFunc("POST /api/v1/transactions/{id}/review", s.withActor(s.handleReviewTransaction))

	mux.HandleFunc("GET /api/v1/categories", s.withActor(s.handleListCategories))
	mux.HandleFunc("POST /api/v1/categories", s.withActor(s.handleAddCategory))
	mux.HandleFunc("DELETE /api/v1/categories/{id}", s.withActor(s.handleDeleteCategory))
	mux.HandleFunc("GET /api/v1/budgets", s.withActor(s.handleListBudgets))
	mux.HandleFunc("POST /api/v1/budgets", s.withActor(s.handleAddBudget))
	mux.HandleFunc("GET /api/v1/goals", s.withActor(s.handleListGoals))
	mux.HandleFunc("POST /api/v1/goals", s.withActor(s.handleAddGoal))
	mux.HandleFunc("GET /api/v1/events", s.withActor(s.handleListEvents))
	mux.HandleFunc("POST /api/v1/events", s.withActor(s.handleAddEvent))
	mux.HandleFunc("GET /api/v1/events/{id}/categories", s.withActor(s.handleListEventCategories))
	mux.HandleFunc("POST /api/v1/events/{id}/categories", s.withActor(s.handleAddEventCategory))
	mux.HandleFunc("GET /api/v1/events/{id}/plan", s.withActor(s.handleEventPlan))

	mux.HandleFunc("GET /api/v1/dashboard", s.withActor(s.handleDashboard))
	mux.HandleFunc("GET /api/v1/stream/dashboard", s.withActor(s.handleDashboardStream))
	mux.HandleFunc("GET /api/v1/stream/events", s.withActor(s.handleEventPlanStream))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.clientKey, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
			Kind:    "rate_limited",
			Message: "rate limit exceeded, try again later",
		}})
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = log.Middleware(logger, trace.RequestIDFromRequest)(handler)
	handler = s.tracer.Middleware(handler)

	// No WriteTimeout: SSE responses stay open.
	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown ends live streams, stops the rate limiter and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.streams.Close()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withActor resolves the request principal before calling next.
func (s *Server) withActor(next func(http.ResponseWriter, *http.Request, core.Actor)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, _, err := identity(r, s.deps.AuthProxySecret)
		if err != nil {
			writeError(w, r, err)
			return
		}
		actor, err := s.deps.Families.Actor(r.Context(), uid)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r, actor)
	}
}

// clientKey rate limits signed-in users by uid and everyone else by IP.
func (s *Server) clientKey(r *http.Request) string {
	if uid := sanitizeInput(r.Header.Get(HeaderAuthUID)); uid != "" {
		return "uid:" + uid
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
