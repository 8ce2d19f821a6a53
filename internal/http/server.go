// Package http exposes the ledger JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

type Authenticator interface {
	Signup(ctx context.Context, email, password, name string) (core.User, services.Session, error)
	Login(ctx context.Context, email, password string) (core.User, services.Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (core.User, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
}

type TransactionService interface {
	List(ctx context.Context, userID string) ([]core.TransactionView, error)
	Create(ctx context.Context, in services.NewTransaction) (core.Transaction, string, error)
	Update(ctx context.Context, t core.Transaction, updateFuture bool) error
	Delete(ctx context.Context, userID, id string, deleteFuture bool) error
}

// RecurringRunner sweeps one user's recurring templates on demand.
type RecurringRunner interface {
	RunForUser(ctx context.Context, userID string) (services.Report, error)
}

// GenerationTrigger runs the generator on a best-effort basis.
type GenerationTrigger interface {
	Fire(ctx context.Context, userID string)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API needs. Trigger and Health are optional.
type Deps struct {
	Auth         Authenticator
	Categories   CategoryStore
	Transactions TransactionService
	Recurring    RecurringRunner
	Trigger      GenerationTrigger
	Health       Pinger

	RateLimitPerMinute int
	CORSOrigin         string
}

type Server struct {
	http.Server

	auth         Authenticator
	categories   CategoryStore
	transactions TransactionService
	recurring    RecurringRunner
	trigger      GenerationTrigger
	health       Pinger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time
	logger   *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		auth:         deps.Auth,
		categories:   deps.Categories,
		transactions: deps.Transactions,
		recurring:    deps.Recurring,
		trigger:      deps.Trigger,
		health:       deps.Health,
		detector:     security.NewDetector(),
		started:      time.Now(),
		logger:       log.WithComponent(log.ComponentHTTP),
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute})
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)

	cors := security.DefaultCORSConfig()
	if deps.CORSOrigin != "" {
		cors.AllowOrigin = deps.CORSOrigin
	}

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(security.CORS(cors))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit))

		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/validate", s.handleValidate)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/categories", s.handleListCategories)
			r.Post("/categories", s.handleCreateCategory)
			r.Put("/categories", s.handleUpdateCategory)
			r.Delete("/categories", s.handleDeleteCategory)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Put("/transactions", s.handleUpdateTransaction)
			r.Delete("/transactions", s.handleDeleteTransaction)

			r.Post("/recurring/generate", s.handleGenerateRecurring)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, r, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// fireTrigger runs opportunistic generation for the user, if configured.
func (s *Server) fireTrigger(ctx context.Context, userID string) {
	if s.trigger != nil {
		s.trigger.Fire(ctx, userID)
	}
}
