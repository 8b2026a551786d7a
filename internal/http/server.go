package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"journey/internal/auth"
	"journey/internal/cache"
	"journey/internal/core"
	"journey/internal/log"
	"journey/internal/metrics"
	"journey/internal/middleware/ratelimit"
	"journey/internal/middleware/security"
	"journey/internal/middleware/trace"
	"journey/internal/services"
	"journey/internal/view"
	appweb "journey/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("journey/http")

// Ledger is the service surface the handlers need.
type Ledger interface {
	Ping(ctx context.Context) error
	ListObjectives(ctx context.Context) ([]core.Objective, error)
	UpsertObjective(ctx context.Context, o core.Objective) (core.Objective, bool, error)
	ReplaceObjective(ctx context.Context, id string, o core.Objective) error
	GetSettings(ctx context.Context) (core.Settings, error)
	SaveSettings(ctx context.Context, rate decimal.Decimal) (core.Settings, error)
	RefreshSettings(ctx context.Context) (core.Settings, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	Deposit(ctx context.Context, tx core.Transaction) (services.DepositResult, error)
	ReverseDeposit(ctx context.Context, id int64) (services.DepositResult, error)
}

// Options configures NewServer. Only Addr and Ledger are required.
type Options struct {
	Addr   string
	Ledger Ledger

	// Auth enables the login wall when set.
	Auth *auth.Authenticator
	// AutoRate tells the UI that a rate worker keeps the quote fresh.
	AutoRate bool

	Metrics      *metrics.Metrics
	Logger       *log.Logger
	RateLimitRPM int
	SnapshotTTL  time.Duration
	Now          func() time.Time
}

type Server struct {
	http.Server

	ledger   Ledger
	auth     *auth.Authenticator
	autoRate bool
	metrics  *metrics.Metrics
	logger   *log.Logger
	now      func() time.Time

	templates *template.Template
	limiter   *ratelimit.Limiter
	detector  *security.Detector

	snapshots *cache.LRUCache[snapshot]
	caches    *cache.Manager

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options) (*Server, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 30 * time.Second
	}
	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitRPM > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitRPM
	}

	t, err := template.New("journey").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		ledger:    opts.Ledger,
		auth:      opts.Auth,
		autoRate:  opts.AutoRate,
		metrics:   opts.Metrics,
		logger:    opts.Logger.WithComponent(log.ComponentHTTP),
		now:       opts.Now,
		templates: t,
		limiter:   ratelimit.NewLimiter(limitCfg),
		detector:  security.NewDetector(),
		snapshots: cache.NewLRUCache[snapshot](4, opts.SnapshotTTL),
		caches:    cache.NewManager(),
		started:   opts.Now(),
	}
	s.detector.OnSuspicious(func(r *http.Request, reasons []string) {
		s.logger.WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			"reasons", reasons)
	})

	s.caches.Register("ledger", s.snapshots)
	s.caches.StartCleanup(5 * time.Minute)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	tm := trace.NewMiddleware(s.detector.ExtractClientIP, log.NewStructuredLogger(s.logger), s.metrics)

	r.Use(middleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(tm.Middleware)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(trace.RequestID))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited))
	r.Use(s.invalidateOnWrite)

	// Operational endpoints
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssets(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	// Login
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Post("/api/login", s.handleAPILogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Route("/api", func(r chi.Router) {
			r.Get("/objectives", s.handleListObjectives)
			r.Post("/objectives", s.handleUpsertObjective)
			r.Put("/objectives/{id}", s.handleReplaceObjective)

			r.Get("/settings", s.handleGetSettings)
			r.Post("/settings", s.handleSaveSettings)
			r.Post("/settings/refresh", s.handleRefreshSettings)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Delete("/transactions/{id}", s.handleDeleteTransaction)

			r.Get("/summary", s.handleSummary)
			r.Post("/deposits", s.handleDeposit)
			r.Delete("/deposits/{id}", s.handleReverseDeposit)
		})

		r.Get("/", s.handleIndex)
		r.Route("/ui", func(r chi.Router) {
			r.Get("/sections/{name}", s.handleSection)
			r.Get("/clock", s.handleClock)
			r.Get("/rate", s.handleRate)
			r.Get("/crossfill", s.handleCrossFill)
			r.Post("/deposits", s.handleUIDeposit)
			r.Delete("/transactions/{id}", s.handleUIDeleteTransaction)
			r.Post("/objectives/{id}/toggle", s.handleUIToggleObjective)
			r.Post("/settings/rate", s.handleUISetRate)
			r.Post("/settings/refresh", s.handleUIRefreshRate)
		})
	})

	return r
}

// invalidateOnWrite drops the cached ledger snapshot after any mutating request.
func (s *Server) invalidateOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			s.snapshots.Purge()
		}
	})
}

// Shutdown stops background goroutines and the HTTP server. It is safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"brl":    view.FormatBRL,
		"usd":    view.FormatUSD,
		"pct":    view.FormatPercent,
		"dateBR": view.FormatDateBR,
		"fixed": func(d decimal.Decimal, places int) string {
			return d.StringFixed(int32(places))
		},
		"abs": func(d decimal.Decimal) decimal.Decimal { return d.Abs() },
		"inc": func(n int) int { return n + 1 },
		"dec": func(n int) int { return n - 1 },
	}
}
