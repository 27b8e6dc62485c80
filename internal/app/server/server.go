package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardadmin/internal/domain/aggregation"
	"cardadmin/internal/domain/audit"
	"cardadmin/internal/domain/cards"
	"cardadmin/internal/domain/directory"
	"cardadmin/internal/domain/policy"
	"cardadmin/internal/domain/views"
	"cardadmin/internal/platform/cache"
	"cardadmin/internal/platform/config"
	"cardadmin/internal/platform/db"
	"cardadmin/internal/platform/jobs"
	"cardadmin/internal/platform/metrics"
	"cardadmin/internal/transport/http/api"
	aggregationhandler "cardadmin/internal/transport/http/handlers/aggregation"
	audithandler "cardadmin/internal/transport/http/handlers/audit"
	cardshandler "cardadmin/internal/transport/http/handlers/cards"
	directoryhandler "cardadmin/internal/transport/http/handlers/directory"
	policyhandler "cardadmin/internal/transport/http/handlers/policy"
	"cardadmin/internal/transport/http/middleware"
)

// Deps are the backing stores the router is built on. Tests swap in the
// in-memory variants.
type Deps struct {
	Store       directory.StoreAPI
	Cache       cache.Cache
	Runs        jobs.RunStore
	Idempotency middleware.IdempotencyKeys
	Audit       AuditLog
	// Ready reports whether backing services can take traffic.
	Ready func(ctx context.Context) error
}

type AuditLog interface {
	audit.Recorder
	audithandler.EventLog
}

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Cache   cache.Cache
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler

	aggregation *aggregation.Service
}

// New connects to Postgres and Redis, applies migrations and wires the HTTP
// router. Redis is optional: without REDIS_URL the views are not cached.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	var viewCache cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		viewCache = redisCache
	}

	app := Build(cfg, Deps{
		Store:       directory.NewStore(pool),
		Cache:       viewCache,
		Runs:        jobs.NewPGRunStore(pool),
		Idempotency: middleware.NewIdempotencyStore(pool),
		Audit:       audit.New(pool),
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if pinger, ok := viewCache.(interface{ Ping(context.Context) error }); ok {
				if err := pinger.Ping(ctx); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
	})
	app.DB = pool
	return app, nil
}

// Build wires services and routes on top of deps without touching the network.
func Build(cfg config.Config, deps Deps) *App {
	if deps.Audit == nil {
		deps.Audit = &audit.Memory{}
	}
	collector := metrics.New()
	jobService := jobs.New(deps.Runs)

	viewService := views.NewService(deps.Store, deps.Cache, cfg.ViewCacheTTL)

	aggregationService := aggregation.NewService(deps.Store, cfg.AggregationConcurrency)
	aggregationService.Invalidator = viewService
	aggregationService.Metrics = collector

	cardService := cards.NewService(deps.Store)
	cardService.Invalidator = viewService

	policyService := policy.NewService(deps.Store, cfg.DraftTTL)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				slog.Warn("readiness check failed", "err", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.ExpensiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		aggregationHandler := aggregationhandler.NewHandler(aggregationService, jobService, deps.Store)
		aggregationHandler.Audit = deps.Audit
		aggregationHandler.RegisterRoutes(r)

		directoryhandler.NewHandler(viewService).RegisterRoutes(r)

		cardsHandler := cardshandler.NewHandler(cardService, viewService, deps.Idempotency)
		cardsHandler.Audit = deps.Audit
		cardsHandler.RegisterRoutes(r)

		policyHandler := policyhandler.NewHandler(policyService)
		policyHandler.Audit = deps.Audit
		policyHandler.RegisterRoutes(r)

		audithandler.NewHandler(deps.Audit).RegisterRoutes(r)
	})

	return &App{
		Config:      cfg,
		Cache:       deps.Cache,
		Jobs:        jobService,
		Metrics:     collector,
		Router:      router,
		aggregation: aggregationService,
	}
}

// Start launches the job worker and, when IMPORT_INTERVAL is set, the
// periodic import.
func (a *App) Start(ctx context.Context) {
	a.Jobs.Start(ctx)
	if a.Config.ImportInterval > 0 {
		slog.Info("scheduled import enabled", "interval", a.Config.ImportInterval.String())
		a.Jobs.Schedule(ctx, jobs.JobAggregation, a.Config.ImportInterval, aggregationhandler.ImportRunner(a.aggregation, aggregation.Options{}))
	}
}

func (a *App) Close() {
	if closer, ok := a.Cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("cache close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func Run() error {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	app.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("card admin server listening", "addr", cfg.Addr, "env", cfg.Environment)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
