package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/api"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/audit"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/config"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/middleware"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/storage"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/storage/memory"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sports-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)
	logger.WithFields(map[string]interface{}{
		"environment": cfg.Environment,
		"version":     version,
		"storage":     cfg.Storage.Type,
		"limiter":     cfg.RateLimit.Backend,
	}).Info("Starting sports API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing OpenTelemetry: %w", err)
	}

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
		if providers != nil {
			otelMetrics, err := observability.NewOTelMetrics()
			if err != nil {
				return fmt.Errorf("creating OpenTelemetry instruments: %w", err)
			}
			metrics.AttachOTel(otelMetrics)
		}
	}

	var shutdownFuncs []namedShutdown

	// Storage
	var store auth.UserStore
	var conns *postgres.ConnectionManager
	switch cfg.Storage.Type {
	case storage.TypePostgres:
		conns, err = postgres.NewConnectionManager(ctx, postgres.ConnectionConfigFrom(cfg.Storage), logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, namedShutdown{"postgres", func(context.Context) error { return conns.Close() }})

		if cfg.Storage.AutoMigrate {
			if err := postgres.Migrate(ctx, conns.Primary()); err != nil {
				return fmt.Errorf("migrating schema: %w", err)
			}
		}
		store = postgres.NewUserStore(conns)
	default:
		logger.Warn("Using in-memory identity store; data is lost on restart")
		store = memory.NewUserStore()
	}
	if cfg.Storage.CacheEnabled {
		store = storage.NewCachedUserStore(store, cfg.Storage.CacheSize, cfg.Storage.CacheTTL, metrics)
	}

	// Redis is optional and only required by the shared limiter
	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		rc, err := postgres.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		redisClient = rc.GetClient()
		shutdownFuncs = append(shutdownFuncs, namedShutdown{"redis", func(context.Context) error { return rc.Close() }})
	}

	// Audit
	auditLogger, err := newAuditLogger(cfg, conns)
	if err != nil {
		return err
	}
	shutdownFuncs = append(shutdownFuncs, namedShutdown{"audit", func(context.Context) error { return auditLogger.Close() }})

	// Auth
	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordCost, cfg.Auth.HashConcurrency)
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}
	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionDuration.Duration(),
		auth.WithIssuer(cfg.Observability.OTelServiceName))
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}
	svc := auth.NewService(store, hasher, issuer,
		auth.WithLogger(logger.WithField("component", "auth")),
		auth.WithAuditLogger(auditLogger),
		auth.WithMetrics(metrics),
	)

	// Rate limiting
	searchConfig := middleware.RateLimitConfig{Max: cfg.RateLimit.SearchMax, Window: cfg.RateLimit.SearchWindow}
	apiConfig := middleware.RateLimitConfig{Max: cfg.RateLimit.APIMax, Window: cfg.RateLimit.APIWindow}

	var searchLimiter, apiLimiter middleware.Limiter
	var localLimiters []*middleware.SlidingWindowLimiter
	switch cfg.RateLimit.Backend {
	case config.LimiterRedis:
		searchLimiter = middleware.NewRedisSlidingWindowLimiter(redisClient, searchConfig, middleware.WithKeyPrefix("ratelimit:search"))
		if apiConfig.Max > 0 {
			apiLimiter = middleware.NewRedisSlidingWindowLimiter(redisClient, apiConfig, middleware.WithKeyPrefix("ratelimit:api"))
		}
	default:
		local := middleware.NewSlidingWindowLimiter(searchConfig)
		searchLimiter = local
		localLimiters = append(localLimiters, local)
		if apiConfig.Max > 0 {
			localAPI := middleware.NewSlidingWindowLimiter(apiConfig)
			apiLimiter = localAPI
			localLimiters = append(localLimiters, localAPI)
		}
	}

	proxies, err := audit.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}

	server := api.NewServer(svc, api.Options{
		Logger:          logger,
		Metrics:         metrics,
		Audit:           auditLogger,
		AuditRequests:   cfg.Audit.LogRequests,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		SecureCookies:   cfg.SecureCookies(),
		TrustedProxies:  proxies,
		SearchLimiter:   searchLimiter,
		APILimiter:      apiLimiter,
		LimiterFailOpen: cfg.RateLimit.FailOpen,
		Tracing:         cfg.Observability.OTelEnabled,
	})

	// Background maintenance
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RateLimit.CleanupSchedule, observability.Guard(logger, "maintenance", func() {
		maintain(ctx, logger, localLimiters, conns, metrics)
	})); err != nil {
		return fmt.Errorf("scheduling maintenance: %w", err)
	}
	scheduler.Start()
	shutdownFuncs = append(shutdownFuncs, namedShutdown{"scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port
	var primary *sql.DB
	if conns != nil {
		primary = conns.Primary()
	}
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(primary, redisClient).WithVersion(version))
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	for _, ns := range shutdownFuncs {
		shutdown.RegisterShutdownFunc(ns.name, ns.fn)
	}
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	serveErr := make(chan error, 2)
	for _, srv := range []*http.Server{apiServer, healthServer} {
		go func(srv *http.Server) {
			defer observability.RecoverPanic(logger, "http server "+srv.Addr)
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("server %s: %w", srv.Addr, err)
				cancel()
			}
		}(srv)
	}

	shutdownErr := shutdown.WaitForShutdown(ctx)
	select {
	case err := <-serveErr:
		return errors.Join(err, shutdownErr)
	default:
		return shutdownErr
	}
}

type namedShutdown struct {
	name string
	fn   observability.ShutdownFunc
}

// newAuditLogger builds the configured audit sink
func newAuditLogger(cfg *config.Config, conns *postgres.ConnectionManager) (audit.Logger, error) {
	switch cfg.Audit.Sink {
	case config.AuditFile:
		fileCfg := audit.DefaultFileLoggerConfig()
		fileCfg.BasePath = cfg.Audit.FilePath
		fileLogger, err := audit.NewFileLogger(fileCfg)
		if err != nil {
			return nil, fmt.Errorf("creating file audit logger: %w", err)
		}
		return fileLogger, nil
	case config.AuditDatabase:
		if conns == nil {
			return nil, errors.New("database audit sink requires postgres storage")
		}
		dbLogger, err := audit.NewDBLogger(conns.Primary())
		if err != nil {
			return nil, fmt.Errorf("creating database audit logger: %w", err)
		}
		return dbLogger, nil
	default:
		return audit.NoOp(), nil
	}
}

// maintain prunes idle limiter windows, drops failed replicas and samples
// pool statistics
func maintain(ctx context.Context, logger *observability.Logger, limiters []*middleware.SlidingWindowLimiter, conns *postgres.ConnectionManager, metrics *observability.Metrics) {
	pruned := 0
	for _, l := range limiters {
		pruned += l.Cleanup()
	}
	if pruned > 0 {
		logger.WithField("windows", pruned).Debug("Pruned idle rate limit windows")
	}

	if conns == nil {
		return
	}
	if removed := conns.RemoveUnhealthyReplicas(ctx); removed > 0 {
		logger.WithField("replicas", removed).Warn("Removed unhealthy replicas")
	}
	metrics.ObserveDBStats(conns.Primary().Stats())
}
