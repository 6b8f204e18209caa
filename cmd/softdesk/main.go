package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/softdesk/support/pkg/api"
	"github.com/softdesk/support/pkg/audit"
	"github.com/softdesk/support/pkg/auth"
	"github.com/softdesk/support/pkg/authz"
	"github.com/softdesk/support/pkg/config"
	"github.com/softdesk/support/pkg/issues"
	"github.com/softdesk/support/pkg/middleware"
	"github.com/softdesk/support/pkg/observability"
	"github.com/softdesk/support/pkg/projects"
	"github.com/softdesk/support/pkg/storage"
	"github.com/softdesk/support/pkg/storage/memory"
	"github.com/softdesk/support/pkg/storage/postgres"
	"github.com/softdesk/support/pkg/users"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.ParsedLogLevel(), os.Stdout)
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	var (
		store      storage.Store
		db         *sql.DB
		tokenStore auth.RefreshTokenStore
		recorder   audit.Recorder = audit.NopRecorder{}
	)

	switch cfg.Storage.Type {
	case "postgres":
		var err error
		db, err = postgres.Open(ctx, cfg.Storage.PostgresConfig())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.RunMigrations(ctx, db); err != nil {
			return err
		}
		store = postgres.New(db)
		tokenStore = auth.NewPostgresTokenStore(db)
		if recorder, err = audit.NewDBRecorder(db); err != nil {
			return err
		}
		logger.Info("Connected to PostgreSQL")
	case "memory":
		store = memory.New()
		tokenStore = auth.NewMemoryTokenStore()
		logger.Warn("Using in-memory storage, data will not survive a restart")
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var providers *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		var err error
		providers, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return err
		}
	}

	tokenManager, err := auth.NewTokenManager(
		[]byte(cfg.Auth.JWTSecret),
		cfg.Auth.Issuer,
		cfg.Auth.AccessTTL.Std(),
		cfg.Auth.RefreshTTL.Std(),
		tokenStore,
	)
	if err != nil {
		return err
	}

	guard := authz.NewGuard(authz.NewEngine(store), metrics, recorder)
	userService := users.NewService(store, recorder)
	projectService := projects.NewService(store, guard, recorder)
	issueService := issues.NewService(store, guard, recorder)

	handler := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		Metrics:         metrics,
		Auth:            middleware.NewAuthMiddleware(tokenManager, store),
		AuthHandlers:    api.NewAuthHandlers(userService, tokenManager, metrics, recorder),
		UserHandlers:    api.NewUserHandlers(userService),
		ProjectHandlers: api.NewProjectHandlers(projectService),
		IssueHandlers:   api.NewIssueHandlers(issueService),
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Auth.TokenSweepSchedule, func() {
		removed, err := tokenStore.DeleteExpired(context.Background())
		if err != nil {
			logger.WithError(err).Error("Expired token sweep failed")
			return
		}
		if removed > 0 {
			logger.WithField("removed", removed).Info("Purged expired refresh tokens")
		}
	}); err != nil {
		return err
	}
	if metrics != nil && db != nil {
		if _, err := scheduler.AddFunc("@every 30s", func() {
			metrics.CollectDBStats(db)
		}); err != nil {
			return err
		}
	}
	scheduler.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout.Std(), apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		<-scheduler.Stop().Done()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return recorder.Close()
	})
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health and metrics server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}
