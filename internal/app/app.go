package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"exam-service/common/logger"
	commonmetrics "exam-service/common/metrics"
	"exam-service/common/telemetry"
	"exam-service/internal/config"
	"exam-service/internal/db"
	"exam-service/internal/events"
	"exam-service/internal/health"
	"exam-service/internal/kafka"
	"exam-service/internal/messaging"
	"exam-service/internal/metrics"
	"exam-service/internal/schema"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"
)

type App struct {
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	logger    *slog.Logger
	db        *bun.DB
	telemetry *telemetry.Telemetry
	notifier  *events.Notifier
	health    *health.Handler
}

// New loads configuration, connects every dependency and builds the router.
func New(fs *pflag.FlagSet) (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "commit", GitCommit, "built", BuildTime)

	cfg, err := config.Load(fs)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env, "database_driver", cfg.Database.Driver, "events_driver", cfg.Events.Driver)

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	tel, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Interval:       time.Duration(cfg.Telemetry.IntervalSeconds) * time.Second,
	}, slogLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	domainMetrics, err := metrics.New(tel.Metrics.Meter())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize domain metrics: %w", err)
	}

	database := db.New(cfg.Database)
	if err := tel.Metrics.Database.RegisterDB(database.DB, tel.Metrics.Meter()); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}

	if err := schema.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	notifier := events.NewNotifier(newProducer(cfg.Events, slogLogger, tel.Metrics), slogLogger)

	router, healthHandler := NewRouter(Deps{
		Config:   cfg,
		DB:       database,
		Logger:   slogLogger,
		Metrics:  tel.Metrics,
		Domain:   domainMetrics,
		Notifier: notifier,
	})

	if err := tel.Metrics.Health.RegisterDependencies(ctx, tel.Metrics.Meter(), healthHandler.Names()); err != nil {
		slogLogger.Warn("failed to register dependency metrics", "error", err)
	}

	slogLogger.Info("application initialized successfully")

	return &App{
		config:    cfg,
		router:    router,
		logger:    slogLogger,
		db:        database,
		telemetry: tel,
		notifier:  notifier,
		health:    healthHandler,
	}, nil
}

// newProducer connects the configured broker. A broker that cannot be reached
// disables events instead of failing startup.
func newProducer(cfg config.EventsConfig, logger *slog.Logger, m *commonmetrics.Metrics) events.Producer {
	switch cfg.Driver {
	case config.EventsNATS:
		producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, logger, m)
		if err != nil {
			logger.Warn("failed to initialize NATS producer, events disabled", "error", err)
			return nil
		}
		return producer
	case config.EventsKafka:
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger, m)
		if err != nil {
			logger.Warn("failed to initialize kafka producer, events disabled", "error", err)
			return nil
		}
		return producer
	default:
		logger.Info("event publishing disabled")
		return nil
	}
}

// StartHealthChecks probes dependencies every 30 seconds until ctx is cancelled.
func (a *App) StartHealthChecks(ctx context.Context) {
	a.health.Run(ctx, 30*time.Second)
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if err := a.notifier.Close(); err != nil {
		a.logger.Error("event producer close error", "error", err)
	}
	errs = append(errs, a.telemetry.Shutdown(ctx, a.logger))
	db.Close(a.db)

	return errors.Join(errs...)
}
