package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"resights/internal/audit"
	"resights/internal/audit/store/memory"
	"resights/internal/audit/store/postgres"
	"resights/internal/platform/config"
	"resights/internal/platform/logger"
	"resights/internal/platform/tracing"
	"resights/internal/registry"
	"resights/internal/registry/metrics"
	"resights/internal/registry/service"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	logLevel string
}

// appOptions vary per subcommand.
type appOptions struct {
	// logWriter receives logs and stdout trace spans. The MCP stdio mode and
	// the one-shot commands keep stdout for their output.
	logWriter  io.Writer
	registerer prometheus.Registerer
}

// app is the wired process graph shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	service *service.Service

	tracing *tracing.Provider
	db      *sql.DB
}

// configurationError reports startup problems under the configuration kind so
// they print the same way as registry failures.
func configurationError(err error) error {
	var re *registry.Error
	if errors.As(err, &re) {
		return err
	}
	return &registry.Error{Kind: registry.KindConfiguration, Op: "startup", Message: err.Error()}
}

func newApp(ctx context.Context, flags globalFlags, opts appOptions) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, configurationError(err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if opts.registerer == nil {
		opts.registerer = prometheus.NewRegistry()
	}

	a := &app{
		cfg:     cfg,
		logger:  logger.New(opts.logWriter, cfg.Logging.Level, cfg.Logging.Format),
		metrics: metrics.New(opts.registerer),
	}

	auth, err := registry.NewAuthContext(cfg.Registry.BaseURL, cfg.Registry.APIKey,
		registry.WithHealthRoot(cfg.Registry.HealthRoot))
	if err != nil {
		return nil, err
	}

	a.tracing, err = tracing.NewProvider(ctx, tracing.Config{
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		Writer:       opts.logWriter,
	})
	if err != nil {
		return nil, configurationError(fmt.Errorf("init tracing: %w", err))
	}

	store, err := a.auditStore(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	publisher, err := audit.NewPublisher(store)
	if err != nil {
		a.Close(ctx)
		return nil, configurationError(err)
	}

	client, err := registry.NewClient(auth,
		registry.WithLogger(a.logger),
		registry.WithMetrics(a.metrics),
		registry.WithTracer(a.tracing.Tracer()),
	)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.service, err = service.New(client,
		service.WithLogger(a.logger),
		service.WithMetrics(a.metrics),
		service.WithAuditPublisher(publisher),
	)
	if err != nil {
		a.Close(ctx)
		return nil, configurationError(err)
	}
	return a, nil
}

// auditStore picks Postgres when DATABASE_URL is set, the in-memory ring otherwise.
func (a *app) auditStore(ctx context.Context) (audit.Store, error) {
	if a.cfg.Audit.DatabaseURL == "" {
		return memory.NewInMemoryStore(a.cfg.Audit.MemoryLimit), nil
	}
	db, err := postgres.Open(ctx, a.cfg.Audit.DatabaseURL)
	if err != nil {
		return nil, configurationError(fmt.Errorf("open audit database: %w", err))
	}
	a.db = db
	store := postgres.New(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, configurationError(fmt.Errorf("migrate audit database: %w", err))
	}
	a.logger.Info("audit store ready", "backend", "postgres")
	return store, nil
}

// Close flushes spans and releases the audit database.
func (a *app) Close(ctx context.Context) {
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown failed", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("audit database close failed", "error", err)
		}
	}
}
