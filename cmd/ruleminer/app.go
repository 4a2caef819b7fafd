package main

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ruleminer/internal/config"
	"github.com/fyrsmithlabs/ruleminer/internal/logging"
	"github.com/fyrsmithlabs/ruleminer/internal/pipeline"
	"github.com/fyrsmithlabs/ruleminer/internal/store"
	"github.com/fyrsmithlabs/ruleminer/internal/telemetry"
)

// app holds the dependencies a command needs for one invocation.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	store    store.Store
	pipeline *pipeline.Pipeline
}

// openApp loads configuration and wires telemetry, logging, the store and
// the pipeline. Configuration errors surface before the store is opened.
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", h.Reason))
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	p, err := pipeline.New(cfg, st,
		pipeline.WithLogger(logger),
		pipeline.WithTracer(tel.Tracer(pipeline.TracerName)),
	)
	if err != nil {
		_ = st.Close()
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	logger.Debug(ctx, "ruleminer initialized",
		zap.String("version", version),
		zap.String("store.driver", cfg.Store.Driver),
		zap.Bool("telemetry", tel.IsEnabled()),
	)
	return &app{cfg: cfg, logger: logger, tel: tel, store: st, pipeline: p}, nil
}

func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lc, err := logging.FromConfig(cfg.Logging, tel.IsEnabled())
	if err != nil {
		return nil, err
	}
	if !tel.IsEnabled() {
		return logging.NewLogger(lc, nil)
	}
	return logging.NewLogger(lc, global.GetLoggerProvider())
}

// Close releases the store and flushes telemetry. It is safe to call with a
// cancelled context.
func (a *app) Close(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	err := errors.Join(
		a.store.Close(),
		a.tel.Shutdown(ctx),
	)
	_ = a.logger.Sync()
	return err
}
