// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/text-extraction/internal/api"
	"github.com/JakeFAU/text-extraction/internal/config"
	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/extractor"
	collyfetcher "github.com/JakeFAU/text-extraction/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/text-extraction/internal/fetcher/headless"
	"github.com/JakeFAU/text-extraction/internal/headless/detector"
	"github.com/JakeFAU/text-extraction/internal/metrics"
	"github.com/JakeFAU/text-extraction/internal/pipeline"
	"github.com/JakeFAU/text-extraction/internal/policy/ratelimit"
	"github.com/JakeFAU/text-extraction/internal/telemetry"
)

// App holds the shared, long-lived services built from one Config.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	limiter  *ratelimit.Limiter
	service  *pipeline.Service
	renderer *headlessfetcher.Renderer
	tracer   *sdktrace.TracerProvider
}

// New builds every service described by cfg. It fails fast on the first
// component that cannot be initialized.
func New(ctx context.Context, cfg config.Config, version string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName, version)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
	}

	limiterCfg, err := cfg.RateLimit.Limiter()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.limiter, err = ratelimit.New(limiterCfg, ratelimit.WithLogger(logger.Named("ratelimit")))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTP.Timeout,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
	}, collyfetcher.WithLogger(logger.Named("fetcher")))

	var renderer extraction.Renderer = headlessfetcher.NewNoop()
	if cfg.Headless.Enabled {
		a.renderer, err = headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
			SettleDelay:       cfg.Headless.SettleDelay,
			ExecPath:          cfg.Headless.ExecPath,
			NoSandbox:         cfg.Headless.NoSandbox,
		}, logger.Named("headless"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init headless renderer: %w", err)
		}
		renderer = a.renderer
	}

	var acceptor pipeline.Acceptor = pipeline.MinLength{MinChars: cfg.Pipeline.MinContentChars}
	if cfg.Pipeline.SPAGuard {
		acceptor = pipeline.SPAGuard{Detector: detector.NewHeuristic(0), Next: acceptor}
	}

	a.service, err = pipeline.NewService(fetcher, renderer, extractor.New(), a.limiter,
		pipeline.ServiceConfig{
			DefaultTimeout:   cfg.Pipeline.DefaultTimeout,
			AcquireTimeout:   cfg.RateLimit.AcquireTimeout,
			BatchParallelism: cfg.Pipeline.BatchParallelism,
		},
		pipeline.WithAcceptor(acceptor),
		pipeline.WithLogger(logger.Named("pipeline")),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	logger.Info("application services initialized",
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.Strings("rates", cfg.RateLimit.Rates),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)
	return a, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Service returns the extraction service.
func (a *App) Service() api.Extractor {
	return a.service
}

// Limiter returns the shared per-domain rate limiter.
func (a *App) Limiter() *ratelimit.Limiter {
	return a.limiter
}

// Close releases the browser and flushes traces.
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
