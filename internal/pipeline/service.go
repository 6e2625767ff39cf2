package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/fetcher/headless"
	"github.com/JakeFAU/text-extraction/internal/policy/ratelimit"
)

// Defaults applied by NewService.
const (
	DefaultTimeout          = 60 * time.Second
	DefaultBatchParallelism = 4
)

// ServiceConfig tunes the service entry points.
type ServiceConfig struct {
	// DefaultTimeout bounds a request that carries no Timeout of its own.
	DefaultTimeout time.Duration
	// AcquireTimeout bounds each rate-limit admission; zero uses the limiter's default.
	AcquireTimeout   time.Duration
	BatchParallelism int
}

// Service exposes limited and unlimited extraction. Both share the same
// collaborators; only the limited path goes through the rate limiter.
type Service struct {
	unlimited *Orchestrator
	limited   *Orchestrator
	cfg       ServiceConfig
	logger    *zap.Logger
}

// NewService builds both orchestrators. acq gates the limited path.
func NewService(
	fetcher extraction.Fetcher,
	renderer extraction.Renderer,
	extractor extraction.Extractor,
	acq ratelimit.Acquirer,
	cfg ServiceConfig,
	opts ...Option,
) (*Service, error) {
	switch {
	case fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case acq == nil:
		return nil, errors.New("pipeline: rate limiter is required")
	}
	if renderer == nil {
		renderer = headless.NewNoop()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.BatchParallelism <= 0 {
		cfg.BatchParallelism = DefaultBatchParallelism
	}

	unlimited := NewOrchestrator(fetcher, renderer, extractor, opts...)
	limited := NewOrchestrator(
		ratelimit.NewLimitedFetcher(fetcher, acq, cfg.AcquireTimeout),
		ratelimit.NewLimitedRenderer(renderer, acq, cfg.AcquireTimeout),
		extractor,
		opts...,
	)
	return &Service{
		unlimited: unlimited,
		limited:   limited,
		cfg:       cfg,
		logger:    unlimited.logger,
	}, nil
}

// ExtractUnlimited runs the pipeline without touching the rate limiter.
func (s *Service) ExtractUnlimited(ctx context.Context, rawURL string, timeout time.Duration) (extraction.Result, error) {
	return s.Extract(ctx, extraction.Request{URL: rawURL, Unlimited: true, Timeout: timeout})
}

// ExtractLimited runs the pipeline with every fetch and render gated per domain.
func (s *Service) ExtractLimited(ctx context.Context, rawURL string, timeout time.Duration) (extraction.Result, error) {
	return s.Extract(ctx, extraction.Request{URL: rawURL, Timeout: timeout})
}

// Extract dispatches req on its Unlimited flag.
func (s *Service) Extract(ctx context.Context, req extraction.Request) (extraction.Result, error) {
	if req.Timeout <= 0 {
		req.Timeout = s.cfg.DefaultTimeout
	}
	if req.Mode == "" {
		req.Mode = extraction.ModeAuto
	}
	if req.Unlimited {
		return s.unlimited.Run(ctx, req)
	}
	return s.limited.Run(ctx, req)
}

// ExtractBatch runs reqs concurrently, at most parallelism at a time (zero uses
// the configured default). Results are positional. A request that fails hard
// yields a Result with OK=false and Err set; it never stops its siblings.
func (s *Service) ExtractBatch(ctx context.Context, reqs []extraction.Request, parallelism int) []extraction.Result {
	if parallelism <= 0 {
		parallelism = s.cfg.BatchParallelism
	}
	results := make([]extraction.Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Extract(ctx, req)
			if err != nil {
				s.logger.Debug("batch item failed", zap.String("url", req.URL), zap.Error(err))
				res = extraction.Result{URL: req.URL, Tier: extraction.TierNone, Err: err}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
