// Package pipeline drives the direct-then-headless extraction state machine and
// exposes the limited and unlimited service entry points built on it.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/text-extraction/internal/clock/system"
	"github.com/JakeFAU/text-extraction/internal/domainkey"
	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/fetcher/headless"
	"github.com/JakeFAU/text-extraction/internal/metrics"
)

const tracerName = "github.com/JakeFAU/text-extraction/internal/pipeline"

// State names a step of the fallback state machine.
type State string

// States of a pipeline run.
const (
	StateInit            State = "init"
	StateFetchDirect     State = "fetch_direct"
	StateExtractDirect   State = "extract_direct"
	StateFetchHeadless   State = "fetch_headless"
	StateExtractHeadless State = "extract_headless"
	StateDone            State = "done"
)

// Orchestrator runs one request through the direct and headless tiers.
// It never retries a tier; escalation is its only recovery.
type Orchestrator struct {
	fetcher   extraction.Fetcher
	renderer  extraction.Renderer
	extractor extraction.Extractor
	acceptor  Acceptor
	clock     extraction.Clock
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithAcceptor replaces the default MinLength acceptance policy.
func WithAcceptor(a Acceptor) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.acceptor = a
		}
	}
}

// WithClock sets the clock used for durations.
func WithClock(c extraction.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// NewOrchestrator wires the collaborators. A nil renderer disables the headless tier.
func NewOrchestrator(
	fetcher extraction.Fetcher,
	renderer extraction.Renderer,
	extractor extraction.Extractor,
	opts ...Option,
) *Orchestrator {
	if renderer == nil {
		renderer = headless.NewNoop()
	}
	o := &Orchestrator{
		fetcher:   fetcher,
		renderer:  renderer,
		extractor: extractor,
		acceptor:  MinLength{MinChars: DefaultMinContentChars},
		clock:     system.New(),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// candidate is extracted text together with the page and tier that produced it.
type candidate struct {
	tier extraction.Tier
	page extraction.Page
	doc  extraction.Document
}

type run struct {
	req    extraction.Request
	opts   extraction.Options
	parent context.Context
	logger *zap.Logger
	best   *candidate
	cause  error
}

// Run executes the state machine for req. Malformed URLs, rate-limit timeouts
// and cancellation by the caller are returned as errors; every other outcome,
// including "no usable content", is a Result with OK=false and Err set.
func (o *Orchestrator) Run(ctx context.Context, req extraction.Request) (extraction.Result, error) {
	start := o.clock.Now()
	key, err := domainkey.Resolve(req.URL)
	if err != nil {
		return extraction.Result{}, err
	}

	r := &run{
		req:    req,
		opts:   req.Options.WithDefaults(),
		parent: ctx,
		logger: o.logger.With(zap.String("url", req.URL), zap.String("domain", key.String())),
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("url", req.URL),
		attribute.String("domain", key.String()),
		attribute.String("mode", string(req.Mode)),
		attribute.Bool("unlimited", req.Unlimited),
	))
	defer span.End()

	res, err := o.drive(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveResult(string(extraction.TierNone), "error")
		r.logger.Debug("pipeline aborted", zap.Error(err))
		return extraction.Result{}, err
	}
	res.Duration = o.clock.Now().Sub(start)

	span.SetAttributes(attribute.String("tier", string(res.Tier)), attribute.Bool("ok", res.OK))
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
	}
	metrics.ObserveResult(string(res.Tier), outcome(res))
	r.logger.Debug("pipeline finished",
		zap.String("tier", string(res.Tier)),
		zap.Bool("ok", res.OK),
		zap.Int("chars", len(res.Text)),
		zap.Duration("duration", res.Duration),
		zap.Error(res.Err),
	)
	return res, nil
}

func (o *Orchestrator) drive(ctx context.Context, r *run) (extraction.Result, error) {
	state := StateFetchDirect
	if r.req.Mode == extraction.ModeHeadlessOnly {
		state = StateFetchHeadless
	}
	r.logger.Debug("pipeline started", zap.String("state", string(state)))

	var page extraction.Page
	for {
		switch state {
		case StateFetchDirect:
			p, err := o.retrieve(ctx, state, r.req.URL, o.fetcher.Fetch)
			switch {
			case err == nil:
				page, state = p, StateExtractDirect
			case r.hard(err):
				return extraction.Result{}, err
			case errors.Is(err, extraction.ErrRobotsDisallowed):
				r.cause = err
				return r.finish(false), nil
			default:
				r.logger.Debug("direct fetch failed, escalating", zap.Error(err))
				r.cause = err
				state = StateFetchHeadless
			}

		case StateExtractDirect, StateExtractHeadless:
			if o.evaluate(ctx, r, state, page) {
				return r.finish(true), nil
			}
			if state == StateExtractHeadless {
				return r.finish(false), nil
			}
			r.logger.Debug("direct result rejected, escalating", zap.Error(r.cause))
			state = StateFetchHeadless

		case StateFetchHeadless:
			if err := ctx.Err(); err != nil && r.parent.Err() == nil {
				// The request budget is spent; there is no time left to render.
				r.cause = fmt.Errorf("%w: %w", extraction.ErrRenderFailure, err)
				return r.finish(false), nil
			}
			p, err := o.retrieve(ctx, state, r.req.URL, o.renderer.Render)
			switch {
			case err == nil:
				page, state = p, StateExtractHeadless
			case r.hard(err):
				return extraction.Result{}, err
			default:
				r.logger.Debug("headless render failed", zap.Error(err))
				r.cause = fmt.Errorf("%w: %w", extraction.ErrRenderFailure, err)
				return r.finish(false), nil
			}

		default:
			return extraction.Result{}, fmt.Errorf("pipeline: unexpected state %q", state)
		}
	}
}

func (o *Orchestrator) retrieve(
	ctx context.Context,
	state State,
	rawURL string,
	fn func(context.Context, string) (extraction.Page, error),
) (extraction.Page, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline."+string(state))
	defer span.End()

	started := o.clock.Now()
	page, err := fn(ctx, rawURL)
	metrics.ObserveStage(string(state), o.clock.Now().Sub(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return page, err
	}
	span.SetAttributes(
		attribute.Int("http.status_code", page.StatusCode),
		attribute.Int("bytes", len(page.Body)),
	)
	return page, nil
}

// evaluate extracts page and applies the acceptance policy. Non-empty text is
// kept as the best candidate; later tiers replace earlier ones.
func (o *Orchestrator) evaluate(ctx context.Context, r *run, state State, page extraction.Page) bool {
	_, span := o.tracer.Start(ctx, "pipeline."+string(state))
	defer span.End()

	tier := extraction.TierDirect
	if state == StateExtractHeadless {
		tier = extraction.TierHeadless
	}

	started := o.clock.Now()
	doc, err := o.extractor.Extract(page.Body, r.opts)
	metrics.ObserveStage(string(state), o.clock.Now().Sub(started))
	if err == nil && doc.PlainText != "" {
		r.best = &candidate{tier: tier, page: page, doc: doc}
	}
	if err == nil {
		err = o.acceptor.Accept(tier, page, doc)
	}
	span.SetAttributes(attribute.Int("chars", len(doc.PlainText)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.cause = err
		return false
	}
	r.cause = nil
	return true
}

// hard reports whether err must abort the run instead of becoming a Result.
func (r *run) hard(err error) bool {
	return extraction.IsHardFailure(err) || r.parent.Err() != nil
}

func (r *run) finish(ok bool) extraction.Result {
	res := extraction.Result{URL: r.req.URL, Tier: extraction.TierNone, OK: ok}
	if r.best != nil {
		res.Tier = r.best.tier
		res.Text = r.best.doc.Text
		res.Metadata = r.best.doc.Metadata
		res.FinalURL = r.best.page.FinalURL
		res.StatusCode = r.best.page.StatusCode
	}
	if !ok {
		res.Err = r.cause
		if res.Err == nil {
			res.Err = extraction.ErrEmptyResult
		}
	}
	return res
}

func outcome(res extraction.Result) string {
	switch {
	case res.OK:
		return "ok"
	case errors.Is(res.Err, extraction.ErrRobotsDisallowed):
		return "robots_disallowed"
	case errors.Is(res.Err, extraction.ErrRenderFailure):
		return "render_failure"
	case errors.Is(res.Err, extraction.ErrInsufficientContent):
		return "insufficient_content"
	case errors.Is(res.Err, extraction.ErrEmptyResult):
		return "empty"
	default:
		return "failed"
	}
}
