package ratelimit

import (
	"context"
	"time"

	"github.com/JakeFAU/text-extraction/internal/domainkey"
	"github.com/JakeFAU/text-extraction/internal/extraction"
)

// Acquirer grants admissions per domain. *Limiter implements it.
type Acquirer interface {
	Acquire(ctx context.Context, key domainkey.Key, timeout time.Duration) (Permit, error)
}

var _ Acquirer = (*Limiter)(nil)

// Wrap returns fn gated by acq: the key is derived from the call argument,
// one admission is acquired, then fn runs. Key and admission errors are
// returned without calling fn.
func Wrap[A, R any](
	acq Acquirer,
	keyFn domainkey.KeyFunc[A],
	timeout time.Duration,
	fn func(context.Context, A) (R, error),
) func(context.Context, A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		var zero R
		key, err := keyFn(arg)
		if err != nil {
			return zero, err
		}
		if _, err := acq.Acquire(ctx, key, timeout); err != nil {
			return zero, err
		}
		return fn(ctx, arg)
	}
}

// LimitedFetcher is an extraction.Fetcher whose calls are throttled per domain.
type LimitedFetcher struct {
	fetch func(context.Context, string) (extraction.Page, error)
}

// NewLimitedFetcher gates next with acq.
func NewLimitedFetcher(next extraction.Fetcher, acq Acquirer, timeout time.Duration) *LimitedFetcher {
	return &LimitedFetcher{fetch: Wrap[string, extraction.Page](acq, domainkey.ForString, timeout, next.Fetch)}
}

// Fetch implements extraction.Fetcher.
func (f *LimitedFetcher) Fetch(ctx context.Context, rawURL string) (extraction.Page, error) {
	return f.fetch(ctx, rawURL)
}

// LimitedRenderer is an extraction.Renderer whose calls are throttled per domain.
type LimitedRenderer struct {
	render func(context.Context, string) (extraction.Page, error)
}

// NewLimitedRenderer gates next with acq.
func NewLimitedRenderer(next extraction.Renderer, acq Acquirer, timeout time.Duration) *LimitedRenderer {
	return &LimitedRenderer{render: Wrap[string, extraction.Page](acq, domainkey.ForString, timeout, next.Render)}
}

// Render implements extraction.Renderer.
func (r *LimitedRenderer) Render(ctx context.Context, rawURL string) (extraction.Page, error) {
	return r.render(ctx, rawURL)
}
