// Package collyfetcher implements the direct tier: a plain HTTP GET through gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/metrics"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 10 << 20
	defaultAccept       = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxBodyBytes  int
	// Headers are added to every request.
	Headers http.Header
}

// Fetcher implements extraction.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithTransport replaces the pooled HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		if rt != nil {
			f.transport = rt
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New builds a Fetcher. The base collector owns the HTTP client; every Fetch
// works on a clone, so per-request state lives only in the clone's callbacks.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	f := &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.RespectRobots {
		c.WithTransport(&robotsAwareTransport{base: f.transport, logger: f.logger})
	} else {
		c.WithTransport(f.transport)
	}
	f.baseCollector = c
	return f
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (extraction.Page, error) {
	var (
		page     extraction.Page
		fetchErr error
	)
	start := time.Now()
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, rawURL, start, &page, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return extraction.Page{}, err
	}
	if page.StatusCode/100 != 2 {
		return extraction.Page{}, fmt.Errorf("%w: status %d", extraction.ErrFetch, page.StatusCode)
	}
	if err := checkContentType(page.Headers); err != nil {
		return extraction.Page{}, err
	}
	metrics.ObserveFetchBytes(string(extraction.TierDirect), len(page.Body))
	f.logger.Debug("direct fetch complete",
		zap.String("url", rawURL),
		zap.Int("status", page.StatusCode),
		zap.Int("bytes", len(page.Body)),
		zap.Duration("duration", page.Duration),
	)
	return page, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	rawURL string,
	start time.Time,
	page *extraction.Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*page = extraction.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", extraction.ErrFetch, ctx.Err())
	case err := <-done:
		if err == nil {
			err = *fetchErr
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, colly.ErrRobotsTxtBlocked):
			return fmt.Errorf("%w: %s", extraction.ErrRobotsDisallowed, rawURL)
		default:
			return fmt.Errorf("%w: %w", extraction.ErrFetch, err)
		}
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	r.Headers.Set("Accept", defaultAccept)
	for key, values := range f.cfg.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// checkContentType rejects documents the HTML extractor cannot read.
// A missing header is accepted.
func checkContentType(h http.Header) error {
	ct := h.Get("Content-Type")
	if ct == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil //nolint:nilerr // malformed headers are common; let the extractor decide
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/xhtml+xml",
		mediaType == "application/xml":
		return nil
	default:
		return fmt.Errorf("%w: unsupported content type %q", extraction.ErrFetch, mediaType)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}
