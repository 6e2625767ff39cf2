package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/text-extraction/internal/domainkey"
	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/policy/ratelimit"
)

const articleURL = "https://news.example.com/story"

// fakeRetriever serves as both Fetcher and Renderer. The page body doubles as
// the extracted text (see fakeExtractor).
type fakeRetriever struct {
	mu    sync.Mutex
	calls []string
	body  string
	err   error
	hook  func(ctx context.Context) error
}

func (f *fakeRetriever) get(ctx context.Context, rawURL string) (extraction.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	if f.hook != nil {
		if err := f.hook(ctx); err != nil {
			return extraction.Page{}, err
		}
	}
	if f.err != nil {
		return extraction.Page{}, f.err
	}
	return extraction.Page{
		URL:        rawURL,
		FinalURL:   rawURL + "?final",
		StatusCode: 200,
		Body:       []byte(f.body),
	}, nil
}

func (f *fakeRetriever) Fetch(ctx context.Context, rawURL string) (extraction.Page, error) {
	return f.get(ctx, rawURL)
}

func (f *fakeRetriever) Render(ctx context.Context, rawURL string) (extraction.Page, error) {
	p, err := f.get(ctx, rawURL)
	p.UsedHeadless = true
	return p, err
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeExtractor returns the trimmed body as text.
type fakeExtractor struct {
	mu     sync.Mutex
	bodies []string
	opts   []extraction.Options
}

func (f *fakeExtractor) Extract(html []byte, opts extraction.Options) (extraction.Document, error) {
	f.mu.Lock()
	f.bodies = append(f.bodies, string(html))
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	text := strings.TrimSpace(string(html))
	if text == "" {
		return extraction.Document{}, extraction.ErrEmptyResult
	}
	return extraction.Document{
		Text:      text,
		PlainText: text,
		Metadata:  extraction.Metadata{Title: "title", Language: "en"},
	}, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

// recordingAcquirer admits everything unless err is set.
type recordingAcquirer struct {
	mu       sync.Mutex
	keys     []domainkey.Key
	timeouts []time.Duration
	err      error
}

func (a *recordingAcquirer) Acquire(_ context.Context, key domainkey.Key, timeout time.Duration) (ratelimit.Permit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	a.timeouts = append(a.timeouts, timeout)
	if a.err != nil {
		return ratelimit.Permit{}, a.err
	}
	return ratelimit.Permit{Key: key}, nil
}

func (a *recordingAcquirer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.keys)
}

func chars(n int) string {
	return strings.Repeat("a", n)
}
