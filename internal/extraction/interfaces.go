package extraction

import (
	"context"
	"time"
)

// Fetcher retrieves raw HTML with a lightweight HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer loads a URL in a headless browser and returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
}

// Extractor converts raw HTML into article text and metadata.
// It returns ErrEmptyResult when nothing usable was found.
type Extractor interface {
	Extract(html []byte, opts Options) (Document, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
