package headless

import (
	"context"

	"github.com/JakeFAU/text-extraction/internal/extraction"
)

// Noop implements extraction.Renderer when headless rendering is disabled.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render always fails with extraction.ErrRendererDisabled.
func (Noop) Render(_ context.Context, _ string) (extraction.Page, error) {
	return extraction.Page{}, extraction.ErrRendererDisabled
}
