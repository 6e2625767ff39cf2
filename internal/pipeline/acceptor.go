package pipeline

import (
	"fmt"
	"unicode/utf8"

	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/headless/detector"
)

// DefaultMinContentChars is the acceptance threshold used when none is configured.
const DefaultMinContentChars = 200

// Acceptor decides whether an extraction is good enough to stop escalating.
// A nil error accepts; otherwise the error explains the rejection.
type Acceptor interface {
	Accept(tier extraction.Tier, page extraction.Page, doc extraction.Document) error
}

// MinLength accepts documents whose plain text has at least MinChars characters.
type MinLength struct {
	MinChars int
}

// Accept implements Acceptor.
func (m MinLength) Accept(_ extraction.Tier, _ extraction.Page, doc extraction.Document) error {
	n := utf8.RuneCountInString(doc.PlainText)
	if n == 0 {
		return extraction.ErrEmptyResult
	}
	if n < m.MinChars {
		return fmt.Errorf("%w: %d characters, need %d", extraction.ErrInsufficientContent, n, m.MinChars)
	}
	return nil
}

// SPAGuard rejects direct fetches of pages that look client-rendered, even when
// Next would accept their text. Headless results pass straight to Next.
type SPAGuard struct {
	Detector *detector.Heuristic
	Next     Acceptor
}

// Accept implements Acceptor.
func (g SPAGuard) Accept(tier extraction.Tier, page extraction.Page, doc extraction.Document) error {
	if tier == extraction.TierDirect && g.Detector != nil && g.Detector.ClientRendered(page, doc.PlainText) {
		return fmt.Errorf("%w: page is rendered client-side", extraction.ErrInsufficientContent)
	}
	if g.Next == nil {
		return nil
	}
	return g.Next.Accept(tier, page, doc)
}
