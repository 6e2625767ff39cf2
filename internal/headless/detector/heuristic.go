// Package detector spots pages whose HTML is a client-side application shell,
// so a direct fetch cannot be trusted even when it returned some text.
package detector

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/text-extraction/internal/extraction"
)

// DefaultShellTextChars is the extracted-text length at or above which a page
// counts as server-rendered whatever framework markers it carries.
const DefaultShellTextChars = 1000

// Heuristic judges a direct fetch by its raw HTML together with the text
// extracted from it.
type Heuristic struct {
	ShellTextChars int
}

// NewHeuristic creates a new detector. A non-positive shellTextChars uses
// DefaultShellTextChars.
func NewHeuristic(shellTextChars int) *Heuristic {
	if shellTextChars <= 0 {
		shellTextChars = DefaultShellTextChars
	}
	return &Heuristic{ShellTextChars: shellTextChars}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
	[]byte("data-server-rendered"),
}

// ClientRendered reports whether text, extracted from page, is probably only
// the pre-render shell of a client-side application. Non-2xx pages are never
// flagged; pages whose text reaches ShellTextChars runes are trusted.
func (h *Heuristic) ClientRendered(page extraction.Page, text string) bool {
	if page.StatusCode != 0 && (page.StatusCode < 200 || page.StatusCode > 299) {
		return false
	}
	body := page.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) >= h.ShellTextChars {
		return false
	}
	return hasSPAMarker(body) || scriptDensityHigh(body)
}

func hasSPAMarker(body []byte) bool {
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Malformed tag: the rest of the document counts as script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		next := total
		if relativeEnd := strings.Index(lower[contentStart:], closeTag); relativeEnd != -1 {
			next = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += next - start
		searchPos = next
	}

	return scriptCoverage*100/total >= 25
}
