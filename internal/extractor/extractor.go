// Package extractor turns raw HTML into the main text of a page plus metadata.
// It is a goquery port of the usual boilerplate-removal heuristics: drop chrome
// (navigation, footers, banners), prefer the article container, and optionally
// prune link-heavy blocks.
package extractor

import (
	"bytes"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/text-extraction/internal/extraction"
)

// Extractor implements extraction.Extractor.
type Extractor struct {
	markdown *md.Converter
}

var _ extraction.Extractor = (*Extractor)(nil)

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{markdown: md.NewConverter("", true, nil)}
}

// Extract returns the main text of htmlDoc formatted per opts.Format.
// It returns extraction.ErrEmptyResult when nothing readable remains or when the
// detected language differs from opts.TargetLanguage.
func (e *Extractor) Extract(htmlDoc []byte, opts extraction.Options) (extraction.Document, error) {
	opts = opts.WithDefaults()
	if len(bytes.TrimSpace(htmlDoc)) == 0 {
		return extraction.Document{}, extraction.ErrEmptyResult
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlDoc))
	if err != nil {
		return extraction.Document{}, fmt.Errorf("parse html: %w", err)
	}

	meta := readMetadata(doc)

	removeNoise(doc, opts.Preference)
	root := contentRoot(doc, opts.Preference)
	if opts.Preference == extraction.PreferencePrecision {
		pruneLinkDense(root)
	}

	text := textOf(root)
	if text == "" {
		// The preferred container was empty; fall back to everything left in the body.
		root = doc.Find("body")
		text = textOf(root)
	}
	if text == "" {
		return extraction.Document{}, extraction.ErrEmptyResult
	}

	if meta.Language == "" {
		meta.Language = detectLanguage(meta.Title, text)
	}
	if target := strings.ToLower(opts.TargetLanguage); target != extraction.LanguageAuto && meta.Language != "" && meta.Language != target {
		return extraction.Document{}, fmt.Errorf("%w: page language %q, want %q", extraction.ErrEmptyResult, meta.Language, target)
	}

	formatted, err := e.format(root, text, opts.Format)
	if err != nil {
		return extraction.Document{}, err
	}
	return extraction.Document{Text: formatted, PlainText: text, Metadata: meta}, nil
}

func (e *Extractor) format(root *goquery.Selection, text string, format extraction.Format) (string, error) {
	switch format {
	case extraction.FormatText:
		return text, nil
	case extraction.FormatHTML:
		out, err := goquery.OuterHtml(root)
		if err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
		return strings.TrimSpace(out), nil
	case extraction.FormatMarkdown:
		out, err := goquery.OuterHtml(root)
		if err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
		converted, err := e.markdown.ConvertString(out)
		if err != nil {
			return "", fmt.Errorf("convert markdown: %w", err)
		}
		return strings.TrimSpace(converted), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}
