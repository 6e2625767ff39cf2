package extractor

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"

	"github.com/JakeFAU/text-extraction/internal/extraction"
)

var (
	titleSelectors = []string{
		"meta[property='og:title']",
		"meta[name='twitter:title']",
	}
	authorSelectors = []string{
		"meta[name='author']",
		"meta[property='article:author']",
		"meta[name='parsely-author']",
	}
	dateSelectors = []string{
		"meta[property='article:published_time']",
		"meta[itemprop='datePublished']",
		"meta[name='date']",
		"meta[name='pubdate']",
		"meta[name='publish-date']",
		"meta[name='dc.date']",
	}
	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02",
	}
)

// minDetectionRunes is the shortest sample whatlanggo classifies with any reliability.
const minDetectionRunes = 40

func readMetadata(doc *goquery.Document) extraction.Metadata {
	return extraction.Metadata{
		Title:         readTitle(doc),
		Author:        readAuthor(doc),
		PublishedDate: readPublishedDate(doc),
		Language:      readDeclaredLanguage(doc),
	}
}

func readTitle(doc *goquery.Document) string {
	if v := firstMetaContent(doc, titleSelectors); v != "" {
		return v
	}
	if v := cleanInline(doc.Find("title").First().Text()); v != "" {
		return v
	}
	return cleanInline(doc.Find("h1").First().Text())
}

func readAuthor(doc *goquery.Document) string {
	if v := firstMetaContent(doc, authorSelectors); v != "" {
		return v
	}
	return cleanInline(doc.Find("[rel='author'], [itemprop='author']").First().Text())
}

func readPublishedDate(doc *goquery.Document) string {
	raw := firstMetaContent(doc, dateSelectors)
	if raw == "" {
		if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			raw = strings.TrimSpace(v)
		}
	}
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

// readDeclaredLanguage returns the primary subtag of <html lang>, e.g. "en" for "en-US".
func readDeclaredLanguage(doc *goquery.Document) string {
	lang, ok := doc.Find("html").First().Attr("lang")
	if !ok {
		return ""
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}

// detectLanguage guesses the ISO 639-1 code of the text; empty when unsure.
func detectLanguage(title, text string) string {
	sample := strings.TrimSpace(title + " " + firstWords(text, 200))
	if len([]rune(sample)) < minDetectionRunes {
		return ""
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

func firstMetaContent(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = cleanInline(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func cleanInline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
