package extractor

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/text-extraction/internal/extraction"
)

const articlePage = `<!DOCTYPE html>
<html lang="en-US">
<head>
  <title>Fallback Title | Example News</title>
  <meta property="og:title" content="Rivers Return to the Valley">
  <meta name="author" content="Dana Reyes">
  <meta property="article:published_time" content="2024-03-18T09:30:00Z">
  <style>body { color: red; }</style>
  <script>window.analytics = {};</script>
</head>
<body>
  <nav><a href="/">Home</a> <a href="/world">World</a></nav>
  <div class="cookie-banner">We use cookies to improve your experience.</div>
  <header><p>Example News Header</p></header>
  <article>
    <h1>Rivers Return to the Valley</h1>
    <p>After three dry summers the rivers of the northern valley are flowing again.</p>
    <p>Farmers say the   spring rains arrived   early this year.</p>
    <ul class="links">
      <li><a href="/a">Related story one</a></li>
      <li><a href="/b">Related story two</a></li>
    </ul>
  </article>
  <aside><p>Sidebar trivia about rivers.</p></aside>
  <footer>Copyright Example News</footer>
</body>
</html>`

func extract(t *testing.T, page string, opts extraction.Options) extraction.Document {
	t.Helper()
	doc, err := New().Extract([]byte(page), opts)
	require.NoError(t, err)
	return doc
}

func TestExtractMainContent(t *testing.T) {
	t.Parallel()

	doc := extract(t, articlePage, extraction.Options{})
	want := "Rivers Return to the Valley\n\n" +
		"After three dry summers the rivers of the northern valley are flowing again.\n\n" +
		"Farmers say the spring rains arrived early this year.\n\n" +
		"Related story one\n\nRelated story two"
	require.Equal(t, want, doc.Text)
	require.Equal(t, doc.Text, doc.PlainText)

	for _, noise := range []string{"Home", "cookies", "Header", "Sidebar", "Copyright", "analytics", "color"} {
		require.NotContains(t, doc.Text, noise)
	}
}

func TestExtractMetadata(t *testing.T) {
	t.Parallel()

	doc := extract(t, articlePage, extraction.Options{})
	require.Equal(t, extraction.Metadata{
		Title:         "Rivers Return to the Valley",
		Author:        "Dana Reyes",
		PublishedDate: "2024-03-18",
		Language:      "en",
	}, doc.Metadata)
}

func TestExtractMetadataFallbacks(t *testing.T) {
	t.Parallel()

	page := `<html><head><title> Plain   Title </title></head><body>
	<article><p>Some body text that is long enough to matter.</p>
	<span rel="author">Sam Lee</span><time datetime="2023-12-01">Dec 1</time></article></body></html>`
	doc := extract(t, page, extraction.Options{})
	require.Equal(t, "Plain Title", doc.Metadata.Title)
	require.Equal(t, "Sam Lee", doc.Metadata.Author)
	require.Equal(t, "2023-12-01", doc.Metadata.PublishedDate)

	noTitle := `<html><body><h1>Only Heading</h1><p>Text.</p></body></html>`
	require.Equal(t, "Only Heading", extract(t, noTitle, extraction.Options{}).Metadata.Title)
}

func TestExtractPreference(t *testing.T) {
	t.Parallel()

	precise := extract(t, articlePage, extraction.Options{Preference: extraction.PreferencePrecision})
	require.NotContains(t, precise.Text, "Related story")
	require.Contains(t, precise.Text, "spring rains")

	recall := extract(t, articlePage, extraction.Options{Preference: extraction.PreferenceRecall})
	require.Contains(t, recall.Text, "Sidebar trivia about rivers.")
	require.Contains(t, recall.Text, "Example News Header")
	require.Contains(t, recall.Text, "spring rains")
	require.NotContains(t, recall.Text, "Copyright", "footers are dropped in every mode")
	require.NotContains(t, recall.Text, "cookies")
}

func TestExtractPicksLongestCandidate(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	<article><p>Teaser.</p></article>
	<main><p>The real story is this much longer paragraph of text.</p></main>
	</body></html>`
	doc := extract(t, page, extraction.Options{})
	require.Equal(t, "The real story is this much longer paragraph of text.", doc.Text)
}

func TestExtractFallsBackToBody(t *testing.T) {
	t.Parallel()

	page := `<html><body><main>   </main><div>Loose text outside any container.</div></body></html>`
	doc := extract(t, page, extraction.Options{})
	require.Equal(t, "Loose text outside any container.", doc.Text)
}

func TestExtractEmpty(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"blank":        "   ",
		"empty body":   "<html><body></body></html>",
		"scripts only": `<html><body><div id="root"></div><script>render()</script></body></html>`,
		"nav only":     `<html><body><nav><a href="/">Home</a></nav></body></html>`,
	}
	for name, page := range pages {
		_, err := New().Extract([]byte(page), extraction.Options{})
		require.ErrorIs(t, err, extraction.ErrEmptyResult, name)
	}
}

func TestExtractTargetLanguage(t *testing.T) {
	t.Parallel()

	german := `<html lang="de"><body><article><p>Die Flüsse im Tal führen wieder Wasser.</p></article></body></html>`

	_, err := New().Extract([]byte(german), extraction.Options{TargetLanguage: "en"})
	require.ErrorIs(t, err, extraction.ErrEmptyResult)

	doc, err := New().Extract([]byte(german), extraction.Options{TargetLanguage: "DE"})
	require.NoError(t, err)
	require.Equal(t, "de", doc.Metadata.Language)

	doc, err = New().Extract([]byte(german), extraction.Options{TargetLanguage: extraction.LanguageAuto})
	require.NoError(t, err)
	require.NotEmpty(t, doc.Text)
}

func TestExtractDetectsLanguageWithoutDeclaration(t *testing.T) {
	t.Parallel()

	page := `<html><body><article>
	<p>The committee met on Tuesday to discuss the new budget for the public library,
	and after a long debate the members agreed that the opening hours should be extended
	during the winter months so that more families can use the reading rooms.</p>
	</article></body></html>`
	doc := extract(t, page, extraction.Options{})
	require.Equal(t, "en", doc.Metadata.Language)

	_, err := New().Extract([]byte(page), extraction.Options{TargetLanguage: "fr"})
	require.True(t, errors.Is(err, extraction.ErrEmptyResult))
}

func TestExtractFormats(t *testing.T) {
	t.Parallel()

	page := `<html><body><article><h1>Heading</h1><p>Some <strong>bold</strong> words.</p></article></body></html>`

	md := extract(t, page, extraction.Options{Format: extraction.FormatMarkdown})
	require.True(t, strings.HasPrefix(md.Text, "# Heading"), md.Text)
	require.Contains(t, md.Text, "**bold**")
	require.Equal(t, "Heading\n\nSome bold words.", md.PlainText)

	html := extract(t, page, extraction.Options{Format: extraction.FormatHTML})
	require.True(t, strings.HasPrefix(html.Text, "<article>"), html.Text)
	require.Contains(t, html.Text, "<strong>bold</strong>")

	_, err := New().Extract([]byte(page), extraction.Options{Format: "pdf"})
	require.ErrorContains(t, err, "unsupported output format")
}

func TestNormalizeWhitespace(t *testing.T) {
	t.Parallel()

	in := "\n\n  first   line \n\n\n\n second\tline\n  \n"
	require.Equal(t, "first line\n\nsecond line", normalizeWhitespace(in))
	require.Empty(t, normalizeWhitespace(" \n \t\n"))
}
