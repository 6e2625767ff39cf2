package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockTags start a new line; paragraphTags are additionally followed by a blank line.
var (
	blockTags = map[string]bool{
		"address": true, "article": true, "blockquote": true, "dd": true, "div": true,
		"dl": true, "dt": true, "figcaption": true, "figure": true, "header": true,
		"li": true, "main": true, "ol": true, "section": true, "table": true,
		"tr": true, "ul": true, "aside": true, "br": true, "hr": true,
	}
	paragraphTags = map[string]bool{
		"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"pre": true, "blockquote": true,
	}
)

// textOf renders the readable text below sel with paragraph breaks preserved.
func textOf(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(&b, n, false)
	}
	return normalizeWhitespace(b.String())
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	var name string
	if n.Type == html.ElementNode {
		name = strings.ToLower(n.Data)
		if name == "pre" {
			inPre = true
		}
		if blockTags[name] || paragraphTags[name] {
			b.WriteString("\n")
		}
		if name == "td" || name == "th" {
			b.WriteString(" ")
		}
	}

	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(data)
		}
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	switch {
	case paragraphTags[name]:
		b.WriteString("\n\n")
	case blockTags[name]:
		b.WriteString("\n")
	}
}

// normalizeWhitespace trims every line, collapses runs of spaces, and keeps at
// most one blank line between paragraphs.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, trimmed)
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
