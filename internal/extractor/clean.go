package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/text-extraction/internal/extraction"
)

// Elements that never carry article text.
const alwaysDrop = "script, style, noscript, template, iframe, object, embed, svg, canvas, " +
	"form, button, input, select, textarea, nav, footer, [hidden], [aria-hidden='true'], " +
	"[role='navigation'], [role='banner'], [role='contentinfo']"

// Page chrome that recall keeps because it sometimes holds content.
const chromeDrop = "header, aside, [role='complementary']"

const contentCandidates = "article, main, [role='main'], [itemprop='articleBody']"

var boilerplateMarkers = []string{
	"cookie", "consent", "gdpr",
}

var precisionMarkers = []string{
	"related", "share", "social", "comment", "promo", "sidebar", "newsletter",
	"subscribe", "advert", "sponsor", "breadcrumb", "pagination", "popup", "modal",
}

func removeNoise(doc *goquery.Document, pref extraction.Preference) {
	doc.Find(alwaysDrop).Remove()
	if pref != extraction.PreferenceRecall {
		doc.Find(chromeDrop).Remove()
	}
	markers := boilerplateMarkers
	if pref == extraction.PreferencePrecision {
		markers = append(append([]string(nil), boilerplateMarkers...), precisionMarkers...)
	}
	doc.Find("body *").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasMarker(s, markers)
	}).Remove()
}

// hasMarker reports whether any identifying attribute of s mentions a marker.
func hasMarker(s *goquery.Selection, markers []string) bool {
	node := s.Get(0)
	if node == nil {
		return false
	}
	// The content root itself is never boilerplate, whatever its class says.
	switch node.Data {
	case "html", "body", "main", "article":
		return false
	}
	for _, attr := range node.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" && key != "role" && key != "aria-label" && !strings.HasPrefix(key, "data-") {
			continue
		}
		val := strings.ToLower(attr.Val)
		for _, m := range markers {
			if strings.Contains(val, m) {
				return true
			}
		}
	}
	return false
}

// contentRoot picks the element holding the main text. Recall reads the whole
// body; otherwise the candidate container with the most text wins.
func contentRoot(doc *goquery.Document, pref extraction.Preference) *goquery.Selection {
	body := doc.Find("body")
	if pref == extraction.PreferenceRecall {
		return body
	}
	var (
		best    *goquery.Selection
		bestLen int
	)
	doc.Find(contentCandidates).Each(func(_ int, s *goquery.Selection) {
		if n := len(strings.TrimSpace(s.Text())); n > bestLen {
			best, bestLen = s, n
		}
	})
	if best == nil {
		return body
	}
	return best
}

// pruneLinkDense drops blocks that are mostly links: menus, tag clouds and
// "read more" lists.
func pruneLinkDense(root *goquery.Selection) {
	root.Find("div, section, ul, ol, table, p").Each(func(_ int, s *goquery.Selection) {
		total := len(strings.TrimSpace(s.Text()))
		if total == 0 {
			return
		}
		linked := 0
		s.Find("a").Each(func(_ int, a *goquery.Selection) {
			linked += len(strings.TrimSpace(a.Text()))
		})
		if linked*2 > total {
			s.Remove()
		}
	})
}
