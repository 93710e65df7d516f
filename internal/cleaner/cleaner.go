// Package cleaner produces the canonical, checksum-stable HTML for a page:
// volatile chrome, scripts, and ad/captcha residue are stripped, links are
// absolutized, and structurally-empty or fragmented text nodes are pruned
// so that two runs against equivalent DOMs serialize identically.
package cleaner

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// removedTags are unconditionally stripped regardless of depth.
var removedTags = []string{"script", "style", "noscript", "iframe", "frame", "svg", "figure"}

// navTags are additionally stripped when depth > 0.
var navTags = []string{"nav", "header", "footer"}

var (
	adPattern        = regexp.MustCompile(`(?i)\b(ads?|advertisement)\b`)
	recaptchaPattern = regexp.MustCompile(`(?i)recaptcha`)
	hereMapsPattern  = regexp.MustCompile(`^H_`)
	navPattern       = regexp.MustCompile(`(?i)\b(nav|header|footer|breadcrumb)\b`)
)

// Clean runs the canonical-DOM pipeline (§4.3) against rawHTML, fetched
// from pageURL, and returns the serialized canonical HTML. depth selects
// whether navigational chrome is retained (depth 0) or stripped (depth>0).
func Clean(rawHTML, pageURL string, depth int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil // absolutization below becomes a no-op for malformed base URLs
	}

	removeUnconditional(doc)
	if depth > 0 {
		removeNavChrome(doc)
	}
	stripInlineStyles(doc)
	if base != nil {
		absolutizeLinks(doc, base)
	}
	removeEmptyElements(doc)
	mergeAdjacentTextNodes(doc)

	out, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return "", err
	}
	return collapseInterTagWhitespace(out), nil
}

func removeUnconditional(doc *goquery.Document) {
	for _, tag := range removedTags {
		doc.Find(tag).Remove()
	}
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if matchesAny(s, adPattern) || matchesAny(s, recaptchaPattern) || matchesClassPrefix(s, hereMapsPattern) {
			s.Remove()
		}
	})
}

func removeNavChrome(doc *goquery.Document) {
	for _, tag := range navTags {
		doc.Find(tag).Remove()
	}
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if matchesAny(s, navPattern) {
			s.Remove()
		}
	})
}

// matchesAny reports whether the element's id, class, or role attribute
// matches pattern.
func matchesAny(s *goquery.Selection, pattern *regexp.Regexp) bool {
	id, _ := s.Attr("id")
	class, _ := s.Attr("class")
	role, _ := s.Attr("role")
	return pattern.MatchString(id) || pattern.MatchString(class) || pattern.MatchString(role)
}

// matchesClassPrefix reports whether any class token matches pattern
// (used for HERE-maps ".H_*" residue, which is prefix-shaped, not a plain
// substring).
func matchesClassPrefix(s *goquery.Selection, pattern *regexp.Regexp) bool {
	class, ok := s.Attr("class")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(class) {
		if pattern.MatchString(token) {
			return true
		}
	}
	return false
}

func stripInlineStyles(doc *goquery.Document) {
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("style")
	})
}

func absolutizeLinks(doc *goquery.Document, base *url.URL) {
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		absolutizeAttr(s, base, "href")
	})
	doc.Find("[src]").Each(func(_ int, s *goquery.Selection) {
		absolutizeAttr(s, base, "src")
	})
}

func absolutizeAttr(s *goquery.Selection, base *url.URL, attr string) {
	v, ok := s.Attr(attr)
	if !ok || v == "" {
		return
	}
	resolved, err := ResolveURL(base, v)
	if err != nil {
		return
	}
	s.SetAttr(attr, resolved)
}

// ResolveURL resolves ref against base, matching the round-trip law that
// resolve(base, href) == resolve(base, resolve(base, href)).
func ResolveURL(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// emptyableTags are removed when they have no element children and only
// whitespace text.
var emptyableTags = map[string]bool{"p": true, "div": true, "span": true}

func removeEmptyElements(doc *goquery.Document) {
	// Repeat until stable: removing a leaf can make its parent empty too.
	for {
		removedAny := false
		doc.Find("p, div, span").Each(func(_ int, s *goquery.Selection) {
			tag := goquery.NodeName(s)
			if !emptyableTags[tag] {
				return
			}
			if s.Children().Length() == 0 && strings.TrimSpace(s.Text()) == "" {
				s.Remove()
				removedAny = true
			}
		})
		if !removedAny {
			break
		}
	}
}

// preservedTextTags are skipped when merging adjacent text nodes, since
// whitespace inside them is significant.
var preservedTextTags = map[string]bool{"pre": true, "code": true}

// mergeAdjacentTextNodes merges runs of sibling text nodes into one, so
// that markdown conversion is deterministic across equivalent DOMs (e.g.
// whether a browser split "Hello world" into one or two text nodes).
func mergeAdjacentTextNodes(doc *goquery.Document) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil {
			return
		}
		if preservedTextTags[node.Data] {
			return
		}
		mergeChildren(node)
	})
}

func mergeChildren(n *html.Node) {
	var run *html.Node
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		if child.Type == html.TextNode {
			if run != nil {
				run.Data += child.Data
				n.RemoveChild(child)
			} else {
				run = child
			}
		} else {
			run = nil
		}
		child = next
	}
}

// collapseInterTagWhitespace removes whitespace runs strictly between two
// tags ("> <"), the final caller-side step of §4.3.
func collapseInterTagWhitespace(s string) string {
	return interTagWhitespace.ReplaceAllString(s, "><")
}

var interTagWhitespace = regexp.MustCompile(`>\s+<`)
