package crawler

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// adAnchorPattern matches the id/class/role of an anchor (or an ancestor)
// that marks it as ad-scoped, mirroring the cleaner's own ad-detection
// pattern so the crawl frontier never follows ad-unit links.
var adAnchorPattern = regexp.MustCompile(`(?i)\b(ads?|advertisement)\b`)

// isAdScoped reports whether s or any ancestor has an id, class, or role
// matching adAnchorPattern.
func isAdScoped(s *goquery.Selection) bool {
	for node := s; node.Length() > 0; node = node.Parent() {
		id, _ := node.Attr("id")
		class, _ := node.Attr("class")
		role, _ := node.Attr("role")
		if adAnchorPattern.MatchString(id) || adAnchorPattern.MatchString(class) || adAnchorPattern.MatchString(role) {
			return true
		}
	}
	return false
}

// blockedExtensions are binary asset types the crawler never fetches: image,
// video, audio, and PDF formats carry no markdown-extractable page content.
var blockedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".bmp": true, ".avif": true, ".tiff": true,
	".mp4": true, ".webm": true, ".mov": true, ".avi": true, ".mkv": true,
	".mp3": true, ".wav": true, ".ogg": true, ".m4a": true,
	".pdf": true,
}

// skippedHosts are third-party search and social hosts that frequently
// appear as outbound links ("Find us on Google Maps", "Share on Facebook")
// but are never part of the hotel's own site content.
var skippedHosts = map[string]bool{
	"google.com": true, "www.google.com": true, "maps.google.com": true,
	"bing.com": true, "www.bing.com": true,
	"duckduckgo.com": true,
	"yahoo.com": true, "search.yahoo.com": true,
	"baidu.com": true, "yandex.com": true,
	"facebook.com": true, "www.facebook.com": true,
	"twitter.com": true, "x.com": true,
	"instagram.com": true, "www.instagram.com": true,
	"linkedin.com": true, "www.linkedin.com": true,
}

// hasBlockedExtension reports whether u's path ends in a binary asset
// extension that should never be fetched.
func hasBlockedExtension(u *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	return blockedExtensions[ext]
}

// isSkippedHost reports whether u points at a known search/social host.
func isSkippedHost(u *url.URL) bool {
	return skippedHosts[strings.ToLower(u.Hostname())]
}

// sameOrigin reports whether candidate shares seed's hostname, the BFS
// boundary the crawler never follows links outside of.
func sameOrigin(seed, candidate *url.URL) bool {
	return strings.EqualFold(seed.Hostname(), candidate.Hostname())
}

// extractLinks returns every absolute, same-origin, non-blocked href found
// in rawHTML, resolved against pageURL. It is called against the raw
// snapshot before canonicalization so that links cleaner later strips
// (e.g. inside a removed nav) are still discovered for the BFS frontier.
func extractLinks(rawHTML, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		if isAdScoped(s) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""

		if !sameOrigin(base, resolved) || isSkippedHost(resolved) || hasBlockedExtension(resolved) {
			return
		}
		s2 := resolved.String()
		if seen[s2] {
			return
		}
		seen[s2] = true
		out = append(out, s2)
	})
	return out, nil
}
