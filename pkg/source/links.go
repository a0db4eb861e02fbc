package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is a followed anchor on an index page.
type Link struct {
	URL  string
	Text string
}

// LinkSelector picks section links out of an index page.
type LinkSelector struct {
	CSSSelector string         // Anchors to follow (default a[href])
	URLPattern  *regexp.Regexp // Optional filter on the resolved URL
}

// NewLinkSelector creates a link selector.
func NewLinkSelector(cssSelector, urlPattern string) (*LinkSelector, error) {
	ls := &LinkSelector{CSSSelector: cssSelector}
	if urlPattern != "" {
		pattern, err := regexp.Compile(urlPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid follow pattern: %w", err)
		}
		ls.URLPattern = pattern
	}
	return ls, nil
}

// Links returns matching links in document order, resolved against baseURL
// and deduplicated.
func (ls *LinkSelector) Links(html, baseURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	selector := ls.CSSSelector
	if selector == "" {
		selector = "a[href]"
	}

	var links []Link
	seen := make(map[string]bool)

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		u, err := url.Parse(href)
		if err != nil {
			return
		}
		full := normalizeURL(base.ResolveReference(u))

		if ls.URLPattern != nil && !ls.URLPattern.MatchString(full) {
			return
		}
		if seen[full] {
			return
		}
		seen[full] = true

		links = append(links, Link{URL: full, Text: strings.Join(strings.Fields(s.Text()), " ")})
	})

	return links, nil
}

// normalizeURL drops the fragment and a trailing slash so that equivalent links
// compare equal.
func normalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	if len(c.Path) > 1 && strings.HasSuffix(c.Path, "/") {
		c.Path = strings.TrimSuffix(c.Path, "/")
	}
	return c.String()
}
