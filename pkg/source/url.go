package source

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/labpool/internal/logger"
	"github.com/jmylchreest/labpool/pkg/pool"
)

// URLConfig holds configuration for the URL source.
type URLConfig struct {
	UserAgent string
	Timeout   time.Duration
	Headers   map[string]string

	// Follow, when set, treats every URL as an index page and pools the
	// pages its matching anchors link to instead.
	Follow        string
	FollowPattern string
}

// DefaultURLConfig returns sensible defaults.
func DefaultURLConfig() URLConfig {
	return URLConfig{
		UserAgent: defaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

const defaultUserAgent = "labpool/1.0 (+https://github.com/jmylchreest/labpool)"

// URLs pools pages fetched over HTTP with Colly. The header of each document is
// its URL.
type URLs struct {
	urls   []string
	config URLConfig
}

// NewURLs creates a URL source.
func NewURLs(cfg URLConfig, urls ...string) *URLs {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultURLConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultURLConfig().Timeout
	}
	return &URLs{urls: urls, config: cfg}
}

// List returns one document per URL, in argument order. With Follow set it
// returns one document per linked page instead, headed by the link text.
func (s *URLs) List(ctx context.Context) ([]pool.Document, error) {
	if s.config.Follow == "" && s.config.FollowPattern == "" {
		docs := make([]pool.Document, 0, len(s.urls))
		for _, u := range s.urls {
			docs = append(docs, pool.Document{ID: u, Header: u})
		}
		return docs, nil
	}

	sel, err := NewLinkSelector(s.config.Follow, s.config.FollowPattern)
	if err != nil {
		return nil, err
	}

	var docs []pool.Document
	seen := make(map[string]bool)
	for _, index := range s.urls {
		html, err := s.Retrieve(ctx, index)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch index %s: %w", index, err)
		}
		links, err := sel.Links(html, index)
		if err != nil {
			return nil, fmt.Errorf("failed to read links from %s: %w", index, err)
		}
		logger.Debug("index page read", "url", index, "links", len(links))

		for _, l := range links {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			docs = append(docs, pool.Document{ID: l.URL, Header: coalesce(l.Text, l.URL)})
		}
	}
	return docs, nil
}

// Retrieve fetches the page at id.
func (s *URLs) Retrieve(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// A fresh collector per request: colly refuses to revisit URLs otherwise.
	c := colly.NewCollector(
		colly.UserAgent(coalesce(s.config.UserAgent, defaultUserAgent)),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.config.Timeout)

	if len(s.config.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range s.config.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var html string
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		html = string(r.Body)
		logger.Debug("page fetched", "url", id, "status", r.StatusCode, "body_size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch error (status %d): %w", status, err)
	})

	if err := c.Visit(id); err != nil {
		return "", fmt.Errorf("failed to visit URL: %w", err)
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	return html, nil
}

// Name returns the source type.
func (s *URLs) Name() string {
	return "urls"
}

// Close releases resources.
func (s *URLs) Close() error {
	return nil
}
