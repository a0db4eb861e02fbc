// Package elab is a small client for the eLabJournal REST API: listing experiment
// sections, fetching a section's HTML, and creating and filling EXCEL sections.
package elab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmylchreest/labpool/internal/logger"
	"github.com/jmylchreest/labpool/pkg/workbook"
)

// Section types used by the pooling workflow.
const (
	SectionProcedure = "PROCEDURE"
	SectionExcel     = "EXCEL"
)

// Config holds client settings.
type Config struct {
	// BaseURL is the API root, e.g. https://elab.example.org/api/v1.
	BaseURL string
	// APIKey is sent in the Authorization header.
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to one eLabJournal instance.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("elab: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("elab: invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// ID is a section or experiment identifier. The API returns it as a JSON number
// or string depending on endpoint.
type ID string

// UnmarshalJSON accepts numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*id = ID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("elab: invalid id %s", s)
	}
	*id = ID(n.String())
	return nil
}

// Section is an experiment section as listed by the API.
type Section struct {
	ID       ID     `json:"expJournalID"`
	Header   string `json:"sectionHeader"`
	Type     string `json:"sectionType"`
	Date     string `json:"sectionDate,omitempty"`
	Contents string `json:"contents,omitempty"`
}

// NewSection is the body of a create-section request.
type NewSection struct {
	Type   string `json:"sectionType"`
	Header string `json:"sectionHeader"`
	Date   string `json:"sectionDate"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elab: %s %s: %s - %s", e.Method, e.Path, e.Status, e.Body)
}

// ListSections returns every section of an experiment.
// The API wraps the list in {"data": [...]} on most versions and returns a bare
// array on some; both are accepted.
func (c *Client) ListSections(ctx context.Context, experimentID string) ([]Section, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/experiments/"+url.PathEscape(experimentID)+"/sections", nil, "")
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Data []Section `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var sections []Section
	if err := json.Unmarshal(body, &sections); err != nil {
		return nil, fmt.Errorf("elab: failed to decode sections: %w", err)
	}
	return sections, nil
}

// SectionHTML returns the rendered HTML of a section. The endpoint answers with
// raw HTML, a JSON string, or an object carrying the HTML in "data" or "html".
func (c *Client) SectionHTML(ctx context.Context, sectionID string) (string, error) {
	body, contentType, err := c.do(ctx, http.MethodGet, "/experiments/sections/"+url.PathEscape(sectionID)+"/html", nil, "")
	if err != nil {
		return "", err
	}
	return decodeHTML(body, contentType), nil
}

func decodeHTML(body []byte, contentType string) string {
	trimmed := bytes.TrimSpace(body)
	if !strings.Contains(contentType, "json") && (len(trimmed) == 0 || trimmed[0] == '<') {
		return string(body)
	}

	var obj struct {
		Data *string `json:"data"`
		HTML *string `json:"html"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		switch {
		case obj.Data != nil:
			return *obj.Data
		case obj.HTML != nil:
			return *obj.HTML
		}
	}

	var str string
	if err := json.Unmarshal(trimmed, &str); err == nil {
		return str
	}
	return string(body)
}

// CreateSection adds a section to an experiment and returns the new section ID.
func (c *Client) CreateSection(ctx context.Context, experimentID string, s NewSection) (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("elab: failed to marshal section: %w", err)
	}

	body, _, err := c.do(ctx, http.MethodPost, "/experiments/"+url.PathEscape(experimentID)+"/sections",
		bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", err
	}

	id, err := decodeCreatedID(body)
	if err != nil {
		return "", err
	}
	logger.Debug("section created", "experiment", experimentID, "section", id)
	return id, nil
}

// decodeCreatedID reads the new ID from a bare number or string, or from an
// object with "expJournalID" or "data".
func decodeCreatedID(body []byte) (string, error) {
	var id ID
	if err := json.Unmarshal(body, &id); err == nil && id != "" {
		return string(id), nil
	}

	var obj struct {
		ID   ID `json:"expJournalID"`
		Data ID `json:"data"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if obj.ID != "" {
			return string(obj.ID), nil
		}
		if obj.Data != "" {
			return string(obj.Data), nil
		}
	}

	return "", fmt.Errorf("elab: no section id in response %q", truncate(string(body), 200))
}

// UploadExcel replaces the spreadsheet content of an EXCEL section.
func (c *Client) UploadExcel(ctx context.Context, sectionID string, data []byte) error {
	_, _, err := c.do(ctx, http.MethodPut, "/experiments/sections/"+url.PathEscape(sectionID)+"/excel",
		bytes.NewReader(data), workbook.ContentType)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, "", fmt.Errorf("elab: failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9")

	logger.Debug("elab request", "method", method, "path", path)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("elab: %s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("elab: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(data), 500),
		}
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
