package elab

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jmylchreest/labpool/pkg/workbook"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api/v1/", APIKey: "secret"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// --- New Tests ---

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty base URL")
	}
}

// --- ListSections Tests ---

func TestListSections_Wrapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/experiments/42/sections" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "secret" {
			t.Errorf("missing Authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"recordCount":2,"data":[
			{"expJournalID":101,"sectionHeader":"Day 1","sectionType":"PROCEDURE"},
			{"expJournalID":"102","sectionHeader":"Notes","sectionType":"PARAGRAPH"}]}`)
	})

	sections, err := c.ListSections(context.Background(), "42")
	if err != nil {
		t.Fatalf("ListSections() error = %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if sections[0].ID != "101" || sections[0].Header != "Day 1" || sections[0].Type != SectionProcedure {
		t.Errorf("unexpected first section: %+v", sections[0])
	}
	if sections[1].ID != "102" {
		t.Errorf("string ids should be accepted, got %q", sections[1].ID)
	}
}

func TestListSections_BareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"expJournalID":7,"sectionHeader":"Only","sectionType":"PROCEDURE","contents":"<p>x</p>"}]`)
	})

	sections, err := c.ListSections(context.Background(), "1")
	if err != nil {
		t.Fatalf("ListSections() error = %v", err)
	}
	if len(sections) != 1 || sections[0].Contents != "<p>x</p>" {
		t.Errorf("unexpected sections: %+v", sections)
	}
}

func TestListSections_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no access", http.StatusForbidden)
	})

	_, err := c.ListSections(context.Background(), "1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || !strings.Contains(apiErr.Body, "no access") {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

// --- SectionHTML Tests ---

func TestSectionHTML_Formats(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"raw_html", "text/html", "<table><tr><td>a</td></tr></table>", "<table><tr><td>a</td></tr></table>"},
		{"json_data", "application/json", `{"data":"<p>a</p>"}`, "<p>a</p>"},
		{"json_html", "application/json", `{"html":"<p>b</p>"}`, "<p>b</p>"},
		{"json_string", "application/json", `"<p>c</p>"`, "<p>c</p>"},
		{"plain_text", "text/plain", "just text", "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/experiments/sections/101/html" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = io.WriteString(w, tt.body)
			})

			got, err := c.SectionHTML(context.Background(), "101")
			if err != nil {
				t.Fatalf("SectionHTML() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SectionHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- CreateSection / UploadExcel Tests ---

func TestCreateSection_ResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bare_number", "555", "555"},
		{"bare_string", `"556"`, "556"},
		{"object", `{"expJournalID":557}`, "557"},
		{"data", `{"data":558}`, "558"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				body, _ := io.ReadAll(r.Body)
				if !strings.Contains(string(body), `"sectionType":"EXCEL"`) {
					t.Errorf("unexpected body %s", body)
				}
				_, _ = io.WriteString(w, tt.body)
			})

			id, err := c.CreateSection(context.Background(), "42", NewSection{Type: SectionExcel, Header: "h", Date: "2026-01-02"})
			if err != nil {
				t.Fatalf("CreateSection() error = %v", err)
			}
			if id != tt.want {
				t.Errorf("CreateSection() = %q, want %q", id, tt.want)
			}
		})
	}
}

func TestCreateSection_NoID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	if _, err := c.CreateSection(context.Background(), "42", NewSection{}); err == nil {
		t.Error("expected error when response carries no id")
	}
}

func TestPublisher_Publish(t *testing.T) {
	var uploaded []byte
	var uploadType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/experiments/42/sections":
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"sectionHeader":"Pooled Data - 2026-03-04 05:06:07"`) ||
				!strings.Contains(string(body), `"sectionDate":"2026-03-04"`) {
				t.Errorf("unexpected create body %s", body)
			}
			_, _ = io.WriteString(w, "900")
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/experiments/sections/900/excel":
			uploadType = r.Header.Get("Content-Type")
			uploaded, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	id, err := NewPublisher(c, "42").Publish(context.Background(), "Pooled Data - 2026-03-04 05:06:07", created, []byte("xlsx"))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "900" {
		t.Errorf("Publish() id = %q, want 900", id)
	}
	if string(uploaded) != "xlsx" || uploadType != workbook.ContentType {
		t.Errorf("unexpected upload %q (%s)", uploaded, uploadType)
	}
}

func TestPublisher_UploadFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, "901")
			return
		}
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	})

	id, err := NewPublisher(c, "42").Publish(context.Background(), "x", time.Now(), []byte("xlsx"))
	if err == nil {
		t.Fatal("expected upload error")
	}
	if id != "901" {
		t.Errorf("created section id should be reported, got %q", id)
	}
}

// --- truncate Tests ---

func TestTruncate_RuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 5, want: "abc"},
		{name: "ascii", in: "abcdef", n: 3, want: "abc..."},
		{name: "inside_multibyte", in: "aµb", n: 2, want: "a..."},
		{name: "after_multibyte", in: "aµb", n: 3, want: "aµ..."},
		{name: "cjk", in: "値値値", n: 4, want: "値..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
			}
		})
	}
}
