package labpool

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jmylchreest/labpool/pkg/pool"
)

// readTestdata reads a file from the testdata directory
func readTestdata(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to read testdata %s: %v", filename, err)
	}
	return string(data)
}

// fakeSource serves a fixed document list.
type fakeSource struct {
	docs    []pool.Document
	pages   map[string]string
	listErr error
	closed  bool
}

func (s *fakeSource) List(context.Context) ([]pool.Document, error) {
	return s.docs, s.listErr
}

func (s *fakeSource) Retrieve(_ context.Context, id string) (string, error) {
	html, ok := s.pages[id]
	if !ok {
		return "", errors.New("not found")
	}
	return html, nil
}

func (s *fakeSource) Name() string { return "fake" }
func (s *fakeSource) Close() error { s.closed = true; return nil }

type fakePublisher struct {
	name    string
	created time.Time
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, name string, createdAt time.Time, data []byte) (string, error) {
	p.name, p.created, p.data = name, createdAt, data
	if p.err != nil {
		return "", p.err
	}
	return "900", nil
}

type failingWriter struct{}

func (failingWriter) WriteSheet(string, [][]any) ([]byte, error) {
	return nil, errors.New("writer exploded")
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
}

// --- New Tests ---

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("expected error without a source")
	}
}

func TestNew_RejectsLongSheetName(t *testing.T) {
	_, err := New(WithSource(&fakeSource{}), WithSheetName(strings.Repeat("x", 32)))
	if err == nil {
		t.Error("expected error for a sheet name over 31 characters")
	}
}

func TestNew_RejectsForbiddenSheetCharacters(t *testing.T) {
	for _, name := range []string{"PCV: day/1", `a\b`, "what?", "x*", "[pcv]"} {
		if _, err := New(WithSource(&fakeSource{}), WithSheetName(name)); err == nil {
			t.Errorf("expected error for sheet name %q", name)
		}
	}
	if _, err := New(WithSource(&fakeSource{}), WithSheetName("PCV day 1 (final)")); err != nil {
		t.Errorf("valid sheet name rejected: %v", err)
	}
}

// --- Build Tests ---

func TestBuild_ReturnsDatasetWithoutSerializing(t *testing.T) {
	src := &fakeSource{
		docs: []pool.Document{
			{ID: "1", Header: "Day 1", Markup: readTestdata(t, "label_rows.html")},
			{ID: "gone", Header: "Day 2"},
		},
	}
	p, err := New(WithSource(src), WithSheetWriter(failingWriter{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ds, err := p.Build(context.Background(), []string{"Actual PCV", "", "Actual PCV"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !reflect.DeepEqual(ds.Columns(), []string{"SectionHeader", "Actual PCV", "Actual PCV"}) {
		t.Errorf("Columns() = %q", ds.Columns())
	}
	want := []pool.Row{{Header: "Day 1", Values: []pool.Value{pool.Found("12.5"), pool.Found("12.5")}}}
	if !reflect.DeepEqual(ds.Rows, want) {
		t.Errorf("rows = %+v, want %+v", ds.Rows, want)
	}
	if len(ds.Failures) != 1 || ds.Failures[0].DocumentID != "gone" {
		t.Errorf("failures = %+v", ds.Failures)
	}
}

func TestBuild_NoLabels(t *testing.T) {
	p, err := New(WithSource(&fakeSource{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := p.Build(context.Background(), nil); !errors.Is(err, ErrNoLabels) {
		t.Errorf("expected ErrNoLabels, got %v", err)
	}
}

func TestBuild_CellSelector(t *testing.T) {
	page := `<table><tr><th>Actual PCV</th><td><span>7 g/dL</span></td></tr></table>`
	src := &fakeSource{docs: []pool.Document{{ID: "1", Header: "h", Markup: page}}}

	tests := []struct {
		name string
		opts []Option
		want pool.Value
	}{
		{name: "default_td_only", want: pool.Absent},
		{name: "th_and_td", opts: []Option{WithCellSelector("th, td")}, want: pool.Found("7")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(append([]Option{WithSource(src)}, tt.opts...)...)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			ds, err := p.Build(context.Background(), []string{"Actual PCV"})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got := ds.Rows[0].Values[0]; got != tt.want {
				t.Errorf("value = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// --- Run Tests ---

func TestRun_LabelRowDocument(t *testing.T) {
	src := &fakeSource{
		docs:  []pool.Document{{ID: "101", Header: "Day 1"}},
		pages: map[string]string{"101": readTestdata(t, "label_rows.html")},
	}
	p, err := New(WithSource(src), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := p.Run(context.Background(), []string{"Actual PCV", "Cell ID"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []pool.Row{{Header: "Day 1", Values: []pool.Value{pool.Found("12.5"), pool.Found("XJ-99")}}}
	if !reflect.DeepEqual(res.Dataset.Rows, want) {
		t.Errorf("rows = %+v, want %+v", res.Dataset.Rows, want)
	}

	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if res.Artifact != "Pooled Data - 2026-03-04 05:06:07" {
		t.Errorf("Artifact = %q", res.Artifact)
	}

	f, err := excelize.OpenReader(bytes.NewReader(res.Workbook))
	if err != nil {
		t.Fatalf("workbook is not readable: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Pooled Data")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	wantRows := [][]string{
		{"SectionHeader", "Actual PCV", "Cell ID"},
		{"Day 1", "12.5", "XJ-99"},
	}
	if !reflect.DeepEqual(rows, wantRows) {
		t.Errorf("sheet rows = %v, want %v", rows, wantRows)
	}
}

func TestRun_PairedTableDocument(t *testing.T) {
	src := &fakeSource{
		docs: []pool.Document{{ID: "1", Header: "Day 2", Markup: readTestdata(t, "paired_table.html")}},
	}
	p, err := New(WithSource(src))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := p.Run(context.Background(), []string{"Actual PCV", "Cell ID"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := res.Dataset.Rows[0].Values[0]; got != pool.Found("12.5") {
		t.Errorf("Actual PCV = %+v, want 12.5", got)
	}
	if res.Dataset.Rows[0].Values[1].Found {
		t.Error("Cell ID should be absent")
	}
}

func TestRun_TerminalOutcomes(t *testing.T) {
	page := readTestdata(t, "label_rows.html")

	tests := []struct {
		name    string
		src     *fakeSource
		labels  []string
		opts    []Option
		wantErr error
	}{
		{
			name:    "no_labels",
			src:     &fakeSource{docs: []pool.Document{{ID: "1", Markup: page}}},
			labels:  []string{" ", ""},
			wantErr: ErrNoLabels,
		},
		{
			name:    "no_documents",
			src:     &fakeSource{},
			labels:  []string{"Actual PCV"},
			wantErr: ErrNoDocuments,
		},
		{
			name:    "empty_result",
			src:     &fakeSource{docs: []pool.Document{{ID: "gone"}}},
			labels:  []string{"Actual PCV"},
			wantErr: ErrEmptyResult,
		},
		{
			name:    "serialization",
			src:     &fakeSource{docs: []pool.Document{{ID: "1", Markup: page}}},
			labels:  []string{"Actual PCV"},
			opts:    []Option{WithSheetWriter(failingWriter{})},
			wantErr: ErrSerialization,
		},
		{
			name:    "persistence",
			src:     &fakeSource{docs: []pool.Document{{ID: "1", Markup: page}}},
			labels:  []string{"Actual PCV"},
			opts:    []Option{WithPublisher(&fakePublisher{err: errors.New("upload refused")})},
			wantErr: ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithSource(tt.src)}, tt.opts...)
			p, err := New(opts...)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			res, err := p.Run(context.Background(), tt.labels)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != ErrPersistence && res != nil && res.Workbook != nil {
				t.Error("no workbook should be produced")
			}
		})
	}
}

func TestRun_EmptyResultSkipsSerialization(t *testing.T) {
	pub := &fakePublisher{}
	src := &fakeSource{docs: []pool.Document{{ID: "a"}, {ID: "b"}}}
	p, err := New(WithSource(src), WithSheetWriter(failingWriter{}), WithPublisher(pub))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := p.Run(context.Background(), []string{"Actual PCV"})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if len(res.Dataset.Failures) != 2 {
		t.Errorf("expected 2 recorded failures, got %d", len(res.Dataset.Failures))
	}
	if pub.data != nil {
		t.Error("nothing should be published")
	}
}

func TestRun_ListError(t *testing.T) {
	src := &fakeSource{listErr: errors.New("api down")}
	p, err := New(WithSource(src))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := p.Run(context.Background(), []string{"x"}); err == nil || !strings.Contains(err.Error(), "api down") {
		t.Errorf("expected list error, got %v", err)
	}
}

func TestRun_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	src := &fakeSource{docs: []pool.Document{{ID: "1", Header: "h", Markup: readTestdata(t, "label_rows.html")}}}
	p, err := New(WithSource(src), WithPublisher(pub), WithClock(fixedClock), WithArtifactPrefix("Batch"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := p.Run(context.Background(), []string{"Actual PCV"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ArtifactID != "900" {
		t.Errorf("ArtifactID = %q", res.ArtifactID)
	}
	if pub.name != "Batch - 2026-03-04 05:06:07" || !pub.created.Equal(fixedClock()) {
		t.Errorf("unexpected publish call: %q %v", pub.name, pub.created)
	}
	if !bytes.Equal(pub.data, res.Workbook) {
		t.Error("published bytes differ from the serialized workbook")
	}
}

func TestRun_RowCountInvariant(t *testing.T) {
	page := readTestdata(t, "label_rows.html")
	src := &fakeSource{
		docs: []pool.Document{
			{ID: "1", Header: "one"},
			{ID: "2", Header: "two"},
			{ID: "3", Header: "three"},
			{ID: "4", Header: "four"},
		},
		pages: map[string]string{"1": page, "3": page, "4": page},
	}
	p, err := New(WithSource(src), WithExempt())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := p.Run(context.Background(), []string{"Cell ID"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Dataset.Rows) != 3 {
		t.Fatalf("expected N-F = 3 rows, got %d", len(res.Dataset.Rows))
	}
	if res.Dataset.Rows[1].Header != "three" {
		t.Errorf("rows out of order: %+v", res.Dataset.Rows)
	}
	// With no exempt labels the identifier is cleaned like any number.
	if got := res.Dataset.Rows[0].Values[0]; got != pool.Found("-99") {
		t.Errorf("Cell ID = %+v, want -99", got)
	}
}

func TestClose(t *testing.T) {
	src := &fakeSource{}
	p, err := New(WithSource(src))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !src.closed {
		t.Error("source should be closed")
	}
}
