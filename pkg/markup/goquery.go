package markup

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors control which elements play which role.
type Selectors struct {
	Table  string
	Row    string
	Cell   string
	Marker string
}

// DefaultSelectors matches the layout the notebook editor produces: values are
// typed into a <span> inside a <td>.
func DefaultSelectors() Selectors {
	return Selectors{
		Table:  "table",
		Row:    "tr",
		Cell:   "td",
		Marker: "span",
	}
}

// Option configures parsing.
type Option func(*Selectors)

// WithMarkerSelector sets the CSS selector of the value marker inside a cell.
func WithMarkerSelector(selector string) Option {
	return func(s *Selectors) {
		if selector != "" {
			s.Marker = selector
		}
	}
}

// WithCellSelector sets the CSS selector for cells inside a row (e.g. "td, th").
func WithCellSelector(selector string) Option {
	return func(s *Selectors) {
		if selector != "" {
			s.Cell = selector
		}
	}
}

// Document is a Tree backed by a goquery document.
type Document struct {
	doc *goquery.Document
	sel Selectors
}

var _ Tree = (*Document)(nil)

// Parse parses html once into a Document.
func Parse(html string, opts ...Option) (*Document, error) {
	sel := DefaultSelectors()
	for _, opt := range opts {
		opt(&sel)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	return &Document{doc: doc, sel: sel}, nil
}

// Rows returns every row in the document.
func (d *Document) Rows() []Row {
	return rowsOf(d.doc.Selection, d.sel)
}

// Tables returns every table in the document.
func (d *Document) Tables() []Table {
	var tables []Table
	d.doc.Find(d.sel.Table).Each(func(_ int, s *goquery.Selection) {
		tables = append(tables, table{s: s, sel: d.sel})
	})
	return tables
}

type table struct {
	s   *goquery.Selection
	sel Selectors
}

func (t table) Rows() []Row {
	return rowsOf(t.s, t.sel)
}

type row struct {
	s   *goquery.Selection
	sel Selectors
}

func (r row) Cells() []Cell {
	var cells []Cell
	r.s.Find(r.sel.Cell).Each(func(_ int, s *goquery.Selection) {
		cells = append(cells, cell{s: s, marker: r.sel.Marker})
	})
	return cells
}

type cell struct {
	s      *goquery.Selection
	marker string
}

func (c cell) Text() string {
	return c.s.Text()
}

func (c cell) ValueMarker() (string, bool) {
	m := c.s.Find(c.marker).First()
	if m.Length() == 0 {
		return "", false
	}
	return m.Text(), true
}

func rowsOf(s *goquery.Selection, sel Selectors) []Row {
	var rows []Row
	s.Find(sel.Row).Each(func(_ int, r *goquery.Selection) {
		rows = append(rows, row{s: r, sel: sel})
	})
	return rows
}
