// Package pool consolidates labeled values from a set of HTML documents into
// one flat dataset with a column per requested label.
package pool

import (
	"context"
	"errors"
	"fmt"
)

// DefaultHeaderColumn names the first column, which carries each document's header.
const DefaultHeaderColumn = "SectionHeader"

// Input and terminal outcomes of a pooling run.
// Check with errors.Is(err, pool.ErrEmptyResult).
var (
	// ErrNoLabels indicates no labels were supplied; nothing was extracted.
	ErrNoLabels = errors.New("no labels provided")
	// ErrNoDocuments indicates there were no documents to pool; nothing was extracted.
	ErrNoDocuments = errors.New("no documents to pool")
	// ErrEmptyResult indicates every document failed retrieval. The dataset must not be serialized.
	ErrEmptyResult = errors.New("no rows assembled from any document")
)

// Document is one source document. A non-empty Markup was supplied inline and
// bypasses retrieval.
type Document struct {
	ID     string
	Header string
	Markup string
}

// Retriever obtains a document's markup by identifier.
type Retriever interface {
	Retrieve(ctx context.Context, id string) (string, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, id string) (string, error)

// Retrieve calls f.
func (f RetrieverFunc) Retrieve(ctx context.Context, id string) (string, error) {
	return f(ctx, id)
}

// RetrievalError records a document whose markup could not be obtained or parsed.
// Use errors.As to check for this error type.
type RetrievalError struct {
	DocumentID string
	Header     string
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("document %s (%q): %v", e.DocumentID, e.Header, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// Value is an extracted value. Found is false when no matching row exists;
// that is a normal outcome, not an error.
type Value struct {
	Text  string
	Found bool
}

// Absent is the not-found value.
var Absent = Value{}

// Found wraps a cleaned value.
func Found(text string) Value {
	return Value{Text: text, Found: true}
}

// Row is one document's extracted values. Values[i] belongs to the i-th requested label.
type Row struct {
	Header string
	Values []Value
}

// Dataset is the ordered result of a pooling run.
type Dataset struct {
	HeaderColumn string
	Labels       []string
	Rows         []Row
	Failures     []RetrievalError
}

// Columns returns the column schema: the header column followed by the labels in
// request order.
func (d *Dataset) Columns() []string {
	cols := make([]string, 0, len(d.Labels)+1)
	cols = append(cols, d.HeaderColumn)
	return append(cols, d.Labels...)
}

// Records returns the dataset as a table: the column schema first, then one
// record per row. Absent values are nil.
func (d *Dataset) Records() [][]any {
	records := make([][]any, 0, len(d.Rows)+1)

	header := make([]any, 0, len(d.Labels)+1)
	for _, c := range d.Columns() {
		header = append(header, c)
	}
	records = append(records, header)

	for _, r := range d.Rows {
		rec := make([]any, 0, len(r.Values)+1)
		rec = append(rec, r.Header)
		for _, v := range r.Values {
			if v.Found {
				rec = append(rec, v.Text)
			} else {
				rec = append(rec, nil)
			}
		}
		records = append(records, rec)
	}

	return records
}

// FoundCount returns how many values were found across all rows.
func (d *Dataset) FoundCount() int {
	n := 0
	for _, r := range d.Rows {
		for _, v := range r.Values {
			if v.Found {
				n++
			}
		}
	}
	return n
}
