// Package source defines where pooled documents come from.
// Implement the Source interface to pool documents from other systems.
package source

import (
	"context"

	"github.com/jmylchreest/labpool/pkg/pool"
)

// Source lists documents and retrieves their markup.
type Source interface {
	// List returns the documents to pool, in the order they should appear in the
	// dataset. Documents may carry inline markup, which bypasses Retrieve.
	List(ctx context.Context) ([]pool.Document, error)

	// Retrieve returns the markup of the document with the given ID.
	Retrieve(ctx context.Context, id string) (string, error)

	// Name returns a string identifying the source type (e.g. "elab", "files").
	Name() string

	// Close releases any resources.
	Close() error
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
