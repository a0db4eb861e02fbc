package pool

import (
	"context"
	"errors"

	"github.com/jmylchreest/labpool/internal/logger"
)

// Builder pools rows across documents.
type Builder struct {
	assembler *Assembler
}

// NewBuilder creates a builder.
func NewBuilder(retriever Retriever, cfg Config) *Builder {
	return &Builder{assembler: NewAssembler(retriever, cfg)}
}

// Build assembles one row per document, in document order.
//
// Documents are processed one at a time. A document that fails retrieval is
// recorded in Dataset.Failures and skipped. If ctx is cancelled, Build stops
// before the next document and returns ctx.Err() without a dataset.
// When every document fails, the dataset is returned together with ErrEmptyResult.
func (b *Builder) Build(ctx context.Context, docs []Document, labels []string) (*Dataset, error) {
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	ds := &Dataset{
		HeaderColumn: b.assembler.config.HeaderColumn,
		Labels:       append([]string(nil), labels...),
		Rows:         make([]Row, 0, len(docs)),
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			logger.Warn("pooling cancelled", "processed", i, "remaining", len(docs)-i)
			return nil, err
		}

		row, err := b.assembler.AssembleRow(ctx, doc, ds.Labels)
		if err != nil {
			var re *RetrievalError
			if !errors.As(err, &re) {
				return nil, err
			}
			logger.Warn("skipping document", "id", doc.ID, "header", doc.Header, "error", re.Err)
			ds.Failures = append(ds.Failures, *re)
			continue
		}

		logger.Debug("row assembled", "id", doc.ID, "header", doc.Header)
		ds.Rows = append(ds.Rows, row)
	}

	if len(ds.Rows) == 0 {
		return ds, ErrEmptyResult
	}
	return ds, nil
}
