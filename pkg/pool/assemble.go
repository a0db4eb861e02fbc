package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/labpool/pkg/label"
	"github.com/jmylchreest/labpool/pkg/markup"
	"github.com/jmylchreest/labpool/pkg/value"
)

// ErrDocumentTooLarge indicates the markup exceeded the configured size limit.
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

// Config controls how documents are turned into rows.
type Config struct {
	// Exempt lists normalized keys whose values are kept verbatim.
	Exempt value.ExemptSet

	// HeaderColumn names the first column. Default: DefaultHeaderColumn.
	HeaderColumn string

	// MaxDocumentSize caps markup size in bytes (0 = unlimited).
	MaxDocumentSize int

	// MarkupOptions are passed to markup.Parse.
	MarkupOptions []markup.Option
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Exempt:       value.DefaultExempt(),
		HeaderColumn: DefaultHeaderColumn,
	}
}

// Assembler builds one row per document.
type Assembler struct {
	retriever Retriever
	config    Config
}

// NewAssembler creates an assembler. retriever may be nil when every document
// carries inline markup.
func NewAssembler(retriever Retriever, cfg Config) *Assembler {
	if cfg.HeaderColumn == "" {
		cfg.HeaderColumn = DefaultHeaderColumn
	}
	if cfg.Exempt == nil {
		cfg.Exempt = value.ExemptSet{}
	}
	return &Assembler{retriever: retriever, config: cfg}
}

// AssembleRow extracts every label from doc. The markup is parsed once no matter
// how many labels are requested. If the markup cannot be obtained or parsed a
// *RetrievalError is returned and no row is produced.
func (a *Assembler) AssembleRow(ctx context.Context, doc Document, labels []string) (Row, error) {
	html, err := a.markup(ctx, doc)
	if err != nil {
		return Row{}, &RetrievalError{DocumentID: doc.ID, Header: doc.Header, Err: err}
	}

	tree, err := markup.Parse(html, a.config.MarkupOptions...)
	if err != nil {
		return Row{}, &RetrievalError{DocumentID: doc.ID, Header: doc.Header, Err: err}
	}

	return a.assemble(tree, doc.Header, labels), nil
}

func (a *Assembler) assemble(tree markup.Tree, header string, labels []string) Row {
	row := Row{
		Header: header,
		Values: make([]Value, len(labels)),
	}
	for i, l := range labels {
		row.Values[i] = FindValue(tree, label.Normalize(l), a.config.Exempt)
	}
	return row
}

func (a *Assembler) markup(ctx context.Context, doc Document) (string, error) {
	html := doc.Markup
	if html == "" {
		if a.retriever == nil {
			return "", fmt.Errorf("no inline markup and no retriever configured")
		}
		var err error
		html, err = a.retriever.Retrieve(ctx, doc.ID)
		if err != nil {
			return "", err
		}
	}
	if limit := a.config.MaxDocumentSize; limit > 0 && len(html) > limit {
		return "", fmt.Errorf("%w: %d bytes > %d bytes", ErrDocumentTooLarge, len(html), limit)
	}
	return html, nil
}
