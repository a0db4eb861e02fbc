// Package labpool provides the public API for pooling labeled values from lab
// notebook sections into a spreadsheet.
package labpool

import (
	"time"

	"github.com/jmylchreest/labpool/pkg/markup"
	"github.com/jmylchreest/labpool/pkg/pool"
	"github.com/jmylchreest/labpool/pkg/source"
	"github.com/jmylchreest/labpool/pkg/workbook"
)

// Config holds all labpool configuration.
type Config struct {
	// Extraction settings
	HeaderColumn    string   `validate:"required"`
	Exempt          []string `validate:"dive,required"`
	MaxDocumentSize int      `validate:"gte=0"`
	MarkerSelector  string
	CellSelector    string

	// Output settings
	SheetName      string `validate:"required,max=31,excludesall=:\\/?*[]"`
	ArtifactPrefix string `validate:"required"`

	// Collaborators (injected; nil Writer selects excelize)
	Source    source.Source        `validate:"required"`
	Writer    workbook.SheetWriter `validate:"-"`
	Publisher Publisher            `validate:"-"`

	// Now returns the current time; used to stamp published artifacts.
	Now func() time.Time `validate:"-"`
}

// DefaultArtifactPrefix starts the header of published workbooks.
const DefaultArtifactPrefix = "Pooled Data"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeaderColumn:   pool.DefaultHeaderColumn,
		Exempt:         []string{"cell id"},
		SheetName:      workbook.DefaultSheetName,
		ArtifactPrefix: DefaultArtifactPrefix,
		Now:            time.Now,
	}
}

func (c Config) markupOptions() []markup.Option {
	var opts []markup.Option
	if c.MarkerSelector != "" {
		opts = append(opts, markup.WithMarkerSelector(c.MarkerSelector))
	}
	if c.CellSelector != "" {
		opts = append(opts, markup.WithCellSelector(c.CellSelector))
	}
	return opts
}

// Option configures labpool.
type Option func(*Config)

// WithSource sets where documents come from.
func WithSource(s source.Source) Option {
	return func(c *Config) {
		c.Source = s
	}
}

// WithSheetWriter sets the workbook writer capability.
func WithSheetWriter(w workbook.SheetWriter) Option {
	return func(c *Config) {
		c.Writer = w
	}
}

// WithPublisher enables persisting the workbook after serialization.
func WithPublisher(p Publisher) Option {
	return func(c *Config) {
		c.Publisher = p
	}
}

// WithExempt sets the labels whose values are kept verbatim.
func WithExempt(labels ...string) Option {
	return func(c *Config) {
		c.Exempt = labels
	}
}

// WithHeaderColumn sets the name of the first column.
func WithHeaderColumn(name string) Option {
	return func(c *Config) {
		c.HeaderColumn = name
	}
}

// WithSheetName sets the workbook sheet name (max 31 characters).
func WithSheetName(name string) Option {
	return func(c *Config) {
		c.SheetName = name
	}
}

// WithArtifactPrefix sets the prefix of published artifact headers.
func WithArtifactPrefix(prefix string) Option {
	return func(c *Config) {
		c.ArtifactPrefix = prefix
	}
}

// WithMaxDocumentSize caps document markup size in bytes (0 = unlimited).
func WithMaxDocumentSize(n int) Option {
	return func(c *Config) {
		c.MaxDocumentSize = n
	}
}

// WithMarkerSelector sets the CSS selector of the value marker inside a cell.
func WithMarkerSelector(selector string) Option {
	return func(c *Config) {
		c.MarkerSelector = selector
	}
}

// WithCellSelector sets the CSS selector of cells inside a row.
func WithCellSelector(selector string) Option {
	return func(c *Config) {
		c.CellSelector = selector
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}
