package labpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jmylchreest/labpool/internal/logger"
	"github.com/jmylchreest/labpool/pkg/label"
	"github.com/jmylchreest/labpool/pkg/pool"
	"github.com/jmylchreest/labpool/pkg/value"
	"github.com/jmylchreest/labpool/pkg/workbook"
)

// Terminal outcomes, re-exported for consumers.
// Check with errors.Is(err, labpool.ErrEmptyResult).
var (
	ErrNoLabels      = pool.ErrNoLabels
	ErrNoDocuments   = pool.ErrNoDocuments
	ErrEmptyResult   = pool.ErrEmptyResult
	ErrSerialization = workbook.ErrSerialization

	// ErrPersistence indicates the workbook was built but could not be stored.
	ErrPersistence = errors.New("failed to persist workbook")
)

// RetrievalError is a document skipped during pooling.
// Use errors.As to check for this error type.
type RetrievalError = pool.RetrievalError

// Publisher stores a serialized workbook and returns the new artifact's ID.
type Publisher interface {
	Publish(ctx context.Context, name string, createdAt time.Time, data []byte) (string, error)
}

// Result is the outcome of one pooling run.
type Result struct {
	RunID      string
	Dataset    *pool.Dataset
	Workbook   []byte
	SheetName  string
	CreatedAt  time.Time
	Artifact   string // Header of the published artifact
	ArtifactID string // Empty unless a Publisher is configured

	ListDuration  time.Duration
	BuildDuration time.Duration
}

// Pooler runs pooling operations.
type Pooler struct {
	builder    *pool.Builder
	serializer *workbook.Serializer
	config     Config
}

// New creates a Pooler. A source is required.
func New(opts ...Option) (*Pooler, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	w := cfg.Writer
	if w == nil {
		w = workbook.NewExcelizeWriter()
	}

	builder := pool.NewBuilder(cfg.Source, pool.Config{
		Exempt:          value.NewExemptSet(cfg.Exempt...),
		HeaderColumn:    cfg.HeaderColumn,
		MaxDocumentSize: cfg.MaxDocumentSize,
		MarkupOptions:   cfg.markupOptions(),
	})

	return &Pooler{
		builder:    builder,
		serializer: workbook.New(w, cfg.SheetName),
		config:     cfg,
	}, nil
}

// Build lists the source's documents and pools labels across them.
// It never serializes. The dataset is returned alongside ErrEmptyResult so that
// callers can report the failures.
func (p *Pooler) Build(ctx context.Context, labels []string) (*pool.Dataset, error) {
	ds, _, err := p.build(ctx, uuid.New().String(), labels)
	return ds, err
}

func (p *Pooler) build(ctx context.Context, runID string, labels []string) (*pool.Dataset, time.Duration, error) {
	log := logger.ForRun(runID)

	labels = label.Clean(labels)
	if len(labels) == 0 {
		return nil, 0, ErrNoLabels
	}

	listStart := time.Now()
	docs, err := p.config.Source.List(ctx)
	listDuration := time.Since(listStart)
	if err != nil {
		return nil, listDuration, fmt.Errorf("failed to list documents from %s: %w", p.config.Source.Name(), err)
	}
	if len(docs) == 0 {
		return nil, listDuration, ErrNoDocuments
	}

	log.Info("pooling data", "source", p.config.Source.Name(), "documents", len(docs), "labels", labels)

	ds, err := p.builder.Build(ctx, docs, labels)
	if ds != nil {
		log.Info("pooling finished",
			"rows", len(ds.Rows),
			"failed", len(ds.Failures),
			"values_found", ds.FoundCount())
	}
	return ds, listDuration, err
}

// Run pools labels, serializes the dataset and, when a Publisher is configured,
// persists the workbook. Each terminal outcome is returned as a distinct error:
// ErrNoLabels, ErrNoDocuments, ErrEmptyResult, ErrSerialization, ErrPersistence.
func (p *Pooler) Run(ctx context.Context, labels []string) (*Result, error) {
	res := &Result{
		RunID:     uuid.New().String(),
		SheetName: p.serializer.SheetName(),
	}
	log := logger.ForRun(res.RunID)

	buildStart := time.Now()
	ds, listDuration, err := p.build(ctx, res.RunID, labels)
	res.Dataset = ds
	res.ListDuration = listDuration
	res.BuildDuration = time.Since(buildStart) - listDuration
	if err != nil {
		return res, err
	}

	data, err := p.serializer.Serialize(ds)
	if err != nil {
		return res, err
	}
	res.Workbook = data
	res.CreatedAt = p.config.Now().UTC()
	res.Artifact = fmt.Sprintf("%s - %s", p.config.ArtifactPrefix, res.CreatedAt.Format(time.DateTime))
	log.Debug("workbook serialized", "size", humanize.Bytes(uint64(len(data))), "sheet", res.SheetName)

	if p.config.Publisher == nil {
		return res, nil
	}

	id, err := p.config.Publisher.Publish(ctx, res.Artifact, res.CreatedAt, data)
	res.ArtifactID = id
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return res, nil
}

// Close releases all resources.
func (p *Pooler) Close() error {
	if p.config.Source != nil {
		return p.config.Source.Close()
	}
	return nil
}

// Source returns the name of the configured source.
func (p *Pooler) Source() string {
	return p.config.Source.Name()
}
