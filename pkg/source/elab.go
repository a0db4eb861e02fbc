package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/labpool/internal/logger"
	"github.com/jmylchreest/labpool/pkg/elab"
	"github.com/jmylchreest/labpool/pkg/pool"
)

// ElabConfig selects the sections of one experiment.
type ElabConfig struct {
	ExperimentID string
	// SectionType filters sections. Default: PROCEDURE.
	SectionType string
	// Sections, when set, are used instead of listing them through the API.
	// This mirrors experiment data already held by a caller.
	Sections []elab.Section
}

// Elab pools the sections of an eLabJournal experiment.
type Elab struct {
	client *elab.Client
	config ElabConfig
}

// NewElab creates an eLabJournal source.
func NewElab(client *elab.Client, cfg ElabConfig) *Elab {
	if cfg.SectionType == "" {
		cfg.SectionType = elab.SectionProcedure
	}
	return &Elab{client: client, config: cfg}
}

// List returns the experiment's sections of the configured type, in API order.
// Preloaded sections are used first; the API is only asked when none of them
// match.
func (s *Elab) List(ctx context.Context) ([]pool.Document, error) {
	docs := s.filter(s.config.Sections)
	if len(docs) > 0 {
		logger.Debug("using preloaded sections", "count", len(docs), "type", s.config.SectionType)
		return docs, nil
	}

	if s.config.ExperimentID == "" {
		return nil, fmt.Errorf("elab: experiment id is required")
	}

	sections, err := s.client.ListSections(ctx, s.config.ExperimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections of experiment %s: %w", s.config.ExperimentID, err)
	}

	docs = s.filter(sections)
	logger.Debug("listed sections", "experiment", s.config.ExperimentID,
		"total", len(sections), "matching", len(docs), "type", s.config.SectionType)
	return docs, nil
}

func (s *Elab) filter(sections []elab.Section) []pool.Document {
	var docs []pool.Document
	for _, sec := range sections {
		if !strings.EqualFold(sec.Type, s.config.SectionType) {
			continue
		}
		docs = append(docs, pool.Document{
			ID:     string(sec.ID),
			Header: sec.Header,
			Markup: sec.Contents,
		})
	}
	return docs
}

// Retrieve fetches a section's HTML.
func (s *Elab) Retrieve(ctx context.Context, id string) (string, error) {
	return s.client.SectionHTML(ctx, id)
}

// Name returns the source type.
func (s *Elab) Name() string {
	return "elab"
}

// Close releases resources.
func (s *Elab) Close() error {
	return nil
}
