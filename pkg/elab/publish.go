package elab

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/labpool/internal/logger"
)

// Publisher stores workbooks as new EXCEL sections of one experiment.
type Publisher struct {
	client       *Client
	experimentID string
}

// NewPublisher creates a publisher for experimentID.
func NewPublisher(c *Client, experimentID string) *Publisher {
	return &Publisher{client: c, experimentID: experimentID}
}

// Publish creates an EXCEL section headed name, dated createdAt, then uploads data
// into it. It returns the new section ID. A section that was created but could
// not be filled is reported in the error.
func (p *Publisher) Publish(ctx context.Context, name string, createdAt time.Time, data []byte) (string, error) {
	id, err := p.client.CreateSection(ctx, p.experimentID, NewSection{
		Type:   SectionExcel,
		Header: name,
		Date:   createdAt.UTC().Format(time.DateOnly),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create section in experiment %s: %w", p.experimentID, err)
	}

	if err := p.client.UploadExcel(ctx, id, data); err != nil {
		return id, fmt.Errorf("failed to upload workbook to section %s: %w", id, err)
	}

	logger.Info("workbook published", "experiment", p.experimentID, "section", id, "name", name)
	return id, nil
}
