// Package workbook serializes a pooled dataset into spreadsheet bytes.
//
// The package owns no business logic: it maps a pool.Dataset onto the row/sheet
// model of a SheetWriter.
package workbook

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/labpool/pkg/pool"
)

// DefaultSheetName names the single sheet of a pooled workbook.
const DefaultSheetName = "Pooled Data"

// ContentType is the MIME type of the bytes produced by ExcelizeWriter.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrSerialization indicates the writer could not produce workbook bytes.
var ErrSerialization = errors.New("workbook serialization failed")

// SheetWriter builds a single-sheet workbook from rows and returns its encoding.
// A nil cell is written as an empty cell.
type SheetWriter interface {
	WriteSheet(name string, rows [][]any) ([]byte, error)
}

// Serializer converts datasets into workbook bytes.
type Serializer struct {
	writer    SheetWriter
	sheetName string
}

// New creates a serializer around writer. An empty sheetName selects DefaultSheetName.
func New(writer SheetWriter, sheetName string) *Serializer {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Serializer{writer: writer, sheetName: sheetName}
}

// SheetName returns the name of the sheet written.
func (s *Serializer) SheetName() string {
	return s.sheetName
}

// Serialize writes the column schema as the first row and one row per dataset row.
// Failures wrap ErrSerialization.
func (s *Serializer) Serialize(ds *pool.Dataset) ([]byte, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", ErrSerialization)
	}
	if s.writer == nil {
		return nil, fmt.Errorf("%w: no sheet writer configured", ErrSerialization)
	}

	data, err := s.writer.WriteSheet(s.sheetName, ds.Records())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: writer produced no bytes", ErrSerialization)
	}
	return data, nil
}
