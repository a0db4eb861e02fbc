package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelizeWriter writes XLSX workbooks with excelize.
type ExcelizeWriter struct{}

// NewExcelizeWriter creates an XLSX writer.
func NewExcelizeWriter() *ExcelizeWriter {
	return &ExcelizeWriter{}
}

var _ SheetWriter = (*ExcelizeWriter)(nil)

// WriteSheet builds a fresh workbook holding one sheet named name.
func (w *ExcelizeWriter) WriteSheet(name string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// NewFile always starts with a default sheet; rename it rather than add one.
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return nil, fmt.Errorf("failed to name sheet %q: %w", name, err)
	}

	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(name, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
