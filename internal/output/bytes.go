package output

import (
	"fmt"
	"io"
)

// BytesWriter copies pre-encoded payloads, such as a serialized workbook, to
// the destination unchanged.
type BytesWriter struct {
	w io.Writer
}

// NewBytesWriter creates a BytesWriter.
func NewBytesWriter(w io.Writer) *BytesWriter {
	return &BytesWriter{w: w}
}

// Write writes data, which must be a []byte.
func (w *BytesWriter) Write(data any) error {
	b, ok := data.([]byte)
	if !ok {
		return fmt.Errorf("binary output expects []byte, got %T", data)
	}
	_, err := w.w.Write(b)
	return err
}

// WriteAll writes each payload in order.
func (w *BytesWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op.
func (w *BytesWriter) Flush() error { return nil }

// Close is a no-op.
func (w *BytesWriter) Close() error { return nil }
