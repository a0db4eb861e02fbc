// Package markup exposes a parsed HTML document as a minimal table view: rows,
// cells within a row, tables, and a value marker nested inside a cell.
//
// The pooling matcher only depends on the Tree interface, so any markup parser
// can back it. Document is the goquery implementation.
package markup

// Tree is the query surface the table scanner runs against.
type Tree interface {
	// Rows returns every row in document order, including rows of nested tables.
	Rows() []Row

	// Tables returns every table in document order.
	Tables() []Table
}

// Table is a table-like node.
type Table interface {
	// Rows returns the table's rows in document order.
	Rows() []Row
}

// Row is a row-like node.
type Row interface {
	// Cells returns the row's cells in document order.
	Cells() []Cell
}

// Cell is a cell-like node.
type Cell interface {
	// Text returns the cell's full text content, unmodified.
	Text() string

	// ValueMarker returns the text of the authoritative value container nested in
	// the cell. ok is false when the cell has no marker.
	ValueMarker() (text string, ok bool)
}
