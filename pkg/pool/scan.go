package pool

import (
	"github.com/jmylchreest/labpool/internal/logger"
	"github.com/jmylchreest/labpool/pkg/label"
	"github.com/jmylchreest/labpool/pkg/markup"
	"github.com/jmylchreest/labpool/pkg/value"
)

// FindValue looks up the value labeled key (a normalized label) in tree.
//
// Label:value rows are tried first: the first row whose first cell matches key and
// whose second cell holds a value marker wins. Only when no such row exists are
// paired header/value tables tried, aligning the first two rows of each table by
// cell index. The first match wins; later duplicates are ignored.
func FindValue(tree markup.Tree, key string, exempt value.ExemptSet) Value {
	if v, ok := findInLabelRows(tree, key, exempt); ok {
		return v
	}
	if v, ok := findInPairedTables(tree, key, exempt); ok {
		return v
	}
	logger.Debug("label not found", "key", key)
	return Absent
}

func findInLabelRows(tree markup.Tree, key string, exempt value.ExemptSet) (Value, bool) {
	for _, r := range tree.Rows() {
		cells := r.Cells()
		if len(cells) < 2 {
			continue
		}
		if label.Normalize(cells[0].Text()) != key {
			continue
		}
		raw, ok := cells[1].ValueMarker()
		if !ok {
			// A later row may still carry the value.
			continue
		}
		v := value.Clean(raw, key, exempt)
		logger.Debug("value found in label row", "key", key, "value", v)
		return Found(v), true
	}
	return Absent, false
}

func findInPairedTables(tree markup.Tree, key string, exempt value.ExemptSet) (Value, bool) {
	for _, t := range tree.Tables() {
		rows := t.Rows()
		if len(rows) < 2 {
			continue
		}
		headers := rows[0].Cells()
		values := rows[1].Cells()
		for i, h := range headers {
			if label.Normalize(h.Text()) != key || i >= len(values) {
				continue
			}
			raw, ok := values[i].ValueMarker()
			if !ok {
				continue
			}
			v := value.Clean(raw, key, exempt)
			logger.Debug("value found in paired table", "key", key, "column", i, "value", v)
			return Found(v), true
		}
	}
	return Absent, false
}
