package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/labpool/pkg/pool"
)

// Field is one column of a Record.
type Field struct {
	Key   string
	Value *string // nil when the label was not found
}

// Record is a dataset row whose fields keep column order when encoded.
type Record []Field

// Records converts a dataset into one Record per row. Column keys are made
// unique with ColumnKeys so that repeated labels keep their own values.
func Records(ds *pool.Dataset) []any {
	if ds == nil {
		return nil
	}
	keys := ColumnKeys(ds.Columns())
	out := make([]any, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		header := row.Header
		rec := make(Record, 0, len(keys))
		rec = append(rec, Field{Key: keys[0], Value: &header})
		for i := range ds.Labels {
			var v *string
			if i < len(row.Values) && row.Values[i].Found {
				text := row.Values[i].Text
				v = &text
			}
			rec = append(rec, Field{Key: keys[i+1], Value: v})
		}
		out = append(out, rec)
	}
	return out
}

// ColumnKeys returns columns with repeats renamed "<name> (2)", "<name> (3)"
// and so on. The first occurrence keeps its name and no generated key collides
// with another column.
func ColumnKeys(columns []string) []string {
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c] = true
	}

	seen := make(map[string]int, len(columns))
	keys := make([]string, len(columns))
	for i, c := range columns {
		seen[c]++
		if seen[c] == 1 {
			keys[i] = c
			continue
		}
		n := seen[c]
		key := fmt.Sprintf("%s (%d)", c, n)
		for taken[key] {
			n++
			key = fmt.Sprintf("%s (%d)", c, n)
		}
		seen[c] = n
		taken[key] = true
		keys[i] = key
	}
	return keys
}

// MarshalJSON encodes the record as an object with fields in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the record as a mapping with fields in column order.
func (r Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range r {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key}
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if f.Value != nil {
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: *f.Value}
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}
