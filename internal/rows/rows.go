// Package rows holds the in-memory row-value representation supplied to the
// translator for Source nodes, plus adapters for common column stores.
package rows

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Rows is an ordered sequence of ordered row-value sequences: Rows[i][j] is
// the value of column j in row i. Values are plain Go scalars (string, int64,
// float64, bool) or nil for missing cells.
type Rows [][]any

// NumRows returns the row count.
func (r Rows) NumRows() int { return len(r) }

// Clone returns a deep copy of the rows.
func (r Rows) Clone() Rows {
	out := make(Rows, len(r))
	for i, row := range r {
		out[i] = append([]any(nil), row...)
	}
	return out
}

// CellValue normalizes a scalar for writing into a spreadsheet cell: nil
// becomes the empty string, everything else passes through unchanged.
func CellValue(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// Normalize returns a copy of the rows with every cell passed through
// CellValue, ready for a SetValues block.
func (r Rows) Normalize() Rows {
	out := make(Rows, len(r))
	for i, row := range r {
		nr := make([]any, len(row))
		for j, v := range row {
			nr[j] = CellValue(v)
		}
		out[i] = nr
	}
	return out
}

// FromRecord converts an Arrow record batch into Rows plus the column-name
// schema. Supported column types are utf8, int64, float64, and bool; null
// cells become nil.
func FromRecord(rec arrow.Record) (Rows, []string, error) {
	schema := make([]string, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		schema[i] = f.Name
	}

	out := make(Rows, rec.NumRows())
	for i := range out {
		out[i] = make([]any, rec.NumCols())
	}

	for j := 0; j < int(rec.NumCols()); j++ {
		col := rec.Column(j)
		switch arr := col.(type) {
		case *array.String:
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					out[i][j] = arr.Value(i)
				}
			}
		case *array.Int64:
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					out[i][j] = arr.Value(i)
				}
			}
		case *array.Float64:
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					out[i][j] = arr.Value(i)
				}
			}
		case *array.Boolean:
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					out[i][j] = arr.Value(i)
				}
			}
		default:
			return nil, nil, fmt.Errorf("unsupported arrow column type %s for column %q",
				col.DataType().Name(), schema[j])
		}
	}
	return out, schema, nil
}
