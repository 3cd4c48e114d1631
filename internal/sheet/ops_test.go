package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpEnvelopeRoundTrip(t *testing.T) {
	ops := []Op{
		CreateSheet{Name: "data", Rows: 4, Cols: 2},
		SetValues{Sheet: "data", Row: 0, Col: 0, Values: [][]any{{"name", "age"}}},
		SetFormula{Sheet: "out", Row: 1, Col: 0, Formula: "=FILTER(data!A2:B4, data!B2:B4=1)", Ref: "data"},
		NamedRange{Name: "Result", Sheet: "out", Bounds: Range{RowEnd: 3, ColEnd: 1}},
	}

	for _, op := range ops {
		data, err := MarshalOp(op)
		require.NoError(t, err)

		got, err := UnmarshalOp(data)
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}
}

func TestMarshalOpTags(t *testing.T) {
	data, err := MarshalOp(CreateSheet{Name: "data", Rows: 1, Cols: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"create_sheet","name":"data","rows":1,"cols":1}`, string(data))
}

func TestMarshalOpOmitsEmptyRef(t *testing.T) {
	data, err := MarshalOp(SetFormula{Sheet: "out", Formula: "=1"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ref")
}

func TestUnmarshalOpUnknownType(t *testing.T) {
	_, err := UnmarshalOp([]byte(`{"type":"merge_cells"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge_cells")
}
