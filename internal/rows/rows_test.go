package rows

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRecord(t *testing.T, fields []arrow.Field, build func(*array.RecordBuilder)) arrow.Record {
	t.Helper()
	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema(fields, nil)
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()
	build(b)
	return b.NewRecord()
}

func TestFromRecord(t *testing.T) {
	rec := buildRecord(t, []arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "age", Type: arrow.PrimitiveTypes.Int64},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64},
		{Name: "active", Type: arrow.FixedWidthTypes.Boolean},
	}, func(b *array.RecordBuilder) {
		b.Field(0).(*array.StringBuilder).AppendValues([]string{"Alice", "Bob"}, nil)
		b.Field(1).(*array.Int64Builder).AppendValues([]int64{30, 25}, nil)
		b.Field(2).(*array.Float64Builder).AppendValues([]float64{1.5, 2.5}, nil)
		b.Field(3).(*array.BooleanBuilder).AppendValues([]bool{true, false}, nil)
	})
	defer rec.Release()

	data, schema, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "score", "active"}, schema)
	assert.Equal(t, Rows{
		{"Alice", int64(30), 1.5, true},
		{"Bob", int64(25), 2.5, false},
	}, data)
}

func TestFromRecordNullsBecomeNil(t *testing.T) {
	rec := buildRecord(t, []arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, func(b *array.RecordBuilder) {
		b.Field(0).(*array.StringBuilder).AppendValues([]string{"Alice", ""}, []bool{true, false})
	})
	defer rec.Release()

	data, _, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, Rows{{"Alice"}, {nil}}, data)
}

func TestFromRecordUnsupportedType(t *testing.T) {
	rec := buildRecord(t, []arrow.Field{
		{Name: "score", Type: arrow.PrimitiveTypes.Float32},
	}, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Float32Builder).AppendValues([]float32{1.5}, nil)
	})
	defer rec.Release()

	_, _, err := FromRecord(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score")
}

func TestCloneIsDeep(t *testing.T) {
	orig := Rows{{"a", int64(1)}}
	clone := orig.Clone()
	clone[0][0] = "changed"
	assert.Equal(t, "a", orig[0][0])
}

func TestNormalize(t *testing.T) {
	r := Rows{{"a", nil}, {nil, int64(2)}}
	got := r.Normalize()
	assert.Equal(t, Rows{{"a", ""}, {"", int64(2)}}, got)
	// Original untouched.
	assert.Nil(t, r[0][1])
}
