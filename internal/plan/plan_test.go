package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cferrors "github.com/cellform/cellform/internal/errors"
	"github.com/cellform/cellform/internal/expr"
	"github.com/cellform/cellform/internal/rows"
)

func peopleSource() *Source {
	return NewSource("people", []string{"name", "age"}, rows.Rows{
		{"Alice", int64(30)},
		{"Bob", int64(25)},
		{"Carol", int64(35)},
	})
}

func TestArity(t *testing.T) {
	src := peopleSource()

	_, err := NewSelect(nil, []string{"name"})
	assert.ErrorContains(t, err, "exactly one input")

	_, err = NewFilter(nil, expr.Col("age").Gt(expr.Lit(1)))
	assert.ErrorContains(t, err, "exactly one input")

	_, err = NewJoin(src, nil, []string{"name"}, []string{"name"}, JoinInner)
	assert.ErrorContains(t, err, "exactly two inputs")

	_, err = NewUnion(nil, src)
	assert.ErrorContains(t, err, "exactly two inputs")
}

func TestSelectSchemaValidation(t *testing.T) {
	src := NewSource("t", []string{"a", "b"}, nil)

	_, err := NewSelect(src, []string{"z"})
	require.Error(t, err)
	var sverr *cferrors.SchemaValidationError
	require.ErrorAs(t, err, &sverr)
	assert.Equal(t, []string{"z"}, sverr.Missing)
	assert.Equal(t, []string{"a", "b"}, sverr.Available)
	assert.Contains(t, err.Error(), `"z"`)
	assert.Contains(t, err.Error(), `"a", "b"`)

	// unknown schema skips validation entirely
	blind := NewSource("t", nil, nil)
	sel, err := NewSelect(blind, []string{"z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, sel.Schema())
}

func TestFilterSchemaValidation(t *testing.T) {
	src := NewSource("t", []string{"a", "b"}, nil)

	_, err := NewFilter(src, expr.Col("missing").Gt(expr.Lit(0)))
	var sverr *cferrors.SchemaValidationError
	require.ErrorAs(t, err, &sverr)
	assert.Equal(t, "Filter", sverr.Op)

	f, err := NewFilter(src, expr.Col("a").Gt(expr.Lit(0)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Schema())
}

func TestJoinSchema(t *testing.T) {
	left := NewSource("l", []string{"id", "name"}, nil)
	right := NewSource("r", []string{"key", "dept", "extra"}, nil)

	j, err := NewJoin(left, right, []string{"id"}, []string{"key"}, JoinLeft)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "dept", "extra"}, j.Schema())
}

func TestMultiKeyJoinDropsAllRightKeys(t *testing.T) {
	left := NewSource("l", []string{"a", "b", "v"}, nil)
	right := NewSource("r", []string{"x", "y", "w"}, nil)

	j, err := NewJoin(left, right, []string{"a", "b"}, []string{"x", "y"}, JoinInner)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "v", "w"}, j.Schema())
	assert.NotContains(t, j.Schema(), "x")
	assert.NotContains(t, j.Schema(), "y")
}

func TestJoinRejectsBadType(t *testing.T) {
	left := NewSource("l", []string{"a"}, nil)
	right := NewSource("r", []string{"a"}, nil)
	_, err := NewJoin(left, right, []string{"a"}, []string{"a"}, "cross")
	assert.ErrorContains(t, err, "cross")
}

func TestUnionSchemaMismatch(t *testing.T) {
	a := NewSource("a", []string{"a", "b"}, nil)
	c := NewSource("c", []string{"a", "c"}, nil)

	_, err := NewUnion(a, c)
	require.Error(t, err)
	var sverr *cferrors.SchemaValidationError
	assert.ErrorAs(t, err, &sverr)

	// column order matters
	reordered := NewSource("r", []string{"b", "a"}, nil)
	_, err = NewUnion(a, reordered)
	assert.Error(t, err)

	// unknown schema on one side skips the check
	blind := NewSource("b", nil, nil)
	u, err := NewUnion(a, blind)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, u.Schema())
}

func TestGroupBySchema(t *testing.T) {
	src := NewSource("t", []string{"region", "sales"}, nil)
	g, err := NewGroupBy(src, []string{"region"}, []Agg{
		{Out: "total", Func: "sum", Column: "sales"},
		{Out: "n", Func: "count", Column: "sales"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "total", "n"}, g.Schema())

	_, err = NewGroupBy(src, []string{"region"}, nil)
	assert.ErrorContains(t, err, "at least one aggregation")

	_, err = NewGroupBy(src, nil, []Agg{{Out: "total", Func: "sum", Column: "sales"}})
	assert.ErrorContains(t, err, "at least one key")

	_, err = NewGroupBy(src, []string{"zone"}, []Agg{{Out: "t", Func: "sum", Column: "sales"}})
	var sverr *cferrors.SchemaValidationError
	assert.ErrorAs(t, err, &sverr)
}

func TestSortValidation(t *testing.T) {
	src := NewSource("t", []string{"a"}, nil)

	_, err := NewSort(src, nil)
	assert.ErrorContains(t, err, "at least one sort key")

	_, err = NewSort(src, []SortKey{{Column: "a", Direction: "up"}})
	assert.ErrorContains(t, err, "up")

	s, err := NewSort(src, []SortKey{{Column: "a", Direction: Desc}})
	require.NoError(t, err)
	_, ok := s.Limit()
	assert.False(t, ok)

	limited := s.WithLimit(5).WithLimit(10)
	n, ok := limited.Limit()
	require.True(t, ok)
	assert.Equal(t, 5, n, "smaller fused limit wins")
}

func TestLimitValidation(t *testing.T) {
	src := NewSource("t", []string{"a"}, nil)

	_, err := NewLimit(src, -1, Head)
	assert.ErrorContains(t, err, "non-negative")

	_, err = NewLimit(src, 3, "middle")
	assert.ErrorContains(t, err, "middle")

	l, err := NewLimit(src, 3, "")
	require.NoError(t, err)
	assert.Equal(t, Head, l.End())
}

func TestWithColumnSchema(t *testing.T) {
	src := NewSource("t", []string{"a", "b"}, nil)

	w, err := NewWithColumn(src, "c", expr.Col("a").Add(expr.Col("b")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, w.Schema())

	// replacing an existing column keeps the schema unchanged
	w, err = NewWithColumn(src, "b", expr.Col("a").Mul(expr.Lit(2)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, w.Schema())
}

func TestMeltDefaults(t *testing.T) {
	src := NewSource("t", []string{"id", "q1", "q2"}, nil)
	m, err := NewMelt(src, []string{"id"}, nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "variable", m.VarName())
	assert.Equal(t, "value", m.ValueName())
	assert.Equal(t, []string{"id", "variable", "value"}, m.Schema())
}

func TestPivotSchemaUnknown(t *testing.T) {
	src := NewSource("t", []string{"region", "quarter", "sales"}, nil)
	p, err := NewPivot(src, []string{"region"}, "quarter", "sales", "")
	require.NoError(t, err)
	assert.Equal(t, "first", p.AggFunc())
	assert.Nil(t, p.Schema(), "pivot output columns depend on data")
}

func TestWindowValidation(t *testing.T) {
	src := NewSource("t", []string{"region", "sales"}, nil)

	_, err := NewWindow(src, WindowSpec{OutputColumn: "r"})
	assert.ErrorContains(t, err, "function")

	_, err = NewWindow(src, WindowSpec{Function: "rank", InputColumn: "sales"})
	assert.ErrorContains(t, err, "output column")

	w, err := NewWindow(src, WindowSpec{
		Function: "rank", InputColumn: "sales", OutputColumn: "r",
		PartitionBy: []string{"region"},
		OrderBy:     []SortKey{{Column: "sales", Direction: Desc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "sales", "r"}, w.Schema())
}

func buildComplexPlan(t *testing.T) *LogicalPlan {
	t.Helper()
	src := peopleSource()
	f, err := NewFilter(src, expr.Col("age").Gt(expr.Lit(28)))
	require.NoError(t, err)
	s, err := NewSort(f, []SortKey{{Column: "age", Direction: Desc}})
	require.NoError(t, err)
	sel, err := NewSelect(s.WithLimit(2), []string{"name"})
	require.NoError(t, err)
	p, err := NewLogicalPlan(sel)
	require.NoError(t, err)
	return p
}

func TestPlanRoundTrip(t *testing.T) {
	p := buildComplexPlan(t)

	data, err := MarshalPlan(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":1`)

	back, err := UnmarshalPlan(data)
	require.NoError(t, err)

	data2, err := MarshalPlan(back)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))
}

func TestPlanRoundTripAllKinds(t *testing.T) {
	src := NewSource("t", []string{"region", "quarter", "q1", "q2", "sales"}, nil)

	g, err := NewGroupBy(src, []string{"region"}, []Agg{{Out: "total", Func: "sum", Column: "sales"}})
	require.NoError(t, err)
	g = g.WithSort([]SortKey{{Column: "total", Direction: Desc}}, 10)

	agg, err := NewAggregate(src, []Agg{{Out: "n", Func: "count", Column: "sales"}})
	require.NoError(t, err)

	pv, err := NewPivot(src, []string{"region"}, "quarter", "sales", "sum")
	require.NoError(t, err)

	ml, err := NewMelt(src, []string{"region"}, []string{"q1", "q2"}, "metric", "amount")
	require.NoError(t, err)

	wn, err := NewWindow(src, WindowSpec{
		Function: "row_number", OutputColumn: "rn",
		PartitionBy: []string{"region"},
		OrderBy:     []SortKey{{Column: "sales", Direction: Desc}},
	})
	require.NoError(t, err)

	lm, err := NewLimit(src, 0, Tail)
	require.NoError(t, err)

	wc, err := NewWithColumn(src, "doubled", expr.Col("sales").Mul(expr.Lit(2)))
	require.NoError(t, err)

	jn, err := NewJoin(src, NewSource("u", []string{"region", "mgr"}, nil),
		[]string{"region"}, []string{"region"}, JoinOuter)
	require.NoError(t, err)

	un, err := NewUnion(src, NewSource("v", []string{"region", "quarter", "q1", "q2", "sales"}, nil))
	require.NoError(t, err)

	for _, root := range []Operation{g, agg, pv, ml, wn, lm, wc, jn, un} {
		data, err := MarshalOperation(root)
		require.NoError(t, err, root.String())
		back, err := UnmarshalOperation(data)
		require.NoError(t, err, root.String())
		data2, err := MarshalOperation(back)
		require.NoError(t, err, root.String())
		assert.JSONEq(t, string(data), string(data2), root.String())
	}
}

func TestUnmarshalRejectsVersionMismatch(t *testing.T) {
	_, err := UnmarshalPlan([]byte(`{"version":2,"root":{"type":"source","source_id":"x"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 2")
}

func TestUnmarshalRejectsBadArity(t *testing.T) {
	_, err := UnmarshalOperation([]byte(`{"type":"source","source_id":"x","inputs":[{"type":"source","source_id":"y"}]}`))
	assert.ErrorContains(t, err, "cannot have inputs")

	_, err = UnmarshalOperation([]byte(`{"type":"filter","predicate":{"type":"literal","value":true}}`))
	assert.ErrorContains(t, err, "exactly one input")

	_, err = UnmarshalOperation([]byte(`{"type":"union","inputs":[{"type":"source","source_id":"x"}]}`))
	assert.ErrorContains(t, err, "exactly two inputs")

	_, err = UnmarshalOperation([]byte(`{"type":"teleport"}`))
	assert.ErrorContains(t, err, "teleport")
}

func TestFingerprintStability(t *testing.T) {
	a := buildComplexPlan(t)
	b := buildComplexPlan(t)

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	src := peopleSource()
	other, err := NewSelect(src, []string{"age"})
	require.NoError(t, err)
	op, err := NewLogicalPlan(other)
	require.NoError(t, err)
	fo, err := op.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fa, fo)
}

func TestExplain(t *testing.T) {
	p := buildComplexPlan(t)
	out := p.Explain()

	assert.Contains(t, out, "Logical Plan:")
	assert.Contains(t, out, `Source(source_id="people"`)
	assert.Contains(t, out, "Filter(predicate=")
	assert.Contains(t, out, "limit=2")
	assert.Less(t, strings.Index(out, "Source"), strings.Index(out, "Select"),
		"inputs print before consumers")
}
