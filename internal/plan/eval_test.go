package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellform/cellform/internal/expr"
	"github.com/cellform/cellform/internal/rows"
)

func TestEvaluateFilter(t *testing.T) {
	f, err := NewFilter(peopleSource(), expr.Col("age").Gt(expr.Lit(28)))
	require.NoError(t, err)

	rel, err := Evaluate(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, rel.Schema)
	require.Len(t, rel.Rows, 2)
	assert.Equal(t, "Alice", rel.Rows[0][0])
	assert.Equal(t, "Carol", rel.Rows[1][0])
}

func TestEvaluateSourceWithoutData(t *testing.T) {
	src := NewSource("empty", []string{"a"}, nil)
	_, err := Evaluate(src)
	assert.ErrorContains(t, err, "no data")
}

func TestEvaluateSelectProjects(t *testing.T) {
	sel, err := NewSelect(peopleSource(), []string{"age", "name"})
	require.NoError(t, err)

	rel, err := Evaluate(sel)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "name"}, rel.Schema)
	assert.Equal(t, []any{int64(30), "Alice"}, rel.Rows[0])
}

func TestEvaluateSortStable(t *testing.T) {
	src := NewSource("t", []string{"name", "score"}, rows.Rows{
		{"a", int64(2)},
		{"b", int64(1)},
		{"c", int64(2)},
		{"d", int64(1)},
	})
	s, err := NewSort(src, []SortKey{{Column: "score", Direction: Desc}})
	require.NoError(t, err)

	rel, err := Evaluate(s)
	require.NoError(t, err)
	names := columnValues(rel, 0)
	assert.Equal(t, []any{"a", "c", "b", "d"}, names, "ties keep input order")
}

func TestEvaluateSortWithFusedLimitAndPredicate(t *testing.T) {
	src := peopleSource()
	s, err := NewSort(src, []SortKey{{Column: "age", Direction: Desc}})
	require.NoError(t, err)
	s = s.WithPredicate(expr.Col("age").Gt(expr.Lit(26))).WithLimit(1)

	rel, err := Evaluate(s)
	require.NoError(t, err)
	require.Len(t, rel.Rows, 1)
	assert.Equal(t, "Carol", rel.Rows[0][0])
}

func TestEvaluateLimitHeadTail(t *testing.T) {
	src := peopleSource()

	head, err := NewLimit(src, 2, Head)
	require.NoError(t, err)
	rel, err := Evaluate(head)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", "Bob"}, columnValues(rel, 0))

	tail, err := NewLimit(src, 2, Tail)
	require.NoError(t, err)
	rel, err = Evaluate(tail)
	require.NoError(t, err)
	assert.Equal(t, []any{"Bob", "Carol"}, columnValues(rel, 0))

	over, err := NewLimit(src, 10, Head)
	require.NoError(t, err)
	rel, err = Evaluate(over)
	require.NoError(t, err)
	assert.Len(t, rel.Rows, 3)
}

func TestEvaluateWithColumn(t *testing.T) {
	wc, err := NewWithColumn(peopleSource(), "age2", expr.Col("age").Mul(expr.Lit(2)))
	require.NoError(t, err)

	rel, err := Evaluate(wc)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "age2"}, rel.Schema)
	assert.Equal(t, float64(60), rel.Rows[0][2])
}

func TestEvaluateGroupByFirstAppearanceOrder(t *testing.T) {
	src := NewSource("fruit", []string{"kind", "n"}, rows.Rows{
		{"banana", int64(1)},
		{"apple", int64(2)},
		{"banana", int64(3)},
	})
	g, err := NewGroupBy(src, []string{"kind"}, []Agg{{Out: "total", Func: "sum", Column: "n"}})
	require.NoError(t, err)

	rel, err := Evaluate(g)
	require.NoError(t, err)
	require.Len(t, rel.Rows, 2)
	assert.Equal(t, "banana", rel.Rows[0][0], "first appearance wins, not alphabetical")
	assert.Equal(t, float64(4), rel.Rows[0][1])
	assert.Equal(t, "apple", rel.Rows[1][0])
	assert.Equal(t, float64(2), rel.Rows[1][1])
}

func TestEvaluateAggregate(t *testing.T) {
	agg, err := NewAggregate(peopleSource(), []Agg{
		{Out: "n", Func: "count", Column: "age"},
		{Out: "oldest", Func: "max", Column: "age"},
		{Out: "avg", Func: "mean", Column: "age"},
	})
	require.NoError(t, err)

	rel, err := Evaluate(agg)
	require.NoError(t, err)
	require.Len(t, rel.Rows, 1)
	assert.Equal(t, float64(3), rel.Rows[0][0])
	assert.Equal(t, float64(35), rel.Rows[0][1])
	assert.Equal(t, float64(30), rel.Rows[0][2])
}

func joinFixtures() (*Source, *Source) {
	left := NewSource("emp", []string{"name", "dept_id"}, rows.Rows{
		{"Alice", int64(1)},
		{"Bob", int64(2)},
		{"Carol", int64(9)},
	})
	right := NewSource("dept", []string{"id", "dept"}, rows.Rows{
		{int64(1), "Eng"},
		{int64(2), "Ops"},
	})
	return left, right
}

func TestEvaluateLeftJoin(t *testing.T) {
	left, right := joinFixtures()
	j, err := NewJoin(left, right, []string{"dept_id"}, []string{"id"}, JoinLeft)
	require.NoError(t, err)

	rel, err := Evaluate(j)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "dept_id", "dept"}, rel.Schema)
	require.Len(t, rel.Rows, 3, "unmatched left row survives")
	assert.Equal(t, "Eng", rel.Rows[0][2])
	assert.Nil(t, rel.Rows[2][2], "unmatched key yields empty right columns")
}

func TestEvaluateInnerAndOuterJoin(t *testing.T) {
	left, right := joinFixtures()

	inner, err := NewJoin(left, right, []string{"dept_id"}, []string{"id"}, JoinInner)
	require.NoError(t, err)
	rel, err := Evaluate(inner)
	require.NoError(t, err)
	assert.Len(t, rel.Rows, 2)

	extra := NewSource("dept", []string{"id", "dept"}, rows.Rows{
		{int64(1), "Eng"},
		{int64(7), "HR"},
	})
	outer, err := NewJoin(left, extra, []string{"dept_id"}, []string{"id"}, JoinOuter)
	require.NoError(t, err)
	rel, err = Evaluate(outer)
	require.NoError(t, err)
	// 1 match + 2 unmatched left + 1 unmatched right
	assert.Len(t, rel.Rows, 4)
	last := rel.Rows[3]
	assert.Equal(t, int64(7), last[1], "unmatched right key surfaces in the key slot")
	assert.Equal(t, "HR", last[2])
}

func TestEvaluateUnion(t *testing.T) {
	a := NewSource("a", []string{"x"}, rows.Rows{{int64(1)}})
	b := NewSource("b", []string{"x"}, rows.Rows{{int64(2)}})
	u, err := NewUnion(a, b)
	require.NoError(t, err)

	rel, err := Evaluate(u)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, columnValues(rel, 0))
}

func TestEvaluatePivot(t *testing.T) {
	src := NewSource("sales", []string{"region", "quarter", "amount"}, rows.Rows{
		{"west", "Q2", int64(20)},
		{"east", "Q1", int64(5)},
		{"west", "Q1", int64(10)},
		{"west", "Q1", int64(7)},
	})
	p, err := NewPivot(src, []string{"region"}, "quarter", "amount", "sum")
	require.NoError(t, err)

	rel, err := Evaluate(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "Q1", "Q2"}, rel.Schema, "pivot values sorted")
	require.Len(t, rel.Rows, 2)
	assert.Equal(t, "west", rel.Rows[0][0], "index keeps first-appearance order")
	assert.Equal(t, float64(17), rel.Rows[0][1])
	assert.Equal(t, float64(20), rel.Rows[0][2])
	assert.Equal(t, "east", rel.Rows[1][0])
	assert.Nil(t, rel.Rows[1][2], "missing cell stays empty")
}

func TestEvaluateMeltRowMajor(t *testing.T) {
	src := NewSource("wide", []string{"id", "q1", "q2"}, rows.Rows{
		{"a", int64(1), int64(2)},
		{"b", int64(3), int64(4)},
	})
	m, err := NewMelt(src, []string{"id"}, nil, "", "")
	require.NoError(t, err)

	rel, err := Evaluate(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "variable", "value"}, rel.Schema)
	require.Len(t, rel.Rows, 4)
	// row r maps to source row r/k and value column r%k
	assert.Equal(t, []any{"a", "q1", int64(1)}, rel.Rows[0])
	assert.Equal(t, []any{"a", "q2", int64(2)}, rel.Rows[1])
	assert.Equal(t, []any{"b", "q1", int64(3)}, rel.Rows[2])
	assert.Equal(t, []any{"b", "q2", int64(4)}, rel.Rows[3])
}

func salesSource() *Source {
	return NewSource("sales", []string{"region", "amount"}, rows.Rows{
		{"west", int64(10)},
		{"east", int64(30)},
		{"west", int64(10)},
		{"west", int64(20)},
	})
}

func TestEvaluateWindowRank(t *testing.T) {
	w, err := NewWindow(salesSource(), WindowSpec{
		Function: "rank", InputColumn: "amount", OutputColumn: "r",
		PartitionBy: []string{"region"},
	})
	require.NoError(t, err)

	rel, err := Evaluate(w)
	require.NoError(t, err)
	ranks := columnValues(rel, 2)
	// west: 10,10,20 -> ranks 1,1,3; east: 30 -> 1
	assert.Equal(t, []any{float64(1), float64(1), float64(1), float64(3)}, ranks)
}

func TestEvaluateWindowRowNumber(t *testing.T) {
	w, err := NewWindow(salesSource(), WindowSpec{
		Function: "row_number", OutputColumn: "rn",
		PartitionBy: []string{"region"},
		OrderBy:     []SortKey{{Column: "amount", Direction: Desc}},
	})
	require.NoError(t, err)

	rel, err := Evaluate(w)
	require.NoError(t, err)
	rns := columnValues(rel, 2)
	// west by amount desc: 20 -> 1, then the two 10s in input order -> 2, 3
	assert.Equal(t, []any{float64(2), float64(1), float64(3), float64(1)}, rns)
}

func TestEvaluateWindowRunningSum(t *testing.T) {
	src := NewSource("t", []string{"day", "amount"}, rows.Rows{
		{int64(1), int64(5)},
		{int64(2), int64(7)},
		{int64(3), int64(1)},
	})
	w, err := NewWindow(src, WindowSpec{
		Function: "sum", InputColumn: "amount", OutputColumn: "running",
		OrderBy: []SortKey{{Column: "day", Direction: Asc}},
		Frame:   "unbounded preceding to current row",
	})
	require.NoError(t, err)

	rel, err := Evaluate(w)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(5), float64(12), float64(13)}, columnValues(rel, 2))
}

func TestEvaluateWindowLagLead(t *testing.T) {
	src := NewSource("t", []string{"day", "amount"}, rows.Rows{
		{int64(1), int64(5)},
		{int64(2), int64(7)},
		{int64(3), int64(1)},
	})
	lag, err := NewWindow(src, WindowSpec{
		Function: "lag", InputColumn: "amount", OutputColumn: "prev",
		OrderBy: []SortKey{{Column: "day", Direction: Asc}},
	})
	require.NoError(t, err)

	rel, err := Evaluate(lag)
	require.NoError(t, err)
	assert.Equal(t, []any{nil, int64(5), int64(7)}, columnValues(rel, 2))

	lead, err := NewWindow(src, WindowSpec{
		Function: "lead", InputColumn: "amount", OutputColumn: "next",
		OrderBy: []SortKey{{Column: "day", Direction: Asc}},
	})
	require.NoError(t, err)

	rel, err = Evaluate(lead)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), int64(1), nil}, columnValues(rel, 2))
}

func columnValues(rel *Relation, col int) []any {
	out := make([]any, len(rel.Rows))
	for i, row := range rel.Rows {
		out[i] = row[col]
	}
	return out
}
