package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellform/cellform/internal/expr"
	"github.com/cellform/cellform/internal/plan"
	"github.com/cellform/cellform/internal/rows"
)

func employeeSource() *plan.Source {
	return plan.NewSource("employees", []string{"name", "dept", "salary"}, rows.Rows{
		{"Alice", "eng", int64(120)},
		{"Bob", "ops", int64(80)},
		{"Carol", "eng", int64(150)},
		{"Dave", "ops", int64(95)},
		{"Erin", "eng", int64(110)},
	})
}

func mustPlan(t *testing.T, root plan.Operation) *plan.LogicalPlan {
	t.Helper()
	p, err := plan.NewLogicalPlan(root)
	require.NoError(t, err)
	return p
}

func optimize(t *testing.T, p *plan.LogicalPlan) *plan.LogicalPlan {
	t.Helper()
	out, err := New().Optimize(p)
	require.NoError(t, err)
	return out
}

func TestPredicatePushdownThroughSelect(t *testing.T) {
	src := employeeSource()
	sel, err := plan.NewSelect(src, []string{"name", "salary"})
	require.NoError(t, err)
	f, err := plan.NewFilter(sel, expr.Col("salary").Gt(expr.Lit(100)))
	require.NoError(t, err)

	out, err := NewWithRules(&PredicatePushdownRule{}).Optimize(mustPlan(t, f))
	require.NoError(t, err)

	root, ok := out.Root().(*plan.Select)
	require.True(t, ok, "Filter(Select) should become Select(Filter)")
	_, ok = root.Inputs()[0].(*plan.Filter)
	assert.True(t, ok)
}

func TestStackedFiltersCollapse(t *testing.T) {
	src := employeeSource()
	f1, err := plan.NewFilter(src, expr.Col("salary").Gt(expr.Lit(90)))
	require.NoError(t, err)
	f2, err := plan.NewFilter(f1, expr.Col("dept").Eq(expr.Lit("eng")))
	require.NoError(t, err)

	out, err := NewWithRules(&PredicatePushdownRule{}).Optimize(mustPlan(t, f2))
	require.NoError(t, err)

	root, ok := out.Root().(*plan.Filter)
	require.True(t, ok)
	_, ok = root.Inputs()[0].(*plan.Source)
	assert.True(t, ok, "two filters collapse into one")
	b, ok := root.Predicate().(*expr.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, expr.OpAnd, b.Op())
}

func TestProjectionPushdown(t *testing.T) {
	src := employeeSource()
	inner, err := plan.NewSelect(src, []string{"name", "dept", "salary"})
	require.NoError(t, err)
	outer, err := plan.NewSelect(inner, []string{"name"})
	require.NoError(t, err)

	out, err := NewWithRules(&ProjectionPushdownRule{}).Optimize(mustPlan(t, outer))
	require.NoError(t, err)

	root, ok := out.Root().(*plan.Select)
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, root.Columns())
	_, ok = root.Inputs()[0].(*plan.Source)
	assert.True(t, ok, "stacked selects merge into one")
}

func TestLimitSortFusion(t *testing.T) {
	src := employeeSource()
	f, err := plan.NewFilter(src, expr.Col("dept").Eq(expr.Lit("eng")))
	require.NoError(t, err)
	s, err := plan.NewSort(f, []plan.SortKey{{Column: "salary", Direction: plan.Desc}})
	require.NoError(t, err)
	l, err := plan.NewLimit(s, 3, plan.Head)
	require.NoError(t, err)

	out := optimize(t, mustPlan(t, l))

	root, ok := out.Root().(*plan.Sort)
	require.True(t, ok, "Limit(Sort(Filter)) should fuse into one Sort")
	limit, hasLimit := root.Limit()
	require.True(t, hasLimit)
	assert.Equal(t, 3, limit)
	assert.NotNil(t, root.Predicate(), "filter predicate fused into the sort")
	_, ok = root.Inputs()[0].(*plan.Source)
	assert.True(t, ok, "the Filter node is gone")
}

func TestTailLimitDoesNotFuse(t *testing.T) {
	src := employeeSource()
	s, err := plan.NewSort(src, []plan.SortKey{{Column: "salary", Direction: plan.Desc}})
	require.NoError(t, err)
	l, err := plan.NewLimit(s, 2, plan.Tail)
	require.NoError(t, err)

	out := optimize(t, mustPlan(t, l))
	_, ok := out.Root().(*plan.Limit)
	assert.True(t, ok, "tail limits keep the other end and must not fuse")
}

func TestIdentitySelectEliminated(t *testing.T) {
	src := employeeSource()
	sel, err := plan.NewSelect(src, []string{"name", "dept", "salary"})
	require.NoError(t, err)

	out := optimize(t, mustPlan(t, sel))
	_, ok := out.Root().(*plan.Source)
	assert.True(t, ok, "identity projection disappears")
}

func TestTautologicalFilterEliminated(t *testing.T) {
	src := employeeSource()
	f, err := plan.NewFilter(src, expr.Lit(true))
	require.NoError(t, err)

	out := optimize(t, mustPlan(t, f))
	_, ok := out.Root().(*plan.Source)
	assert.True(t, ok, "always-true filter disappears")
}

func TestStackedSortsCollapse(t *testing.T) {
	src := employeeSource()
	inner, err := plan.NewSort(src, []plan.SortKey{{Column: "name", Direction: plan.Asc}})
	require.NoError(t, err)
	outer, err := plan.NewSort(inner, []plan.SortKey{{Column: "salary", Direction: plan.Desc}})
	require.NoError(t, err)

	out := optimize(t, mustPlan(t, outer))
	root, ok := out.Root().(*plan.Sort)
	require.True(t, ok)
	assert.Equal(t, "salary", root.Keys()[0].Column, "outer keys win")
	_, ok = root.Inputs()[0].(*plan.Source)
	assert.True(t, ok)
}

func TestStackedSortsKeepInnerLimit(t *testing.T) {
	src := employeeSource()
	inner, err := plan.NewSort(src, []plan.SortKey{{Column: "name", Direction: plan.Asc}})
	require.NoError(t, err)
	inner = inner.WithLimit(2)
	outer, err := plan.NewSort(inner, []plan.SortKey{{Column: "salary", Direction: plan.Desc}})
	require.NoError(t, err)

	out := optimize(t, mustPlan(t, outer))
	root, ok := out.Root().(*plan.Sort)
	require.True(t, ok)
	child, ok := root.Inputs()[0].(*plan.Sort)
	require.True(t, ok, "a limited inner sort truncates in its own order and survives")
	n, hasLimit := child.Limit()
	require.True(t, hasLimit)
	assert.Equal(t, 2, n)
}

func fixtures(t *testing.T) []plan.Operation {
	t.Helper()
	src := employeeSource()

	sel, err := plan.NewSelect(src, []string{"name", "salary"})
	require.NoError(t, err)
	pushable, err := plan.NewFilter(sel, expr.Col("salary").Gt(expr.Lit(100)))
	require.NoError(t, err)

	f, err := plan.NewFilter(src, expr.Col("dept").Eq(expr.Lit("eng")))
	require.NoError(t, err)
	s, err := plan.NewSort(f, []plan.SortKey{{Column: "salary", Direction: plan.Desc}})
	require.NoError(t, err)
	fused, err := plan.NewLimit(s, 2, plan.Head)
	require.NoError(t, err)

	identity, err := plan.NewSelect(src, []string{"name", "dept", "salary"})
	require.NoError(t, err)

	f1, err := plan.NewFilter(src, expr.Col("salary").Ge(expr.Lit(90)))
	require.NoError(t, err)
	f2, err := plan.NewFilter(f1, expr.Col("salary").Le(expr.Lit(130)))
	require.NoError(t, err)

	return []plan.Operation{pushable, fused, identity, f2}
}

func TestOptimizeIdempotent(t *testing.T) {
	for _, root := range fixtures(t) {
		once := optimize(t, mustPlan(t, root))
		twice := optimize(t, once)

		a, err := plan.MarshalPlan(once)
		require.NoError(t, err)
		b, err := plan.MarshalPlan(twice)
		require.NoError(t, err)
		assert.JSONEq(t, string(a), string(b), root.String())
	}
}

func TestOptimizePreservesSemantics(t *testing.T) {
	for _, root := range fixtures(t) {
		before, err := plan.Evaluate(root)
		require.NoError(t, err, root.String())

		optimized := optimize(t, mustPlan(t, root))
		after, err := plan.Evaluate(optimized.Root())
		require.NoError(t, err, root.String())

		assert.Equal(t, before.Schema, after.Schema, root.String())
		assert.Equal(t, before.Rows, after.Rows, root.String())
	}
}

func TestRuleNames(t *testing.T) {
	names := []string{}
	for _, r := range []Rule{
		&PredicatePushdownRule{}, &ProjectionPushdownRule{}, &FusionRule{}, &SimplificationRule{},
	} {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"predicate_pushdown", "projection_pushdown", "fusion", "simplification"}, names)
}
