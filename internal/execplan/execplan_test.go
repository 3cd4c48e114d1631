package execplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cferrors "github.com/cellform/cellform/internal/errors"
	"github.com/cellform/cellform/internal/sheet"
)

func create(name string) sheet.Op {
	return sheet.CreateSheet{Name: name, Rows: 4, Cols: 2}
}

func values(name string) sheet.Op {
	return sheet.SetValues{Sheet: name, Values: [][]any{{"a", "b"}}}
}

func formula(name, ref string) sheet.Op {
	return sheet.SetFormula{Sheet: name, Row: 1, Formula: "=SUM(A:A)", Ref: ref}
}

func formulaSheets(t *testing.T, p *Plan) []string {
	t.Helper()
	for _, step := range p.Steps {
		if step.Type != StepWriteFormulas {
			continue
		}
		out := make([]string, len(step.Ops))
		for i, op := range step.Ops {
			out[i] = op.(sheet.SetFormula).Sheet
		}
		return out
	}
	return nil
}

func TestBuildStageOrder(t *testing.T) {
	// Interleaved input still produces the fixed stage order.
	ops := []sheet.Op{
		create("src"),
		values("src"),
		create("out"),
		formula("out", "src"),
		sheet.NamedRange{Name: "Result", Sheet: "out", Bounds: sheet.Range{RowEnd: 3, ColEnd: 1}},
	}

	p, err := Build(ops, "out")
	require.NoError(t, err)

	kinds := make([]StepType, len(p.Steps))
	for i, step := range p.Steps {
		kinds[i] = step.Type
	}
	assert.Equal(t, []StepType{
		StepCreateSheets,
		StepWriteSourceData,
		StepWriteFormulas,
		StepRegisterNamedRanges,
	}, kinds)
	assert.Equal(t, "out", p.MainSheet)
	assert.Equal(t, []string{"out", "src"}, p.Steps[0].TargetSheets)
}

func TestBuildEmpty(t *testing.T) {
	p, err := Build(nil, "")
	require.NoError(t, err)
	assert.Empty(t, p.Steps)
}

func TestBuildSkipsEmptyStages(t *testing.T) {
	p, err := Build([]sheet.Op{create("src"), values("src")}, "src")
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, StepCreateSheets, p.Steps[0].Type)
	assert.Equal(t, StepWriteSourceData, p.Steps[1].Type)
}

func TestDuplicateSheetNames(t *testing.T) {
	_, err := Build([]sheet.Op{create("src"), create("src")}, "")
	var verr *cferrors.PlanValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"src"}, verr.Names)
}

func TestValuesOnUnknownSheet(t *testing.T) {
	_, err := Build([]sheet.Op{create("src"), values("other")}, "")
	var verr *cferrors.PlanValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"other"}, verr.Names)
}

func TestFormulaOnUnknownSheet(t *testing.T) {
	_, err := Build([]sheet.Op{create("src"), formula("ghost", "src")}, "")
	var verr *cferrors.PlanValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"ghost"}, verr.Names)
}

func TestDanglingFormulaRef(t *testing.T) {
	_, err := Build([]sheet.Op{create("out"), formula("out", "missing")}, "")
	var verr *cferrors.PlanValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"missing"}, verr.Names)
	assert.Contains(t, verr.Error(), "out")
}

func TestNamedRangeOnUnknownSheet(t *testing.T) {
	_, err := Build([]sheet.Op{
		create("src"),
		sheet.NamedRange{Name: "Result", Sheet: "gone"},
	}, "")
	var verr *cferrors.PlanValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"gone"}, verr.Names)
}

func TestFormulaTopologicalOrder(t *testing.T) {
	// c reads b reads a reads src. Input order is reversed; the plan must
	// still write a's formulas first. src carries only static values, so
	// the dependency on it never blocks a.
	ops := []sheet.Op{
		create("src"), create("a"), create("b"), create("c"),
		values("src"),
		formula("c", "b"),
		formula("b", "a"),
		formula("a", "src"),
	}

	p, err := Build(ops, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, formulaSheets(t, p))
}

func TestFormulaOrderLexicographicTieBreak(t *testing.T) {
	ops := []sheet.Op{
		create("src"), create("zeta"), create("alpha"),
		values("src"),
		formula("zeta", "src"),
		formula("alpha", "src"),
	}

	p, err := Build(ops, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, formulaSheets(t, p))
}

func TestFormulaOrderPreservedWithinSheet(t *testing.T) {
	ops := []sheet.Op{
		create("out"),
		sheet.SetFormula{Sheet: "out", Row: 0, Formula: "=1"},
		sheet.SetFormula{Sheet: "out", Row: 1, Formula: "=2"},
		sheet.SetFormula{Sheet: "out", Row: 2, Formula: "=3"},
	}

	p, err := Build(ops, "out")
	require.NoError(t, err)
	fs := p.Steps[len(p.Steps)-1].Ops
	require.Len(t, fs, 3)
	for i, op := range fs {
		assert.Equal(t, i, op.(sheet.SetFormula).Row)
	}
}

func TestCycleDetection(t *testing.T) {
	ops := []sheet.Op{
		create("a"), create("b"),
		formula("a", "b"),
		formula("b", "a"),
	}

	_, err := Build(ops, "")
	var verr *cferrors.PlanValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"a", "b"}, verr.Names)
	assert.Contains(t, verr.Error(), "circular")
}

func TestSelfReferenceIsNotACycle(t *testing.T) {
	// A formula reading its own sheet does not constrain cross-sheet order.
	ops := []sheet.Op{create("a"), formula("a", "a")}
	p, err := Build(ops, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, formulaSheets(t, p))
}

func TestPlanRoundTrip(t *testing.T) {
	ops := []sheet.Op{
		create("src"), create("out"),
		values("src"),
		formula("out", "src"),
		sheet.NamedRange{Name: "Result", Sheet: "out", Bounds: sheet.Range{RowEnd: 3, ColEnd: 1}},
	}
	p, err := Build(ops, "out")
	require.NoError(t, err)

	data, err := MarshalPlan(p)
	require.NoError(t, err)

	got, err := UnmarshalPlan(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestExplain(t *testing.T) {
	ops := []sheet.Op{
		create("src"), create("out"),
		values("src"),
		formula("out", "src"),
	}
	p, err := Build(ops, "out")
	require.NoError(t, err)

	summary := p.Explain()
	assert.Contains(t, summary, "3 steps")
	assert.Contains(t, summary, "main sheet: out")
	assert.Contains(t, summary, "write_formulas")

	empty := &Plan{}
	assert.Contains(t, empty.Explain(), "empty execution plan")
}
