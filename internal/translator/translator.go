// Package translator lowers an optimized logical plan into spreadsheet
// operations. Each operation kind has a dedicated strategy that synthesizes
// dynamic-array formulas over the materialized ranges of its inputs. The
// walk is post-order with per-call memoization, so shared subtrees are
// materialized exactly once and two concurrent translations never share
// state.
package translator

import (
	"fmt"

	"github.com/cellform/cellform/internal/config"
	cferrors "github.com/cellform/cellform/internal/errors"
	"github.com/cellform/cellform/internal/expr"
	"github.com/cellform/cellform/internal/plan"
	"github.com/cellform/cellform/internal/rows"
	"github.com/cellform/cellform/internal/sheet"
)

// Materialization records where an operation's output lives: the sheet
// holding it, the range it occupies (header row included), and the column
// names of the output.
type Materialization struct {
	Sheet  string
	Output sheet.Range
	Schema []string
}

// Result is the translator's output: the flat operation sequence plus the
// sheet and schema of the root materialization.
type Result struct {
	Ops       []sheet.Op
	MainSheet string
	Schema    []string
}

// Translator converts logical plans to spreadsheet operation sequences.
type Translator struct {
	cfg config.Config
}

// New creates a Translator using the global configuration.
func New() *Translator {
	return NewWithConfig(config.GetGlobalConfig())
}

// NewWithConfig creates a Translator with an explicit configuration.
func NewWithConfig(cfg config.Config) *Translator {
	return &Translator{cfg: cfg}
}

// Translate walks the plan and emits the spreadsheet operations that
// reproduce its result. The output is deterministic: the same plan yields
// a byte-identical operation sequence on every call. Source data embedded
// at construction is written verbatim; to supply rows separately, for
// example for a plan reconstructed from its canonical form, use
// TranslateWithData.
func (t *Translator) Translate(p *plan.LogicalPlan) (*Result, error) {
	return t.TranslateWithData(p, nil)
}

// TranslateWithData translates a plan with per-source rows resolved from
// data by source id. An entry in data wins over rows embedded in the Source
// node; sources without an entry fall back to their embedded rows. Canonical
// serialization drops source data, so this is the way to translate a plan
// that went through a marshal/unmarshal round trip.
func (t *Translator) TranslateWithData(p *plan.LogicalPlan, data map[string]rows.Rows) (*Result, error) {
	ctx := &context{
		cfg:  t.cfg,
		data: data,
		memo: make(map[plan.Operation]Materialization),
	}

	root, err := ctx.translate(p.Root())
	if err != nil {
		return nil, err
	}

	if t.cfg.ResultRangeName != "" {
		ctx.ops = append(ctx.ops, sheet.NamedRange{
			Name:   t.cfg.ResultRangeName,
			Sheet:  root.Sheet,
			Bounds: root.Output,
		})
	}

	if err := ctx.checkFormulaLengths(); err != nil {
		return nil, err
	}

	return &Result{Ops: ctx.ops, MainSheet: root.Sheet, Schema: root.Schema}, nil
}

// context carries the per-call translation state: emitted operations, the
// node-identity memo, externally supplied source rows, and the sheet-name
// counter.
type context struct {
	cfg     config.Config
	ops     []sheet.Op
	data    map[string]rows.Rows
	memo    map[plan.Operation]Materialization
	counter int
}

// sourceData resolves the rows for a source node. Externally supplied rows
// take precedence over rows embedded at construction.
func (c *context) sourceData(op *plan.Source) rows.Rows {
	if d, ok := c.data[op.SourceID()]; ok {
		return d
	}
	return op.Data()
}

func (c *context) translate(op plan.Operation) (Materialization, error) {
	if m, ok := c.memo[op]; ok {
		return m, nil
	}

	inputs := op.Inputs()
	mats := make([]Materialization, len(inputs))
	for i, in := range inputs {
		m, err := c.translate(in)
		if err != nil {
			return Materialization{}, err
		}
		mats[i] = m
	}

	var (
		result Materialization
		err    error
	)
	switch v := op.(type) {
	case *plan.Source:
		result, err = c.translateSource(v)
	case *plan.Select:
		result, err = c.translateSelect(v, mats[0])
	case *plan.Filter:
		result, err = c.translateFilter(v, mats[0])
	case *plan.Join:
		result, err = c.translateJoin(v, mats[0], mats[1])
	case *plan.GroupBy:
		result, err = c.translateGroupBy(v, mats[0])
	case *plan.Aggregate:
		result, err = c.translateAggregate(v, mats[0])
	case *plan.Sort:
		result, err = c.translateSort(v, mats[0])
	case *plan.Limit:
		result, err = c.translateLimit(v, mats[0])
	case *plan.WithColumn:
		result, err = c.translateWithColumn(v, mats[0])
	case *plan.Union:
		result, err = c.translateUnion(v, mats[0], mats[1])
	case *plan.Pivot:
		result, err = c.translatePivot(v, mats[0])
	case *plan.Melt:
		result, err = c.translateMelt(v, mats[0])
	case *plan.Window:
		result, err = c.translateWindow(v, mats[0])
	default:
		err = cferrors.NewUnsupportedOperationError(op.Kind().String(), "operation kind")
	}
	if err != nil {
		return Materialization{}, err
	}

	c.memo[op] = result
	return result, nil
}

// nextSheetName allocates a fresh sheet name for an operation's output.
func (c *context) nextSheetName(op plan.Operation) string {
	name := fmt.Sprintf("%s%d_%s", c.cfg.SheetPrefix, c.counter, op.Kind())
	c.counter++
	return name
}

func (c *context) checkFormulaLengths() error {
	if c.cfg.MaxFormulaLength <= 0 {
		return nil
	}
	for _, op := range c.ops {
		if f, ok := op.(sheet.SetFormula); ok && len(f.Formula) > c.cfg.MaxFormulaLength {
			return cferrors.NewUnsupportedOperationError(
				"translate",
				fmt.Sprintf("formula of %d characters on sheet %q exceeds the configured maximum %d",
					len(f.Formula), f.Sheet, c.cfg.MaxFormulaLength),
			)
		}
	}
	return nil
}

// colRangeRef renders the data-only (header excluded) range of a single
// column inside a materialized block, qualified with its sheet name.
func colRangeRef(sheetName string, r sheet.Range, colIdx int) string {
	start := r.Row + 1
	end := r.RowEnd
	if end < start {
		end = start
	}
	col := r.Col + colIdx
	return sheet.Ref{Sheet: sheetName, Range: sheet.Range{Row: start, Col: col, RowEnd: end, ColEnd: col}}.String()
}

// dataRangeRef renders the data-only range of a whole materialized block.
func dataRangeRef(sheetName string, r sheet.Range) string {
	start := r.Row + 1
	end := r.RowEnd
	if end < start {
		end = start
	}
	return sheet.Ref{Sheet: sheetName, Range: sheet.Range{Row: start, Col: r.Col, RowEnd: end, ColEnd: r.ColEnd}}.String()
}

// cellRef renders a single sheet-qualified cell.
func cellRef(sheetName string, row, col int) string {
	return sheet.Ref{Sheet: sheetName, Range: sheet.Cell(row, col)}.String()
}

// columnEnv resolves column names to data-only range references for
// expression compilation.
func columnEnv(sheetName string, r sheet.Range, schema []string) expr.ColumnRefFunc {
	return func(name string) (string, error) {
		for i, col := range schema {
			if col == name {
				return colRangeRef(sheetName, r, i), nil
			}
		}
		return "", cferrors.NewSchemaValidationError("expression", []string{name}, schema)
	}
}

// compilePredicate lowers a predicate expression to a boolean-array formula
// fragment over the input materialization.
func compilePredicate(p expr.Expr, in Materialization) (string, error) {
	return expr.Compile(p, columnEnv(in.Sheet, in.Output, in.Schema))
}

func columnIndex(schema []string, name string) (int, error) {
	for i, col := range schema {
		if col == name {
			return i, nil
		}
	}
	return 0, cferrors.NewSchemaValidationError("translate", []string{name}, schema)
}

// distinctCount walks the unary input chain down to a Source and counts the
// distinct values of a column in its data. Reports false when no source with
// data is reachable or the column is absent.
func (c *context) distinctCount(op plan.Operation, column string) (int, bool) {
	cur := op
	for cur != nil {
		if src, ok := cur.(*plan.Source); ok {
			idx := -1
			for i, col := range src.Schema() {
				if col == column {
					idx = i
					break
				}
			}
			data := c.sourceData(src)
			if idx < 0 || len(data) == 0 {
				return 0, false
			}
			seen := make(map[any]struct{}, len(data))
			for _, row := range data {
				if idx < len(row) {
					seen[row[idx]] = struct{}{}
				}
			}
			return len(seen), true
		}
		ins := cur.Inputs()
		if len(ins) == 0 {
			return 0, false
		}
		cur = ins[0]
	}
	return 0, false
}
