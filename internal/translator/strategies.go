package translator

import (
	"fmt"
	"strings"

	cferrors "github.com/cellform/cellform/internal/errors"
	"github.com/cellform/cellform/internal/plan"
	"github.com/cellform/cellform/internal/sheet"
)

// Conditional-aggregate equivalents of the grouped aggregation functions.
var conditionalAggFuncs = map[string]string{
	"sum":   "SUMIFS",
	"mean":  "AVERAGEIFS",
	"count": "COUNTIFS",
	"min":   "MINIFS",
	"max":   "MAXIFS",
}

// Scalar equivalents used by whole-range aggregation.
var scalarAggFuncs = map[string]string{
	"sum":   "SUM",
	"mean":  "AVERAGE",
	"count": "COUNTA",
	"min":   "MIN",
	"max":   "MAX",
}

var supportedAggFuncs = []string{"sum", "mean", "count", "min", "max"}

func headerRow(schema []string) [][]any {
	row := make([]any, len(schema))
	for i, col := range schema {
		row[i] = col
	}
	return [][]any{row}
}

// translateSource writes the header and literal rows verbatim. It is the
// only strategy that emits static data.
func (c *context) translateSource(op *plan.Source) (Materialization, error) {
	schema := op.Schema()
	if len(schema) == 0 {
		return Materialization{}, fmt.Errorf("translating source %q: a schema is required", op.SourceID())
	}

	data := c.sourceData(op)
	if c.cfg.MaxSourceRows > 0 && len(data) > c.cfg.MaxSourceRows {
		return Materialization{}, cferrors.NewPlanValidationError(
			fmt.Sprintf("source has %d rows, exceeding the configured maximum %d", len(data), c.cfg.MaxSourceRows),
			op.SourceID(),
		)
	}

	name := c.nextSheetName(op)
	numRows := len(data)
	numCols := len(schema)

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows + 1, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(schema)},
	)
	if numRows > 0 {
		values := make([][]any, numRows)
		for i, row := range data {
			values[i] = append([]any(nil), row...)
		}
		c.ops = append(c.ops, sheet.SetValues{Sheet: name, Row: 1, Col: 0, Values: values})
	}

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: schema}, nil
}

// translateSelect projects the requested columns through a single FILTER
// formula that also drops blank trailing rows and applies any pushed-down
// predicate.
func (c *context) translateSelect(op *plan.Select, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)
	columns := op.Columns()
	numCols := len(columns)
	numRows := in.Output.RowEnd - in.Output.Row + 1

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(columns)},
	)

	colRefs := make([]string, numCols)
	for i, col := range columns {
		idx, err := columnIndex(in.Schema, col)
		if err != nil {
			return Materialization{}, err
		}
		colRefs[i] = colRangeRef(in.Sheet, in.Output, idx)
	}

	// Rows blank in the first input column are padding from upstream
	// fixed-size allocations, not data.
	conditions := []string{colRangeRef(in.Sheet, in.Output, 0) + `<>""`}
	if op.Predicate() != nil {
		pred, err := compilePredicate(op.Predicate(), in)
		if err != nil {
			return Materialization{}, err
		}
		conditions = append(conditions, pred)
	}
	condition := joinConditions(conditions, "*")

	arrayExpr := colRefs[0]
	if numCols > 1 {
		arrayExpr = "{" + strings.Join(colRefs, ", ") + "}"
	}
	c.ops = append(c.ops, sheet.SetFormula{
		Sheet: name, Row: 1, Col: 0,
		Formula: fmt.Sprintf("=FILTER(%s, %s)", arrayExpr, condition),
		Ref:     in.Sheet,
	})

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: columns}, nil
}

// translateFilter emits a single FILTER over the full input range.
func (c *context) translateFilter(op *plan.Filter, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)
	numCols := len(in.Schema)
	numRows := in.Output.RowEnd - in.Output.Row + 1

	condition, err := compilePredicate(op.Predicate(), in)
	if err != nil {
		return Materialization{}, err
	}

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(in.Schema)},
		sheet.SetFormula{
			Sheet: name, Row: 1, Col: 0,
			Formula: fmt.Sprintf("=FILTER(%s, %s)", dataRangeRef(in.Sheet, in.Output), condition),
			Ref:     in.Sheet,
		},
	)

	end := in.Output.RowEnd - in.Output.Row
	if end < 0 {
		end = 0
	}
	out := sheet.Range{Row: 0, Col: 0, RowEnd: end, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: in.Schema}, nil
}

func joinConditions(conditions []string, operator string) string {
	if len(conditions) == 1 {
		return conditions[0]
	}
	parts := make([]string, len(conditions))
	for i, cond := range conditions {
		parts[i] = "(" + cond + ")"
	}
	return strings.Join(parts, operator)
}

// joinShape captures the ranges and schemas a join strategy works over.
type joinShape struct {
	op           *plan.Join
	left, right  Materialization
	outputSchema []string
}

func (s joinShape) leftKey() string  { return s.op.LeftOn()[0] }
func (s joinShape) rightKey() string { return s.op.RightOn()[0] }

func (s joinShape) isRightKey(col string) bool {
	for _, k := range s.op.RightOn() {
		if k == col {
			return true
		}
	}
	return false
}

// translateJoin lowers joins to lookup-with-default formulas. Left joins
// copy the left side and look up right columns; inner joins add a second
// stage filter; right joins are symmetric; outer joins union a left join
// with an anti-join of unmatched right rows.
func (c *context) translateJoin(op *plan.Join, left, right Materialization) (Materialization, error) {
	outputSchema := append([]string(nil), left.Schema...)
	shape := joinShape{op: op, left: left, right: right}
	for _, col := range right.Schema {
		if !shape.isRightKey(col) {
			outputSchema = append(outputSchema, col)
		}
	}
	shape.outputSchema = outputSchema

	switch op.Type() {
	case plan.JoinRight:
		return c.translateRightJoin(shape)
	case plan.JoinOuter:
		return c.translateOuterJoin(shape)
	default:
		return c.translateLeftOrInnerJoin(shape)
	}
}

// emitLeftJoinColumns writes the left copy plus per-column XLOOKUPs onto an
// already-created sheet. Shared by the left, inner, and outer strategies.
func (c *context) emitLeftJoinColumns(s joinShape, sheetName string) error {
	for j := range s.left.Schema {
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: sheetName, Row: 1, Col: j,
			Formula: fmt.Sprintf("=ARRAYFORMULA(%s)", colRangeRef(s.left.Sheet, s.left.Output, j)),
			Ref:     s.left.Sheet,
		})
	}

	leftKeyIdx, err := columnIndex(s.left.Schema, s.leftKey())
	if err != nil {
		return err
	}
	rightKeyIdx, err := columnIndex(s.right.Schema, s.rightKey())
	if err != nil {
		return err
	}
	lookupArray := colRangeRef(s.left.Sheet, s.left.Output, leftKeyIdx)
	lookupRange := colRangeRef(s.right.Sheet, s.right.Output, rightKeyIdx)

	col := len(s.left.Schema)
	for i, name := range s.right.Schema {
		if s.isRightKey(name) {
			continue
		}
		returnArray := colRangeRef(s.right.Sheet, s.right.Output, i)
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: sheetName, Row: 1, Col: col,
			Formula: fmt.Sprintf(`=ARRAYFORMULA(XLOOKUP(%s, %s, %s, "%s"))`,
				lookupArray, lookupRange, returnArray, c.cfg.LookupMissDefault),
			Ref: s.right.Sheet,
		})
		col++
	}
	return nil
}

func (c *context) translateLeftOrInnerJoin(s joinShape) (Materialization, error) {
	name := c.nextSheetName(s.op)
	numRows := s.left.Output.RowEnd - s.left.Output.Row + 1
	numCols := len(s.outputSchema)

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(s.outputSchema)},
	)
	if err := c.emitLeftJoinColumns(s, name); err != nil {
		return Materialization{}, err
	}

	intermediate := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	if s.op.Type() != plan.JoinInner {
		return Materialization{Sheet: name, Output: intermediate, Schema: s.outputSchema}, nil
	}

	// Inner join: a second stage keeps only rows where any looked-up right
	// column came back non-empty.
	helper := name + "_filtered"
	c.ops = append(c.ops,
		sheet.CreateSheet{Name: helper, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: helper, Row: 0, Col: 0, Values: headerRow(s.outputSchema)},
	)

	var checks []string
	for _, col := range s.right.Schema {
		if s.isRightKey(col) {
			continue
		}
		idx, err := columnIndex(s.outputSchema, col)
		if err != nil {
			return Materialization{}, err
		}
		checks = append(checks, fmt.Sprintf(`(%s<>"")`, colRangeRef(name, intermediate, idx)))
	}
	if len(checks) > 0 {
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: helper, Row: 1, Col: 0,
			Formula: fmt.Sprintf("=FILTER(%s, %s)",
				dataRangeRef(name, intermediate), strings.Join(checks, "+")),
			Ref: name,
		})
	}

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	return Materialization{Sheet: helper, Output: out, Schema: s.outputSchema}, nil
}

func (c *context) translateRightJoin(s joinShape) (Materialization, error) {
	name := c.nextSheetName(s.op)
	numRows := s.right.Output.RowEnd - s.right.Output.Row + 1
	numCols := len(s.outputSchema)

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(s.outputSchema)},
	)

	leftKeyIdx, err := columnIndex(s.left.Schema, s.leftKey())
	if err != nil {
		return Materialization{}, err
	}
	rightKeyIdx, err := columnIndex(s.right.Schema, s.rightKey())
	if err != nil {
		return Materialization{}, err
	}
	lookupArray := colRangeRef(s.right.Sheet, s.right.Output, rightKeyIdx)
	searchRange := colRangeRef(s.left.Sheet, s.left.Output, leftKeyIdx)

	for j := range s.left.Schema {
		returnRef := colRangeRef(s.left.Sheet, s.left.Output, j)
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: name, Row: 1, Col: j,
			Formula: fmt.Sprintf(`=ARRAYFORMULA(XLOOKUP(%s, %s, %s, "%s"))`,
				lookupArray, searchRange, returnRef, c.cfg.LookupMissDefault),
			Ref: s.left.Sheet,
		})
	}

	col := len(s.left.Schema)
	for i, colName := range s.right.Schema {
		if s.isRightKey(colName) {
			continue
		}
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: name, Row: 1, Col: col,
			Formula: fmt.Sprintf("=ARRAYFORMULA(%s)", colRangeRef(s.right.Sheet, s.right.Output, i)),
			Ref:     s.right.Sheet,
		})
		col++
	}

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: s.outputSchema}, nil
}

func (c *context) translateOuterJoin(s joinShape) (Materialization, error) {
	name := c.nextSheetName(s.op)
	leftPart := name + "_left"
	antiPart := name + "_anti"
	numCols := len(s.outputSchema)
	leftRows := s.left.Output.RowEnd - s.left.Output.Row + 1
	rightRows := s.right.Output.RowEnd - s.right.Output.Row + 1

	// Stage 1: the left-join half.
	c.ops = append(c.ops,
		sheet.CreateSheet{Name: leftPart, Rows: leftRows, Cols: numCols},
		sheet.SetValues{Sheet: leftPart, Row: 0, Col: 0, Values: headerRow(s.outputSchema)},
	)
	if err := c.emitLeftJoinColumns(s, leftPart); err != nil {
		return Materialization{}, err
	}
	leftPartRange := sheet.Range{Row: 0, Col: 0, RowEnd: leftRows, ColEnd: numCols - 1}

	// Stage 2: anti-join of right rows whose key matches no left key. Left
	// columns stay blank for these rows.
	c.ops = append(c.ops,
		sheet.CreateSheet{Name: antiPart, Rows: rightRows, Cols: numCols},
		sheet.SetValues{Sheet: antiPart, Row: 0, Col: 0, Values: headerRow(s.outputSchema)},
	)

	leftKeyIdx, err := columnIndex(s.left.Schema, s.leftKey())
	if err != nil {
		return Materialization{}, err
	}
	rightKeyIdx, err := columnIndex(s.right.Schema, s.rightKey())
	if err != nil {
		return Materialization{}, err
	}
	antiCondition := fmt.Sprintf("ISNA(XMATCH(%s, %s))",
		colRangeRef(s.right.Sheet, s.right.Output, rightKeyIdx),
		colRangeRef(s.left.Sheet, s.left.Output, leftKeyIdx))

	for j, colName := range s.outputSchema {
		if j < len(s.left.Schema) {
			continue
		}
		idx, err := columnIndex(s.right.Schema, colName)
		if err != nil {
			return Materialization{}, err
		}
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: antiPart, Row: 1, Col: j,
			Formula: fmt.Sprintf("=FILTER(%s, %s)",
				colRangeRef(s.right.Sheet, s.right.Output, idx), antiCondition),
			Ref: s.right.Sheet,
		})
	}
	antiPartRange := sheet.Range{Row: 0, Col: 0, RowEnd: rightRows, ColEnd: numCols - 1}

	// Stage 3: vertical union of the two halves.
	totalRows := leftRows + rightRows
	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: totalRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(s.outputSchema)},
		sheet.SetFormula{
			Sheet: name, Row: 1, Col: 0,
			Formula: fmt.Sprintf("={%s; %s}",
				dataRangeRef(leftPart, leftPartRange), dataRangeRef(antiPart, antiPartRange)),
			Ref: leftPart,
		},
	)

	out := sheet.Range{Row: 0, Col: 0, RowEnd: totalRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: s.outputSchema}, nil
}

// translateGroupBy extracts distinct keys in first-appearance order via
// UNIQUE, then fills a bounded grid of guarded conditional-aggregate
// formulas, one per output-row slot and aggregation.
func (c *context) translateGroupBy(op *plan.GroupBy, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)

	keys := op.Keys()
	aggs := op.Aggregations()
	outputSchema := append([]string(nil), keys...)
	for _, agg := range aggs {
		outputSchema = append(outputSchema, agg.Out)
	}
	numCols := len(outputSchema)

	maxRows := c.cfg.MaxGroupRows
	if limit, ok := op.Limit(); ok && limit+1 < maxRows {
		maxRows = limit + 1
	}

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: maxRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(outputSchema)},
	)

	keysExpr, err := c.groupKeysExpr(op, in)
	if err != nil {
		return Materialization{}, err
	}
	c.ops = append(c.ops, sheet.SetFormula{
		Sheet: name, Row: 1, Col: 0, Formula: "=" + keysExpr, Ref: in.Sheet,
	})

	for aggIdx, agg := range aggs {
		condFunc, ok := conditionalAggFuncs[agg.Func]
		if !ok {
			return Materialization{}, cferrors.NewUnsupportedOperationError(
				"groupby", fmt.Sprintf("aggregation function %q", agg.Func), supportedAggFuncs...)
		}

		var valueRef string
		if agg.Func != "count" {
			idx, err := columnIndex(in.Schema, agg.Column)
			if err != nil {
				return Materialization{}, err
			}
			valueRef = colRangeRef(in.Sheet, in.Output, idx)
		}

		for slot := 0; slot < maxRows-1; slot++ {
			outputRow := 2 + slot // 1-indexed, data starts below the header

			keyCell := cellRef(name, slot+1, 0)
			var criteria []string
			for keyIdx, key := range keys {
				srcIdx, err := columnIndex(in.Schema, key)
				if err != nil {
					return Materialization{}, err
				}
				criteria = append(criteria, fmt.Sprintf("%s, %s",
					colRangeRef(in.Sheet, in.Output, srcIdx), cellRef(name, slot+1, keyIdx)))
			}

			var inner string
			if agg.Func == "count" {
				inner = fmt.Sprintf("%s(%s)", condFunc, strings.Join(criteria, ", "))
			} else {
				inner = fmt.Sprintf("%s(%s, %s)", condFunc, valueRef, strings.Join(criteria, ", "))
			}

			c.ops = append(c.ops, sheet.SetFormula{
				Sheet: name, Row: outputRow - 1, Col: len(keys) + aggIdx,
				Formula: fmt.Sprintf(`=IF(%s="", "", %s)`, keyCell, inner),
				Ref:     in.Sheet,
			})
		}
	}

	out := sheet.Range{Row: 0, Col: 0, RowEnd: maxRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: outputSchema}, nil
}

// groupKeysExpr builds the distinct-key formula body: a single-range UNIQUE
// when keys are contiguous input columns, an array construction otherwise,
// wrapped in SORT when fused sort keys target group keys only.
func (c *context) groupKeysExpr(op *plan.GroupBy, in Materialization) (string, error) {
	keys := op.Keys()

	indices := make([]int, len(keys))
	for i, key := range keys {
		idx, err := columnIndex(in.Schema, key)
		if err != nil {
			return "", err
		}
		indices[i] = idx
	}

	var keysRef string
	contiguous := true
	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			contiguous = false
			break
		}
	}
	if contiguous {
		start := in.Output.Row + 1
		end := in.Output.RowEnd
		if end < start {
			end = start
		}
		keysRef = sheet.Ref{Sheet: in.Sheet, Range: sheet.Range{
			Row: start, Col: in.Output.Col + indices[0],
			RowEnd: end, ColEnd: in.Output.Col + indices[len(indices)-1],
		}}.String()
	} else {
		refs := make([]string, len(indices))
		for i, idx := range indices {
			refs[i] = colRangeRef(in.Sheet, in.Output, idx)
		}
		keysRef = "{" + strings.Join(refs, ", ") + "}"
	}

	uniqueExpr := fmt.Sprintf("UNIQUE(%s)", keysRef)

	// Honor fused sort keys when they reference group keys; a sort over an
	// aggregated column cannot be expressed inside the key extraction.
	sortKeys := op.SortKeys()
	if len(sortKeys) == 0 {
		return uniqueExpr, nil
	}
	var params []string
	for _, sk := range sortKeys {
		pos := -1
		for i, key := range keys {
			if key == sk.Column {
				pos = i + 1 // 1-based inside the UNIQUE output
				break
			}
		}
		if pos < 0 {
			return uniqueExpr, nil
		}
		asc := "TRUE"
		if sk.Direction == plan.Desc {
			asc = "FALSE"
		}
		params = append(params, fmt.Sprintf("%d, %s", pos, asc))
	}
	return fmt.Sprintf("SORT(%s, %s)", uniqueExpr, strings.Join(params, ", ")), nil
}

// translateAggregate emits one scalar formula per aggregation over the
// whole input range.
func (c *context) translateAggregate(op *plan.Aggregate, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)

	aggs := op.Aggregations()
	outputSchema := make([]string, len(aggs))
	for i, agg := range aggs {
		outputSchema[i] = agg.Out
	}
	numCols := len(outputSchema)

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: 2, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(outputSchema)},
	)

	for j, agg := range aggs {
		fn, ok := scalarAggFuncs[agg.Func]
		if !ok {
			return Materialization{}, cferrors.NewUnsupportedOperationError(
				"aggregate", fmt.Sprintf("aggregation function %q", agg.Func), supportedAggFuncs...)
		}
		idx, err := columnIndex(in.Schema, agg.Column)
		if err != nil {
			return Materialization{}, err
		}
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: name, Row: 1, Col: j,
			Formula: fmt.Sprintf("=%s(%s)", fn, colRangeRef(in.Sheet, in.Output, idx)),
			Ref:     in.Sheet,
		})
	}

	out := sheet.Range{Row: 0, Col: 0, RowEnd: 2, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: outputSchema}, nil
}

// translateSort emits SORT over a FILTER that drops blank padding rows and
// applies any fused predicate; a fused limit wraps the result in
// ARRAY_CONSTRAIN.
func (c *context) translateSort(op *plan.Sort, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)
	numCols := len(in.Schema)
	numRows := in.Output.RowEnd - in.Output.Row + 1

	limit, hasLimit := op.Limit()
	if hasLimit && limit+1 < numRows {
		numRows = limit + 1
	}

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(in.Schema)},
	)

	var params []string
	for _, key := range op.Keys() {
		idx, err := columnIndex(in.Schema, key.Column)
		if err != nil {
			return Materialization{}, err
		}
		asc := "TRUE"
		if key.Direction == plan.Desc {
			asc = "FALSE"
		}
		params = append(params, fmt.Sprintf("%d, %s", idx+1, asc))
	}

	conditions := []string{colRangeRef(in.Sheet, in.Output, 0) + `<>""`}
	if op.Predicate() != nil {
		pred, err := compilePredicate(op.Predicate(), in)
		if err != nil {
			return Materialization{}, err
		}
		conditions = append(conditions, pred)
	}
	condition := joinConditions(conditions, "*")

	sortExpr := fmt.Sprintf("SORT(FILTER(%s, %s), %s)",
		dataRangeRef(in.Sheet, in.Output), condition, strings.Join(params, ", "))

	formula := "=" + sortExpr
	outputRows := numRows
	if hasLimit {
		formula = fmt.Sprintf("=ARRAY_CONSTRAIN(%s, %d, %d)", sortExpr, limit, numCols)
		if limit < outputRows {
			outputRows = limit
		}
	}

	c.ops = append(c.ops, sheet.SetFormula{
		Sheet: name, Row: 1, Col: 0, Formula: formula, Ref: in.Sheet,
	})

	out := sheet.Range{Row: 0, Col: 0, RowEnd: outputRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: in.Schema}, nil
}

// translateLimit slices the head via ARRAY_CONSTRAIN or the tail via OFFSET.
func (c *context) translateLimit(op *plan.Limit, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)
	numCols := len(in.Schema)
	dataRows := in.Output.RowEnd - in.Output.Row
	numRows := op.Count()
	if dataRows < numRows {
		numRows = dataRows
	}
	numRows++ // header

	dataRef := dataRangeRef(in.Sheet, in.Output)
	var formula string
	if op.End() == plan.Tail {
		formula = fmt.Sprintf("=OFFSET(%s, ROWS(%s) - %d, 0, %d, %d)",
			dataRef, dataRef, op.Count(), op.Count(), numCols)
	} else {
		formula = fmt.Sprintf("=ARRAY_CONSTRAIN(%s, %d, %d)", dataRef, op.Count(), numCols)
	}

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(in.Schema)},
		sheet.SetFormula{Sheet: name, Row: 1, Col: 0, Formula: formula, Ref: in.Sheet},
	)

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: in.Schema}, nil
}

// translateWithColumn copies retained columns and installs the compiled
// expression as an array formula, replacing in place or appending.
func (c *context) translateWithColumn(op *plan.WithColumn, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)

	outputSchema := append([]string(nil), in.Schema...)
	if _, err := columnIndex(in.Schema, op.Column()); err != nil {
		outputSchema = append(outputSchema, op.Column())
	}
	numCols := len(outputSchema)
	numRows := in.Output.RowEnd - in.Output.Row + 1

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(outputSchema)},
	)

	for j, col := range outputSchema {
		if col == op.Column() {
			continue
		}
		idx, err := columnIndex(in.Schema, col)
		if err != nil {
			return Materialization{}, err
		}
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: name, Row: 1, Col: j,
			Formula: fmt.Sprintf("=ARRAYFORMULA(%s)", colRangeRef(in.Sheet, in.Output, idx)),
			Ref:     in.Sheet,
		})
	}

	compiled, err := compilePredicate(op.Expression(), in)
	if err != nil {
		return Materialization{}, err
	}
	outIdx, err := columnIndex(outputSchema, op.Column())
	if err != nil {
		return Materialization{}, err
	}
	c.ops = append(c.ops, sheet.SetFormula{
		Sheet: name, Row: 1, Col: outIdx,
		Formula: fmt.Sprintf("=ARRAYFORMULA(%s)", compiled),
		Ref:     in.Sheet,
	})

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: outputSchema}, nil
}

// translateUnion stacks the two header-stripped ranges vertically. Identical
// schemas are a hard precondition, re-checked here because upstream schema
// inference may have been blind on one side.
func (c *context) translateUnion(op *plan.Union, left, right Materialization) (Materialization, error) {
	if len(left.Schema) != len(right.Schema) {
		return Materialization{}, cferrors.NewUnsupportedOperationError(
			"union", fmt.Sprintf("mismatched schemas %v and %v", left.Schema, right.Schema))
	}
	for i := range left.Schema {
		if left.Schema[i] != right.Schema[i] {
			return Materialization{}, cferrors.NewUnsupportedOperationError(
				"union", fmt.Sprintf("mismatched schemas %v and %v", left.Schema, right.Schema))
		}
	}

	name := c.nextSheetName(op)
	numCols := len(left.Schema)
	leftRows := left.Output.RowEnd - left.Output.Row
	rightRows := right.Output.RowEnd - right.Output.Row
	numRows := leftRows + rightRows + 1

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(left.Schema)},
		sheet.SetFormula{
			Sheet: name, Row: 1, Col: 0,
			Formula: fmt.Sprintf("={%s; %s}",
				dataRangeRef(left.Sheet, left.Output), dataRangeRef(right.Sheet, right.Output)),
			Ref: left.Sheet,
		},
	)

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: left.Schema}, nil
}

// translatePivot uses a two-sheet strategy: a helper sheet transposes the
// sorted distinct pivot values into a header row, and the output sheet pairs
// UNIQUE index values with one two-condition conditional aggregate per cell.
// Grid dimensions come from source data when reachable, else from config.
func (c *context) translatePivot(op *plan.Pivot, in Materialization) (Materialization, error) {
	if len(op.Index()) > 1 {
		return Materialization{}, cferrors.NewUnsupportedOperationError(
			"pivot", fmt.Sprintf("multiple index columns %v", op.Index()), "a single index column")
	}

	aggFunc := op.AggFunc()
	switch aggFunc {
	case "", "first", "sum", "mean", "count", "min", "max":
	default:
		return Materialization{}, cferrors.NewUnsupportedOperationError(
			"pivot", fmt.Sprintf("aggregation function %q", aggFunc),
			append([]string{"first"}, supportedAggFuncs...)...)
	}

	name := c.nextSheetName(op)
	helper := name + "_distinct"

	indexCol := op.Index()[0]
	indexIdx, err := columnIndex(in.Schema, indexCol)
	if err != nil {
		return Materialization{}, err
	}
	pivotIdx, err := columnIndex(in.Schema, op.Columns())
	if err != nil {
		return Materialization{}, err
	}
	valuesIdx, err := columnIndex(in.Schema, op.Values())
	if err != nil {
		return Materialization{}, err
	}

	indexRef := colRangeRef(in.Sheet, in.Output, indexIdx)
	pivotRef := colRangeRef(in.Sheet, in.Output, pivotIdx)
	valuesRef := colRangeRef(in.Sheet, in.Output, valuesIdx)

	nCols := c.cfg.MaxPivotColumns
	if n, ok := c.distinctCount(op, op.Columns()); ok {
		nCols = n
	}
	nRows := c.cfg.MaxGroupRows
	if n, ok := c.distinctCount(op, indexCol); ok {
		nRows = n
	}

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: helper, Rows: 1, Cols: nCols},
		sheet.SetFormula{
			Sheet: helper, Row: 0, Col: 0,
			Formula: fmt.Sprintf("=TRANSPOSE(SORT(UNIQUE(%s), 1, TRUE))", pivotRef),
			Ref:     in.Sheet,
		},
		sheet.CreateSheet{Name: name, Rows: nRows + 1, Cols: nCols + 1},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: [][]any{{indexCol}}},
		sheet.SetFormula{
			Sheet: name, Row: 0, Col: 1,
			Formula: fmt.Sprintf("='%s'!A1:%s1", helper, sheet.ColToLetter(nCols-1)),
			Ref:     helper,
		},
		sheet.SetFormula{
			Sheet: name, Row: 1, Col: 0,
			Formula: fmt.Sprintf("=UNIQUE(%s)", indexRef),
			Ref:     in.Sheet,
		},
	)

	for i := 0; i < nRows; i++ {
		rowNum := i + 2 // 1-indexed, headers occupy row 1
		indexCell := fmt.Sprintf("$A%d", rowNum)

		for j := 0; j < nCols; j++ {
			pivotValCell := fmt.Sprintf("'%s'!%s$1", helper, sheet.ColToLetter(j))

			var formula string
			switch aggFunc {
			case "", "first":
				formula = fmt.Sprintf(
					`=IFERROR(INDEX(FILTER(%s, (%s=%s)*(%s=%s)), 1), "")`,
					valuesRef, indexRef, indexCell, pivotRef, pivotValCell)
			case "sum":
				formula = fmt.Sprintf(
					`=IFERROR(SUMIFS(%s, %s, %s, %s, %s), "")`,
					valuesRef, indexRef, indexCell, pivotRef, pivotValCell)
			case "mean":
				formula = fmt.Sprintf(
					`=IFERROR(AVERAGEIFS(%s, %s, %s, %s, %s), "")`,
					valuesRef, indexRef, indexCell, pivotRef, pivotValCell)
			case "count":
				formula = fmt.Sprintf(
					`=IFERROR(COUNTIFS(%s, %s, %s, %s), "")`,
					indexRef, indexCell, pivotRef, pivotValCell)
			case "min":
				formula = fmt.Sprintf(
					`=IFERROR(MIN(FILTER(%s, (%s=%s)*(%s=%s))), "")`,
					valuesRef, indexRef, indexCell, pivotRef, pivotValCell)
			case "max":
				formula = fmt.Sprintf(
					`=IFERROR(MAX(FILTER(%s, (%s=%s)*(%s=%s))), "")`,
					valuesRef, indexRef, indexCell, pivotRef, pivotValCell)
			}

			c.ops = append(c.ops, sheet.SetFormula{
				Sheet: name, Row: rowNum - 1, Col: j + 1, Formula: formula, Ref: in.Sheet,
			})
		}
	}

	out := sheet.Range{Row: 0, Col: 0, RowEnd: nRows + 1, ColEnd: nCols}
	return Materialization{Sheet: name, Output: out, Schema: nil}, nil
}

// translateMelt fans each input row out to one output row per value column
// using modular indexing: output row r maps to source row r/k and value
// column r%k.
func (c *context) translateMelt(op *plan.Melt, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)

	idVars := op.IDVars()
	valueVars := op.ValueVars()
	if len(valueVars) == 0 {
		// Default to every non-identifier column.
		for _, col := range in.Schema {
			isID := false
			for _, id := range idVars {
				if col == id {
					isID = true
					break
				}
			}
			if !isID {
				valueVars = append(valueVars, col)
			}
		}
	}
	k := len(valueVars)
	if k == 0 {
		return Materialization{}, cferrors.NewUnsupportedOperationError(
			"melt", "no value columns", "at least one value column")
	}

	outputSchema := append(append([]string(nil), idVars...), op.VarName(), op.ValueName())
	numCols := len(outputSchema)
	inputDataRows := in.Output.RowEnd - in.Output.Row
	numRows := inputDataRows * k

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows + 1, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(outputSchema)},
	)

	// Row-count driver for the modular formulas.
	driverCol := valueVars[0]
	if len(idVars) > 0 {
		driverCol = idVars[0]
	}
	driverIdx, err := columnIndex(in.Schema, driverCol)
	if err != nil {
		return Materialization{}, err
	}
	driver := colRangeRef(in.Sheet, in.Output, driverIdx)

	for j, idCol := range idVars {
		idx, err := columnIndex(in.Schema, idCol)
		if err != nil {
			return Materialization{}, err
		}
		colRef := colRangeRef(in.Sheet, in.Output, idx)
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: name, Row: 1, Col: j,
			Formula: fmt.Sprintf(
				`=ARRAYFORMULA(INDEX(%s, INT((ROW(INDIRECT("1:"&ROWS(%s)*%d))-1)/%d)+1))`,
				colRef, colRef, k, k),
			Ref: in.Sheet,
		})
	}

	varNames := make([]string, k)
	for i, v := range valueVars {
		varNames[i] = fmt.Sprintf("%q", v)
	}
	c.ops = append(c.ops, sheet.SetFormula{
		Sheet: name, Row: 1, Col: len(idVars),
		Formula: fmt.Sprintf(
			`=ARRAYFORMULA(CHOOSE(MOD(ROW(INDIRECT("1:"&ROWS(%s)*%d))-1, %d)+1, %s))`,
			driver, k, k, strings.Join(varNames, ", ")),
		Ref: in.Sheet,
	})

	valueRefs := make([]string, k)
	for i, v := range valueVars {
		idx, err := columnIndex(in.Schema, v)
		if err != nil {
			return Materialization{}, err
		}
		valueRefs[i] = colRangeRef(in.Sheet, in.Output, idx)
	}
	c.ops = append(c.ops, sheet.SetFormula{
		Sheet: name, Row: 1, Col: len(idVars) + 1,
		Formula: fmt.Sprintf(
			`=ARRAYFORMULA(CHOOSE(MOD(ROW(INDIRECT("1:"&ROWS(%s)*%d))-1, %d)+1, %s))`,
			driver, k, k, strings.Join(valueRefs, ", ")),
		Ref: in.Sheet,
	})

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows + 1, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: outputSchema}, nil
}
