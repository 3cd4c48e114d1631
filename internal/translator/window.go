package translator

import (
	"fmt"
	"strconv"
	"strings"

	cferrors "github.com/cellform/cellform/internal/errors"
	"github.com/cellform/cellform/internal/plan"
	"github.com/cellform/cellform/internal/sheet"
)

var supportedWindowFuncs = []string{
	"rank", "row_number", "sum", "mean", "min", "max", "count", "lag", "lead",
}

// windowShape bundles the state every window sub-strategy needs: the output
// sheet, the input materialization, and the position of the appended column.
type windowShape struct {
	op       *plan.Window
	name     string
	in       Materialization
	winCol   int
	dataRows int
}

// translateWindow copies the input columns and appends one window column.
// Ranking functions compile to per-row conditional counts, running
// aggregates to per-row conditional aggregates, and lag/lead to offset cell
// references.
func (c *context) translateWindow(op *plan.Window, in Materialization) (Materialization, error) {
	name := c.nextSheetName(op)

	outputSchema := append(append([]string(nil), in.Schema...), op.OutputColumn())
	numCols := len(outputSchema)
	numRows := in.Output.RowEnd - in.Output.Row + 1

	c.ops = append(c.ops,
		sheet.CreateSheet{Name: name, Rows: numRows, Cols: numCols},
		sheet.SetValues{Sheet: name, Row: 0, Col: 0, Values: headerRow(outputSchema)},
	)

	for j := range in.Schema {
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: name, Row: 1, Col: j,
			Formula: fmt.Sprintf("=ARRAYFORMULA(%s)", colRangeRef(in.Sheet, in.Output, j)),
			Ref:     in.Sheet,
		})
	}

	shape := windowShape{
		op: op, name: name, in: in,
		winCol:   len(in.Schema),
		dataRows: in.Output.RowEnd - in.Output.Row,
	}

	var err error
	switch op.Function() {
	case "rank", "row_number":
		err = c.emitWindowRanking(shape)
	case "sum", "mean", "min", "max", "count":
		err = c.emitWindowRunningAgg(shape)
	case "lag", "lead":
		err = c.emitWindowLagLead(shape)
	default:
		err = cferrors.NewUnsupportedOperationError(
			"window", fmt.Sprintf("window function %q", op.Function()), supportedWindowFuncs...)
	}
	if err != nil {
		return Materialization{}, err
	}

	out := sheet.Range{Row: 0, Col: 0, RowEnd: numRows, ColEnd: numCols - 1}
	return Materialization{Sheet: name, Output: out, Schema: outputSchema}, nil
}

// partitionCriteria builds the (range, cell) criteria pairs matching the
// current row's partition key values.
func (s windowShape) partitionCriteria(rowInSheet int) ([]string, error) {
	var pairs []string
	for _, part := range s.op.PartitionBy() {
		idx, err := columnIndex(s.in.Schema, part)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, fmt.Sprintf("%s, %s",
			colRangeRef(s.in.Sheet, s.in.Output, idx),
			cellRef(s.name, rowInSheet-1, s.in.Output.Col+idx)))
	}
	return pairs, nil
}

// emitWindowRanking writes one COUNTIFS formula per data row. rank uses
// inclusive comparison so ties share a rank; row_number uses strict
// comparison plus a row-position tie-break for uniqueness.
func (c *context) emitWindowRanking(s windowShape) error {
	isRowNumber := s.op.Function() == "row_number"

	for i := 0; i < s.dataRows; i++ {
		rowInSheet := 2 + i // 1-indexed, data starts below the header

		partitionPairs, err := s.partitionCriteria(rowInSheet)
		if err != nil {
			return err
		}
		args := append([]string(nil), partitionPairs...)

		for _, key := range s.op.OrderBy() {
			idx, err := columnIndex(s.in.Schema, key.Column)
			if err != nil {
				return err
			}
			orderRange := colRangeRef(s.in.Sheet, s.in.Output, idx)
			orderCell := cellRef(s.name, rowInSheet-1, s.in.Output.Col+idx)

			var cmp string
			switch {
			case isRowNumber && key.Direction == plan.Desc:
				cmp = ">"
			case isRowNumber:
				cmp = "<"
			case key.Direction == plan.Desc:
				cmp = ">="
			default:
				cmp = "<="
			}
			args = append(args, fmt.Sprintf(`%s, "%s"&%s`, orderRange, cmp, orderCell))
		}

		formula := fmt.Sprintf("=COUNTIFS(%s)", strings.Join(args, ", "))

		if isRowNumber {
			tiebreak := append([]string(nil), partitionPairs...)
			for _, key := range s.op.OrderBy() {
				idx, err := columnIndex(s.in.Schema, key.Column)
				if err != nil {
					return err
				}
				orderRange := colRangeRef(s.in.Sheet, s.in.Output, idx)
				orderCell := cellRef(s.name, rowInSheet-1, s.in.Output.Col+idx)
				tiebreak = append(tiebreak,
					fmt.Sprintf("%s, %s", orderRange, orderCell),
					fmt.Sprintf(`ROW(%s), "<="&ROW(%s)`, orderRange, orderCell),
				)
			}
			formula = fmt.Sprintf("=COUNTIFS(%s)+COUNTIFS(%s)",
				strings.Join(args, ", "), strings.Join(tiebreak, ", "))
		}

		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: s.name, Row: rowInSheet - 1, Col: s.winCol, Formula: formula, Ref: s.in.Sheet,
		})
	}
	return nil
}

// emitWindowRunningAgg writes one conditional aggregate per data row over
// partition equality and order-key inequality up to the current row. Only
// the unbounded-preceding-to-current frame is expressible.
func (c *context) emitWindowRunningAgg(s windowShape) error {
	if frame := s.op.Frame(); frame != "" && frame != "unbounded preceding to current row" {
		return cferrors.NewUnsupportedOperationError(
			"window", fmt.Sprintf("frame %q", frame), "unbounded preceding to current row")
	}

	fn := conditionalAggFuncs[s.op.Function()]

	inputCol := s.op.InputColumn()
	if inputCol == "" {
		return cferrors.NewUnsupportedOperationError(
			"window", fmt.Sprintf("running aggregate %q without an input column", s.op.Function()))
	}
	idx, err := columnIndex(s.in.Schema, inputCol)
	if err != nil {
		return err
	}
	aggRange := colRangeRef(s.in.Sheet, s.in.Output, idx)

	for i := 0; i < s.dataRows; i++ {
		rowInSheet := 2 + i

		criteria, err := s.partitionCriteria(rowInSheet)
		if err != nil {
			return err
		}

		for _, key := range s.op.OrderBy() {
			oIdx, err := columnIndex(s.in.Schema, key.Column)
			if err != nil {
				return err
			}
			cmp := "<="
			if key.Direction == plan.Desc {
				cmp = ">="
			}
			criteria = append(criteria, fmt.Sprintf(`%s, "%s"&%s`,
				colRangeRef(s.in.Sheet, s.in.Output, oIdx),
				cmp,
				cellRef(s.name, rowInSheet-1, s.in.Output.Col+oIdx)))
		}

		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: s.name, Row: rowInSheet - 1, Col: s.winCol,
			Formula: fmt.Sprintf("=%s(%s, %s)", fn, aggRange, strings.Join(criteria, ", ")),
			Ref:     s.in.Sheet,
		})
	}
	return nil
}

// emitWindowLagLead writes one defaulted OFFSET per data row. Partitioned
// lag/lead is rejected: OFFSET cannot stop at partition boundaries.
func (c *context) emitWindowLagLead(s windowShape) error {
	if len(s.op.PartitionBy()) > 0 {
		return cferrors.NewUnsupportedOperationError(
			"window", fmt.Sprintf("partitioned %s", s.op.Function()),
			"lag/lead without partition_by")
	}

	inputCol := s.op.InputColumn()
	if inputCol == "" {
		return cferrors.NewUnsupportedOperationError(
			"window", fmt.Sprintf("%s without an input column", s.op.Function()))
	}
	idx, err := columnIndex(s.in.Schema, inputCol)
	if err != nil {
		return err
	}

	offset := 1
	if frame := s.op.Frame(); frame != "" {
		if parsed, err := strconv.Atoi(frame); err == nil {
			offset = parsed
		}
	}
	delta := -offset
	if s.op.Function() == "lead" {
		delta = offset
	}

	for i := 0; i < s.dataRows; i++ {
		rowInSheet := 2 + i
		cell := cellRef(s.name, rowInSheet-1, idx)
		c.ops = append(c.ops, sheet.SetFormula{
			Sheet: s.name, Row: rowInSheet - 1, Col: s.winCol,
			Formula: fmt.Sprintf(`=IFERROR(OFFSET(%s, %d, 0), "")`, cell, delta),
			Ref:     s.in.Sheet,
		})
	}
	return nil
}
