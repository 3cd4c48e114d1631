package plan

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cellform/cellform/internal/expr"
	"github.com/cellform/cellform/internal/rows"
)

// Relation is the concrete result of eagerly evaluating an operation tree:
// a schema plus row values. It backs pipeline debugging and serves as the
// ground truth the optimizer's rewrites are checked against.
type Relation struct {
	Schema []string
	Rows   rows.Rows
}

func (r *Relation) colIndex(name string) (int, error) {
	for i, c := range r.Schema {
		if c == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in schema %v", name, r.Schema)
}

// Evaluate executes an operation tree bottom-up over in-memory data. Every
// Source reachable from op must carry concrete rows and a schema.
func Evaluate(op Operation) (*Relation, error) {
	switch x := op.(type) {
	case *Source:
		return evalSource(x)
	case *Select:
		return evalSelect(x)
	case *Filter:
		return evalFilter(x)
	case *Join:
		return evalJoin(x)
	case *GroupBy:
		return evalGroupBy(x)
	case *Aggregate:
		return evalAggregate(x)
	case *Sort:
		return evalSort(x)
	case *Limit:
		return evalLimit(x)
	case *WithColumn:
		return evalWithColumn(x)
	case *Union:
		return evalUnion(x)
	case *Pivot:
		return evalPivot(x)
	case *Melt:
		return evalMelt(x)
	case *Window:
		return evalWindow(x)
	}
	return nil, fmt.Errorf("cannot evaluate operation of kind %q", op.Kind())
}

func evalSource(s *Source) (*Relation, error) {
	if s.data == nil {
		return nil, fmt.Errorf("source %q has no data for eager evaluation", s.sourceID)
	}
	if s.schema == nil {
		return nil, fmt.Errorf("source %q has no schema for eager evaluation", s.sourceID)
	}
	return &Relation{Schema: s.schema, Rows: s.data.Clone()}, nil
}

func evalSelect(s *Select) (*Relation, error) {
	in, err := Evaluate(s.input)
	if err != nil {
		return nil, err
	}
	if s.predicate != nil {
		if in, err = filterRelation(in, s.predicate); err != nil {
			return nil, err
		}
	}
	idx := make([]int, len(s.columns))
	for i, c := range s.columns {
		if idx[i], err = in.colIndex(c); err != nil {
			return nil, err
		}
	}
	out := make(rows.Rows, len(in.Rows))
	for i, row := range in.Rows {
		projected := make([]any, len(idx))
		for j, k := range idx {
			projected[j] = row[k]
		}
		out[i] = projected
	}
	return &Relation{Schema: s.columns, Rows: out}, nil
}

func evalFilter(f *Filter) (*Relation, error) {
	in, err := Evaluate(f.input)
	if err != nil {
		return nil, err
	}
	return filterRelation(in, f.predicate)
}

func filterRelation(in *Relation, predicate expr.Expr) (*Relation, error) {
	var kept rows.Rows
	for _, row := range in.Rows {
		v, err := evalExpr(predicate, in, row)
		if err != nil {
			return nil, err
		}
		ok, err := truthy(v)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, row)
		}
	}
	return &Relation{Schema: in.Schema, Rows: kept}, nil
}

func evalJoin(j *Join) (*Relation, error) {
	left, err := Evaluate(j.left)
	if err != nil {
		return nil, err
	}
	right, err := Evaluate(j.right)
	if err != nil {
		return nil, err
	}

	leftIdx, err := columnIndexes(left, j.leftOn)
	if err != nil {
		return nil, err
	}
	rightIdx, err := columnIndexes(right, j.rightOn)
	if err != nil {
		return nil, err
	}

	// non-key right columns, in right-schema order
	var rightKeep []int
	var rightCols []string
	for i, c := range right.Schema {
		if !containsString(j.rightOn, c) {
			rightKeep = append(rightKeep, i)
			rightCols = append(rightCols, c)
		}
	}

	schema := append(append([]string(nil), left.Schema...), rightCols...)
	var out rows.Rows

	rightMatched := make([]bool, len(right.Rows))
	for _, lrow := range left.Rows {
		matched := false
		for ri, rrow := range right.Rows {
			if keysEqual(lrow, leftIdx, rrow, rightIdx) {
				matched = true
				rightMatched[ri] = true
				out = append(out, joinRow(lrow, rrow, rightKeep))
			}
		}
		if !matched && (j.joinType == JoinLeft || j.joinType == JoinOuter) {
			out = append(out, joinRow(lrow, nil, rightKeep))
		}
	}

	if j.joinType == JoinRight || j.joinType == JoinOuter {
		for ri, rrow := range right.Rows {
			if rightMatched[ri] {
				continue
			}
			row := make([]any, len(left.Schema))
			// unmatched right rows surface their key values in the left key slots
			for k, li := range leftIdx {
				row[li] = rrow[rightIdx[k]]
			}
			out = append(out, joinRow(row, rrow, rightKeep))
		}
	}

	return &Relation{Schema: schema, Rows: out}, nil
}

func columnIndexes(rel *Relation, cols []string) ([]int, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		var err error
		if idx[i], err = rel.colIndex(c); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func keysEqual(lrow []any, leftIdx []int, rrow []any, rightIdx []int) bool {
	for k := range leftIdx {
		if compareValues(lrow[leftIdx[k]], rrow[rightIdx[k]]) != 0 {
			return false
		}
	}
	return true
}

func joinRow(lrow, rrow []any, rightKeep []int) []any {
	out := append([]any(nil), lrow...)
	for _, ri := range rightKeep {
		if rrow == nil {
			out = append(out, nil)
		} else {
			out = append(out, rrow[ri])
		}
	}
	return out
}

func evalGroupBy(g *GroupBy) (*Relation, error) {
	in, err := Evaluate(g.input)
	if err != nil {
		return nil, err
	}
	keyIdx, err := columnIndexes(in, g.keys)
	if err != nil {
		return nil, err
	}

	// groups in first-appearance order
	groupOf := map[string]int{}
	var groupKeys [][]any
	var groups [][][]any
	for _, row := range in.Rows {
		key := groupKey(row, keyIdx)
		gi, ok := groupOf[key]
		if !ok {
			gi = len(groups)
			groupOf[key] = gi
			keyVals := make([]any, len(keyIdx))
			for i, k := range keyIdx {
				keyVals[i] = row[k]
			}
			groupKeys = append(groupKeys, keyVals)
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], row)
	}

	out := make(rows.Rows, len(groups))
	for gi, groupRows := range groups {
		row := append([]any(nil), groupKeys[gi]...)
		for _, agg := range g.aggregations {
			ci, err := in.colIndex(agg.Column)
			if err != nil {
				return nil, err
			}
			v, err := aggregateColumn(agg.Func, groupRows, ci)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		out[gi] = row
	}

	rel := &Relation{Schema: g.schema, Rows: out}
	if len(g.sortKeys) > 0 {
		if rel, err = sortRelation(rel, g.sortKeys); err != nil {
			return nil, err
		}
	}
	if limit, ok := g.Limit(); ok && limit < len(rel.Rows) {
		rel.Rows = rel.Rows[:limit]
	}
	return rel, nil
}

func groupKey(row []any, keyIdx []int) string {
	parts := make([]string, len(keyIdx))
	for i, k := range keyIdx {
		parts[i] = fmt.Sprintf("%T:%v", row[k], row[k])
	}
	return strings.Join(parts, "\x00")
}

func evalAggregate(a *Aggregate) (*Relation, error) {
	in, err := Evaluate(a.input)
	if err != nil {
		return nil, err
	}
	row := make([]any, len(a.aggregations))
	for i, agg := range a.aggregations {
		ci, err := in.colIndex(agg.Column)
		if err != nil {
			return nil, err
		}
		if row[i], err = aggregateColumn(agg.Func, in.Rows, ci); err != nil {
			return nil, err
		}
	}
	return &Relation{Schema: a.schema, Rows: rows.Rows{row}}, nil
}

func aggregateColumn(fn string, groupRows [][]any, col int) (any, error) {
	values := make([]any, 0, len(groupRows))
	for _, row := range groupRows {
		if row[col] != nil {
			values = append(values, row[col])
		}
	}
	switch fn {
	case "count":
		return float64(len(values)), nil
	case "first":
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case "last":
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	case "sum", "mean", "min", "max":
		if len(values) == 0 {
			return nil, nil
		}
		nums := make([]float64, len(values))
		for i, v := range values {
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("aggregate %s: non-numeric value %v", fn, v)
			}
			nums[i] = f
		}
		switch fn {
		case "sum":
			return sumFloats(nums), nil
		case "mean":
			return sumFloats(nums) / float64(len(nums)), nil
		case "min":
			m := nums[0]
			for _, f := range nums[1:] {
				m = math.Min(m, f)
			}
			return m, nil
		case "max":
			m := nums[0]
			for _, f := range nums[1:] {
				m = math.Max(m, f)
			}
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown aggregation function %q", fn)
}

func sumFloats(nums []float64) float64 {
	var s float64
	for _, f := range nums {
		s += f
	}
	return s
}

func evalSort(s *Sort) (*Relation, error) {
	in, err := Evaluate(s.input)
	if err != nil {
		return nil, err
	}
	if s.predicate != nil {
		if in, err = filterRelation(in, s.predicate); err != nil {
			return nil, err
		}
	}
	rel, err := sortRelation(in, s.keys)
	if err != nil {
		return nil, err
	}
	if limit, ok := s.Limit(); ok && limit < len(rel.Rows) {
		rel.Rows = rel.Rows[:limit]
	}
	return rel, nil
}

// sortRelation stable-sorts, so rows equal under the keys keep their input
// order.
func sortRelation(in *Relation, keys []SortKey) (*Relation, error) {
	idx, err := columnIndexes(in, sortKeyColumns(keys))
	if err != nil {
		return nil, err
	}
	out := append(rows.Rows(nil), in.Rows...)
	sort.SliceStable(out, func(i, j int) bool {
		for k, key := range keys {
			c := compareValues(out[i][idx[k]], out[j][idx[k]])
			if c == 0 {
				continue
			}
			if key.Direction == Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return &Relation{Schema: in.Schema, Rows: out}, nil
}

func sortKeyColumns(keys []SortKey) []string {
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = k.Column
	}
	return cols
}

func evalLimit(l *Limit) (*Relation, error) {
	in, err := Evaluate(l.input)
	if err != nil {
		return nil, err
	}
	n := l.count
	if n > len(in.Rows) {
		n = len(in.Rows)
	}
	if l.end == Tail {
		return &Relation{Schema: in.Schema, Rows: in.Rows[len(in.Rows)-n:]}, nil
	}
	return &Relation{Schema: in.Schema, Rows: in.Rows[:n]}, nil
}

func evalWithColumn(w *WithColumn) (*Relation, error) {
	in, err := Evaluate(w.input)
	if err != nil {
		return nil, err
	}
	existing := -1
	for i, c := range in.Schema {
		if c == w.column {
			existing = i
			break
		}
	}
	schema := append([]string(nil), in.Schema...)
	if existing < 0 {
		schema = append(schema, w.column)
	}
	out := make(rows.Rows, len(in.Rows))
	for i, row := range in.Rows {
		v, err := evalExpr(w.expression, in, row)
		if err != nil {
			return nil, err
		}
		nr := append([]any(nil), row...)
		if existing >= 0 {
			nr[existing] = v
		} else {
			nr = append(nr, v)
		}
		out[i] = nr
	}
	return &Relation{Schema: schema, Rows: out}, nil
}

func evalUnion(u *Union) (*Relation, error) {
	left, err := Evaluate(u.left)
	if err != nil {
		return nil, err
	}
	right, err := Evaluate(u.right)
	if err != nil {
		return nil, err
	}
	if !equalSchemas(left.Schema, right.Schema) {
		return nil, fmt.Errorf("union requires identical schemas, got %v and %v", left.Schema, right.Schema)
	}
	out := append(append(rows.Rows(nil), left.Rows...), right.Rows...)
	return &Relation{Schema: left.Schema, Rows: out}, nil
}

func evalPivot(p *Pivot) (*Relation, error) {
	if len(p.index) != 1 {
		return nil, fmt.Errorf("pivot supports a single index column, got %v", p.index)
	}
	in, err := Evaluate(p.input)
	if err != nil {
		return nil, err
	}
	ii, err := in.colIndex(p.index[0])
	if err != nil {
		return nil, err
	}
	ci, err := in.colIndex(p.columns)
	if err != nil {
		return nil, err
	}
	vi, err := in.colIndex(p.values)
	if err != nil {
		return nil, err
	}

	// index values in first-appearance order, pivot values sorted
	var indexVals []any
	seenIndex := map[string]bool{}
	pivotSet := map[string]any{}
	for _, row := range in.Rows {
		ik := fmt.Sprintf("%v", row[ii])
		if !seenIndex[ik] {
			seenIndex[ik] = true
			indexVals = append(indexVals, row[ii])
		}
		pivotSet[fmt.Sprintf("%v", row[ci])] = row[ci]
	}
	pivotVals := make([]string, 0, len(pivotSet))
	for k := range pivotSet {
		pivotVals = append(pivotVals, k)
	}
	sort.Strings(pivotVals)

	schema := append([]string(nil), p.index[0])
	schema = append(schema, pivotVals...)

	out := make(rows.Rows, len(indexVals))
	for r, iv := range indexVals {
		row := make([]any, 1+len(pivotVals))
		row[0] = iv
		for c, pv := range pivotVals {
			var cell [][]any
			for _, srow := range in.Rows {
				if fmt.Sprintf("%v", srow[ii]) == fmt.Sprintf("%v", iv) &&
					fmt.Sprintf("%v", srow[ci]) == pv {
					cell = append(cell, srow)
				}
			}
			if len(cell) == 0 {
				row[1+c] = nil
				continue
			}
			v, err := aggregateColumn(p.aggFunc, cell, vi)
			if err != nil {
				return nil, err
			}
			row[1+c] = v
		}
		out[r] = row
	}
	return &Relation{Schema: schema, Rows: out}, nil
}

// evalMelt fans rows out row-major: output row r maps to source row r/k and
// value column r%k, matching the modular-indexing formulas the translator
// emits.
func evalMelt(m *Melt) (*Relation, error) {
	in, err := Evaluate(m.input)
	if err != nil {
		return nil, err
	}
	valueVars := m.valueVars
	if valueVars == nil {
		for _, c := range in.Schema {
			if !containsString(m.idVars, c) {
				valueVars = append(valueVars, c)
			}
		}
	}
	idIdx, err := columnIndexes(in, m.idVars)
	if err != nil {
		return nil, err
	}
	valIdx, err := columnIndexes(in, valueVars)
	if err != nil {
		return nil, err
	}

	schema := append([]string(nil), m.idVars...)
	schema = append(schema, m.varName, m.valueName)

	k := len(valueVars)
	out := make(rows.Rows, 0, len(in.Rows)*k)
	for _, srow := range in.Rows {
		for v := 0; v < k; v++ {
			row := make([]any, 0, len(idIdx)+2)
			for _, ii := range idIdx {
				row = append(row, srow[ii])
			}
			row = append(row, valueVars[v], srow[valIdx[v]])
			out = append(out, row)
		}
	}
	return &Relation{Schema: schema, Rows: out}, nil
}

func evalWindow(w *Window) (*Relation, error) {
	in, err := Evaluate(w.input)
	if err != nil {
		return nil, err
	}

	// order[i] holds the original position of sorted row i; computed values
	// land back in original row order at the end.
	order := make([]int, len(in.Rows))
	for i := range order {
		order[i] = i
	}
	if len(w.spec.OrderBy) > 0 {
		idx, err := columnIndexes(in, sortKeyColumns(w.spec.OrderBy))
		if err != nil {
			return nil, err
		}
		sort.SliceStable(order, func(a, b int) bool {
			ra, rb := in.Rows[order[a]], in.Rows[order[b]]
			for k, key := range w.spec.OrderBy {
				c := compareValues(ra[idx[k]], rb[idx[k]])
				if c == 0 {
					continue
				}
				if key.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	partIdx, err := columnIndexes(in, w.spec.PartitionBy)
	if err != nil {
		return nil, err
	}
	inputIdx := -1
	if w.spec.InputColumn != "" {
		if inputIdx, err = in.colIndex(w.spec.InputColumn); err != nil {
			return nil, err
		}
	}

	values := make([]any, len(in.Rows)) // indexed by original position
	if err := computeWindow(w, in, order, partIdx, inputIdx, values); err != nil {
		return nil, err
	}

	existing := -1
	for i, c := range in.Schema {
		if c == w.spec.OutputColumn {
			existing = i
			break
		}
	}
	schema := append([]string(nil), in.Schema...)
	if existing < 0 {
		schema = append(schema, w.spec.OutputColumn)
	}
	out := make(rows.Rows, len(in.Rows))
	for i, row := range in.Rows {
		nr := append([]any(nil), row...)
		if existing >= 0 {
			nr[existing] = values[i]
		} else {
			nr = append(nr, values[i])
		}
		out[i] = nr
	}
	return &Relation{Schema: schema, Rows: out}, nil
}

func computeWindow(w *Window, in *Relation, order, partIdx []int, inputIdx int, values []any) error {
	fn := w.spec.Function
	running := w.spec.Frame == "unbounded preceding to current row" ||
		(w.spec.Frame == "" && len(w.spec.OrderBy) > 0)

	// sorted positions grouped by partition, preserving sorted order
	partOf := map[string][]int{}
	var partOrder []string
	for _, pos := range order {
		key := groupKey(in.Rows[pos], partIdx)
		if _, ok := partOf[key]; !ok {
			partOrder = append(partOrder, key)
		}
		partOf[key] = append(partOf[key], pos)
	}

	for _, key := range partOrder {
		positions := partOf[key]
		switch fn {
		case "row_number":
			for i, pos := range positions {
				values[pos] = float64(i + 1)
			}

		case "rank":
			// minimum rank: 1 + count of strictly smaller values, so ties share
			rankIdx := inputIdx
			if rankIdx < 0 {
				if len(w.spec.OrderBy) == 0 {
					return fmt.Errorf("window rank requires an input column or ordering")
				}
				var err error
				if rankIdx, err = in.colIndex(w.spec.OrderBy[0].Column); err != nil {
					return err
				}
			}
			for _, pos := range positions {
				rank := 1
				for _, q := range positions {
					if compareValues(in.Rows[q][rankIdx], in.Rows[pos][rankIdx]) < 0 {
						rank++
					}
				}
				values[pos] = float64(rank)
			}

		case "sum", "mean", "min", "max", "count", "cumsum":
			if err := windowAggregate(fn, running || fn == "cumsum", in, positions, inputIdx, values); err != nil {
				return err
			}

		case "lag", "lead":
			offset := parseFrameOffset(w.spec.Frame)
			if fn == "lead" {
				offset = -offset
			}
			for i, pos := range positions {
				src := i - offset
				if src < 0 || src >= len(positions) {
					values[pos] = nil
					continue
				}
				values[pos] = in.Rows[positions[src]][inputIdx]
			}

		default:
			return fmt.Errorf("unsupported window function %q", fn)
		}
	}
	return nil
}

func windowAggregate(fn string, running bool, in *Relation, positions []int, inputIdx int, values []any) error {
	if running {
		for i, pos := range positions {
			prefix := make([][]any, 0, i+1)
			for _, p := range positions[:i+1] {
				prefix = append(prefix, in.Rows[p])
			}
			name := fn
			if name == "cumsum" {
				name = "sum"
			}
			v, err := aggregateColumn(name, prefix, inputIdx)
			if err != nil {
				return err
			}
			values[pos] = v
		}
		return nil
	}
	all := make([][]any, len(positions))
	for i, p := range positions {
		all[i] = in.Rows[p]
	}
	v, err := aggregateColumn(fn, all, inputIdx)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		values[pos] = v
	}
	return nil
}

// parseFrameOffset reads an integer lag/lead offset from the frame spec,
// defaulting to 1.
func parseFrameOffset(frame string) int {
	if frame == "" {
		return 1
	}
	var n int
	if _, err := fmt.Sscanf(frame, "%d", &n); err != nil || n == 0 {
		return 1
	}
	return n
}

// evalExpr evaluates an expression against one row.
func evalExpr(e expr.Expr, rel *Relation, row []any) (any, error) {
	switch x := e.(type) {
	case *expr.ColumnExpr:
		i, err := rel.colIndex(x.Name())
		if err != nil {
			return nil, err
		}
		return row[i], nil

	case *expr.LiteralExpr:
		return x.Value(), nil

	case *expr.BinaryExpr:
		l, err := evalExpr(x.Left(), rel, row)
		if err != nil {
			return nil, err
		}
		r, err := evalExpr(x.Right(), rel, row)
		if err != nil {
			return nil, err
		}
		return evalBinary(x.Op(), l, r)

	case *expr.UnaryExpr:
		v, err := evalExpr(x.Operand(), rel, row)
		if err != nil {
			return nil, err
		}
		if x.Op() == expr.OpNeg {
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("cannot negate %v", v)
			}
			return -f, nil
		}
		b, err := truthy(v)
		if err != nil {
			return nil, err
		}
		return !b, nil

	case *expr.CallExpr:
		args := make([]any, len(x.Args()))
		for i, a := range x.Args() {
			v, err := evalExpr(a, rel, row)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return evalCall(x.Func(), args)
	}
	return nil, fmt.Errorf("cannot evaluate expression %s", e)
}

func evalBinary(op expr.BinaryOp, l, r any) (any, error) {
	switch op {
	case expr.OpAdd, expr.OpSub, expr.OpMul, expr.OpDiv, expr.OpMod:
		lf, lok := toFloat(l)
		rf, rok := toFloat(r)
		if !lok || !rok {
			if op == expr.OpAdd {
				if ls, ok := l.(string); ok {
					if rs, ok := r.(string); ok {
						return ls + rs, nil
					}
				}
			}
			return nil, fmt.Errorf("arithmetic %s requires numbers, got %v and %v", op.Symbol(), l, r)
		}
		switch op {
		case expr.OpAdd:
			return lf + rf, nil
		case expr.OpSub:
			return lf - rf, nil
		case expr.OpMul:
			return lf * rf, nil
		case expr.OpDiv:
			return lf / rf, nil
		default:
			return math.Mod(lf, rf), nil
		}

	case expr.OpGt:
		return compareValues(l, r) > 0, nil
	case expr.OpLt:
		return compareValues(l, r) < 0, nil
	case expr.OpGe:
		return compareValues(l, r) >= 0, nil
	case expr.OpLe:
		return compareValues(l, r) <= 0, nil
	case expr.OpEq:
		return compareValues(l, r) == 0, nil
	case expr.OpNe:
		return compareValues(l, r) != 0, nil

	case expr.OpAnd, expr.OpOr:
		lb, err := truthy(l)
		if err != nil {
			return nil, err
		}
		rb, err := truthy(r)
		if err != nil {
			return nil, err
		}
		if op == expr.OpAnd {
			return lb && rb, nil
		}
		return lb || rb, nil
	}
	return nil, fmt.Errorf("unknown binary operator %s", op.Symbol())
}

func evalCall(fn string, args []any) (any, error) {
	unary := func(f func(float64) float64) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects one argument, got %d", fn, len(args))
		}
		v, ok := toFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("%s expects a number, got %v", fn, args[0])
		}
		return f(v), nil
	}
	switch fn {
	case "abs":
		return unary(math.Abs)
	case "sqrt":
		return unary(math.Sqrt)
	case "log":
		return unary(math.Log)
	case "exp":
		return unary(math.Exp)
	case "floor":
		return unary(math.Floor)
	case "ceil":
		return unary(math.Ceil)
	case "round":
		return unary(math.Round)
	}
	return nil, fmt.Errorf("unknown function %q", fn)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func truthy(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case nil:
		return false, nil
	}
	if f, ok := toFloat(v); ok {
		return f != 0, nil
	}
	return false, fmt.Errorf("value %v is not a boolean", v)
}

// compareValues orders two cell values: nil first, then numbers, booleans,
// and strings, with mixed types compared by their rendered form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	return strings.Compare(as, bs)
}
