// Package plan defines the logical-plan intermediate representation: a tree
// of immutable Operation nodes describing a dataframe pipeline, wrapped in a
// LogicalPlan for serialization and inspection. Construction is the
// validation boundary: arity is fixed per kind, and column references are
// checked against statically known input schemas.
package plan

import (
	"fmt"
	"strings"

	"github.com/cellform/cellform/internal/errors"
	"github.com/cellform/cellform/internal/expr"
	"github.com/cellform/cellform/internal/rows"
)

// OpKind discriminates the closed set of operation kinds.
type OpKind int

const (
	KindSource OpKind = iota
	KindSelect
	KindFilter
	KindJoin
	KindGroupBy
	KindAggregate
	KindSort
	KindLimit
	KindWithColumn
	KindUnion
	KindPivot
	KindMelt
	KindWindow
)

var opKindTags = map[OpKind]string{
	KindSource:     "source",
	KindSelect:     "select",
	KindFilter:     "filter",
	KindJoin:       "join",
	KindGroupBy:    "groupby",
	KindAggregate:  "aggregate",
	KindSort:       "sort",
	KindLimit:      "limit",
	KindWithColumn: "with_column",
	KindUnion:      "union",
	KindPivot:      "pivot",
	KindMelt:       "melt",
	KindWindow:     "window",
}

// String returns the canonical serialization tag for the kind.
func (k OpKind) String() string { return opKindTags[k] }

// ParseOpKind resolves a canonical tag to its kind.
func ParseOpKind(tag string) (OpKind, error) {
	for k, t := range opKindTags {
		if t == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation type %q", tag)
}

// Operation is a node in the logical plan tree. Nodes are immutable after
// construction; rewrites produce new nodes.
type Operation interface {
	Kind() OpKind

	// Inputs returns the ordered input operations. Length is fixed per
	// kind: 0 for Source, 2 for Join and Union, 1 for everything else.
	Inputs() []Operation

	// Schema returns the statically inferred output column names, or nil
	// when the schema cannot be determined.
	Schema() []string

	// String renders a one-line summary for Explain output.
	String() string
}

// JoinType identifies how unmatched rows are handled.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinOuter JoinType = "outer"
)

// SortDirection orders a sort key.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// SortKey pairs a column with a direction.
type SortKey struct {
	Column    string
	Direction SortDirection
}

// LimitEnd selects which end of the relation a Limit keeps.
type LimitEnd string

const (
	Head LimitEnd = "head"
	Tail LimitEnd = "tail"
)

// Agg describes one aggregation: Out is the output column name, Func the
// aggregation function, Column the input column it reads.
type Agg struct {
	Out    string
	Func   string
	Column string
}

// checkColumns validates column references against a known schema. A nil
// schema skips validation entirely.
func checkColumns(op string, schema []string, cols []string) error {
	if schema == nil {
		return nil
	}
	var missing []string
	for _, c := range cols {
		if !containsString(schema, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return errors.NewSchemaValidationError(op, missing, schema)
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func validateSortKeys(op string, keys []SortKey, schema []string) error {
	cols := make([]string, len(keys))
	for i, k := range keys {
		if k.Direction != Asc && k.Direction != Desc {
			return fmt.Errorf("%s: sort direction must be %q or %q, got %q", op, Asc, Desc, k.Direction)
		}
		cols[i] = k.Column
	}
	return checkColumns(op, schema, cols)
}

// Source is a data source, always a leaf. It is the only node allowed to
// carry concrete row data.
type Source struct {
	sourceID string
	schema   []string
	data     rows.Rows
}

// NewSource creates a source node. Schema and data are both optional; a nil
// schema disables downstream validation, and nil data defers row supply to
// translation time.
func NewSource(sourceID string, schema []string, data rows.Rows) *Source {
	return &Source{sourceID: sourceID, schema: schema, data: data}
}

func (s *Source) Kind() OpKind { return KindSource }
func (s *Source) Inputs() []Operation { return nil }
func (s *Source) Schema() []string { return s.schema }
func (s *Source) SourceID() string { return s.sourceID }
func (s *Source) Data() rows.Rows { return s.data }

func (s *Source) String() string {
	if s.schema != nil {
		return fmt.Sprintf("Source(source_id=%q, schema=%v)", s.sourceID, s.schema)
	}
	return fmt.Sprintf("Source(source_id=%q)", s.sourceID)
}

// Select projects a subset of columns, optionally carrying a predicate the
// optimizer pushed down from a later Filter.
type Select struct {
	input     Operation
	columns   []string
	predicate expr.Expr
	schema    []string
}

// NewSelect creates a projection over the input's columns.
func NewSelect(input Operation, columns []string) (*Select, error) {
	if input == nil {
		return nil, fmt.Errorf("Select: operation must have exactly one input")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("Select: operation must specify at least one column")
	}
	if err := checkColumns("Select", input.Schema(), columns); err != nil {
		return nil, err
	}
	return &Select{input: input, columns: columns, schema: columns}, nil
}

func (s *Select) Kind() OpKind { return KindSelect }
func (s *Select) Inputs() []Operation { return []Operation{s.input} }
func (s *Select) Schema() []string { return s.schema }
func (s *Select) Columns() []string { return s.columns }

// Predicate returns the pushed-down filter predicate, nil when absent.
func (s *Select) Predicate() expr.Expr { return s.predicate }

// WithPredicate returns a copy carrying a pushed-down predicate. An existing
// predicate is AND-combined with the new one.
func (s *Select) WithPredicate(p expr.Expr) *Select {
	combined := p
	if s.predicate != nil {
		combined = expr.And(s.predicate, p)
	}
	return &Select{input: s.input, columns: s.columns, predicate: combined, schema: s.schema}
}

// WithInput returns a copy re-rooted on a different input.
func (s *Select) WithInput(input Operation) *Select {
	return &Select{input: input, columns: s.columns, predicate: s.predicate, schema: s.schema}
}

func (s *Select) String() string {
	if s.predicate != nil {
		return fmt.Sprintf("Select(columns=%v, predicate=%s)", s.columns, s.predicate)
	}
	return fmt.Sprintf("Select(columns=%v)", s.columns)
}

// Filter keeps rows matching a predicate expression.
type Filter struct {
	input     Operation
	predicate expr.Expr
	schema    []string
}

// NewFilter creates a row filter. The predicate's referenced columns are
// validated when the input schema is known.
func NewFilter(input Operation, predicate expr.Expr) (*Filter, error) {
	if input == nil {
		return nil, fmt.Errorf("Filter: operation must have exactly one input")
	}
	if predicate == nil {
		return nil, fmt.Errorf("Filter: operation must specify a predicate")
	}
	if err := checkColumns("Filter", input.Schema(), expr.ReferencedColumns(predicate)); err != nil {
		return nil, err
	}
	return &Filter{input: input, predicate: predicate, schema: input.Schema()}, nil
}

func (f *Filter) Kind() OpKind { return KindFilter }
func (f *Filter) Inputs() []Operation { return []Operation{f.input} }
func (f *Filter) Schema() []string { return f.schema }
func (f *Filter) Predicate() expr.Expr { return f.predicate }

func (f *Filter) String() string {
	return fmt.Sprintf("Filter(predicate=%s)", f.predicate)
}

// Join is an equi-join of two inputs on one or more key pairs. The output
// schema is the left schema followed by the right schema minus every right
// join key.
type Join struct {
	left, right Operation
	leftOn      []string
	rightOn     []string
	joinType    JoinType
	schema      []string
}

// NewJoin creates an equi-join. Key lists must be non-empty and of equal
// length; each side's keys are validated against that side's schema.
func NewJoin(left, right Operation, leftOn, rightOn []string, joinType JoinType) (*Join, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("Join: operation must have exactly two inputs")
	}
	if len(leftOn) == 0 || len(rightOn) == 0 {
		return nil, fmt.Errorf("Join: operation must specify join keys")
	}
	if len(leftOn) != len(rightOn) {
		return nil, fmt.Errorf("Join: left and right key lists must have the same length, got %d and %d",
			len(leftOn), len(rightOn))
	}
	switch joinType {
	case JoinInner, JoinLeft, JoinRight, JoinOuter:
	default:
		return nil, fmt.Errorf("Join: join type must be one of inner, left, right, outer, got %q", joinType)
	}
	if err := checkColumns("Join", left.Schema(), leftOn); err != nil {
		return nil, err
	}
	if err := checkColumns("Join", right.Schema(), rightOn); err != nil {
		return nil, err
	}
	return &Join{
		left: left, right: right,
		leftOn: leftOn, rightOn: rightOn,
		joinType: joinType,
		schema:   joinSchema(left.Schema(), right.Schema(), rightOn),
	}, nil
}

// joinSchema computes left ++ (right minus all right join keys), or nil when
// either side is unknown.
func joinSchema(left, right, rightOn []string) []string {
	if left == nil || right == nil {
		return nil
	}
	out := append([]string(nil), left...)
	for _, c := range right {
		if !containsString(rightOn, c) {
			out = append(out, c)
		}
	}
	return out
}

func (j *Join) Kind() OpKind { return KindJoin }
func (j *Join) Inputs() []Operation { return []Operation{j.left, j.right} }
func (j *Join) Schema() []string { return j.schema }
func (j *Join) LeftOn() []string { return j.leftOn }
func (j *Join) RightOn() []string { return j.rightOn }
func (j *Join) Type() JoinType { return j.joinType }

func (j *Join) String() string {
	return fmt.Sprintf("Join(left_on=%v, right_on=%v, type=%q)", j.leftOn, j.rightOn, j.joinType)
}

// GroupBy partitions by key columns and aggregates each partition. Group
// order follows first appearance in the input, never sort order. A
// downstream Sort/Limit can be carried in sortKeys/limit, ordering the
// grouped output after aggregation.
type GroupBy struct {
	input        Operation
	keys         []string
	aggregations []Agg
	sortKeys     []SortKey
	limit        int // -1 when absent
	schema       []string
}

// NewGroupBy creates a grouped aggregation. At least one key is required;
// Aggregate is the zero-key whole-input form. Keys and every aggregation
// input column are validated when the input schema is known.
func NewGroupBy(input Operation, keys []string, aggregations []Agg) (*GroupBy, error) {
	if input == nil {
		return nil, fmt.Errorf("GroupBy: operation must have exactly one input")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("GroupBy: operation must specify at least one key (use Aggregate for a whole-input reduction)")
	}
	if len(aggregations) == 0 {
		return nil, fmt.Errorf("GroupBy: operation must specify at least one aggregation")
	}
	refs := append([]string(nil), keys...)
	for _, a := range aggregations {
		refs = append(refs, a.Column)
	}
	if err := checkColumns("GroupBy", input.Schema(), refs); err != nil {
		return nil, err
	}
	schema := append([]string(nil), keys...)
	for _, a := range aggregations {
		schema = append(schema, a.Out)
	}
	return &GroupBy{input: input, keys: keys, aggregations: aggregations, limit: -1, schema: schema}, nil
}

func (g *GroupBy) Kind() OpKind { return KindGroupBy }
func (g *GroupBy) Inputs() []Operation { return []Operation{g.input} }
func (g *GroupBy) Schema() []string { return g.schema }
func (g *GroupBy) Keys() []string { return g.keys }
func (g *GroupBy) Aggregations() []Agg { return g.aggregations }
func (g *GroupBy) SortKeys() []SortKey { return g.sortKeys }

// Limit returns the pushed-down row limit, false when absent.
func (g *GroupBy) Limit() (int, bool) {
	if g.limit < 0 {
		return 0, false
	}
	return g.limit, true
}

// WithSort returns a copy carrying pushed-down output ordering and limit.
// A negative limit means unlimited.
func (g *GroupBy) WithSort(sortKeys []SortKey, limit int) *GroupBy {
	return &GroupBy{
		input: g.input, keys: g.keys, aggregations: g.aggregations,
		sortKeys: sortKeys, limit: limit, schema: g.schema,
	}
}

func (g *GroupBy) String() string {
	return fmt.Sprintf("GroupBy(keys=%v, aggregations=%s)", g.keys, formatAggs(g.aggregations))
}

// Aggregate reduces the whole input to a single row, one value per
// aggregation.
type Aggregate struct {
	input        Operation
	aggregations []Agg
	schema       []string
}

// NewAggregate creates a global aggregation.
func NewAggregate(input Operation, aggregations []Agg) (*Aggregate, error) {
	if input == nil {
		return nil, fmt.Errorf("Aggregate: operation must have exactly one input")
	}
	if len(aggregations) == 0 {
		return nil, fmt.Errorf("Aggregate: operation must specify at least one aggregation")
	}
	cols := make([]string, len(aggregations))
	schema := make([]string, len(aggregations))
	for i, a := range aggregations {
		cols[i] = a.Column
		schema[i] = a.Out
	}
	if err := checkColumns("Aggregate", input.Schema(), cols); err != nil {
		return nil, err
	}
	return &Aggregate{input: input, aggregations: aggregations, schema: schema}, nil
}

func (a *Aggregate) Kind() OpKind { return KindAggregate }
func (a *Aggregate) Inputs() []Operation { return []Operation{a.input} }
func (a *Aggregate) Schema() []string { return a.schema }
func (a *Aggregate) Aggregations() []Agg { return a.aggregations }

func (a *Aggregate) String() string {
	return fmt.Sprintf("Aggregate(aggregations=%s)", formatAggs(a.aggregations))
}

func formatAggs(aggs []Agg) string {
	parts := make([]string, len(aggs))
	for i, a := range aggs {
		parts[i] = fmt.Sprintf("%s=%s(%s)", a.Out, a.Func, a.Column)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Sort reorders rows by one or more keys. The optimizer may fuse a
// downstream Limit (limit) or an upstream Filter (predicate) into the node.
type Sort struct {
	input     Operation
	keys      []SortKey
	limit     int // -1 when absent
	predicate expr.Expr
	schema    []string
}

// NewSort creates a stable multi-key sort.
func NewSort(input Operation, keys []SortKey) (*Sort, error) {
	if input == nil {
		return nil, fmt.Errorf("Sort: operation must have exactly one input")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("Sort: operation must specify at least one sort key")
	}
	if err := validateSortKeys("Sort", keys, input.Schema()); err != nil {
		return nil, err
	}
	return &Sort{input: input, keys: keys, limit: -1, schema: input.Schema()}, nil
}

func (s *Sort) Kind() OpKind { return KindSort }
func (s *Sort) Inputs() []Operation { return []Operation{s.input} }
func (s *Sort) Schema() []string { return s.schema }
func (s *Sort) Keys() []SortKey { return s.keys }
func (s *Sort) Predicate() expr.Expr { return s.predicate }

// Limit returns the fused row limit, false when absent.
func (s *Sort) Limit() (int, bool) {
	if s.limit < 0 {
		return 0, false
	}
	return s.limit, true
}

// WithLimit returns a copy carrying a fused row limit. When a limit is
// already present the smaller of the two wins.
func (s *Sort) WithLimit(limit int) *Sort {
	if s.limit >= 0 && s.limit < limit {
		limit = s.limit
	}
	return &Sort{input: s.input, keys: s.keys, limit: limit, predicate: s.predicate, schema: s.schema}
}

// WithPredicate returns a copy carrying a fused filter predicate. An
// existing predicate is AND-combined with the new one.
func (s *Sort) WithPredicate(p expr.Expr) *Sort {
	combined := p
	if s.predicate != nil {
		combined = expr.And(s.predicate, p)
	}
	return &Sort{input: s.input, keys: s.keys, limit: s.limit, predicate: combined, schema: s.schema}
}

// WithInput returns a copy re-rooted on a different input.
func (s *Sort) WithInput(input Operation) *Sort {
	return &Sort{input: input, keys: s.keys, limit: s.limit, predicate: s.predicate, schema: s.schema}
}

func (s *Sort) String() string {
	parts := make([]string, len(s.keys))
	for i, k := range s.keys {
		parts[i] = fmt.Sprintf("(%s, %s)", k.Column, k.Direction)
	}
	desc := fmt.Sprintf("Sort(keys=[%s]", strings.Join(parts, ", "))
	if s.limit >= 0 {
		desc += fmt.Sprintf(", limit=%d", s.limit)
	}
	if s.predicate != nil {
		desc += fmt.Sprintf(", predicate=%s", s.predicate)
	}
	return desc + ")"
}

// Limit truncates the input to count rows from the head or tail.
type Limit struct {
	input  Operation
	count  int
	end    LimitEnd
	schema []string
}

// NewLimit creates a row truncation. An empty end defaults to Head.
func NewLimit(input Operation, count int, end LimitEnd) (*Limit, error) {
	if input == nil {
		return nil, fmt.Errorf("Limit: operation must have exactly one input")
	}
	if count < 0 {
		return nil, fmt.Errorf("Limit: count must be non-negative, got %d", count)
	}
	if end == "" {
		end = Head
	}
	if end != Head && end != Tail {
		return nil, fmt.Errorf("Limit: end must be %q or %q, got %q", Head, Tail, end)
	}
	return &Limit{input: input, count: count, end: end, schema: input.Schema()}, nil
}

func (l *Limit) Kind() OpKind { return KindLimit }
func (l *Limit) Inputs() []Operation { return []Operation{l.input} }
func (l *Limit) Schema() []string { return l.schema }
func (l *Limit) Count() int { return l.count }
func (l *Limit) End() LimitEnd { return l.end }

func (l *Limit) String() string {
	return fmt.Sprintf("Limit(count=%d, end=%q)", l.count, l.end)
}

// WithColumn adds a computed column, or replaces one when the name already
// exists in the input schema.
type WithColumn struct {
	input      Operation
	column     string
	expression expr.Expr
	schema     []string
}

// NewWithColumn creates a column addition or replacement.
func NewWithColumn(input Operation, column string, expression expr.Expr) (*WithColumn, error) {
	if input == nil {
		return nil, fmt.Errorf("WithColumn: operation must have exactly one input")
	}
	if column == "" {
		return nil, fmt.Errorf("WithColumn: operation must specify a column name")
	}
	if expression == nil {
		return nil, fmt.Errorf("WithColumn: operation must specify an expression")
	}
	if err := checkColumns("WithColumn", input.Schema(), expr.ReferencedColumns(expression)); err != nil {
		return nil, err
	}
	var schema []string
	if in := input.Schema(); in != nil {
		schema = append([]string(nil), in...)
		if !containsString(schema, column) {
			schema = append(schema, column)
		}
	}
	return &WithColumn{input: input, column: column, expression: expression, schema: schema}, nil
}

func (w *WithColumn) Kind() OpKind { return KindWithColumn }
func (w *WithColumn) Inputs() []Operation { return []Operation{w.input} }
func (w *WithColumn) Schema() []string { return w.schema }
func (w *WithColumn) Column() string { return w.column }
func (w *WithColumn) Expression() expr.Expr { return w.expression }

func (w *WithColumn) String() string {
	return fmt.Sprintf("WithColumn(column=%q, expression=%s)", w.column, w.expression)
}

// Union vertically concatenates two inputs with identical schemas, column
// order included.
type Union struct {
	left, right Operation
	schema      []string
}

// NewUnion creates a vertical concatenation. When both input schemas are
// known they must match exactly.
func NewUnion(left, right Operation) (*Union, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("Union: operation must have exactly two inputs")
	}
	ls, rs := left.Schema(), right.Schema()
	if ls != nil && rs != nil && !equalSchemas(ls, rs) {
		return nil, &errors.SchemaValidationError{
			Op:        "Union",
			Missing:   rs,
			Available: ls,
			Message:   "inputs must have identical schemas",
		}
	}
	schema := ls
	if schema == nil {
		schema = rs
	}
	return &Union{left: left, right: right, schema: schema}, nil
}

func equalSchemas(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (u *Union) Kind() OpKind { return KindUnion }
func (u *Union) Inputs() []Operation { return []Operation{u.left, u.right} }
func (u *Union) Schema() []string { return u.schema }

func (u *Union) String() string { return "Union()" }

// Pivot reshapes long to wide: one output row per distinct index value, one
// output column per distinct pivot-column value. The index is restricted to
// a single column; multi-column indexes fail at translation, not silently.
type Pivot struct {
	input   Operation
	index   []string
	columns string
	values  string
	aggFunc string
}

// NewPivot creates a long-to-wide reshape. AggFunc defaults to "first".
func NewPivot(input Operation, index []string, columns, values, aggFunc string) (*Pivot, error) {
	if input == nil {
		return nil, fmt.Errorf("Pivot: operation must have exactly one input")
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("Pivot: operation must specify index column(s)")
	}
	if columns == "" {
		return nil, fmt.Errorf("Pivot: operation must specify columns")
	}
	if values == "" {
		return nil, fmt.Errorf("Pivot: operation must specify values")
	}
	if aggFunc == "" {
		aggFunc = "first"
	}
	refs := append(append([]string(nil), index...), columns, values)
	if err := checkColumns("Pivot", input.Schema(), refs); err != nil {
		return nil, err
	}
	return &Pivot{input: input, index: index, columns: columns, values: values, aggFunc: aggFunc}, nil
}

func (p *Pivot) Kind() OpKind { return KindPivot }
func (p *Pivot) Inputs() []Operation { return []Operation{p.input} }
func (p *Pivot) Index() []string { return p.index }
func (p *Pivot) Columns() string { return p.columns }
func (p *Pivot) Values() string { return p.values }
func (p *Pivot) AggFunc() string { return p.aggFunc }

// Schema returns nil: the output columns depend on the distinct values in
// the pivot column, which are not statically known.
func (p *Pivot) Schema() []string { return nil }

func (p *Pivot) String() string {
	return fmt.Sprintf("Pivot(index=%v, columns=%q, values=%q, aggfunc=%q)", p.index, p.columns, p.values, p.aggFunc)
}

// Melt reshapes wide to long: identifier columns repeat per value column,
// with variable-name and value columns fanned out alongside.
type Melt struct {
	input     Operation
	idVars    []string
	valueVars []string
	varName   string
	valueName string
	schema    []string
}

// NewMelt creates a wide-to-long reshape. A nil valueVars means every
// non-identifier column; varName and valueName default to "variable" and
// "value".
func NewMelt(input Operation, idVars, valueVars []string, varName, valueName string) (*Melt, error) {
	if input == nil {
		return nil, fmt.Errorf("Melt: operation must have exactly one input")
	}
	if len(idVars) == 0 {
		return nil, fmt.Errorf("Melt: operation must specify id_vars")
	}
	if varName == "" {
		varName = "variable"
	}
	if valueName == "" {
		valueName = "value"
	}
	refs := append(append([]string(nil), idVars...), valueVars...)
	if err := checkColumns("Melt", input.Schema(), refs); err != nil {
		return nil, err
	}
	schema := append([]string(nil), idVars...)
	schema = append(schema, varName, valueName)
	return &Melt{
		input: input, idVars: idVars, valueVars: valueVars,
		varName: varName, valueName: valueName, schema: schema,
	}, nil
}

func (m *Melt) Kind() OpKind { return KindMelt }
func (m *Melt) Inputs() []Operation { return []Operation{m.input} }
func (m *Melt) Schema() []string { return m.schema }
func (m *Melt) IDVars() []string { return m.idVars }
func (m *Melt) ValueVars() []string { return m.valueVars }
func (m *Melt) VarName() string { return m.varName }
func (m *Melt) ValueName() string { return m.valueName }

func (m *Melt) String() string {
	if m.valueVars != nil {
		return fmt.Sprintf("Melt(id_vars=%v, value_vars=%v)", m.idVars, m.valueVars)
	}
	return fmt.Sprintf("Melt(id_vars=%v)", m.idVars)
}

// WindowSpec configures a Window node.
type WindowSpec struct {
	Function     string
	InputColumn  string // empty for functions like row_number
	OutputColumn string
	PartitionBy  []string
	OrderBy      []SortKey
	Frame        string // optional frame spec or offset for lag/lead
}

// Window computes a per-row value over a partition and ordering without
// collapsing rows.
type Window struct {
	input  Operation
	spec   WindowSpec
	schema []string
}

// NewWindow creates a windowed computation.
func NewWindow(input Operation, spec WindowSpec) (*Window, error) {
	if input == nil {
		return nil, fmt.Errorf("Window: operation must have exactly one input")
	}
	if spec.Function == "" {
		return nil, fmt.Errorf("Window: operation must specify a function")
	}
	if spec.OutputColumn == "" {
		return nil, fmt.Errorf("Window: operation must specify an output column")
	}
	if err := validateSortKeys("Window", spec.OrderBy, input.Schema()); err != nil {
		return nil, err
	}
	refs := append([]string(nil), spec.PartitionBy...)
	if spec.InputColumn != "" {
		refs = append(refs, spec.InputColumn)
	}
	if err := checkColumns("Window", input.Schema(), refs); err != nil {
		return nil, err
	}
	var schema []string
	if in := input.Schema(); in != nil {
		schema = append([]string(nil), in...)
		if !containsString(schema, spec.OutputColumn) {
			schema = append(schema, spec.OutputColumn)
		}
	}
	return &Window{input: input, spec: spec, schema: schema}, nil
}

func (w *Window) Kind() OpKind { return KindWindow }
func (w *Window) Inputs() []Operation { return []Operation{w.input} }
func (w *Window) Schema() []string { return w.schema }
func (w *Window) Function() string { return w.spec.Function }
func (w *Window) InputColumn() string { return w.spec.InputColumn }
func (w *Window) OutputColumn() string { return w.spec.OutputColumn }
func (w *Window) PartitionBy() []string { return w.spec.PartitionBy }
func (w *Window) OrderBy() []SortKey { return w.spec.OrderBy }
func (w *Window) Frame() string { return w.spec.Frame }

func (w *Window) String() string {
	desc := fmt.Sprintf("Window(function=%q, output=%q", w.spec.Function, w.spec.OutputColumn)
	if len(w.spec.PartitionBy) > 0 {
		desc += fmt.Sprintf(", partition_by=%v", w.spec.PartitionBy)
	}
	if len(w.spec.OrderBy) > 0 {
		parts := make([]string, len(w.spec.OrderBy))
		for i, k := range w.spec.OrderBy {
			parts[i] = fmt.Sprintf("(%s, %s)", k.Column, k.Direction)
		}
		desc += fmt.Sprintf(", order_by=[%s]", strings.Join(parts, ", "))
	}
	return desc + ")"
}
