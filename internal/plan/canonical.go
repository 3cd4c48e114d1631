package plan

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/cellform/cellform/internal/expr"
)

// Version is the canonical serialization format version. Decoding rejects
// any other value.
const Version = 1

// planEnvelope is the top-level {version, root} wrapper.
type planEnvelope struct {
	Version int             `json:"version"`
	Root    json.RawMessage `json:"root"`
}

// opEnvelope is the union of every operation's serialized fields. Fields
// whose shape differs across kinds ("columns" is a list for Select and a
// string for Pivot, "keys" is a list for GroupBy and key pairs for Sort)
// stay raw and decode per kind.
type opEnvelope struct {
	Type   string            `json:"type"`
	Input  json.RawMessage   `json:"input,omitempty"`
	Inputs []json.RawMessage `json:"inputs,omitempty"`

	SourceID string   `json:"source_id,omitempty"`
	Schema   []string `json:"schema,omitempty"`

	Columns   json.RawMessage `json:"columns,omitempty"`
	Predicate json.RawMessage `json:"predicate,omitempty"`

	LeftOn   []string `json:"left_on,omitempty"`
	RightOn  []string `json:"right_on,omitempty"`
	JoinType string   `json:"join_type,omitempty"`

	Keys         json.RawMessage `json:"keys,omitempty"`
	Aggregations [][]string      `json:"aggregations,omitempty"`
	SortKeys     [][]string      `json:"sort_keys,omitempty"`
	Limit        *int            `json:"limit,omitempty"`

	Count *int   `json:"count,omitempty"`
	End   string `json:"end,omitempty"`

	Column     string          `json:"column,omitempty"`
	Expression json.RawMessage `json:"expression,omitempty"`

	Index   []string `json:"index,omitempty"`
	Values  string   `json:"values,omitempty"`
	AggFunc string   `json:"aggfunc,omitempty"`

	IDVars    []string `json:"id_vars,omitempty"`
	ValueVars []string `json:"value_vars,omitempty"`
	VarName   string   `json:"var_name,omitempty"`
	ValueName string   `json:"value_name,omitempty"`

	Function     string     `json:"function,omitempty"`
	InputColumn  string     `json:"input_column,omitempty"`
	OutputColumn string     `json:"output_column,omitempty"`
	PartitionBy  []string   `json:"partition_by,omitempty"`
	OrderBy      [][]string `json:"order_by,omitempty"`
	Frame        string     `json:"frame,omitempty"`
}

// MarshalPlan encodes a plan as its canonical {version, root} JSON form.
// Source row data never serializes; only the structural tree does.
func MarshalPlan(p *LogicalPlan) ([]byte, error) {
	root, err := MarshalOperation(p.root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(planEnvelope{Version: Version, Root: root})
}

// UnmarshalPlan decodes a canonical plan, rejecting version mismatches.
// Operation construction reruns, so arity and schema validation apply to
// decoded trees exactly as to built ones.
func UnmarshalPlan(data []byte) (*LogicalPlan, error) {
	var env planEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("unsupported plan version %d, want %d", env.Version, Version)
	}
	if len(env.Root) == 0 {
		return nil, fmt.Errorf("plan is missing a root operation")
	}
	root, err := UnmarshalOperation(env.Root)
	if err != nil {
		return nil, err
	}
	return NewLogicalPlan(root)
}

// Fingerprint returns a stable 64-bit hash of the plan's canonical form.
func (p *LogicalPlan) Fingerprint() (uint64, error) {
	data, err := MarshalPlan(p)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

// MarshalOperation encodes one operation subtree as tagged JSON.
func MarshalOperation(op Operation) ([]byte, error) {
	env := opEnvelope{Type: op.Kind().String()}

	marshalInput := func(in Operation) error {
		data, err := MarshalOperation(in)
		if err != nil {
			return err
		}
		env.Input = data
		return nil
	}
	marshalInputs := func(ins []Operation) error {
		env.Inputs = make([]json.RawMessage, len(ins))
		for i, in := range ins {
			data, err := MarshalOperation(in)
			if err != nil {
				return err
			}
			env.Inputs[i] = data
		}
		return nil
	}

	switch x := op.(type) {
	case *Source:
		env.SourceID = x.sourceID
		env.Schema = x.schema
		// leaf: neither input nor inputs

	case *Select:
		cols, _ := json.Marshal(x.columns)
		env.Columns = cols
		if x.predicate != nil {
			pred, err := expr.MarshalExpr(x.predicate)
			if err != nil {
				return nil, err
			}
			env.Predicate = pred
		}
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *Filter:
		pred, err := expr.MarshalExpr(x.predicate)
		if err != nil {
			return nil, err
		}
		env.Predicate = pred
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *Join:
		env.LeftOn = x.leftOn
		env.RightOn = x.rightOn
		env.JoinType = string(x.joinType)
		if err := marshalInputs([]Operation{x.left, x.right}); err != nil {
			return nil, err
		}

	case *GroupBy:
		keys, _ := json.Marshal(x.keys)
		env.Keys = keys
		env.Aggregations = encodeAggs(x.aggregations)
		if len(x.sortKeys) > 0 {
			env.SortKeys = encodeSortKeys(x.sortKeys)
		}
		if x.limit >= 0 {
			limit := x.limit
			env.Limit = &limit
		}
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *Aggregate:
		env.Aggregations = encodeAggs(x.aggregations)
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *Sort:
		keys, _ := json.Marshal(encodeSortKeys(x.keys))
		env.Keys = keys
		if x.limit >= 0 {
			limit := x.limit
			env.Limit = &limit
		}
		if x.predicate != nil {
			pred, err := expr.MarshalExpr(x.predicate)
			if err != nil {
				return nil, err
			}
			env.Predicate = pred
		}
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *Limit:
		count := x.count
		env.Count = &count
		env.End = string(x.end)
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *WithColumn:
		env.Column = x.column
		e, err := expr.MarshalExpr(x.expression)
		if err != nil {
			return nil, err
		}
		env.Expression = e
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *Union:
		if err := marshalInputs([]Operation{x.left, x.right}); err != nil {
			return nil, err
		}

	case *Pivot:
		env.Index = x.index
		cols, _ := json.Marshal(x.columns)
		env.Columns = cols
		env.Values = x.values
		env.AggFunc = x.aggFunc
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *Melt:
		env.IDVars = x.idVars
		env.ValueVars = x.valueVars
		env.VarName = x.varName
		env.ValueName = x.valueName
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	case *Window:
		env.Function = x.spec.Function
		env.InputColumn = x.spec.InputColumn
		env.OutputColumn = x.spec.OutputColumn
		env.PartitionBy = x.spec.PartitionBy
		if len(x.spec.OrderBy) > 0 {
			env.OrderBy = encodeSortKeys(x.spec.OrderBy)
		}
		env.Frame = x.spec.Frame
		if err := marshalInput(x.input); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("cannot encode operation of kind %q", op.Kind())
	}

	return json.Marshal(env)
}

// UnmarshalOperation decodes a tagged operation subtree, reconstructing it
// through the public constructors so every invariant is re-checked.
func UnmarshalOperation(data []byte) (Operation, error) {
	var env opEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding operation: %w", err)
	}

	kind, err := ParseOpKind(env.Type)
	if err != nil {
		return nil, err
	}

	inputs, err := decodeInputs(env)
	if err != nil {
		return nil, err
	}

	one := func() (Operation, error) {
		if len(inputs) != 1 {
			return nil, fmt.Errorf("%s: operation must have exactly one input, got %d", env.Type, len(inputs))
		}
		return inputs[0], nil
	}
	two := func() (Operation, Operation, error) {
		if len(inputs) != 2 {
			return nil, nil, fmt.Errorf("%s: operation must have exactly two inputs, got %d", env.Type, len(inputs))
		}
		return inputs[0], inputs[1], nil
	}

	switch kind {
	case KindSource:
		if len(inputs) != 0 {
			return nil, fmt.Errorf("source: operation cannot have inputs")
		}
		return NewSource(env.SourceID, env.Schema, nil), nil

	case KindSelect:
		in, err := one()
		if err != nil {
			return nil, err
		}
		var columns []string
		if err := json.Unmarshal(env.Columns, &columns); err != nil {
			return nil, fmt.Errorf("select: decoding columns: %w", err)
		}
		sel, err := NewSelect(in, columns)
		if err != nil {
			return nil, err
		}
		if len(env.Predicate) > 0 {
			pred, err := expr.UnmarshalExpr(env.Predicate)
			if err != nil {
				return nil, err
			}
			sel = sel.WithPredicate(pred)
		}
		return sel, nil

	case KindFilter:
		in, err := one()
		if err != nil {
			return nil, err
		}
		pred, err := expr.UnmarshalExpr(env.Predicate)
		if err != nil {
			return nil, err
		}
		return NewFilter(in, pred)

	case KindJoin:
		left, right, err := two()
		if err != nil {
			return nil, err
		}
		return NewJoin(left, right, env.LeftOn, env.RightOn, JoinType(env.JoinType))

	case KindGroupBy:
		in, err := one()
		if err != nil {
			return nil, err
		}
		var keys []string
		if len(env.Keys) > 0 {
			if err := json.Unmarshal(env.Keys, &keys); err != nil {
				return nil, fmt.Errorf("groupby: decoding keys: %w", err)
			}
		}
		aggs, err := decodeAggs(env.Aggregations)
		if err != nil {
			return nil, err
		}
		g, err := NewGroupBy(in, keys, aggs)
		if err != nil {
			return nil, err
		}
		if len(env.SortKeys) > 0 || env.Limit != nil {
			sortKeys, err := decodeSortKeys(env.SortKeys)
			if err != nil {
				return nil, err
			}
			limit := -1
			if env.Limit != nil {
				limit = *env.Limit
			}
			g = g.WithSort(sortKeys, limit)
		}
		return g, nil

	case KindAggregate:
		in, err := one()
		if err != nil {
			return nil, err
		}
		aggs, err := decodeAggs(env.Aggregations)
		if err != nil {
			return nil, err
		}
		return NewAggregate(in, aggs)

	case KindSort:
		in, err := one()
		if err != nil {
			return nil, err
		}
		var rawKeys [][]string
		if err := json.Unmarshal(env.Keys, &rawKeys); err != nil {
			return nil, fmt.Errorf("sort: decoding keys: %w", err)
		}
		keys, err := decodeSortKeys(rawKeys)
		if err != nil {
			return nil, err
		}
		s, err := NewSort(in, keys)
		if err != nil {
			return nil, err
		}
		if env.Limit != nil {
			s = s.WithLimit(*env.Limit)
		}
		if len(env.Predicate) > 0 {
			pred, err := expr.UnmarshalExpr(env.Predicate)
			if err != nil {
				return nil, err
			}
			s = s.WithPredicate(pred)
		}
		return s, nil

	case KindLimit:
		in, err := one()
		if err != nil {
			return nil, err
		}
		count := 0
		if env.Count != nil {
			count = *env.Count
		}
		return NewLimit(in, count, LimitEnd(env.End))

	case KindWithColumn:
		in, err := one()
		if err != nil {
			return nil, err
		}
		e, err := expr.UnmarshalExpr(env.Expression)
		if err != nil {
			return nil, err
		}
		return NewWithColumn(in, env.Column, e)

	case KindUnion:
		left, right, err := two()
		if err != nil {
			return nil, err
		}
		return NewUnion(left, right)

	case KindPivot:
		in, err := one()
		if err != nil {
			return nil, err
		}
		var columns string
		if err := json.Unmarshal(env.Columns, &columns); err != nil {
			return nil, fmt.Errorf("pivot: decoding columns: %w", err)
		}
		return NewPivot(in, env.Index, columns, env.Values, env.AggFunc)

	case KindMelt:
		in, err := one()
		if err != nil {
			return nil, err
		}
		return NewMelt(in, env.IDVars, env.ValueVars, env.VarName, env.ValueName)

	case KindWindow:
		in, err := one()
		if err != nil {
			return nil, err
		}
		orderBy, err := decodeSortKeys(env.OrderBy)
		if err != nil {
			return nil, err
		}
		return NewWindow(in, WindowSpec{
			Function:     env.Function,
			InputColumn:  env.InputColumn,
			OutputColumn: env.OutputColumn,
			PartitionBy:  env.PartitionBy,
			OrderBy:      orderBy,
			Frame:        env.Frame,
		})
	}

	return nil, fmt.Errorf("unknown operation type %q", env.Type)
}

// decodeInputs gathers child operations from either the "inputs" list or the
// unary "input" shorthand.
func decodeInputs(env opEnvelope) ([]Operation, error) {
	raw := env.Inputs
	if len(raw) == 0 && len(env.Input) > 0 {
		raw = []json.RawMessage{env.Input}
	}
	inputs := make([]Operation, len(raw))
	for i, r := range raw {
		in, err := UnmarshalOperation(r)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}
	return inputs, nil
}

func encodeAggs(aggs []Agg) [][]string {
	out := make([][]string, len(aggs))
	for i, a := range aggs {
		out[i] = []string{a.Out, a.Func, a.Column}
	}
	return out
}

func decodeAggs(raw [][]string) ([]Agg, error) {
	aggs := make([]Agg, len(raw))
	for i, triple := range raw {
		if len(triple) != 3 {
			return nil, fmt.Errorf("aggregation must be an [out, func, column] triple, got %v", triple)
		}
		aggs[i] = Agg{Out: triple[0], Func: triple[1], Column: triple[2]}
	}
	return aggs, nil
}

func encodeSortKeys(keys []SortKey) [][]string {
	out := make([][]string, len(keys))
	for i, k := range keys {
		out[i] = []string{k.Column, string(k.Direction)}
	}
	return out
}

func decodeSortKeys(raw [][]string) ([]SortKey, error) {
	keys := make([]SortKey, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("sort key must be a [column, direction] pair, got %v", pair)
		}
		keys[i] = SortKey{Column: pair[0], Direction: SortDirection(pair[1])}
	}
	return keys, nil
}
