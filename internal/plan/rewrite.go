package plan

import "fmt"

// WithInputs rebuilds an operation on new inputs, preserving every other
// field including fused predicates and limits. Rebuilding goes through the
// constructors, so schema validation reruns against the new inputs. This is
// the rewrite primitive optimizer passes use instead of mutation.
func WithInputs(op Operation, inputs []Operation) (Operation, error) {
	switch x := op.(type) {
	case *Source:
		if len(inputs) != 0 {
			return nil, fmt.Errorf("Source: operation cannot have inputs")
		}
		return x, nil

	case *Select:
		in, err := exactlyOne("Select", inputs)
		if err != nil {
			return nil, err
		}
		s, err := NewSelect(in, x.columns)
		if err != nil {
			return nil, err
		}
		s.predicate = x.predicate
		return s, nil

	case *Filter:
		in, err := exactlyOne("Filter", inputs)
		if err != nil {
			return nil, err
		}
		return NewFilter(in, x.predicate)

	case *Join:
		if len(inputs) != 2 {
			return nil, fmt.Errorf("Join: operation must have exactly two inputs")
		}
		return NewJoin(inputs[0], inputs[1], x.leftOn, x.rightOn, x.joinType)

	case *GroupBy:
		in, err := exactlyOne("GroupBy", inputs)
		if err != nil {
			return nil, err
		}
		g, err := NewGroupBy(in, x.keys, x.aggregations)
		if err != nil {
			return nil, err
		}
		g.sortKeys = x.sortKeys
		g.limit = x.limit
		return g, nil

	case *Aggregate:
		in, err := exactlyOne("Aggregate", inputs)
		if err != nil {
			return nil, err
		}
		return NewAggregate(in, x.aggregations)

	case *Sort:
		in, err := exactlyOne("Sort", inputs)
		if err != nil {
			return nil, err
		}
		s, err := NewSort(in, x.keys)
		if err != nil {
			return nil, err
		}
		s.limit = x.limit
		s.predicate = x.predicate
		return s, nil

	case *Limit:
		in, err := exactlyOne("Limit", inputs)
		if err != nil {
			return nil, err
		}
		return NewLimit(in, x.count, x.end)

	case *WithColumn:
		in, err := exactlyOne("WithColumn", inputs)
		if err != nil {
			return nil, err
		}
		return NewWithColumn(in, x.column, x.expression)

	case *Union:
		if len(inputs) != 2 {
			return nil, fmt.Errorf("Union: operation must have exactly two inputs")
		}
		return NewUnion(inputs[0], inputs[1])

	case *Pivot:
		in, err := exactlyOne("Pivot", inputs)
		if err != nil {
			return nil, err
		}
		return NewPivot(in, x.index, x.columns, x.values, x.aggFunc)

	case *Melt:
		in, err := exactlyOne("Melt", inputs)
		if err != nil {
			return nil, err
		}
		return NewMelt(in, x.idVars, x.valueVars, x.varName, x.valueName)

	case *Window:
		in, err := exactlyOne("Window", inputs)
		if err != nil {
			return nil, err
		}
		return NewWindow(in, x.spec)
	}
	return nil, fmt.Errorf("cannot rebuild operation of kind %q", op.Kind())
}

func exactlyOne(op string, inputs []Operation) (Operation, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%s: operation must have exactly one input, got %d", op, len(inputs))
	}
	return inputs[0], nil
}
