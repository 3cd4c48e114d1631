// Package optimizer rewrites logical plans structurally without inspecting
// data: predicates move toward sources, adjacent compatible operations fuse,
// and trivial operations disappear. Every pass is a pure bottom-up function
// from operation tree to operation tree; nodes are never mutated in place.
package optimizer

import (
	"github.com/cellform/cellform/internal/expr"
	"github.com/cellform/cellform/internal/plan"
)

// Rule is one optimization pass over an operation tree.
type Rule interface {
	Name() string
	Apply(op plan.Operation) (plan.Operation, error)
}

// Optimizer applies a fixed rule sequence. The default sequence is
// idempotent: re-optimizing an optimized plan is a no-op.
type Optimizer struct {
	rules []Rule
}

// New creates an optimizer with the standard pass sequence.
func New() *Optimizer {
	return NewWithRules(
		&PredicatePushdownRule{},
		&ProjectionPushdownRule{},
		&FusionRule{},
		&SimplificationRule{},
	)
}

// NewWithRules creates an optimizer running exactly the given rules in order.
func NewWithRules(rules ...Rule) *Optimizer {
	return &Optimizer{rules: rules}
}

// Optimize runs every rule over the plan and wraps the rewritten root.
func (o *Optimizer) Optimize(p *plan.LogicalPlan) (*plan.LogicalPlan, error) {
	root := p.Root()
	for _, rule := range o.rules {
		var err error
		if root, err = rule.Apply(root); err != nil {
			return nil, err
		}
	}
	return plan.NewLogicalPlan(root)
}

// rewriteBottomUp rebuilds the tree leaves-first, applying fn at every node
// after its inputs have been rewritten.
func rewriteBottomUp(op plan.Operation, fn func(plan.Operation) (plan.Operation, error)) (plan.Operation, error) {
	inputs := op.Inputs()
	if len(inputs) > 0 {
		rewritten := make([]plan.Operation, len(inputs))
		changed := false
		for i, in := range inputs {
			r, err := rewriteBottomUp(in, fn)
			if err != nil {
				return nil, err
			}
			rewritten[i] = r
			if r != in {
				changed = true
			}
		}
		if changed {
			var err error
			if op, err = plan.WithInputs(op, rewritten); err != nil {
				return nil, err
			}
		}
	}
	return fn(op)
}

// PredicatePushdownRule moves filters toward sources: a Filter over a Select
// swaps below it when the predicate only reads selected columns, and
// stacked Filters collapse into one AND-combined Filter.
type PredicatePushdownRule struct{}

func (r *PredicatePushdownRule) Name() string { return "predicate_pushdown" }

func (r *PredicatePushdownRule) Apply(op plan.Operation) (plan.Operation, error) {
	return rewriteBottomUp(op, r.rewrite)
}

func (r *PredicatePushdownRule) rewrite(op plan.Operation) (plan.Operation, error) {
	f, ok := op.(*plan.Filter)
	if !ok {
		return op, nil
	}
	switch child := f.Inputs()[0].(type) {
	case *plan.Select:
		if !subset(expr.ReferencedColumns(f.Predicate()), child.Columns()) {
			return op, nil
		}
		pushed, err := plan.NewFilter(child.Inputs()[0], f.Predicate())
		if err != nil {
			return nil, err
		}
		return plan.WithInputs(child, []plan.Operation{pushed})

	case *plan.Filter:
		// inner predicate first, matching evaluation order
		combined := expr.And(child.Predicate(), f.Predicate())
		return plan.NewFilter(child.Inputs()[0], combined)
	}
	return op, nil
}

// ProjectionPushdownRule merges stacked Selects: the outer, more restrictive
// projection re-roots on the inner's input. A predicate pushed into either
// Select survives the merge.
type ProjectionPushdownRule struct{}

func (r *ProjectionPushdownRule) Name() string { return "projection_pushdown" }

func (r *ProjectionPushdownRule) Apply(op plan.Operation) (plan.Operation, error) {
	return rewriteBottomUp(op, r.rewrite)
}

func (r *ProjectionPushdownRule) rewrite(op plan.Operation) (plan.Operation, error) {
	outer, ok := op.(*plan.Select)
	if !ok {
		return op, nil
	}
	inner, ok := outer.Inputs()[0].(*plan.Select)
	if !ok {
		return op, nil
	}
	merged, err := plan.NewSelect(inner.Inputs()[0], outer.Columns())
	if err != nil {
		return nil, err
	}
	if p := inner.Predicate(); p != nil {
		merged = merged.WithPredicate(p)
	}
	if p := outer.Predicate(); p != nil {
		merged = merged.WithPredicate(p)
	}
	return merged, nil
}

// FusionRule folds adjacent compatible operations into single nodes:
// Limit(Sort) becomes a limited Sort, and Sort(Filter) / Select(Filter)
// absorb the filter as a fused predicate.
type FusionRule struct{}

func (r *FusionRule) Name() string { return "fusion" }

func (r *FusionRule) Apply(op plan.Operation) (plan.Operation, error) {
	return rewriteBottomUp(op, r.rewrite)
}

func (r *FusionRule) rewrite(op plan.Operation) (plan.Operation, error) {
	switch x := op.(type) {
	case *plan.Limit:
		// tail limits keep the other end of the range, so only head fuses
		child, ok := x.Inputs()[0].(*plan.Sort)
		if !ok || x.End() != plan.Head {
			return op, nil
		}
		return child.WithLimit(x.Count()), nil

	case *plan.Sort:
		child, ok := x.Inputs()[0].(*plan.Filter)
		if !ok {
			return op, nil
		}
		rerooted, err := plan.WithInputs(x, []plan.Operation{child.Inputs()[0]})
		if err != nil {
			return nil, err
		}
		return rerooted.(*plan.Sort).WithPredicate(child.Predicate()), nil

	case *plan.Select:
		child, ok := x.Inputs()[0].(*plan.Filter)
		if !ok {
			return op, nil
		}
		rerooted, err := plan.WithInputs(x, []plan.Operation{child.Inputs()[0]})
		if err != nil {
			return nil, err
		}
		return rerooted.(*plan.Select).WithPredicate(child.Predicate()), nil
	}
	return op, nil
}

// SimplificationRule removes trivial operations: identity Selects,
// constant-true Filters, and the inner of two stacked Sorts.
type SimplificationRule struct{}

func (r *SimplificationRule) Name() string { return "simplification" }

func (r *SimplificationRule) Apply(op plan.Operation) (plan.Operation, error) {
	return rewriteBottomUp(op, r.rewrite)
}

func (r *SimplificationRule) rewrite(op plan.Operation) (plan.Operation, error) {
	switch x := op.(type) {
	case *plan.Select:
		if x.Predicate() != nil {
			return op, nil
		}
		child := x.Inputs()[0]
		if cs := child.Schema(); cs != nil && equal(x.Columns(), cs) {
			return child, nil
		}

	case *plan.Filter:
		if isConstantTrue(x.Predicate()) {
			return x.Inputs()[0], nil
		}

	case *plan.Sort:
		inner, ok := x.Inputs()[0].(*plan.Sort)
		if !ok {
			return op, nil
		}
		// an inner limit truncates in the inner order and must survive
		if _, limited := inner.Limit(); limited {
			return op, nil
		}
		collapsed, err := plan.WithInputs(x, inner.Inputs())
		if err != nil {
			return nil, err
		}
		if p := inner.Predicate(); p != nil {
			collapsed = collapsed.(*plan.Sort).WithPredicate(p)
		}
		return collapsed, nil
	}
	return op, nil
}

func isConstantTrue(e expr.Expr) bool {
	lit, ok := e.(*expr.LiteralExpr)
	if !ok {
		return false
	}
	switch v := lit.Value().(type) {
	case bool:
		return v
	case int:
		return v == 1
	case float64:
		return v == 1
	}
	return false
}

func subset(needles, haystack []string) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if h == n {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func equal(a, b []string) bool {
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
