package plan

import (
	"fmt"
	"strings"
)

// LogicalPlan wraps the root operation of an operation tree. Plans are
// cheap values: copying one shares the immutable tree underneath.
type LogicalPlan struct {
	root Operation
}

// NewLogicalPlan wraps a root operation.
func NewLogicalPlan(root Operation) (*LogicalPlan, error) {
	if root == nil {
		return nil, fmt.Errorf("plan root must be an operation, got nil")
	}
	return &LogicalPlan{root: root}, nil
}

// Root returns the root operation.
func (p *LogicalPlan) Root() Operation { return p.root }

// Explain renders the operation tree for debugging. Inputs print before the
// operations that consume them, so the listing reads in evaluation order;
// indentation shows distance from the root.
func (p *LogicalPlan) Explain() string {
	var b strings.Builder
	b.WriteString("Logical Plan:\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteByte('\n')
	explainOperation(&b, p.root, 0)
	return strings.TrimRight(b.String(), "\n")
}

func explainOperation(b *strings.Builder, op Operation, depth int) {
	for _, in := range op.Inputs() {
		explainOperation(b, in, depth+1)
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(op.String())
	b.WriteByte('\n')
}

func (p *LogicalPlan) String() string {
	return fmt.Sprintf("LogicalPlan(root=%s)", p.root.Kind())
}
