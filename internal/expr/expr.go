// Package expr provides the scalar/boolean expression tree used by Filter,
// WithColumn, and Window operations. Expressions are built once, treated as
// immutable, and later lowered to spreadsheet formula fragments.
package expr

import (
	"fmt"
	"strings"
)

// ExprKind represents the kind of expression node.
type ExprKind int

const (
	KindColumn ExprKind = iota
	KindLiteral
	KindBinary
	KindUnary
	KindCall
)

// Expr is an immutable expression tree node.
type Expr interface {
	Kind() ExprKind
	String() string
}

// ColumnExpr references a named input column.
type ColumnExpr struct {
	name string
}

func (c *ColumnExpr) Kind() ExprKind { return KindColumn }

func (c *ColumnExpr) String() string { return fmt.Sprintf("col(%s)", c.name) }

// Name returns the referenced column name.
func (c *ColumnExpr) Name() string { return c.name }

// LiteralExpr holds a constant scalar value.
type LiteralExpr struct {
	value any
}

func (l *LiteralExpr) Kind() ExprKind { return KindLiteral }

func (l *LiteralExpr) String() string { return fmt.Sprintf("lit(%v)", l.value) }

// Value returns the wrapped scalar.
func (l *LiteralExpr) Value() any { return l.value }

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpGt
	OpLt
	OpGe
	OpLe
	OpEq
	OpNe
	OpAnd
	OpOr
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpGt: ">", OpLt: "<", OpGe: ">=", OpLe: "<=",
	OpEq: "==", OpNe: "!=", OpAnd: "and", OpOr: "or",
}

// Symbol returns the canonical operator spelling used in serialization.
func (op BinaryOp) Symbol() string { return binaryOpNames[op] }

// ParseBinaryOp resolves a canonical operator spelling.
func ParseBinaryOp(symbol string) (BinaryOp, error) {
	for op, s := range binaryOpNames {
		if s == symbol {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown binary operator %q", symbol)
}

// BinaryExpr applies a binary operator to two subexpressions.
type BinaryExpr struct {
	left  Expr
	op    BinaryOp
	right Expr
}

func (b *BinaryExpr) Kind() ExprKind { return KindBinary }

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left.String(), b.op.Symbol(), b.right.String())
}

// Left returns the left operand.
func (b *BinaryExpr) Left() Expr { return b.left }

// Op returns the operator.
func (b *BinaryExpr) Op() BinaryOp { return b.op }

// Right returns the right operand.
func (b *BinaryExpr) Right() Expr { return b.right }

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

// Symbol returns the canonical operator spelling used in serialization.
func (op UnaryOp) Symbol() string {
	if op == OpNeg {
		return "neg"
	}
	return "not"
}

// ParseUnaryOp resolves a canonical operator spelling.
func ParseUnaryOp(symbol string) (UnaryOp, error) {
	switch symbol {
	case "neg":
		return OpNeg, nil
	case "not":
		return OpNot, nil
	}
	return 0, fmt.Errorf("unknown unary operator %q", symbol)
}

// UnaryExpr applies a unary operator to a subexpression.
type UnaryExpr struct {
	op      UnaryOp
	operand Expr
}

func (u *UnaryExpr) Kind() ExprKind { return KindUnary }

func (u *UnaryExpr) String() string {
	return fmt.Sprintf("(%s %s)", u.op.Symbol(), u.operand.String())
}

// Op returns the operator.
func (u *UnaryExpr) Op() UnaryOp { return u.op }

// Operand returns the operand.
func (u *UnaryExpr) Operand() Expr { return u.operand }

// CallExpr applies a named function to argument expressions. Function names
// pass through to the target dialect unchanged.
type CallExpr struct {
	fn   string
	args []Expr
}

func (c *CallExpr) Kind() ExprKind { return KindCall }

func (c *CallExpr) String() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.fn, strings.Join(parts, ", "))
}

// Func returns the function name.
func (c *CallExpr) Func() string { return c.fn }

// Args returns the argument expressions.
func (c *CallExpr) Args() []Expr { return c.args }

// Constructor functions

// Col creates a column reference.
func Col(name string) *ColumnExpr { return &ColumnExpr{name: name} }

// Lit creates a literal value.
func Lit(value any) *LiteralExpr { return &LiteralExpr{value: value} }

// NewBinary creates a binary operation node.
func NewBinary(op BinaryOp, left, right Expr) *BinaryExpr {
	return &BinaryExpr{left: left, op: op, right: right}
}

// NewUnary creates a unary operation node.
func NewUnary(op UnaryOp, operand Expr) *UnaryExpr {
	return &UnaryExpr{op: op, operand: operand}
}

// NewCall creates a function call node.
func NewCall(fn string, args ...Expr) *CallExpr {
	return &CallExpr{fn: fn, args: args}
}

// Explicit named constructors. These are the primary building API; the
// fluent methods in builder.go are sugar over the same nodes.

// Add builds left + right.
func Add(left, right Expr) *BinaryExpr { return NewBinary(OpAdd, left, right) }

// Sub builds left - right.
func Sub(left, right Expr) *BinaryExpr { return NewBinary(OpSub, left, right) }

// Mul builds left * right.
func Mul(left, right Expr) *BinaryExpr { return NewBinary(OpMul, left, right) }

// Div builds left / right.
func Div(left, right Expr) *BinaryExpr { return NewBinary(OpDiv, left, right) }

// Mod builds left % right.
func Mod(left, right Expr) *BinaryExpr { return NewBinary(OpMod, left, right) }

// GreaterThan builds left > right.
func GreaterThan(left, right Expr) *BinaryExpr { return NewBinary(OpGt, left, right) }

// LessThan builds left < right.
func LessThan(left, right Expr) *BinaryExpr { return NewBinary(OpLt, left, right) }

// GreaterOrEqual builds left >= right.
func GreaterOrEqual(left, right Expr) *BinaryExpr { return NewBinary(OpGe, left, right) }

// LessOrEqual builds left <= right.
func LessOrEqual(left, right Expr) *BinaryExpr { return NewBinary(OpLe, left, right) }

// Equals builds left == right. This constructs a comparison node; structural
// equality of expression trees is Equal, never this.
func Equals(left, right Expr) *BinaryExpr { return NewBinary(OpEq, left, right) }

// NotEquals builds left != right.
func NotEquals(left, right Expr) *BinaryExpr { return NewBinary(OpNe, left, right) }

// And builds left and right.
func And(left, right Expr) *BinaryExpr { return NewBinary(OpAnd, left, right) }

// Or builds left or right.
func Or(left, right Expr) *BinaryExpr { return NewBinary(OpOr, left, right) }

// Neg builds -operand.
func Neg(operand Expr) *UnaryExpr { return NewUnary(OpNeg, operand) }

// Not builds not operand.
func Not(operand Expr) *UnaryExpr { return NewUnary(OpNot, operand) }
