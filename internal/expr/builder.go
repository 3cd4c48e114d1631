package expr

// Fluent builder methods. These mirror the named constructors so predicates
// read naturally at call sites: expr.Col("age").Gt(expr.Lit(30)).

// Binary operations on column expressions

// Add creates an addition expression.
func (c *ColumnExpr) Add(other Expr) *BinaryExpr { return NewBinary(OpAdd, c, other) }

// Sub creates a subtraction expression.
func (c *ColumnExpr) Sub(other Expr) *BinaryExpr { return NewBinary(OpSub, c, other) }

// Mul creates a multiplication expression.
func (c *ColumnExpr) Mul(other Expr) *BinaryExpr { return NewBinary(OpMul, c, other) }

// Div creates a division expression.
func (c *ColumnExpr) Div(other Expr) *BinaryExpr { return NewBinary(OpDiv, c, other) }

// Mod creates a modulo expression.
func (c *ColumnExpr) Mod(other Expr) *BinaryExpr { return NewBinary(OpMod, c, other) }

// Eq creates an equality comparison node (not structural equality).
func (c *ColumnExpr) Eq(other Expr) *BinaryExpr { return NewBinary(OpEq, c, other) }

// Ne creates a not-equal expression.
func (c *ColumnExpr) Ne(other Expr) *BinaryExpr { return NewBinary(OpNe, c, other) }

// Lt creates a less-than expression.
func (c *ColumnExpr) Lt(other Expr) *BinaryExpr { return NewBinary(OpLt, c, other) }

// Le creates a less-than-or-equal expression.
func (c *ColumnExpr) Le(other Expr) *BinaryExpr { return NewBinary(OpLe, c, other) }

// Gt creates a greater-than expression.
func (c *ColumnExpr) Gt(other Expr) *BinaryExpr { return NewBinary(OpGt, c, other) }

// Ge creates a greater-than-or-equal expression.
func (c *ColumnExpr) Ge(other Expr) *BinaryExpr { return NewBinary(OpGe, c, other) }

// Neg creates a negation expression.
func (c *ColumnExpr) Neg() *UnaryExpr { return NewUnary(OpNeg, c) }

// Binary operations on binary expressions (for chaining)

// Add creates an addition expression.
func (b *BinaryExpr) Add(other Expr) *BinaryExpr { return NewBinary(OpAdd, b, other) }

// Sub creates a subtraction expression.
func (b *BinaryExpr) Sub(other Expr) *BinaryExpr { return NewBinary(OpSub, b, other) }

// Mul creates a multiplication expression.
func (b *BinaryExpr) Mul(other Expr) *BinaryExpr { return NewBinary(OpMul, b, other) }

// Div creates a division expression.
func (b *BinaryExpr) Div(other Expr) *BinaryExpr { return NewBinary(OpDiv, b, other) }

// And creates a logical conjunction.
func (b *BinaryExpr) And(other Expr) *BinaryExpr { return NewBinary(OpAnd, b, other) }

// Or creates a logical disjunction.
func (b *BinaryExpr) Or(other Expr) *BinaryExpr { return NewBinary(OpOr, b, other) }

// Not creates a logical negation.
func (b *BinaryExpr) Not() *UnaryExpr { return NewUnary(OpNot, b) }

// Gt creates a greater-than expression.
func (b *BinaryExpr) Gt(other Expr) *BinaryExpr { return NewBinary(OpGt, b, other) }

// Lt creates a less-than expression.
func (b *BinaryExpr) Lt(other Expr) *BinaryExpr { return NewBinary(OpLt, b, other) }

// Eq creates an equality comparison node.
func (b *BinaryExpr) Eq(other Expr) *BinaryExpr { return NewBinary(OpEq, b, other) }

// Binary operations on call expressions (for chaining)

// Gt creates a greater-than expression.
func (c *CallExpr) Gt(other Expr) *BinaryExpr { return NewBinary(OpGt, c, other) }
