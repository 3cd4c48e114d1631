package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnRefFunc resolves a column name to a range reference in the target
// sheet, for example `'Sheet1'!A1:A100`. It returns an error for columns the
// referencing environment does not know.
type ColumnRefFunc func(name string) (string, error)

// Compile lowers an expression tree to a formula fragment. Logical and/or
// become boolean-array arithmetic (* and +) so the fragment spills correctly
// inside FILTER and ARRAYFORMULA contexts.
func Compile(e Expr, columnRef ColumnRefFunc) (string, error) {
	switch x := e.(type) {
	case *ColumnExpr:
		return columnRef(x.name)
	case *LiteralExpr:
		return compileLiteral(x.value), nil
	case *BinaryExpr:
		left, err := Compile(x.left, columnRef)
		if err != nil {
			return "", err
		}
		right, err := Compile(x.right, columnRef)
		if err != nil {
			return "", err
		}
		switch x.op {
		case OpAnd:
			return fmt.Sprintf("(%s)*(%s)", left, right), nil
		case OpOr:
			return fmt.Sprintf("(%s)+(%s)", left, right), nil
		}
		return fmt.Sprintf("(%s%s%s)", left, formulaBinaryOp(x.op), right), nil
	case *UnaryExpr:
		operand, err := Compile(x.operand, columnRef)
		if err != nil {
			return "", err
		}
		if x.op == OpNeg {
			return fmt.Sprintf("-(%s)", operand), nil
		}
		return fmt.Sprintf("NOT(%s)", operand), nil
	case *CallExpr:
		args := make([]string, len(x.args))
		for i, a := range x.args {
			frag, err := Compile(a, columnRef)
			if err != nil {
				return "", err
			}
			args[i] = frag
		}
		return fmt.Sprintf("%s(%s)", x.fn, strings.Join(args, ", ")), nil
	}
	return "", fmt.Errorf("cannot compile expression of kind %d", e.Kind())
}

// formulaBinaryOp maps an operator to its formula spelling. Most operators
// pass through; equality comparisons use the sheet dialect.
func formulaBinaryOp(op BinaryOp) string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	}
	return op.Symbol()
}

func compileLiteral(v any) string {
	switch n := v.(type) {
	case nil:
		return `""`
	case string:
		return `"` + strings.ReplaceAll(n, `"`, `""`) + `"`
	case bool:
		if n {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
