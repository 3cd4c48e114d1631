package expr

import (
	"github.com/cespare/xxhash/v2"
)

// Equal reports whether two expression trees are structurally identical.
// Numeric literals compare by value, so lit(3) and lit(3.0) are equal; this
// keeps comparisons stable across a serialization round trip, where all
// numbers come back as float64.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *ColumnExpr:
		return x.name == b.(*ColumnExpr).name
	case *LiteralExpr:
		return literalEqual(x.value, b.(*LiteralExpr).value)
	case *BinaryExpr:
		y := b.(*BinaryExpr)
		return x.op == y.op && Equal(x.left, y.left) && Equal(x.right, y.right)
	case *UnaryExpr:
		y := b.(*UnaryExpr)
		return x.op == y.op && Equal(x.operand, y.operand)
	case *CallExpr:
		y := b.(*CallExpr)
		if x.fn != y.fn || len(x.args) != len(y.args) {
			return false
		}
		for i := range x.args {
			if !Equal(x.args[i], y.args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func literalEqual(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
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

// Fingerprint returns a stable 64-bit hash of the expression's canonical
// form. Structurally equal expressions hash identically.
func Fingerprint(e Expr) uint64 {
	data, err := MarshalExpr(e)
	if err != nil {
		// Canonical encoding only fails on unknown node kinds, which the
		// closed constructor set cannot produce.
		return 0
	}
	return xxhash.Sum64(data)
}
