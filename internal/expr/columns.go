package expr

import "sort"

// ReferencedColumns returns the sorted set of column names the expression
// reads. Literals contribute nothing; duplicates collapse.
func ReferencedColumns(e Expr) []string {
	seen := map[string]struct{}{}
	collectColumns(e, seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectColumns(e Expr, seen map[string]struct{}) {
	switch x := e.(type) {
	case *ColumnExpr:
		seen[x.name] = struct{}{}
	case *BinaryExpr:
		collectColumns(x.left, seen)
		collectColumns(x.right, seen)
	case *UnaryExpr:
		collectColumns(x.operand, seen)
	case *CallExpr:
		for _, arg := range x.args {
			collectColumns(arg, seen)
		}
	}
}
