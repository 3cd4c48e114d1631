package expr

import (
	"encoding/json"
	"fmt"
)

// Canonical JSON encoding. Every node carries a "type" tag so trees survive
// a round trip without reflection tricks on the reader side.

type exprEnvelope struct {
	Type string `json:"type"`

	// column
	Name string `json:"name,omitempty"`

	// literal; pointer so false and 0 still serialize
	Value *any `json:"value,omitempty"`

	// binary_op / unary_op
	Op      string          `json:"op,omitempty"`
	Left    json.RawMessage `json:"left,omitempty"`
	Right   json.RawMessage `json:"right,omitempty"`
	Operand json.RawMessage `json:"operand,omitempty"`

	// function_call
	Function string            `json:"function,omitempty"`
	Args     []json.RawMessage `json:"args,omitempty"`
}

const (
	tagColumn  = "column"
	tagLiteral = "literal"
	tagBinary  = "binary_op"
	tagUnary   = "unary_op"
	tagCall    = "function_call"
)

// MarshalExpr encodes an expression tree as tagged JSON.
func MarshalExpr(e Expr) ([]byte, error) {
	switch x := e.(type) {
	case *ColumnExpr:
		return json.Marshal(exprEnvelope{Type: tagColumn, Name: x.name})
	case *LiteralExpr:
		v := x.value
		return json.Marshal(exprEnvelope{Type: tagLiteral, Value: &v})
	case *BinaryExpr:
		left, err := MarshalExpr(x.left)
		if err != nil {
			return nil, err
		}
		right, err := MarshalExpr(x.right)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprEnvelope{Type: tagBinary, Op: x.op.Symbol(), Left: left, Right: right})
	case *UnaryExpr:
		operand, err := MarshalExpr(x.operand)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprEnvelope{Type: tagUnary, Op: x.op.Symbol(), Operand: operand})
	case *CallExpr:
		args := make([]json.RawMessage, len(x.args))
		for i, a := range x.args {
			data, err := MarshalExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = data
		}
		return json.Marshal(exprEnvelope{Type: tagCall, Function: x.fn, Args: args})
	}
	return nil, fmt.Errorf("cannot encode expression of kind %d", e.Kind())
}

// UnmarshalExpr decodes tagged JSON produced by MarshalExpr.
func UnmarshalExpr(data []byte) (Expr, error) {
	var env exprEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding expression: %w", err)
	}
	switch env.Type {
	case tagColumn:
		if env.Name == "" {
			return nil, fmt.Errorf("column expression missing name")
		}
		return Col(env.Name), nil
	case tagLiteral:
		if env.Value == nil {
			return Lit(nil), nil
		}
		return Lit(*env.Value), nil
	case tagBinary:
		op, err := ParseBinaryOp(env.Op)
		if err != nil {
			return nil, err
		}
		left, err := UnmarshalExpr(env.Left)
		if err != nil {
			return nil, err
		}
		right, err := UnmarshalExpr(env.Right)
		if err != nil {
			return nil, err
		}
		return NewBinary(op, left, right), nil
	case tagUnary:
		op, err := ParseUnaryOp(env.Op)
		if err != nil {
			return nil, err
		}
		operand, err := UnmarshalExpr(env.Operand)
		if err != nil {
			return nil, err
		}
		return NewUnary(op, operand), nil
	case tagCall:
		if env.Function == "" {
			return nil, fmt.Errorf("function call expression missing function name")
		}
		args := make([]Expr, len(env.Args))
		for i, raw := range env.Args {
			arg, err := UnmarshalExpr(raw)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return NewCall(env.Function, args...), nil
	}
	return nil, fmt.Errorf("unknown expression type %q", env.Type)
}
