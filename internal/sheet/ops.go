package sheet

import (
	"encoding/json"
	"fmt"
)

// OpKind discriminates the workbook mutation operations.
type OpKind string

const (
	KindCreateSheet OpKind = "create_sheet"
	KindSetValues   OpKind = "set_values"
	KindSetFormula  OpKind = "set_formula"
	KindNamedRange  OpKind = "named_range"
)

// Op is a single workbook mutation. The four implementations form a closed
// set; consumers switch exhaustively on Kind().
type Op interface {
	Kind() OpKind
}

// CreateSheet creates a new sheet with the given dimensions. Names must be
// unique within a plan.
type CreateSheet struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

func (CreateSheet) Kind() OpKind { return KindCreateSheet }

// SetValues writes a 2D block of static values starting at (Row, Col).
type SetValues struct {
	Sheet  string  `json:"sheet"`
	Row    int     `json:"row"`
	Col    int     `json:"col"`
	Values [][]any `json:"values"`
}

func (SetValues) Kind() OpKind { return KindSetValues }

// SetFormula installs a formula at (Row, Col). Ref, when non-empty, names a
// sheet this formula reads from; the scheduler uses it to order formula
// writes across sheets.
type SetFormula struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Formula string `json:"formula"`
	Ref     string `json:"ref,omitempty"`
}

func (SetFormula) Kind() OpKind { return KindSetFormula }

// NamedRange registers a symbolic name for a range on an existing sheet.
type NamedRange struct {
	Name   string `json:"name"`
	Sheet  string `json:"sheet"`
	Bounds Range  `json:"bounds"`
}

func (NamedRange) Kind() OpKind { return KindNamedRange }

// MarshalOp encodes an op as canonical tagged JSON: {"type": kind, ...fields}.
func MarshalOp(op Op) ([]byte, error) {
	var payload any
	switch v := op.(type) {
	case CreateSheet:
		payload = struct {
			Type OpKind `json:"type"`
			CreateSheet
		}{v.Kind(), v}
	case SetValues:
		payload = struct {
			Type OpKind `json:"type"`
			SetValues
		}{v.Kind(), v}
	case SetFormula:
		payload = struct {
			Type OpKind `json:"type"`
			SetFormula
		}{v.Kind(), v}
	case NamedRange:
		payload = struct {
			Type OpKind `json:"type"`
			NamedRange
		}{v.Kind(), v}
	default:
		return nil, fmt.Errorf("unknown sheet op type %T", op)
	}
	return json.Marshal(payload)
}

// UnmarshalOp decodes canonical tagged JSON produced by MarshalOp.
func UnmarshalOp(data []byte) (Op, error) {
	var tag struct {
		Type OpKind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decoding sheet op tag: %w", err)
	}
	switch tag.Type {
	case KindCreateSheet:
		var v CreateSheet
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindSetValues:
		var v SetValues
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindSetFormula:
		var v SetFormula
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindNamedRange:
		var v NamedRange
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown sheet op type %q", tag.Type)
	}
}
