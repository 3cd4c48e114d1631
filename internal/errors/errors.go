// Package errors provides standardized error types for pipeline compilation.
// This package defines the three failure classes surfaced by the public API:
// schema validation at plan construction, unsupported constructs during
// translation, and structural inconsistencies during execution planning.
package errors

import (
	"fmt"
	"strings"
)

// SchemaValidationError reports a column reference that does not exist in a
// statically known input schema. It is raised at operation construction time,
// never during translation: an unknown schema skips validation entirely.
type SchemaValidationError struct {
	Op        string   // Operation kind (e.g. "Select", "Join")
	Missing   []string // Columns that were referenced but absent
	Available []string // Columns the input schema actually provides
	Message   string   // Optional extra context
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: column(s) %s not found in input schema %s",
		e.Op, quoteList(e.Missing), quoteList(e.Available))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is implements error equality for errors.Is.
func (e *SchemaValidationError) Is(target error) bool {
	t, ok := target.(*SchemaValidationError)
	if !ok {
		return false
	}
	return e.Op == t.Op && equalStrings(e.Missing, t.Missing) && equalStrings(e.Available, t.Available)
}

// NewSchemaValidationError creates an error for operations that reference
// columns absent from a known schema.
func NewSchemaValidationError(op string, missing, available []string) *SchemaValidationError {
	return &SchemaValidationError{Op: op, Missing: missing, Available: available}
}

// UnsupportedOperationError reports an operation, expression, or function the
// translator cannot lower to a spreadsheet formula. The message names the
// offending construct and, where applicable, the supported alternatives.
type UnsupportedOperationError struct {
	Op        string   // Operation or expression kind
	Construct string   // The specific unsupported construct (function name, frame spec, ...)
	Supported []string // What would have been accepted
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: unsupported %s", e.Op, e.Construct)
	if len(e.Supported) > 0 {
		fmt.Fprintf(&b, " (supported: %s)", strings.Join(e.Supported, ", "))
	}
	return b.String()
}

// Is implements error equality for errors.Is.
func (e *UnsupportedOperationError) Is(target error) bool {
	t, ok := target.(*UnsupportedOperationError)
	if !ok {
		return false
	}
	return e.Op == t.Op && e.Construct == t.Construct
}

// NewUnsupportedOperationError creates an error naming the construct the
// translator met and the set it supports.
func NewUnsupportedOperationError(op, construct string, supported ...string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Op: op, Construct: construct, Supported: supported}
}

// PlanValidationError reports a structural inconsistency in translator output
// discovered by the scheduler: duplicate sheet names, references to sheets
// that were never created, or circular cross-sheet dependencies. These signal
// internal bugs rather than bad user data.
type PlanValidationError struct {
	Message string
	Names   []string // Offending sheet or range names
	Cause   error
}

// Error implements the error interface.
func (e *PlanValidationError) Error() string {
	if len(e.Names) > 0 {
		return fmt.Sprintf("invalid execution plan: %s: %s", e.Message, quoteList(e.Names))
	}
	return fmt.Sprintf("invalid execution plan: %s", e.Message)
}

// Unwrap returns the underlying cause for error wrapping support.
func (e *PlanValidationError) Unwrap() error {
	return e.Cause
}

// Is implements error equality for errors.Is.
func (e *PlanValidationError) Is(target error) bool {
	t, ok := target.(*PlanValidationError)
	if !ok {
		return false
	}
	return e.Message == t.Message && equalStrings(e.Names, t.Names)
}

// NewPlanValidationError creates an error naming the offending sheets.
func NewPlanValidationError(message string, names ...string) *PlanValidationError {
	return &PlanValidationError{Message: message, Names: names}
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func equalStrings(a, b []string) bool {
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
