package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaValidationError(t *testing.T) {
	err := NewSchemaValidationError("Select", []string{"agee"}, []string{"name", "age"})

	assert.Contains(t, err.Error(), "Select")
	assert.Contains(t, err.Error(), `"agee"`)
	assert.Contains(t, err.Error(), `"name", "age"`)

	same := NewSchemaValidationError("Select", []string{"agee"}, []string{"name", "age"})
	assert.True(t, stderrors.Is(err, same))

	other := NewSchemaValidationError("Filter", []string{"agee"}, []string{"name", "age"})
	assert.False(t, stderrors.Is(err, other))
}

func TestUnsupportedOperationError(t *testing.T) {
	err := NewUnsupportedOperationError("groupby", `aggregation function "median"`, "sum", "mean")

	assert.Contains(t, err.Error(), "groupby")
	assert.Contains(t, err.Error(), "median")
	assert.Contains(t, err.Error(), "sum")

	bare := NewUnsupportedOperationError("window", "opaque predicate")
	assert.Contains(t, bare.Error(), "opaque predicate")
	assert.NotContains(t, bare.Error(), "supported")
}

func TestPlanValidationError(t *testing.T) {
	err := NewPlanValidationError("duplicate sheet names", "a", "b")

	assert.Contains(t, err.Error(), "invalid execution plan")
	assert.Contains(t, err.Error(), `"a", "b"`)

	noNames := NewPlanValidationError("empty plan")
	assert.Equal(t, "invalid execution plan: empty plan", noNames.Error())

	assert.True(t, stderrors.Is(err, NewPlanValidationError("duplicate sheet names", "a", "b")))
	assert.False(t, stderrors.Is(err, NewPlanValidationError("duplicate sheet names", "a")))
}

func TestPlanValidationErrorUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := &PlanValidationError{Message: "scheduling failed", Cause: cause}
	assert.ErrorIs(t, err, cause)
}
