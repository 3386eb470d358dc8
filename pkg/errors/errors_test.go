package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.EqualError(t, err.Unwrap(), "boom")
}

func TestCloneKeepsIdentity(t *testing.T) {
	clone := Clone(ErrValidation, "date is required")
	assert.Equal(t, "date is required", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.True(t, errors.Is(clone, ErrValidation))
	assert.False(t, errors.Is(clone, ErrNotFound))
}

func TestWithDetailsDoesNotMutateTemplate(t *testing.T) {
	details := map[string]int{"count": 2}
	withDetails := ErrDuplicate.WithDetails(details)
	assert.Equal(t, details, withDetails.Details)
	assert.Nil(t, ErrDuplicate.Details)
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", withDetails), ErrDuplicate))
}
