package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("socket closed")
	err := Wrap(CodeDependency, cause, "shipping provider call failed")

	require.NotNil(t, err)
	assert.Equal(t, CodeDependency, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: shipping provider call failed", err.Error())
}

func TestAsUnwrapsThroughFmtErrorf(t *testing.T) {
	inner := New(CodeStateConflict, "order already cancelled")
	wrapped := fmt.Errorf("applying transition: %w", inner)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeStateConflict, typed.Code())
}

func TestMetadataForIntegrityFailsClosed(t *testing.T) {
	meta := MetadataFor(CodeIntegrity)
	assert.Equal(t, http.StatusBadRequest, meta.HTTPStatus)
	assert.False(t, meta.Retryable)
	assert.False(t, meta.DetailsAllowed)
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(CodeDependency, "gateway timeout")))
	assert.False(t, IsRetryable(New(CodeIntegrity, "signature mismatch")))
	assert.False(t, IsRetryable(New(CodeBusinessRule, "coins exceed balance")))
	assert.True(t, IsRetryable(stdErrors.New("untyped")))
}
