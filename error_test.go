package docpilot_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fwojciec/docpilot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := docpilot.Errorf(docpilot.ENOTFOUND, "file %q not found", "a.md")

	assert.Equal(t, docpilot.ENOTFOUND, docpilot.ErrorCode(err))
	assert.Equal(t, "file \"a.md\" not found", docpilot.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, docpilot.ErrorCode(nil))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, docpilot.ErrorMessage(nil))
}

func TestErrorCode_PlainError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")

	assert.Equal(t, docpilot.EINTERNAL, docpilot.ErrorCode(err))
	assert.Equal(t, "Internal error.", docpilot.ErrorMessage(err))
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	t.Run("keeps code through fmt wrapping", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("disk full")
		err := fmt.Errorf("upsert: %w", docpilot.WrapError(docpilot.ESTORE, cause, "commit failed"))

		assert.Equal(t, docpilot.ESTORE, docpilot.ErrorCode(err))
		assert.Equal(t, "commit failed", docpilot.ErrorMessage(err))
		require.ErrorIs(t, err, cause)
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, docpilot.WrapError(docpilot.ESTORE, nil, "unused"))
	})
}
