package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeBiometricRequired, "biometric verification required")
		assert.True(t, HasCode(err, CodeBiometricRequired))
		assert.False(t, HasCode(err, CodeMissingField))
	})

	t.Run("matches wrapped domain code", func(t *testing.T) {
		inner := New(CodeConflict, "duplicate record")
		err := Wrap(inner, CodeStoreFailure, "failed to persist record")
		assert.True(t, HasCode(err, CodeStoreFailure))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("commit: %w", New(CodeNoChallengeIssued, "no challenge"))
		assert.True(t, HasCode(err, CodeNoChallengeIssued))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "nothing"))
}

func TestMissingField(t *testing.T) {
	err := MissingField("phone")
	require.Error(t, err)
	assert.Equal(t, CodeMissingField, CodeOf(err))
	assert.Equal(t, "phone", FieldOf(err))
	assert.Equal(t, "missing required field: phone", MessageOf(err))
	assert.ErrorIs(t, err, MissingField("phone"))
	assert.NotErrorIs(t, err, MissingField("county"))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeStoreFailure, "sequence allocation failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
