package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_NilErrReturnsNil(t *testing.T) {
	assert.NoError(t, New(KindBadInput, nil))
}

func TestKindOf_ClassifiesWrappedError(t *testing.T) {
	err := New(KindPolicyViolation, errors.New("denied"))
	assert.Equal(t, KindPolicyViolation, KindOf(err))
}

func TestKindOf_UnclassifiedErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestIsTransient_ReflectsTransientFlag(t *testing.T) {
	err := Transient(KindExternal, errors.New("timeout"))
	assert.True(t, IsTransient(err))

	nonTransient := New(KindExternal, errors.New("boom"))
	assert.False(t, IsTransient(nonTransient))
}

func TestAppError_UnwrapReturnsUnderlyingError(t *testing.T) {
	underlying := errors.New("root cause")
	err := New(KindInternal, underlying)
	assert.ErrorIs(t, err, underlying)
}

func TestKind_StringValues(t *testing.T) {
	assert.Equal(t, "bad_input", KindBadInput.String())
	assert.Equal(t, "external", KindExternal.String())
	assert.Equal(t, "policy_violation", KindPolicyViolation.String())
	assert.Equal(t, "invariant", KindInvariant.String())
	assert.Equal(t, "internal", KindInternal.String())
}
