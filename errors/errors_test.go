package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrap_Format(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Store", "Put", "publish chunk")
	require.Error(t, err)
	assert.Equal(t, "Store.Put: publish chunk failed: boom", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "Store", "Put", "publish chunk"))
	assert.NoError(t, WrapTransient(nil, "Store", "Put", "publish chunk"))
	assert.NoError(t, WrapInvalid(nil, "Store", "Put", "publish chunk"))
	assert.NoError(t, WrapFatal(nil, "Store", "Put", "publish chunk"))
}

func TestClassifiedError_Unwrap(t *testing.T) {
	err := WrapInvalid(ErrInvalidObjectName, "Store", "Put", "validate name")

	var ce *ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, ErrorInvalid, ce.Class)
	assert.Equal(t, "Store", ce.Component)
	assert.ErrorIs(t, err, ErrInvalidObjectName)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", WrapTransient(stderrors.New("boom"), "c", "m", "a"), true},
		{"wrapped invalid", WrapInvalid(stderrors.New("boom"), "c", "m", "a"), false},
		{"connection timeout sentinel", ErrConnectionTimeout, true},
		{"publish failed sentinel", ErrPublishFailed, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"timeout pattern", stderrors.New("request timeout exceeded"), true},
		{"plain error", stderrors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrObjectNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", ErrBucketNotFound)))
	assert.False(t, IsNotFound(ErrObjectAlreadyExists))
	assert.False(t, IsNotFound(nil))
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(ErrObjectAlreadyExists))
	assert.True(t, IsConflict(Wrap(ErrLinkNotAllowed, "Store", "AddLink", "check target")))
	assert.False(t, IsConflict(ErrObjectNotFound))
}

func TestIntegrityError(t *testing.T) {
	err := &IntegrityError{Field: "digest", Want: "SHA-256=abc", Got: "SHA-256=def"}
	assert.Contains(t, err.Error(), "digest mismatch")
	assert.True(t, IsIntegrity(fmt.Errorf("read: %w", err)))
	assert.False(t, IsIntegrity(ErrObjectNotFound))

	// Integrity failures are user-visible invalid state, never retried
	assert.True(t, IsInvalid(err))
	assert.Equal(t, ErrorInvalid, Classify(err))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrIDGeneration))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidObjectName))
	assert.Equal(t, ErrorInvalid, Classify(ErrChunkSizeTooLarge))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("something odd")))
}
