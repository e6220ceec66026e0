// pkg/errors/errors_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test error creation, wrapping, and utility functions

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{
			name:    "duplicate_artifact",
			code:    errors.ErrDuplicateArtifact,
			message: "artifact declared twice",
			wantStr: "[DUPLICATE_ARTIFACT] artifact declared twice",
		},
		{
			name:    "invalid_runtime_pattern",
			code:    errors.ErrInvalidRuntimePath,
			message: "bad regex",
			wantStr: "[INVALID_RUNTIME_PATTERN] bad regex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.NotNil(t, err.Details)
			assert.Equal(t, tt.wantStr, err.Error())
		})
	}
}

func TestNewf(t *testing.T) {
	err := errors.Newf(errors.ErrUnwritableTarget, "cannot write %s with mode %o", "app.conf", 0644)
	assert.Equal(t, "cannot write app.conf with mode 644", err.Message)
}

func TestWrap(t *testing.T) {
	baseErr := stderrors.New("permission denied")

	t.Run("wrap_non_nil_error", func(t *testing.T) {
		err := errors.Wrap(baseErr, errors.ErrUnreadableSource, "cannot open source")
		require.NotNil(t, err)
		assert.Equal(t, errors.ErrUnreadableSource, err.Code)
		assert.Same(t, baseErr, err.Wrapped)
		assert.Equal(t, "[UNREADABLE_SOURCE] cannot open source: permission denied", err.Error())
		assert.True(t, stderrors.Is(err, baseErr))
	})

	t.Run("wrap_nil_error_returns_nil", func(t *testing.T) {
		assert.Nil(t, errors.Wrap(nil, errors.ErrInternal, "internal error"))
		assert.Nil(t, errors.Wrapf(nil, errors.ErrInternal, "internal %s", "error"))
	})
}

func TestIsByCode(t *testing.T) {
	err := fmt.Errorf("sync failed: %w",
		errors.New(errors.ErrLinkCapabilityUnavailable, "no link service").
			WithReason(errors.ReasonNoFreePort))

	assert.True(t, stderrors.Is(err, errors.New(errors.ErrLinkCapabilityUnavailable, "")))
	assert.False(t, stderrors.Is(err, errors.New(errors.ErrUnwritableTarget, "")))
	assert.True(t, errors.IsErrorCode(err, errors.ErrLinkCapabilityUnavailable))
	assert.Equal(t, errors.ErrLinkCapabilityUnavailable, errors.GetErrorCode(err))
	assert.Equal(t, errors.ReasonNoFreePort, errors.Reason(err))
}

func TestGetErrorCode_PlainError(t *testing.T) {
	err := stderrors.New("plain")
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(err))
	assert.Nil(t, errors.GetErrorDetails(err))
	assert.Equal(t, "", errors.Reason(err))
}

func TestWithDetails(t *testing.T) {
	err := errors.New(errors.ErrDuplicateArtifact, "duplicate").
		WithDetails(map[string]interface{}{"key": "g:a:jar:1.0", "count": 2})
	details := errors.GetErrorDetails(err)
	assert.Equal(t, "g:a:jar:1.0", details["key"])
	assert.Equal(t, 2, details["count"])
}

func TestWithReason(t *testing.T) {
	err := errors.New(errors.ErrLinkCapabilityUnavailable, "helper refused").
		WithReason(errors.ReasonHelperRefused)
	assert.Equal(t, errors.ReasonHelperRefused, errors.Reason(fmt.Errorf("ctx: %w", err)))
	assert.False(t, errors.IsErrorCode(stderrors.New("plain"), errors.ErrUnknown))
}
