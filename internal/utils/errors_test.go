package contextutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError_PreservesCode(t *testing.T) {
	wrapped := WrapError(ErrActivityCompleted, "submission rejected")

	var appErr *AppError
	require.True(t, AsError(wrapped, &appErr))
	assert.Equal(t, ErrorCodeActivityCompleted, appErr.Code)
	assert.True(t, errors.Is(wrapped, ErrActivityCompleted))
}

func TestWrapErrorf_FormatsContext(t *testing.T) {
	wrapped := WrapErrorf(ErrInvalidInput, "unknown activity kind %q", "karaoke")
	assert.Contains(t, wrapped.Error(), "karaoke")
	assert.True(t, errors.Is(wrapped, ErrInvalidInput))
}

func TestWrapError_PlainError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := WrapError(cause, "database unavailable")

	var appErr *AppError
	require.True(t, AsError(wrapped, &appErr))
	assert.Equal(t, ErrorCodeInternalError, appErr.Code)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestWrapError_Nil(t *testing.T) {
	assert.Nil(t, WrapError(nil, "context"))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodeIslandLocked, GetErrorCode(ErrIslandLocked))
	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(fmt.Errorf("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.False(t, IsRetryable(ErrAIProviderUnavailable))
	assert.False(t, IsRetryable(ErrActivityCompleted))
	assert.False(t, IsRetryable(nil))
}

func TestAppError_ToJSON(t *testing.T) {
	appErr := NewAppError(ErrorCodeModerationRejected, SeverityWarn, "Din besked kan ikke sendes", "flagged by provider")
	payload := appErr.ToJSON()

	assert.Equal(t, string(ErrorCodeModerationRejected), payload["code"])
	assert.Equal(t, "Din besked kan ikke sendes", payload["message"])
}
