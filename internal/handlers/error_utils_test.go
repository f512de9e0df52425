package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "utopai/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code contextutils.ErrorCode
		want int
	}{
		{contextutils.ErrorCodeInvalidInput, http.StatusBadRequest},
		{contextutils.ErrorCodeInvalidStep, http.StatusBadRequest},
		{contextutils.ErrorCodeUnknownTheme, http.StatusBadRequest},
		{contextutils.ErrorCodeModerationRejected, http.StatusBadRequest},
		{contextutils.ErrorCodeUnauthorized, http.StatusUnauthorized},
		{contextutils.ErrorCodeIslandLocked, http.StatusForbidden},
		{contextutils.ErrorCodeForbidden, http.StatusForbidden},
		{contextutils.ErrorCodeActivityNotFound, http.StatusNotFound},
		{contextutils.ErrorCodeRecordNotFound, http.StatusNotFound},
		{contextutils.ErrorCodeActivityCompleted, http.StatusConflict},
		{contextutils.ErrorCodeActivityNotStarted, http.StatusConflict},
		{contextutils.ErrorCodeRecordExists, http.StatusConflict},
		{contextutils.ErrorCodeAIConfigInvalid, http.StatusInternalServerError},
		{contextutils.ErrorCodeAIProviderUnavailable, http.StatusServiceUnavailable},
		{contextutils.ErrorCodeAIRequestFailed, http.StatusBadGateway},
		{contextutils.ErrorCodeAIResponseInvalid, http.StatusBadGateway},
		{contextutils.ErrorCodeTimeout, http.StatusGatewayTimeout},
		{contextutils.ErrorCodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestHandleAppError_WritesStructuredBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	HandleAppError(c, contextutils.WrapError(contextutils.ErrIslandLocked, "island 2 requires more points"))

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), string(contextutils.ErrorCodeIslandLocked))
}

func TestHandleAppError_PlainErrorIsInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	HandleAppError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}
