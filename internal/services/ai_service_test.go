package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"utopai/internal/config"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAIService(t *testing.T, handler http.HandlerFunc) (*AIService, func()) {
	t.Helper()
	ts := httptest.NewServer(handler)
	cfg := &config.Config{}
	cfg.OpenAI.APIKey = "test-key"
	cfg.OpenAI.URL = ts.URL
	cfg.OpenAI.Model = "test-model"
	cfg.OpenAI.MaxConcurrent = 2

	return NewAIService(cfg, observability.NewLogger(nil)), ts.Close
}

func TestAIService_Complete_RequiresAPIKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.OpenAI.MaxConcurrent = 1
	service := NewAIService(cfg, observability.NewLogger(nil))

	_, err := service.Complete(context.Background(), "system", "user", 100, 0.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrAIConfigInvalid))
}

func TestAIService_Moderate_RequiresAPIKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.OpenAI.MaxConcurrent = 1
	service := NewAIService(cfg, observability.NewLogger(nil))

	_, err := service.Moderate(context.Background(), "hej")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrAIConfigInvalid))
}

func TestAIService_Complete_ReturnsTrimmedReply(t *testing.T) {
	var gotPath, gotAuth string
	service, cleanup := newTestAIService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(completionReply(t, "  Hej med dig!  "))
	})
	defer cleanup()

	reply, err := service.Complete(context.Background(), "system", "user", 100, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "Hej med dig!", reply)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestAIService_Complete_NoChoices(t *testing.T) {
	service, cleanup := newTestAIService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices": []}`))
	})
	defer cleanup()

	_, err := service.Complete(context.Background(), "system", "user", 100, 0.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrAIResponseInvalid))
}

func TestAIService_Complete_ProviderError(t *testing.T) {
	service, cleanup := newTestAIService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer cleanup()

	_, err := service.Complete(context.Background(), "system", "user", 100, 0.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrAIRequestFailed))
}

func TestAIService_Moderate_AcceptsUnflaggedText(t *testing.T) {
	var gotPath string
	service, cleanup := newTestAIService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"results": [{"flagged": false}]}`))
	})
	defer cleanup()

	allowed, err := service.Moderate(context.Background(), "Fortæl om dinosaurer")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, "/moderations", gotPath)
}

func TestAIService_Moderate_RejectsFlaggedText(t *testing.T) {
	service, cleanup := newTestAIService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"results": [{"flagged": true}]}`))
	})
	defer cleanup()

	allowed, err := service.Moderate(context.Background(), "noget upassende")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAIService_Moderate_TransportError(t *testing.T) {
	service, cleanup := newTestAIService(t, func(_ http.ResponseWriter, _ *http.Request) {})
	cleanup() // server already stopped, every request fails

	_, err := service.Moderate(context.Background(), "hej")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrAIProviderUnavailable))
}
