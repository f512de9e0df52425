package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"utopai/internal/config"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// AIServiceInterface defines the LLM collaborator contract. Every call may
// fail; callers own the fallback behavior.
type AIServiceInterface interface {
	// Complete sends a chat completion request and returns the raw text reply
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
	// Moderate returns true when the text is acceptable for children
	Moderate(ctx context.Context, text string) (bool, error)
}

// AIService talks to an OpenAI-compatible chat-completions endpoint
type AIService struct {
	cfg        *config.Config
	logger     *observability.Logger
	httpClient *http.Client
	// semaphore limits concurrent outbound AI requests
	semaphore chan struct{}
}

// Ensure AIService implements the interface
var _ AIServiceInterface = (*AIService)(nil)

// NewAIService creates a new AI service with OpenTelemetry HTTP instrumentation
func NewAIService(cfg *config.Config, logger *observability.Logger) *AIService {
	return &AIService{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout:   config.AIRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		semaphore: make(chan struct{}, cfg.OpenAI.MaxConcurrent),
	}
}

// chatMessage is one message of a chat completion request
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest is the OpenAI-compatible request payload
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// chatCompletionResponse is the OpenAI-compatible response payload
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// moderationRequest is the OpenAI moderation request payload
type moderationRequest struct {
	Input string `json:"input"`
}

// moderationResponse is the OpenAI moderation response payload
type moderationResponse struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

// Complete sends a chat completion request and returns the assistant reply text
func (s *AIService) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "Complete",
		attribute.String("ai.model", s.cfg.OpenAI.Model),
		attribute.Int("ai.max_tokens", maxTokens),
		attribute.Float64("ai.temperature", temperature),
	)
	defer observability.FinishSpan(span, &err)

	if s.cfg.OpenAI.APIKey == "" {
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "no API key configured")
	}

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-ctx.Done():
		return "", contextutils.WrapError(ctx.Err(), "cancelled while waiting for AI slot")
	}

	reqBody := chatCompletionRequest{
		Model: s.cfg.OpenAI.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	respBody, err := s.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "failed to decode completion response")
	}
	if len(completion.Choices) == 0 {
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "completion response has no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	span.SetAttributes(attribute.Int("ai.response_length", len(content)))
	return content, nil
}

// Moderate returns true when the provider considers the text acceptable.
// Transport failures are returned as errors; callers decide whether to
// fail open or closed.
func (s *AIService) Moderate(ctx context.Context, text string) (result0 bool, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "Moderate",
		attribute.Int("ai.input_length", len(text)),
	)
	defer observability.FinishSpan(span, &err)

	if s.cfg.OpenAI.APIKey == "" {
		return false, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "no API key configured")
	}

	respBody, err := s.post(ctx, "/moderations", moderationRequest{Input: text})
	if err != nil {
		return false, err
	}

	var moderation moderationResponse
	if err := json.Unmarshal(respBody, &moderation); err != nil {
		return false, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "failed to decode moderation response")
	}
	if len(moderation.Results) == 0 {
		return false, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "moderation response has no results")
	}

	flagged := moderation.Results[0].Flagged
	span.SetAttributes(attribute.Bool("ai.flagged", flagged))
	return !flagged, nil
}

// post issues an authenticated JSON POST to the provider and returns the body
func (s *AIService) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal AI request")
	}

	url := strings.TrimSuffix(s.cfg.OpenAI.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create AI request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.OpenAI.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrAIProviderUnavailable, err.Error())
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close AI response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read AI response body")
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn(ctx, "AI provider returned non-OK status", map[string]interface{}{
			"status": resp.StatusCode,
			"path":   path,
		})
		return nil, contextutils.WrapError(contextutils.ErrAIRequestFailed,
			fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}

	return respBody, nil
}
