package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completionReply wraps text in an OpenAI-compatible completion response
func completionReply(t *testing.T, content string) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func newTestContentGenerator(t *testing.T, handler http.HandlerFunc) (*ContentGenerator, func()) {
	t.Helper()
	ts := httptest.NewServer(handler)
	cfg := &config.Config{}
	cfg.OpenAI.APIKey = "test-key"
	cfg.OpenAI.URL = ts.URL
	cfg.OpenAI.Model = "test-model"
	cfg.OpenAI.MaxConcurrent = 2

	logger := observability.NewLogger(nil)
	ai := NewAIService(cfg, logger)
	return NewContentGenerator(ai, logger), ts.Close
}

func TestContentGenerator_Generate_ValidReply(t *testing.T) {
	introJSON := `{"welcome_message": "Hej!", "explanation": "ChatGPT er en computer.", "motivation": "Du kan det her!"}`
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(completionReply(t, introJSON))
	})
	defer cleanup()

	content := generator.Generate(context.Background(), models.KindIntro, testTheme(), 1)
	assert.Equal(t, "Hej!", content["welcome_message"])
	assert.True(t, content.HasKeys(RequiredContentKeys[models.KindIntro]...))
}

func TestContentGenerator_Generate_FencedReply(t *testing.T) {
	fenced := "```json\n{\"greeting\": \"Hej med dig!\", \"suggestions\": [\"Fortæl om dyr\"]}\n```"
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(completionReply(t, fenced))
	})
	defer cleanup()

	content := generator.Generate(context.Background(), models.KindChat, testTheme(), 1)
	assert.Equal(t, "Hej med dig!", content["greeting"])
}

func TestContentGenerator_Generate_ProviderErrorFallsBack(t *testing.T) {
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer cleanup()

	theme := testTheme()
	for kind, keys := range RequiredContentKeys {
		content := generator.Generate(context.Background(), kind, theme, 1)
		assert.True(t, content.HasKeys(keys...), "fallback for %s must carry all required keys", kind)
	}
}

func TestContentGenerator_Generate_SchemaRejectionFallsBack(t *testing.T) {
	// Valid JSON but missing required keys
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(completionReply(t, `{"welcome_message": "Hej!"}`))
	})
	defer cleanup()

	theme := testTheme()
	content := generator.Generate(context.Background(), models.KindIntro, theme, 1)
	assert.True(t, content.HasKeys(RequiredContentKeys[models.KindIntro]...))
	assert.Contains(t, content["welcome_message"], theme.MentorName)
}

func TestContentGenerator_Generate_QuizFallbackAnswerInOptions(t *testing.T) {
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer cleanup()

	content := generator.Generate(context.Background(), models.KindQuiz, testTheme(), 1)
	options, ok := content["options"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, options, content["correct_answer"])
}

func TestContentGenerator_GenerateStepContent_AllSections(t *testing.T) {
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(completionReply(t, "En kort tekst til barnet."))
	})
	defer cleanup()

	content := generator.GenerateStepContent(context.Background(), models.KindIntro, 2, testTheme())
	assert.True(t, content.HasKeys("title", "step", "body", "example", "task"))
	assert.Equal(t, 2, content["step"])
	assert.Equal(t, "En kort tekst til barnet.", content["body"])
}

func TestContentGenerator_GenerateStepContent_FallbackPerSection(t *testing.T) {
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer cleanup()

	for step := 1; step <= 3; step++ {
		content := generator.GenerateStepContent(context.Background(), models.KindPromptBuilder, step, testTheme())
		assert.True(t, content.HasKeys("title", "step", "body", "example", "task"), "step %d", step)
		assert.NotEmpty(t, content["body"], "step %d", step)
	}
}

func TestContentGenerator_GenerateHint_Progressive(t *testing.T) {
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer cleanup()

	first := generator.GenerateHint(context.Background(), models.KindPromptBuilder, testTheme(), 1)
	second := generator.GenerateHint(context.Background(), models.KindPromptBuilder, testTheme(), 2)
	third := generator.GenerateHint(context.Background(), models.KindPromptBuilder, testTheme(), 3)
	beyond := generator.GenerateHint(context.Background(), models.KindPromptBuilder, testTheme(), 9)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, second, third)
	assert.Equal(t, third, beyond)
}

func TestContentGenerator_ChatReply_FallbackIsThemed(t *testing.T) {
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer cleanup()

	theme := testTheme()
	reply := generator.ChatReply(context.Background(), theme, nil, "Hej!")
	assert.Contains(t, reply, theme.Encouragements[0])
}

func TestContentGenerator_ChatReply_ReturnsModelText(t *testing.T) {
	generator, cleanup := newTestContentGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(completionReply(t, "Sikke et godt spørgsmål! Hvad vil du vide mere om?"))
	})
	defer cleanup()

	history := []models.ChatMessage{{Role: "user", Content: "Hej"}, {Role: "assistant", Content: "Hej med dig!"}}
	reply := generator.ChatReply(context.Background(), testTheme(), history, "Fortæl om dyr")
	assert.Equal(t, "Sikke et godt spørgsmål! Hvad vil du vide mere om?", reply)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced no lang", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose prefix", `Her er dit JSON: {"a": 1}`, `{"a": 1}`},
		{"no braces", "bare tekst", "bare tekst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.reply))
		})
	}
}
