package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(t *testing.T, handler http.HandlerFunc) (*Evaluator, func()) {
	t.Helper()
	ts := httptest.NewServer(handler)
	cfg := &config.Config{}
	cfg.OpenAI.APIKey = "test-key"
	cfg.OpenAI.URL = ts.URL
	cfg.OpenAI.Model = "test-model"
	cfg.OpenAI.MaxConcurrent = 2

	logger := observability.NewLogger(nil)
	return NewEvaluator(NewAIService(cfg, logger), logger), ts.Close
}

func failingEvaluator(t *testing.T) (*Evaluator, func()) {
	t.Helper()
	return newTestEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
}

func TestScaleToPercent(t *testing.T) {
	assert.Equal(t, 100, scaleToPercent(10, 10))
	assert.Equal(t, 70, scaleToPercent(7, 10))
	assert.Equal(t, 80, scaleToPercent(4, 5))
	assert.Equal(t, 0, scaleToPercent(0, 10))
	assert.Equal(t, 0, scaleToPercent(5, 0))
	assert.Equal(t, 100, scaleToPercent(12, 10))
	assert.Equal(t, 0, scaleToPercent(-1, 10))
}

func TestScorePromptHeuristic(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	tests := []struct {
		name   string
		prompt string
		want   int
	}{
		{"bare", "hej", 5},
		{"question with help word", "Kan du hjælpe mig?", 7},
		{"long question", "Kan du fortælle mig en lang historie om drager?", 8},
		{"everything capped", "Kan du hjælpe mig med at være specifik og give detaljer og et eksempel på et godt prompt?", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.ScorePromptHeuristic(tt.prompt))
		})
	}
}

func TestEvaluate_Intro_AlwaysSucceeds(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 1, Kind: models.KindIntro}
	result, err := evaluator.Evaluate(context.Background(), activity, models.Submission{}, testTheme())
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Feedback)
}

func TestEvaluate_Quiz_AttemptPenalty(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 3, Kind: models.KindQuiz}
	theme := testTheme()

	tests := []struct {
		attempt int
		want    int
	}{
		{1, 100},
		{2, 80},
		{3, 60},
		{4, 40},
		{9, 40},
		{0, 100},
	}

	for _, tt := range tests {
		submission := models.Submission{
			Answer:        "Det rigtige svar",
			CorrectAnswer: "det rigtige svar",
			Attempt:       tt.attempt,
		}
		result, err := evaluator.Evaluate(context.Background(), activity, submission, theme)
		require.NoError(t, err)
		assert.True(t, result.Success, "attempt %d", tt.attempt)
		assert.True(t, result.Completed, "attempt %d", tt.attempt)
		assert.Equal(t, tt.want, result.Score, "attempt %d", tt.attempt)
	}
}

func TestEvaluate_Quiz_WrongAnswer(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 3, Kind: models.KindQuiz}
	submission := models.Submission{Answer: "forkert", CorrectAnswer: "rigtigt", Attempt: 1}

	result, err := evaluator.Evaluate(context.Background(), activity, submission, testTheme())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Completed)
	assert.Equal(t, 0, result.Score)
	assert.NotContains(t, result.Feedback, "rigtigt")

	submission.Attempt = 2
	result, err = evaluator.Evaluate(context.Background(), activity, submission, testTheme())
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.Equal(t, 0, result.Score)
}

func TestEvaluate_Quiz_AttemptCeilingCompletes(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 3, Kind: models.KindQuiz}
	submission := models.Submission{Answer: "forkert", CorrectAnswer: "rigtigt", Attempt: 3}

	// A wrong answer on the last attempt closes the quiz with the floor
	// score and reveals the answer
	result, err := evaluator.Evaluate(context.Background(), activity, submission, testTheme())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Completed)
	assert.Equal(t, 40, result.Score)
	assert.Contains(t, result.Feedback, "rigtigt")

	submission.Attempt = 5
	result, err = evaluator.Evaluate(context.Background(), activity, submission, testTheme())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 40, result.Score)
}

func TestEvaluate_Quiz_EmptyAnswerRejected(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 3, Kind: models.KindQuiz}
	_, err := evaluator.Evaluate(context.Background(), activity, models.Submission{Answer: "  "}, testTheme())
	assert.Error(t, err)
}

func TestEvaluate_Prompt_RubricPath(t *testing.T) {
	evaluator, cleanup := newTestEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(completionReply(t, `{"clarity": 4, "specificity": 4, "creativity": 5, "feedback": "Flot prompt!"}`))
	})
	defer cleanup()

	activity := &models.Activity{ID: 2, Kind: models.KindPromptBuilder}
	submission := models.Submission{Prompt: "Du er en venlig lærer. Forklar regnbuer for et barn."}

	result, err := evaluator.Evaluate(context.Background(), activity, submission, testTheme())
	require.NoError(t, err)

	// avg 13/3 of 5 scaled to percent
	assert.Equal(t, 87, result.Score)
	assert.True(t, result.Success)
	assert.Equal(t, "Flot prompt!", result.Feedback)
	assert.Equal(t, map[string]int{"clarity": 4, "specificity": 4, "creativity": 5}, result.SubScores)
}

func TestEvaluate_Prompt_RubricOutOfRangeFallsBack(t *testing.T) {
	evaluator, cleanup := newTestEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(completionReply(t, `{"clarity": 11, "specificity": 4, "creativity": 5, "feedback": "??"}`))
	})
	defer cleanup()

	activity := &models.Activity{ID: 5, Kind: models.KindCreative}
	submission := models.Submission{Prompt: "Kan du hjælpe mig med at finde på en historie om drager?"}

	result, err := evaluator.Evaluate(context.Background(), activity, submission, testTheme())
	require.NoError(t, err)

	// Heuristic: base 5, length, question mark, help word
	assert.Equal(t, 80, result.Score)
	assert.True(t, result.Success)
	assert.Nil(t, result.SubScores)
}

func TestEvaluate_Prompt_BuildsFromSlots(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 2, Kind: models.KindPromptBuilder}
	submission := models.Submission{
		Slots: &models.PromptSlots{Role: "en lærer", Task: "forklare noget"},
	}

	result, err := evaluator.Evaluate(context.Background(), activity, submission, testTheme())
	require.NoError(t, err)
	assert.Greater(t, result.Score, 0)
}

func TestEvaluate_Prompt_EmptyRejected(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 2, Kind: models.KindPromptBuilder}
	_, err := evaluator.Evaluate(context.Background(), activity, models.Submission{}, testTheme())
	assert.Error(t, err)

	_, err = evaluator.Evaluate(context.Background(), activity, models.Submission{Slots: &models.PromptSlots{}}, testTheme())
	assert.Error(t, err)
}

func TestEvaluate_UnknownKindRejected(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 99, Kind: models.ActivityKind("karaoke")}
	_, err := evaluator.Evaluate(context.Background(), activity, models.Submission{}, testTheme())
	assert.Error(t, err)
}

func TestScoreChatQuality(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	assert.Equal(t, 0, evaluator.ScoreChatQuality(nil))
	assert.Equal(t, 0, evaluator.ScoreChatQuality([]models.ChatMessage{
		{Role: "assistant", Content: "Hej med dig!"},
	}))

	short := []models.ChatMessage{{Role: "user", Content: "hej"}}
	assert.Equal(t, 5, evaluator.ScoreChatQuality(short))

	varied := []models.ChatMessage{
		{Role: "user", Content: "Kan du fortælle mig om drager?"},
		{Role: "assistant", Content: "Ja da!"},
		{Role: "user", Content: "Hvor store kan drager blive?"},
		{Role: "assistant", Content: "Meget store!"},
		{Role: "user", Content: "Kan drager flyve over bjerge?"},
	}
	assert.Equal(t, 10, evaluator.ScoreChatQuality(varied))
}

func TestEvaluate_Chat_CompletesAtMessageCount(t *testing.T) {
	evaluator, cleanup := failingEvaluator(t)
	defer cleanup()

	activity := &models.Activity{ID: 4, Kind: models.KindChat}

	messages := []models.ChatMessage{
		{Role: "user", Content: "Hej!"},
		{Role: "assistant", Content: "Hej med dig!"},
		{Role: "user", Content: "Fortæl om dyr"},
	}
	result, err := evaluator.Evaluate(context.Background(), activity, models.Submission{Messages: messages}, testTheme())
	require.NoError(t, err)
	assert.False(t, result.Success)

	for len(messages) < 6 {
		messages = append(messages, models.ChatMessage{Role: "user", Content: "Mere!"})
	}
	result, err = evaluator.Evaluate(context.Background(), activity, models.Submission{Messages: messages}, testTheme())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 80, result.Score)
}
