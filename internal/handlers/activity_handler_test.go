package handlers

import (
	"testing"

	"utopai/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestResolveStepScore(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name  string
		score *int
		want  int
		valid bool
	}{
		{"absent defaults to full marks", nil, 100, true},
		{"explicit zero stays zero", intPtr(0), 0, true},
		{"partial score passes through", intPtr(60), 60, true},
		{"full marks", intPtr(100), 100, true},
		{"negative rejected", intPtr(-1), 0, false},
		{"above hundred rejected", intPtr(101), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, valid := resolveStepScore(tt.score)
			assert.Equal(t, tt.valid, valid)
			if valid {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRedactAnswerKey(t *testing.T) {
	content := models.GeneratedContent{
		"question":       "Hvad gør en prompt god?",
		"correct_answer": "B",
	}

	redacted := redactAnswerKey(models.KindQuiz, content)
	assert.NotContains(t, redacted, "correct_answer")
	assert.Contains(t, redacted, "question")

	untouched := redactAnswerKey(models.KindIntro, content)
	assert.Contains(t, untouched, "correct_answer")
}
