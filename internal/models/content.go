package models

import "strings"

// ThemeProfile is the narrative skin applied to all generated text and
// feedback. Profiles are static, loaded at process start and never mutated.
type ThemeProfile struct {
	ID                 string   `json:"id" yaml:"id"`
	DisplayName        string   `json:"display_name" yaml:"display_name"`
	MentorName         string   `json:"mentor_name" yaml:"mentor_name"`
	MentorAvatar       string   `json:"mentor_avatar" yaml:"mentor_avatar"`
	ToneWords          []string `json:"tone_words" yaml:"tone_words"`
	ExampleTopics      []string `json:"example_topics" yaml:"example_topics"`
	NarrativeMetaphors []string `json:"narrative_metaphors" yaml:"narrative_metaphors"`
	CreativeChallenges []string `json:"creative_challenges" yaml:"creative_challenges"`
	Encouragements     []string `json:"encouragements" yaml:"encouragements"`
}

// PromptSlots holds the learner-supplied fragments of a composed prompt.
// All fields are optional; empty slots are omitted from the built prompt.
type PromptSlots struct {
	Role    string `json:"role"`
	Task    string `json:"task"`
	Context string `json:"context"`
	Tone    string `json:"tone"`
}

// IsEmpty reports whether every slot is empty or whitespace
func (s PromptSlots) IsEmpty() bool {
	return strings.TrimSpace(s.Role) == "" &&
		strings.TrimSpace(s.Task) == "" &&
		strings.TrimSpace(s.Context) == "" &&
		strings.TrimSpace(s.Tone) == ""
}

// GeneratedContent is the JSON-shaped payload produced by the content
// generator. Its required keys are fixed per activity kind; the payload is
// transient and regenerated on every request.
type GeneratedContent map[string]interface{}

// HasKeys reports whether every named key is present
func (g GeneratedContent) HasKeys(keys ...string) bool {
	for _, k := range keys {
		if _, ok := g[k]; !ok {
			return false
		}
	}
	return true
}

// ChatMessage is one turn of a mentor conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Submission carries a learner's answer for evaluation. Which fields are
// set depends on the activity kind.
type Submission struct {
	Prompt   string        `json:"prompt,omitempty"`
	Answer   string        `json:"answer,omitempty"`
	Messages []ChatMessage `json:"messages,omitempty"`
	Slots    *PromptSlots  `json:"slots,omitempty"`
	Attempt  int           `json:"attempt,omitempty"`
	// CorrectAnswer is filled by the caller for quiz matching
	CorrectAnswer string `json:"-"`
}

// EvaluationResult is the outcome of scoring a submission. Score is always
// on the 0-100 scale; PointsEarned is derived from the activity's reward.
// Completed closes the activity even when Success is false, such as a quiz
// exhausting its attempts.
type EvaluationResult struct {
	Score        int            `json:"score"`
	Feedback     string         `json:"feedback"`
	PointsEarned int            `json:"points_earned"`
	Success      bool           `json:"success"`
	Completed    bool           `json:"completed"`
	SubScores    map[string]int `json:"sub_scores,omitempty"`
}
