package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// heuristicSuccessThreshold is on the 0-10 heuristic scale
	heuristicSuccessThreshold = 7

	// quiz scoring: first attempt is worth 100, each retry costs 20,
	// never below the floor
	quizMaxScore        = 100
	quizRetryPenalty    = 20
	quizMinScore        = 40
	quizMaxAttempts     = 3
	rubricSuccessScore  = 70
	chatCompletionScore = 80
	chatMinMessages     = 6
)

// scaleToPercent maps a score on an arbitrary scale to 0-100. All
// evaluation paths report through this single scale.
func scaleToPercent(score, max float64) int {
	if max <= 0 {
		return 0
	}
	percent := int(math.Round(score / max * 100))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// EvaluatorInterface scores a child's submission for an activity
type EvaluatorInterface interface {
	Evaluate(ctx context.Context, activity *models.Activity, submission models.Submission, theme models.ThemeProfile) (models.EvaluationResult, error)
	ScorePromptHeuristic(prompt string) int
	ScoreChatQuality(messages []models.ChatMessage) int
}

// Evaluator dispatches on activity kind: deterministic scoring for quiz
// and chat, LLM rubric with heuristic fallback for free-form prompts
type Evaluator struct {
	ai     AIServiceInterface
	logger *observability.Logger
}

var _ EvaluatorInterface = (*Evaluator)(nil)

// NewEvaluator creates an evaluator on top of the AI service
func NewEvaluator(ai AIServiceInterface, logger *observability.Logger) *Evaluator {
	return &Evaluator{ai: ai, logger: logger}
}

// Evaluate scores a submission. It never fails on AI errors; only an
// unknown activity kind or an empty required field is an error.
func (e *Evaluator) Evaluate(ctx context.Context, activity *models.Activity, submission models.Submission, theme models.ThemeProfile) (result models.EvaluationResult, err error) {
	ctx, span := observability.TraceEvaluationFunction(ctx, "Evaluate",
		observability.AttributeActivityID(activity.ID),
		observability.AttributeActivityKind(activity.Kind),
		observability.AttributeAttempt(submission.Attempt),
	)
	defer observability.FinishSpan(span, &err)

	switch activity.Kind {
	case models.KindIntro:
		// Intro steps are completion-only; submitting the activity as a
		// whole acknowledges the walkthrough.
		result = models.EvaluationResult{
			Score:     100,
			Success:   true,
			Completed: true,
			Feedback:  themedFeedback(theme, true),
		}
	case models.KindPromptBuilder, models.KindCreative:
		prompt := submission.Prompt
		if prompt == "" && submission.Slots != nil {
			prompt = BuildPrompt(*submission.Slots, theme)
		}
		if strings.TrimSpace(prompt) == "" {
			err = contextutils.WrapError(contextutils.ErrMissingRequired, "prompt is required")
			return result, err
		}
		result = e.evaluatePrompt(ctx, activity.Kind, prompt, theme)
	case models.KindQuiz:
		result, err = evaluateQuiz(submission, theme)
		if err != nil {
			return result, err
		}
	case models.KindChat:
		result = e.evaluateChat(submission, theme)
	default:
		err = contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown activity kind %q", activity.Kind)
		return result, err
	}

	span.SetAttributes(attribute.Int("evaluation.score", result.Score), attribute.Bool("evaluation.success", result.Success))
	return result, nil
}

// ScorePromptHeuristic rates a prompt 0-10 from surface features. The
// rubric path falls back to this when the LLM is unavailable.
func (e *Evaluator) ScorePromptHeuristic(prompt string) int {
	score := 5
	lower := strings.ToLower(prompt)

	if len(prompt) > 20 {
		score++
	}
	if strings.Contains(prompt, "?") {
		score++
	}
	if strings.Contains(lower, "hjælp") || strings.Contains(lower, "forklar") || strings.Contains(lower, "fortæl") {
		score++
	}
	if strings.Contains(lower, "specifik") || strings.Contains(lower, "detaljer") || strings.Contains(lower, "eksempel") {
		score += 2
	}

	if score > 10 {
		score = 10
	}
	return score
}

// rubricReply is the JSON shape the rubric prompt asks the model for
type rubricReply struct {
	Clarity     int    `json:"clarity"`
	Specificity int    `json:"specificity"`
	Creativity  int    `json:"creativity"`
	Feedback    string `json:"feedback"`
}

// evaluatePrompt runs the LLM rubric and falls back to the heuristic on
// any failure
func (e *Evaluator) evaluatePrompt(ctx context.Context, kind models.ActivityKind, prompt string, theme models.ThemeProfile) models.EvaluationResult {
	system := fmt.Sprintf("Du er %s og bedømmer prompts skrevet af børn på 8-12 år. Du er mild og opmuntrende.", theme.MentorName)
	user := fmt.Sprintf(
		"Bedøm dette prompt fra et barn: %q. Giv hver delkarakter fra 1 til 5. "+
			"Svar KUN med JSON: {\"clarity\": n, \"specificity\": n, \"creativity\": n, \"feedback\": \"kort opmuntrende feedback på dansk\"}",
		prompt)

	reply, err := e.ai.Complete(ctx, system, user, config.EvaluationMaxTokens, config.EvaluationTemperature)
	if err == nil {
		var rubric rubricReply
		if jsonErr := json.Unmarshal([]byte(extractJSON(reply)), &rubric); jsonErr == nil && rubricInRange(rubric) {
			avg := float64(rubric.Clarity+rubric.Specificity+rubric.Creativity) / 3.0
			score := scaleToPercent(avg, 5)
			feedback := rubric.Feedback
			if feedback == "" {
				feedback = themedFeedback(theme, score >= rubricSuccessScore)
			}
			return models.EvaluationResult{
				Score:     score,
				Success:   score >= rubricSuccessScore,
				Completed: score >= rubricSuccessScore,
				Feedback:  feedback,
				SubScores: map[string]int{
					"clarity":     rubric.Clarity,
					"specificity": rubric.Specificity,
					"creativity":  rubric.Creativity,
				},
			}
		}
	}

	e.logger.Warn(ctx, "Rubric evaluation unavailable, using heuristic", map[string]interface{}{
		"kind": kind.String(),
	})

	heuristic := e.ScorePromptHeuristic(prompt)
	score := scaleToPercent(float64(heuristic), 10)
	success := heuristic >= heuristicSuccessThreshold
	return models.EvaluationResult{
		Score:     score,
		Success:   success,
		Completed: success,
		Feedback:  themedFeedback(theme, success),
	}
}

func rubricInRange(r rubricReply) bool {
	for _, v := range []int{r.Clarity, r.Specificity, r.Creativity} {
		if v < 1 || v > 5 {
			return false
		}
	}
	return true
}

// evaluateQuiz compares the answer and factors in the attempt count.
// A quiz closes on a correct answer or once the attempt ceiling is
// reached; at the ceiling a wrong answer still completes the activity
// with the floor score, and the feedback reveals the answer.
func evaluateQuiz(submission models.Submission, theme models.ThemeProfile) (models.EvaluationResult, error) {
	if strings.TrimSpace(submission.Answer) == "" {
		return models.EvaluationResult{}, contextutils.WrapError(contextutils.ErrMissingRequired, "answer is required")
	}

	attempt := submission.Attempt
	if attempt < 1 {
		attempt = 1
	}

	correct := strings.EqualFold(strings.TrimSpace(submission.Answer), strings.TrimSpace(submission.CorrectAnswer))
	if !correct {
		if attempt >= quizMaxAttempts {
			return models.EvaluationResult{
				Score:     quizMinScore,
				Success:   false,
				Completed: true,
				Feedback:  fmt.Sprintf("Det rigtige svar var: %s. Godt kæmpet!", submission.CorrectAnswer),
			}, nil
		}
		return models.EvaluationResult{
			Score:    0,
			Success:  false,
			Feedback: "Ikke helt - prøv igen! Læs spørgsmålet en gang til.",
		}, nil
	}

	score := quizMaxScore - (attempt-1)*quizRetryPenalty
	if score < quizMinScore {
		score = quizMinScore
	}
	return models.EvaluationResult{
		Score:     score,
		Success:   true,
		Completed: true,
		Feedback:  themedFeedback(theme, true),
	}, nil
}

// ScoreChatQuality rates a conversation 0-10 from message statistics
func (e *Evaluator) ScoreChatQuality(messages []models.ChatMessage) int {
	var userMessages []string
	for _, msg := range messages {
		if msg.Role == "user" {
			userMessages = append(userMessages, msg.Content)
		}
	}
	if len(userMessages) == 0 {
		return 0
	}

	score := 5

	totalLen := 0
	questions := 0
	unique := make(map[string]struct{})
	for _, msg := range userMessages {
		totalLen += len(msg)
		if strings.Contains(msg, "?") {
			questions++
		}
		unique[strings.ToLower(strings.TrimSpace(msg))] = struct{}{}
	}

	if totalLen/len(userMessages) > 10 {
		score++
	}
	if questions > 0 {
		score += 2
	}
	if len(unique) > 2 {
		score += 2
	}

	if score > 10 {
		score = 10
	}
	return score
}

// evaluateChat scores an ongoing conversation. The activity completes at
// a fixed message count with a fixed score.
func (e *Evaluator) evaluateChat(submission models.Submission, theme models.ThemeProfile) models.EvaluationResult {
	if len(submission.Messages) >= chatMinMessages {
		return models.EvaluationResult{
			Score:     chatCompletionScore,
			Success:   true,
			Completed: true,
			Feedback:  themedFeedback(theme, true),
		}
	}

	quality := e.ScoreChatQuality(submission.Messages)
	return models.EvaluationResult{
		Score:    scaleToPercent(float64(quality), 10),
		Success:  false,
		Feedback: fmt.Sprintf("Bliv ved med at snakke med %s - stil flere spørgsmål!", theme.MentorName),
	}
}

// themedFeedback picks an encouragement from the theme profile
func themedFeedback(theme models.ThemeProfile, success bool) string {
	if success {
		if len(theme.Encouragements) > 0 {
			return theme.Encouragements[0]
		}
		return "Flot arbejde!"
	}
	if len(theme.Encouragements) > 1 {
		return theme.Encouragements[1]
	}
	return "Godt forsøg - prøv igen!"
}
