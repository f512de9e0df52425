package handlers

import (
	"context"
	"net/http"
	"strconv"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/gin-gonic/gin"
)

// ActivityHandler drives the activity lifecycle: start, content,
// submissions, steps and hints
type ActivityHandler struct {
	userService     services.UserServiceInterface
	activityService services.ActivityServiceInterface
	progressService services.ProgressServiceInterface
	contentService  services.ContentGeneratorInterface
	evaluator       services.EvaluatorInterface
	aiService       services.AIServiceInterface
	themes          *services.ThemeCatalog
	config          *config.Config
	logger          *observability.Logger
}

// NewActivityHandler creates a new ActivityHandler instance
func NewActivityHandler(
	userService services.UserServiceInterface,
	activityService services.ActivityServiceInterface,
	progressService services.ProgressServiceInterface,
	contentService services.ContentGeneratorInterface,
	evaluator services.EvaluatorInterface,
	aiService services.AIServiceInterface,
	themes *services.ThemeCatalog,
	cfg *config.Config,
	logger *observability.Logger,
) *ActivityHandler {
	return &ActivityHandler{
		userService:     userService,
		activityService: activityService,
		progressService: progressService,
		contentService:  contentService,
		evaluator:       evaluator,
		aiService:       aiService,
		themes:          themes,
		config:          cfg,
		logger:          logger,
	}
}

// Start opens an activity for the authenticated user
func (h *ActivityHandler) Start(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "start_activity")
	defer observability.FinishSpan(span, nil)

	user, activityID, ok := h.userAndActivityID(c)
	if !ok {
		return
	}

	progress, err := h.progressService.StartActivity(ctx, user, activityID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

// Content renders themed content for an activity. Multi-step activities
// take a ?step= query parameter. The quiz answer key never leaves the
// server.
func (h *ActivityHandler) Content(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "activity_content")
	defer observability.FinishSpan(span, nil)

	user, activityID, ok := h.userAndActivityID(c)
	if !ok {
		return
	}

	activity, err := h.activityService.GetActivityByID(ctx, activityID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	theme := h.themes.Lookup(themeID(user))

	var content models.GeneratedContent
	if stepParam := c.Query("step"); stepParam != "" && activity.Steps > 1 {
		step, convErr := strconv.Atoi(stepParam)
		if convErr != nil || step < 1 || step > activity.Steps {
			HandleValidationError(c, "step", stepParam, "must be an integer within the activity's step range")
			return
		}
		content = h.contentService.GenerateStepContent(ctx, activity.Kind, step, theme)
	} else {
		content = h.contentService.Generate(ctx, activity.Kind, theme, activity.Difficulty)
	}

	if err = h.progressService.SaveGeneratedContent(ctx, user.ID, activityID, content); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": redactAnswerKey(activity.Kind, content)})
}

type submitRequest struct {
	Prompt string              `json:"prompt"`
	Answer string              `json:"answer"`
	Slots  *models.PromptSlots `json:"slots"`
}

// Submit evaluates a whole-activity submission and records the outcome
func (h *ActivityHandler) Submit(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_activity")
	defer observability.FinishSpan(span, nil)

	user, activityID, ok := h.userAndActivityID(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	activity, err := h.activityService.GetActivityByID(ctx, activityID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	progress, err := h.progressService.GetProgress(ctx, user.ID, activityID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if progress == nil {
		StandardizeAppError(c, contextutils.ErrActivityNotStarted)
		return
	}

	if req.Prompt != "" {
		if err = h.moderate(ctx, req.Prompt); err != nil {
			HandleAppError(c, err)
			return
		}
	}

	submission := models.Submission{
		Prompt:  req.Prompt,
		Answer:  req.Answer,
		Slots:   req.Slots,
		Attempt: progress.Attempts + 1,
	}

	if activity.Kind == models.KindQuiz {
		content, contentErr := h.progressService.GetGeneratedContent(ctx, user.ID, activityID)
		if contentErr != nil {
			HandleAppError(c, contentErr)
			return
		}
		if answer, found := content["correct_answer"].(string); found {
			submission.CorrectAnswer = answer
		} else {
			StandardizeAppError(c, contextutils.ErrActivityNotStarted)
			return
		}
	}

	theme := h.themes.Lookup(themeID(user))
	eval, err := h.evaluator.Evaluate(ctx, activity, submission, theme)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	outcome, err := h.progressService.RecordSubmission(ctx, user, activity, eval)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err = h.userService.UpdateLastActive(ctx, user.ID); err != nil {
		h.logger.Warn(ctx, "Failed to update last active", observability.UserErrorField(user.ID, err))
	}

	c.JSON(http.StatusOK, outcome)
}

type submitStepRequest struct {
	Score *int `json:"score"`
}

// resolveStepScore maps an optional step score to a percent. An absent
// score counts as full marks; an explicit score, including zero, is
// taken as given and must lie within 0-100.
func resolveStepScore(score *int) (int, bool) {
	if score == nil {
		return 100, true
	}
	if *score < 0 || *score > 100 {
		return 0, false
	}
	return *score, true
}

// SubmitStep marks one step of a multi-step activity complete
func (h *ActivityHandler) SubmitStep(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_step")
	defer observability.FinishSpan(span, nil)

	user, activityID, ok := h.userAndActivityID(c)
	if !ok {
		return
	}

	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		HandleValidationError(c, "step", c.Param("step"), "must be an integer")
		return
	}

	// body is optional; a bare submit counts as full marks for the step
	var req submitStepRequest
	if c.Request.ContentLength > 0 {
		if err = c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, "request body", nil, err.Error())
			return
		}
	}
	score, valid := resolveStepScore(req.Score)
	if !valid {
		HandleValidationError(c, "score", *req.Score, "must be between 0 and 100")
		return
	}

	activity, err := h.activityService.GetActivityByID(ctx, activityID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	outcome, err := h.progressService.RecordStepResult(ctx, user, activity, step, score)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err = h.userService.UpdateLastActive(ctx, user.ID); err != nil {
		h.logger.Warn(ctx, "Failed to update last active", observability.UserErrorField(user.ID, err))
	}

	c.JSON(http.StatusOK, outcome)
}

// Hint returns a progressive hint scaled to the user's attempt count
func (h *ActivityHandler) Hint(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "activity_hint")
	defer observability.FinishSpan(span, nil)

	user, activityID, ok := h.userAndActivityID(c)
	if !ok {
		return
	}

	activity, err := h.activityService.GetActivityByID(ctx, activityID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	attempt := 1
	progress, err := h.progressService.GetProgress(ctx, user.ID, activityID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if progress != nil {
		attempt = progress.Attempts + 1
	}

	theme := h.themes.Lookup(themeID(user))
	hint := h.contentService.GenerateHint(ctx, activity.Kind, theme, attempt)
	c.JSON(http.StatusOK, gin.H{"hint": hint, "attempt": attempt})
}

// moderate checks text against the moderation endpoint. Moderation
// errors pass or fail according to config; a flagged text always fails.
func (h *ActivityHandler) moderate(ctx context.Context, text string) error {
	return moderateText(ctx, h.aiService, h.config, h.logger, text)
}

func moderateText(ctx context.Context, ai services.AIServiceInterface, cfg *config.Config, logger *observability.Logger, text string) error {
	if !cfg.OpenAI.ModerationEnabled {
		return nil
	}
	allowed, err := ai.Moderate(ctx, text)
	if err != nil {
		if cfg.OpenAI.ModerationFailOpen {
			logger.Warn(ctx, "Moderation unavailable, allowing text", map[string]interface{}{
				"error": err.Error(),
			})
			return nil
		}
		return err
	}
	if !allowed {
		return contextutils.ErrModerationRejected
	}
	return nil
}

// redactAnswerKey strips fields the client must not see
func redactAnswerKey(kind models.ActivityKind, content models.GeneratedContent) models.GeneratedContent {
	if kind != models.KindQuiz {
		return content
	}
	redacted := make(models.GeneratedContent, len(content))
	for key, value := range content {
		if key == "correct_answer" {
			continue
		}
		redacted[key] = value
	}
	return redacted
}

// themeID extracts the user's theme id, empty when unset
func themeID(user *models.User) string {
	if user.Theme.Valid {
		return user.Theme.String
	}
	return ""
}

// userAndActivityID resolves the session user and the :id path parameter
func (h *ActivityHandler) userAndActivityID(c *gin.Context) (*models.User, int, bool) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return nil, 0, false
	}
	activityID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "activity id", c.Param("id"), "must be an integer")
		return nil, 0, false
	}
	return user, activityID, true
}
