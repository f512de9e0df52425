package handlers

import (
	"net/http"
	"strconv"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/gin-gonic/gin"
)

// ChatHandler runs the mentor chat activity
type ChatHandler struct {
	userService         services.UserServiceInterface
	activityService     services.ActivityServiceInterface
	progressService     services.ProgressServiceInterface
	conversationService services.ConversationServiceInterface
	contentService      services.ContentGeneratorInterface
	evaluator           services.EvaluatorInterface
	aiService           services.AIServiceInterface
	themes              *services.ThemeCatalog
	config              *config.Config
	logger              *observability.Logger
}

// NewChatHandler creates a new ChatHandler instance
func NewChatHandler(
	userService services.UserServiceInterface,
	activityService services.ActivityServiceInterface,
	progressService services.ProgressServiceInterface,
	conversationService services.ConversationServiceInterface,
	contentService services.ContentGeneratorInterface,
	evaluator services.EvaluatorInterface,
	aiService services.AIServiceInterface,
	themes *services.ThemeCatalog,
	cfg *config.Config,
	logger *observability.Logger,
) *ChatHandler {
	return &ChatHandler{
		userService:         userService,
		activityService:     activityService,
		progressService:     progressService,
		conversationService: conversationService,
		contentService:      contentService,
		evaluator:           evaluator,
		aiService:           aiService,
		themes:              themes,
		config:              cfg,
		logger:              logger,
	}
}

type chatMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// Send appends a user message, generates the mentor's reply and, for the
// chat activity, completes it once the conversation is long enough
func (h *ChatHandler) Send(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "chat_send")
	defer observability.FinishSpan(span, nil)

	user, activityID, ok := h.userAndActivityID(c)
	if !ok {
		return
	}

	var req chatMessageRequest
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

	if err = moderateText(ctx, h.aiService, h.config, h.logger, req.Message); err != nil {
		HandleAppError(c, err)
		return
	}

	theme := h.themes.Lookup(themeID(user))

	history, err := h.conversationService.AppendMessage(ctx, user.ID, activityID, "user", req.Message)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	reply := h.contentService.ChatReply(ctx, theme, history[:len(history)-1], req.Message)

	messages, err := h.conversationService.AppendMessage(ctx, user.ID, activityID, "assistant", reply)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	response := gin.H{"reply": reply, "messages": messages}

	// Completion check only applies to the chat activity itself
	if activity.Kind == models.KindChat && progress.Status != models.StatusCompleted {
		eval, evalErr := h.evaluator.Evaluate(ctx, activity, models.Submission{Messages: messages}, theme)
		if evalErr != nil {
			HandleAppError(c, evalErr)
			return
		}
		if eval.Success {
			outcome, recordErr := h.progressService.RecordSubmission(ctx, user, activity, eval)
			if recordErr != nil {
				HandleAppError(c, recordErr)
				return
			}
			response["outcome"] = outcome
		}
	}

	if err = h.userService.UpdateLastActive(ctx, user.ID); err != nil {
		h.logger.Warn(ctx, "Failed to update last active", observability.UserErrorField(user.ID, err))
	}

	c.JSON(http.StatusOK, response)
}

// History returns the stored conversation
func (h *ChatHandler) History(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "chat_history")
	defer observability.FinishSpan(span, nil)

	user, activityID, ok := h.userAndActivityID(c)
	if !ok {
		return
	}

	messages, err := h.conversationService.GetHistory(ctx, user.ID, activityID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Reset clears the conversation
func (h *ChatHandler) Reset(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "chat_reset")
	defer observability.FinishSpan(span, nil)

	user, activityID, ok := h.userAndActivityID(c)
	if !ok {
		return
	}

	if err := h.conversationService.Reset(ctx, user.ID, activityID); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "conversation reset"})
}

func (h *ChatHandler) userAndActivityID(c *gin.Context) (*models.User, int, bool) {
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
