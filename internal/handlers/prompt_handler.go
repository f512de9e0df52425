package handlers

import (
	"net/http"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	"utopai/internal/services"

	"github.com/gin-gonic/gin"
)

// PromptHandler serves the slot-based prompt builder
type PromptHandler struct {
	userService    services.UserServiceInterface
	contentService services.ContentGeneratorInterface
	aiService      services.AIServiceInterface
	themes         *services.ThemeCatalog
	config         *config.Config
	logger         *observability.Logger
}

// NewPromptHandler creates a new PromptHandler instance
func NewPromptHandler(
	userService services.UserServiceInterface,
	contentService services.ContentGeneratorInterface,
	aiService services.AIServiceInterface,
	themes *services.ThemeCatalog,
	cfg *config.Config,
	logger *observability.Logger,
) *PromptHandler {
	return &PromptHandler{
		userService:    userService,
		contentService: contentService,
		aiService:      aiService,
		themes:         themes,
		config:         cfg,
		logger:         logger,
	}
}

type buildPromptRequest struct {
	Slots models.PromptSlots `json:"slots"`
}

// Build assembles the slot values into a complete prompt without
// contacting the LLM
func (h *PromptHandler) Build(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "build_prompt")
	defer observability.FinishSpan(span, nil)

	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req buildPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	theme := h.themes.Lookup(themeID(user))
	prompt := services.BuildPrompt(req.Slots, theme)
	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

// Templates returns themed example values for each prompt slot
func (h *PromptHandler) Templates(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "prompt_templates")
	defer observability.FinishSpan(span, nil)

	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	theme := h.themes.Lookup(themeID(user))
	c.JSON(http.StatusOK, gin.H{"templates": services.SlotTemplates(theme)})
}

type testPromptRequest struct {
	Prompt string              `json:"prompt"`
	Slots  *models.PromptSlots `json:"slots"`
}

// Test sends a built prompt to the mentor and returns the reply, so the
// child can see what their prompt produces
func (h *PromptHandler) Test(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "test_prompt")
	defer observability.FinishSpan(span, nil)

	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req testPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	theme := h.themes.Lookup(themeID(user))
	prompt := req.Prompt
	if prompt == "" && req.Slots != nil {
		prompt = services.BuildPrompt(*req.Slots, theme)
	}
	if prompt == "" {
		HandleValidationError(c, "prompt", "", "prompt or slots is required")
		return
	}

	if err := moderateText(ctx, h.aiService, h.config, h.logger, prompt); err != nil {
		HandleAppError(c, err)
		return
	}

	reply := h.contentService.ChatReply(ctx, theme, nil, prompt)
	c.JSON(http.StatusOK, gin.H{"prompt": prompt, "reply": reply})
}
