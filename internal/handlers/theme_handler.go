package handlers

import (
	"net/http"

	"utopai/internal/config"
	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/gin-gonic/gin"
)

// ThemeHandler exposes the theme catalog and theme selection
type ThemeHandler struct {
	userService         services.UserServiceInterface
	gamificationService services.GamificationServiceInterface
	themes              *services.ThemeCatalog
	config              *config.Config
	logger              *observability.Logger
}

// NewThemeHandler creates a new ThemeHandler instance
func NewThemeHandler(userService services.UserServiceInterface, gamificationService services.GamificationServiceInterface, themes *services.ThemeCatalog, cfg *config.Config, logger *observability.Logger) *ThemeHandler {
	return &ThemeHandler{
		userService:         userService,
		gamificationService: gamificationService,
		themes:              themes,
		config:              cfg,
		logger:              logger,
	}
}

// List returns every available theme profile
func (h *ThemeHandler) List(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_themes")
	defer observability.FinishSpan(span, nil)

	var profiles []interface{}
	for _, id := range h.themes.KnownThemeIDs() {
		profiles = append(profiles, h.themes.Lookup(id))
	}
	c.JSON(http.StatusOK, gin.H{"themes": profiles, "default": services.DefaultThemeID})
}

type selectThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

// Select sets the authenticated user's theme and awards any badge the
// selection unlocks
func (h *ThemeHandler) Select(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "select_theme")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req selectThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	if err := h.userService.SelectTheme(ctx, userID, req.Theme); err != nil {
		HandleAppError(c, err)
		return
	}

	newBadges, err := h.gamificationService.CheckAndAwardBadges(ctx, userID)
	if err != nil {
		h.logger.Warn(ctx, "Badge check failed after theme selection", observability.UserErrorField(userID, err))
	}

	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "new_badges": newBadges})
}
