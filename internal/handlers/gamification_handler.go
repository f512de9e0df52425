package handlers

import (
	"net/http"
	"strconv"

	"utopai/internal/config"
	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/gin-gonic/gin"
)

// GamificationHandler serves badges, stats and the leaderboard
type GamificationHandler struct {
	userService         services.UserServiceInterface
	gamificationService services.GamificationServiceInterface
	config              *config.Config
	logger              *observability.Logger
}

// NewGamificationHandler creates a new GamificationHandler instance
func NewGamificationHandler(userService services.UserServiceInterface, gamificationService services.GamificationServiceInterface, cfg *config.Config, logger *observability.Logger) *GamificationHandler {
	return &GamificationHandler{
		userService:         userService,
		gamificationService: gamificationService,
		config:              cfg,
		logger:              logger,
	}
}

// Leaderboard returns the top learners by points
func (h *GamificationHandler) Leaderboard(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "leaderboard")
	defer observability.FinishSpan(span, nil)

	limit := services.DefaultLeaderboardSize
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil {
			HandleValidationError(c, "limit", limitParam, "must be an integer")
			return
		}
		limit = parsed
	}

	entries, err := h.gamificationService.Leaderboard(ctx, limit)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// MyBadges returns the authenticated user's earned badges
func (h *GamificationHandler) MyBadges(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "my_badges")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	badges, err := h.gamificationService.GetUserBadges(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": badges})
}

// AllBadges returns the badge catalog
func (h *GamificationHandler) AllBadges(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "all_badges")
	defer observability.FinishSpan(span, nil)

	badges, err := h.gamificationService.GetAllBadges(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": badges})
}

// MyStats returns the authenticated user's aggregate standing
func (h *GamificationHandler) MyStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "my_stats")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	stats, err := h.gamificationService.GetUserStats(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
