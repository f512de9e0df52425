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

// IslandHandler serves the island map
type IslandHandler struct {
	userService     services.UserServiceInterface
	activityService services.ActivityServiceInterface
	config          *config.Config
	logger          *observability.Logger
}

// NewIslandHandler creates a new IslandHandler instance
func NewIslandHandler(userService services.UserServiceInterface, activityService services.ActivityServiceInterface, cfg *config.Config, logger *observability.Logger) *IslandHandler {
	return &IslandHandler{
		userService:     userService,
		activityService: activityService,
		config:          cfg,
		logger:          logger,
	}
}

// List returns all islands with lock state and per-activity progress for
// the authenticated user
func (h *IslandHandler) List(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_islands")
	defer observability.FinishSpan(span, nil)

	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	islands, err := h.activityService.ListIslandsForUser(ctx, user)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"islands": islands})
}

// Activities lists one island's activities; a locked island is rejected
func (h *IslandHandler) Activities(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "island_activities")
	defer observability.FinishSpan(span, nil)

	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	islandID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "island id", c.Param("id"), "must be an integer")
		return
	}

	unlocked, err := h.activityService.IsIslandUnlocked(ctx, user, islandID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if !unlocked {
		StandardizeAppError(c, contextutils.ErrIslandLocked)
		return
	}

	activities, err := h.activityService.GetActivitiesForIsland(ctx, islandID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}
