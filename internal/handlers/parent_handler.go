package handlers

import (
	"net/http"
	"strconv"

	"utopai/internal/config"
	"utopai/internal/middleware"
	"utopai/internal/models"
	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// ParentHandler serves the parent dashboard: children overview, stats
// and the progress summary email
type ParentHandler struct {
	userService         services.UserServiceInterface
	gamificationService services.GamificationServiceInterface
	emailService        services.EmailServiceInterface
	config              *config.Config
	logger              *observability.Logger
}

// NewParentHandler creates a new ParentHandler instance
func NewParentHandler(
	userService services.UserServiceInterface,
	gamificationService services.GamificationServiceInterface,
	emailService services.EmailServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *ParentHandler {
	return &ParentHandler{
		userService:         userService,
		gamificationService: gamificationService,
		emailService:        emailService,
		config:              cfg,
		logger:              logger,
	}
}

// Children lists the parent's linked child accounts
func (h *ParentHandler) Children(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "parent_children")
	defer observability.FinishSpan(span, nil)

	parentID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	children, err := h.userService.GetChildrenForParent(ctx, parentID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children})
}

// ChildStats returns one child's aggregate standing; the child must be
// linked to the requesting parent
func (h *ParentHandler) ChildStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "parent_child_stats")
	defer observability.FinishSpan(span, nil)

	parentID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	childID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "child id", c.Param("id"), "must be an integer")
		return
	}

	child, err := h.linkedChild(c, parentID, childID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if child == nil {
		StandardizeAppError(c, contextutils.ErrForbidden)
		return
	}

	stats, err := h.gamificationService.GetUserStats(ctx, childID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"child": child, "stats": stats})
}

// SendSummary emails the parent a progress overview of all their children
func (h *ParentHandler) SendSummary(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "parent_send_summary")
	defer observability.FinishSpan(span, nil)

	parentID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	session := sessions.Default(c)
	username, _ := session.Get(middleware.UsernameKey).(string)
	parent, err := h.userService.GetParentByUsername(ctx, username)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if parent == nil || parent.ID != parentID {
		StandardizeAppError(c, contextutils.ErrSessionExpired)
		return
	}

	children, err := h.userService.GetChildrenForParent(ctx, parentID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	stats := make(map[int]*models.UserStats, len(children))
	for _, child := range children {
		childStats, statsErr := h.gamificationService.GetUserStats(ctx, child.ID)
		if statsErr != nil {
			HandleAppError(c, statsErr)
			return
		}
		stats[child.ID] = childStats
	}

	if err = h.emailService.SendParentSummary(ctx, parent, children, stats); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "summary sent", "enabled": h.emailService.IsEnabled()})
}

// linkedChild returns the child if it belongs to the parent, nil otherwise
func (h *ParentHandler) linkedChild(c *gin.Context, parentID, childID int) (*models.User, error) {
	children, err := h.userService.GetChildrenForParent(c.Request.Context(), parentID)
	if err != nil {
		return nil, err
	}
	for i := range children {
		if children[i].ID == childID {
			return &children[i], nil
		}
	}
	return nil, nil
}
