package handlers

import (
	"utopai/internal/middleware"
	"utopai/internal/models"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// GetUserIDFromSession retrieves the current user ID from the session.
// Returns (0, false) if not authenticated or if the stored value is invalid.
func GetUserIDFromSession(c *gin.Context) (int, bool) {
	session := sessions.Default(c)
	userID := session.Get(middleware.UserIDKey)
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(int)
	if !ok {
		return 0, false
	}
	return id, true
}

// GetUserTypeFromSession retrieves the account type ("child" or "parent")
// from the session
func GetUserTypeFromSession(c *gin.Context) (string, bool) {
	session := sessions.Default(c)
	userType := session.Get(middleware.UserTypeKey)
	if userType == nil {
		return "", false
	}
	t, ok := userType.(string)
	if !ok {
		return "", false
	}
	return t, true
}

// currentUser loads the authenticated child account, writing the error
// response itself when the session is missing or stale
func currentUser(c *gin.Context, userService services.UserServiceInterface) (*models.User, bool) {
	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return nil, false
	}
	user, err := userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return nil, false
	}
	if user == nil {
		StandardizeAppError(c, contextutils.ErrSessionExpired)
		return nil, false
	}
	return user, true
}
