package handlers

import (
	"net/http"

	"utopai/internal/config"
	"utopai/internal/middleware"
	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles registration, login and session management
type AuthHandler struct {
	userService services.UserServiceInterface
	config      *config.Config
	logger      *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		config:      cfg,
		logger:      logger,
	}
}

type registerParentRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Username string                 `json:"username" binding:"required"`
	Password string                 `json:"password" binding:"required"`
	Age      int                    `json:"age"`
	Theme    string                 `json:"theme"`
	Parent   *registerParentRequest `json:"parent"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"user_type"`
}

// Register creates a child account, optionally together with a linked
// parent account, and signs the child in
func (h *AuthHandler) Register(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "register")
	defer observability.FinishSpan(span, nil)

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	if req.Parent != nil {
		child, parent, err := h.userService.RegisterChildWithParent(ctx,
			req.Username, req.Password, req.Age, req.Theme,
			req.Parent.Username, req.Parent.Email, req.Parent.Password)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		h.startSession(c, child.ID, child.Username, "child")
		c.JSON(http.StatusCreated, gin.H{"user": child, "parent": parent})
		return
	}

	child, err := h.userService.RegisterChild(ctx, req.Username, req.Password, req.Age, req.Theme)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	h.startSession(c, child.ID, child.Username, "child")
	c.JSON(http.StatusCreated, gin.H{"user": child})
}

// Login authenticates a child or parent account depending on user_type
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}
	if req.UserType == "" {
		req.UserType = "child"
	}

	switch req.UserType {
	case "child":
		user, err := h.userService.AuthenticateUser(ctx, req.Username, req.Password)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		if updateErr := h.userService.UpdateLastActive(ctx, user.ID); updateErr != nil {
			h.logger.Warn(ctx, "Failed to update last active on login", observability.UserErrorField(user.ID, updateErr))
		}
		h.startSession(c, user.ID, user.Username, "child")
		c.JSON(http.StatusOK, gin.H{"user": user})
	case "parent":
		parent, err := h.userService.AuthenticateParent(ctx, req.Username, req.Password)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		h.startSession(c, parent.ID, parent.Username, "parent")
		c.JSON(http.StatusOK, gin.H{"parent": parent})
	default:
		HandleValidationError(c, "user_type", req.UserType, "must be 'child' or 'parent'")
	}
}

// Logout clears the session
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated account
func (h *AuthHandler) Me(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "me")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}
	userType, _ := GetUserTypeFromSession(c)

	if userType == "parent" {
		session := sessions.Default(c)
		username, _ := session.Get(middleware.UsernameKey).(string)
		parent, err := h.userService.GetParentByUsername(ctx, username)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		if parent == nil {
			StandardizeAppError(c, contextutils.ErrSessionExpired)
			return
		}
		c.JSON(http.StatusOK, gin.H{"parent": parent, "user_type": "parent"})
		return
	}

	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if user == nil {
		StandardizeAppError(c, contextutils.ErrSessionExpired)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "user_type": "child"})
}

// startSession writes the session cookie for an authenticated account
func (h *AuthHandler) startSession(c *gin.Context, id int, username, userType string) {
	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, id)
	session.Set(middleware.UsernameKey, username)
	session.Set(middleware.UserTypeKey, userType)
	if err := session.Save(); err != nil {
		h.logger.Error(c.Request.Context(), "Failed to save session", err, observability.UserField(id))
	}
}
