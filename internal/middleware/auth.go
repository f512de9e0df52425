// Package middleware provides authentication middleware for the Gin web framework.
package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
	// UserTypeKey is the key used to store the account type (child or parent) in session
	UserTypeKey = "user_type"
)

func abortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}

// sessionUserID extracts and normalizes the user id from the session
func sessionUserID(c *gin.Context) (int, bool) {
	session := sessions.Default(c)
	userID := session.Get(UserIDKey)
	if userID == nil {
		return 0, false
	}

	if userIDInt, ok := userID.(int); ok {
		return userIDInt, true
	}
	// JSON numbers are often stored as float64
	if userIDFloat, ok := userID.(float64); ok {
		return int(userIDFloat), true
	}
	return 0, false
}

// RequireAuth returns a middleware that requires an authenticated session
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		session := sessions.Default(c)
		username, ok := session.Get(UsernameKey).(string)
		if !ok || username == "" {
			abortUnauthorized(c)
			return
		}

		// Store user info in context for handlers to use
		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)

		c.Next()
	}
}

// RequireParent returns a middleware that requires a parent session
func RequireParent() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		session := sessions.Default(c)
		userType, ok := session.Get(UserTypeKey).(string)
		if !ok || userType != "parent" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Parent access required",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UserTypeKey, userType)

		c.Next()
	}
}
