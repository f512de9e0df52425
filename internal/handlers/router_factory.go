package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"utopai/internal/config"
	"utopai/internal/middleware"
	"utopai/internal/observability"
	"utopai/internal/services"
	"utopai/internal/version"
)

// NewRouter creates a new router with all the necessary middleware and routes
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	activityService services.ActivityServiceInterface,
	progressService services.ProgressServiceInterface,
	gamificationService services.GamificationServiceInterface,
	conversationService services.ConversationServiceInterface,
	contentService services.ContentGeneratorInterface,
	evaluator services.EvaluatorInterface,
	aiService services.AIServiceInterface,
	emailService services.EmailServiceInterface,
	themes *services.ThemeCatalog,
	logger *observability.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// HTTP request logging through the observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "backend"})
	})

	// OpenTelemetry middleware for HTTP tracing and context propagation
	router.Use(observability.GinMiddlewareWithErrorHandling("utopai-backend"))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	// Initialize handlers
	authHandler := NewAuthHandler(userService, cfg, logger)
	themeHandler := NewThemeHandler(userService, gamificationService, themes, cfg, logger)
	islandHandler := NewIslandHandler(userService, activityService, cfg, logger)
	activityHandler := NewActivityHandler(userService, activityService, progressService, contentService, evaluator, aiService, themes, cfg, logger)
	promptHandler := NewPromptHandler(userService, contentService, aiService, themes, cfg, logger)
	chatHandler := NewChatHandler(userService, activityService, progressService, conversationService, contentService, evaluator, aiService, themes, cfg, logger)
	gamificationHandler := NewGamificationHandler(userService, gamificationService, cfg, logger)
	parentHandler := NewParentHandler(userService, gamificationService, emailService, cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "backend",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.Me)
		}

		// Theme catalog is public so the signup screen can show it
		v1.GET("/themes", themeHandler.List)

		authed := v1.Group("")
		authed.Use(middleware.RequireAuth())
		{
			authed.PUT("/users/me/theme", themeHandler.Select)
			authed.GET("/users/me/badges", gamificationHandler.MyBadges)
			authed.GET("/users/me/stats", gamificationHandler.MyStats)

			authed.GET("/islands", islandHandler.List)
			authed.GET("/islands/:id/activities", islandHandler.Activities)

			authed.POST("/activities/:id/start", activityHandler.Start)
			authed.GET("/activities/:id/content", activityHandler.Content)
			authed.POST("/activities/:id/submit", activityHandler.Submit)
			authed.POST("/activities/:id/steps/:step/submit", activityHandler.SubmitStep)
			authed.GET("/activities/:id/hint", activityHandler.Hint)

			authed.POST("/activities/:id/chat", chatHandler.Send)
			authed.GET("/activities/:id/chat", chatHandler.History)
			authed.DELETE("/activities/:id/chat", chatHandler.Reset)

			authed.POST("/prompt/build", promptHandler.Build)
			authed.GET("/prompt/templates", promptHandler.Templates)
			authed.POST("/prompt/test", promptHandler.Test)

			authed.GET("/leaderboard", gamificationHandler.Leaderboard)
			authed.GET("/badges", gamificationHandler.AllBadges)
		}

		parent := v1.Group("/parent")
		parent.Use(middleware.RequireAuth(), middleware.RequireParent())
		{
			parent.GET("/children", parentHandler.Children)
			parent.GET("/children/:id/stats", parentHandler.ChildStats)
			parent.POST("/summary", parentHandler.SendSummary)
		}
	}

	return router
}
