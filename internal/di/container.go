// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"utopai/internal/config"
	"utopai/internal/database"
	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetActivityService() (services.ActivityServiceInterface, error)
	GetProgressService() (services.ProgressServiceInterface, error)
	GetGamificationService() (services.GamificationServiceInterface, error)
	GetConversationService() (services.ConversationServiceInterface, error)
	GetContentGenerator() (services.ContentGeneratorInterface, error)
	GetEvaluator() (services.EvaluatorInterface, error)
	GetAIService() (services.AIServiceInterface, error)
	GetEmailService() (services.EmailServiceInterface, error)
	GetThemeCatalog() *services.ThemeCatalog
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	themes        *services.ThemeCatalog
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		themes:   services.NewThemeCatalog(),
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices(ctx)

	if err := sc.startupServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to startup services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetActivityService returns the activity catalog service
func (sc *ServiceContainer) GetActivityService() (services.ActivityServiceInterface, error) {
	return GetServiceAs[services.ActivityServiceInterface](sc, "activity")
}

// GetProgressService returns the progress service
func (sc *ServiceContainer) GetProgressService() (services.ProgressServiceInterface, error) {
	return GetServiceAs[services.ProgressServiceInterface](sc, "progress")
}

// GetGamificationService returns the gamification service
func (sc *ServiceContainer) GetGamificationService() (services.GamificationServiceInterface, error) {
	return GetServiceAs[services.GamificationServiceInterface](sc, "gamification")
}

// GetConversationService returns the conversation service
func (sc *ServiceContainer) GetConversationService() (services.ConversationServiceInterface, error) {
	return GetServiceAs[services.ConversationServiceInterface](sc, "conversation")
}

// GetContentGenerator returns the content generator
func (sc *ServiceContainer) GetContentGenerator() (services.ContentGeneratorInterface, error) {
	return GetServiceAs[services.ContentGeneratorInterface](sc, "content")
}

// GetEvaluator returns the submission evaluator
func (sc *ServiceContainer) GetEvaluator() (services.EvaluatorInterface, error) {
	return GetServiceAs[services.EvaluatorInterface](sc, "evaluator")
}

// GetAIService returns the AI service
func (sc *ServiceContainer) GetAIService() (services.AIServiceInterface, error) {
	return GetServiceAs[services.AIServiceInterface](sc, "ai")
}

// GetEmailService returns the email service
func (sc *ServiceContainer) GetEmailService() (services.EmailServiceInterface, error) {
	return GetServiceAs[services.EmailServiceInterface](sc, "email")
}

// GetThemeCatalog returns the theme catalog
func (sc *ServiceContainer) GetThemeCatalog() *services.ThemeCatalog {
	return sc.themes
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// startupServices starts all services that implement the Lifecycle interface
func (sc *ServiceContainer) startupServices(ctx context.Context) error {
	for name, service := range sc.services {
		if lifecycleService, ok := service.(interface{ Startup(context.Context) error }); ok {
			sc.logger.Info(ctx, "Starting service", map[string]interface{}{"service": name})
			if err := lifecycleService.Startup(ctx); err != nil {
				return contextutils.WrapErrorf(err, "failed to startup service %s", name)
			}
			sc.logger.Info(ctx, "Service started successfully", map[string]interface{}{"service": name})
		}
	}
	return nil
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			} else {
				sc.logger.Info(ctx, "Service shutdown successfully", map[string]interface{}{"service": name})
			}
		}
	}

	// Shutdown funcs run in reverse order of registration
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	// Core services that don't depend on other services
	userService := services.NewUserServiceWithLogger(sc.db, sc.cfg, sc.logger, sc.themes)
	sc.services["user"] = userService

	activityService := services.NewActivityServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["activity"] = activityService

	gamificationService := services.NewGamificationServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["gamification"] = gamificationService

	// Progress service depends on activity and gamification services
	progressService := services.NewProgressServiceWithLogger(sc.db, sc.cfg, sc.logger, activityService, gamificationService)
	sc.services["progress"] = progressService

	conversationService := services.NewConversationServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["conversation"] = conversationService

	// AI-backed services
	aiService := services.NewAIService(sc.cfg, sc.logger)
	sc.services["ai"] = aiService

	contentGenerator := services.NewContentGenerator(aiService, sc.logger)
	sc.services["content"] = contentGenerator

	evaluator := services.NewEvaluator(aiService, sc.logger)
	sc.services["evaluator"] = evaluator

	emailService := services.NewEmailService(sc.cfg, sc.logger)
	sc.services["email"] = emailService
}
