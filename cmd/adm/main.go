// Package main provides the main entry point for the UTOPAI admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"utopai/cmd/adm/commands"
	"utopai/internal/config"
	"utopai/internal/database"
	"utopai/internal/observability"
	"utopai/internal/services"

	"github.com/spf13/cobra"
)

// Global variables for shared resources
var (
	cfg    *config.Config
	logger *observability.Logger
)

func main() {
	ctx := context.Background()

	// Load configuration
	var err error
	cfg, err = config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	cfg.Server.LogLevel = "error"

	// Disable all OpenTelemetry features for admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	tp, mp, loggerInstance, err := observability.SetupObservability(&cfg.OpenTelemetry, "utopai-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger = loggerInstance

	defer func() {
		if s, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			if err := s.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	// Initialize database connection (no migrations for admin tool)
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Initialize services
	themes := services.NewThemeCatalog()
	userService := services.NewUserServiceWithLogger(db, cfg, logger, themes)
	gamificationService := services.NewGamificationServiceWithLogger(db, cfg, logger)
	emailService := services.NewEmailService(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "UTOPAI Administration Tool",
		Long: `UTOPAI Administration Tool

A CLI tool for administering the UTOPAI learning platform.
Provides commands for user management, database operations and parent summaries.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(userService, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(dbManager, logger, db))
	rootCmd.AddCommand(commands.SummaryCommands(userService, gamificationService, emailService, logger))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
