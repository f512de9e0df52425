package commands

import (
	"context"
	"database/sql"

	"utopai/internal/database"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(dbManager *database.Manager, logger *observability.Logger, db *sql.DB) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the UTOPAI platform.

Available commands:
  migrate   - Apply the schema and pending migrations
  stats     - Show database statistics`,
	}

	dbCmd.AddCommand(migrateCmd(dbManager, logger, db))
	dbCmd.AddCommand(statsCmd(logger, db))

	return dbCmd
}

func migrateCmd(dbManager *database.Manager, logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and pending migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			if err := dbManager.RunMigrations(db); err != nil {
				logger.Error(ctx, "Migrations failed", err, nil)
				return err
			}
			logger.Info(ctx, "Migrations applied", nil)
			return nil
		},
	}
}

func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			stats := map[string]interface{}{}
			for _, table := range []string{"users", "parents", "islands", "activities", "user_progress", "badges", "user_badges", "conversations"} {
				var count int
				if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
					return contextutils.WrapErrorf(err, "failed to count %s", table)
				}
				stats[table] = count
			}

			logger.Info(ctx, "Database statistics", stats)
			return nil
		},
	}
}
