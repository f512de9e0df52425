package commands

import (
	"context"

	"utopai/internal/models"
	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/spf13/cobra"
)

// SummaryCommands returns the parent summary commands
func SummaryCommands(
	userService *services.UserService,
	gamificationService *services.GamificationService,
	emailService *services.EmailService,
	logger *observability.Logger,
) *cobra.Command {
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Parent summary commands",
	}

	summaryCmd.AddCommand(&cobra.Command{
		Use:   "send [parent-username]",
		Short: "Send a progress summary email to a parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			parent, err := userService.GetParentByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			if parent == nil {
				return contextutils.ErrorWithContextf("parent %q not found", args[0])
			}

			children, err := userService.GetChildrenForParent(ctx, parent.ID)
			if err != nil {
				return err
			}

			stats := make(map[int]*models.UserStats, len(children))
			for _, child := range children {
				childStats, statsErr := gamificationService.GetUserStats(ctx, child.ID)
				if statsErr != nil {
					return statsErr
				}
				stats[child.ID] = childStats
			}

			if err := emailService.SendParentSummary(ctx, parent, children, stats); err != nil {
				logger.Error(ctx, "Failed to send parent summary", err, map[string]interface{}{"parent": args[0]})
				return err
			}

			logger.Info(ctx, "Parent summary sent", map[string]interface{}{"parent": args[0], "children": len(children)})
			return nil
		},
	})

	return summaryCmd
}
