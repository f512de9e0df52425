// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"fmt"
	"syscall"

	"utopai/internal/observability"
	"utopai/internal/services"
	contextutils "utopai/internal/utils"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// UserCommands returns the user management commands
func UserCommands(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for the UTOPAI platform.

Available commands:
  create    - Create a child account
  children  - List the children linked to a parent`,
	}

	userCmd.AddCommand(createUserCmd(userService, logger))
	userCmd.AddCommand(childrenCmd(userService, logger))

	return userCmd
}

func createUserCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	var age int
	var theme string

	cmd := &cobra.Command{
		Use:   "create [username]",
		Short: "Create a child account",
		Long:  `Create a child account. The password is prompted interactively.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runCreateUser(userService, logger, &age, &theme),
	}

	cmd.Flags().IntVar(&age, "age", 10, "Child's age")
	cmd.Flags().StringVar(&theme, "theme", services.DefaultThemeID, "Theme id")

	return cmd
}

func runCreateUser(userService *services.UserService, logger *observability.Logger, age *int, theme *string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		username := args[0]

		fmt.Print("Enter password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
		}
		password := string(passwordBytes)
		fmt.Println()

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password confirmation: %v", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return contextutils.ErrorWithContextf("passwords do not match")
		}

		user, err := userService.RegisterChild(ctx, username, password, *age, *theme)
		if err != nil {
			logger.Error(ctx, "Failed to create user", err, map[string]interface{}{"username": username})
			return err
		}

		fmt.Printf("Created user %s (id %d, theme %s)\n", user.Username, user.ID, user.Theme.String)
		return nil
	}
}

func childrenCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "children [parent-username]",
		Short: "List the children linked to a parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			parent, err := userService.GetParentByUsername(ctx, args[0])
			if err != nil {
				logger.Error(ctx, "Failed to get parent", err, map[string]interface{}{"username": args[0]})
				return err
			}
			if parent == nil {
				return contextutils.ErrorWithContextf("parent %q not found", args[0])
			}

			children, err := userService.GetChildrenForParent(ctx, parent.ID)
			if err != nil {
				return err
			}

			if len(children) == 0 {
				fmt.Println("No children linked")
				return nil
			}
			for _, child := range children {
				fmt.Printf("%d\t%s\t%d points\t%d day streak\n", child.ID, child.Username, child.TotalPoints, child.StreakDays)
			}
			return nil
		},
	}
}
