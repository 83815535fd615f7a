package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var destinationCmd = &cobra.Command{
	Use:   "destination",
	Short: "Manage where the owner's notifications are delivered",
}

var destinationSetCmd = &cobra.Command{
	Use:   "set <chat-id>",
	Short: "Route notifications to a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("chat ID must be a number: %q", args[0])
		}
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		if err := container.Registry.SetDestination(cmd.Context(), owner, &chatID); err != nil {
			return err
		}
		fmt.Printf("%s notifications for %s go to chat %d\n", colorSuccess("✓"), owner.Key(), chatID)
		return nil
	},
}

var destinationClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the configured notification chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		if err := container.Registry.SetDestination(cmd.Context(), owner, nil); err != nil {
			return err
		}
		fmt.Printf("%s destination cleared for %s\n", colorSuccess("✓"), owner.Key())
		return nil
	},
}

var destinationListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the configured chat and every chat the bot knows",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		configured, err := container.Registry.Destination(ctx, owner)
		if err != nil {
			return err
		}
		if configured != nil {
			fmt.Printf("configured: %d\n", *configured)
		} else {
			fmt.Println("configured: none")
		}

		known, err := container.Registry.KnownDestinations(ctx, owner)
		if err != nil {
			return err
		}
		for _, k := range known {
			fmt.Printf("  %d  %s (%s)\n", k.ChatID, k.Title, k.Type)
		}
		return nil
	},
}

var destinationForgetCmd = &cobra.Command{
	Use:   "forget <chat-id>",
	Short: "Drop a chat from the known list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("chat ID must be a number: %q", args[0])
		}
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		if err := container.Registry.RemoveKnown(cmd.Context(), owner, chatID); err != nil {
			return err
		}
		fmt.Printf("%s chat %d forgotten\n", colorSuccess("✓"), chatID)
		return nil
	},
}

func init() {
	destinationCmd.AddCommand(destinationSetCmd)
	destinationCmd.AddCommand(destinationClearCmd)
	destinationCmd.AddCommand(destinationListCmd)
	destinationCmd.AddCommand(destinationForgetCmd)
	rootCmd.AddCommand(destinationCmd)
}
