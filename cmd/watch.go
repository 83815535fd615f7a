package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/therudywolf/DomainsBot-sub000/internal/application"
	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched domains",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Put a domain under monitoring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		domain, added, err := container.WatchService.Add(cmd.Context(), owner, args[0])
		if err != nil {
			return err
		}
		if !added {
			fmt.Printf("%s %s is already monitored\n", colorWarn("•"), domain)
			return nil
		}
		fmt.Printf("%s %s added to monitoring\n", colorSuccess("✓"), domain)
		return nil
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <domain>",
	Short: "Stop monitoring a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		if err := container.WatchService.Remove(cmd.Context(), owner, args[0]); err != nil {
			return err
		}
		fmt.Printf("%s %s removed\n", colorSuccess("✓"), args[0])
		return nil
	},
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the owner's watched domains and their last known state",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		wl, err := container.WatchService.List(cmd.Context(), owner)
		if err != nil {
			return err
		}

		status := colorSuccess("enabled")
		if !wl.Enabled {
			status = colorError("disabled")
		}
		fmt.Printf("Owner %s: %s, every %d minutes, %d domain(s)\n",
			owner.Key(), status, wl.IntervalMinutes, len(wl.Domains))

		for _, name := range wl.DomainNames() {
			entry := wl.Domains[name]
			fmt.Printf("  %s\n", colorInfo(name))
			if entry.LastState == nil {
				fmt.Println("    not checked yet")
				continue
			}
			s := entry.LastState
			fmt.Printf("    GOST: %s  WAF: %s\n", formatBool(s.Gost), formatBool(s.WAF))
			if s.CertNotAfter != nil {
				fmt.Printf("    certificate expires %s\n", s.CertNotAfter.Format("2006-01-02"))
			}
			if s.GostCertNotAfter != nil {
				fmt.Printf("    GOST certificate expires %s\n", s.GostCertNotAfter.Format("2006-01-02"))
			}
			if entry.LastCheck != nil {
				fmt.Printf("    last check %s\n", entry.LastCheck.Format(time.RFC3339))
			}
		}
		return nil
	},
}

var watchIntervalCmd = &cobra.Command{
	Use:   "interval <minutes>",
	Short: "Change the owner's polling cadence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var minutes int
		if _, err := fmt.Sscanf(args[0], "%d", &minutes); err != nil {
			return fmt.Errorf("minutes must be a number: %q", args[0])
		}
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		if err := container.WatchService.SetInterval(cmd.Context(), owner, minutes); err != nil {
			return err
		}
		fmt.Printf("%s interval set to %d minutes\n", colorSuccess("✓"), minutes)
		return nil
	},
}

var watchEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Resume the owner's checks",
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(cmd, true) },
}

var watchDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Pause the owner's checks",
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(cmd, false) },
}

var watchCheckNowCmd = &cobra.Command{
	Use:   "check-now",
	Short: "Probe all of the owner's domains immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, container, err := ownerAndContainer()
		if err != nil {
			return err
		}
		n, err := container.Scheduler.RunChecksNow(cmd.Context(), owner)
		if err != nil {
			return err
		}
		fmt.Printf("%s checked %d domain(s)\n", colorSuccess("✓"), n)
		return nil
	},
}

var watchOwnersCmd = &cobra.Command{
	Use:   "owners",
	Short: "List every owner with a watch-list",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := buildContainer()
		if err != nil {
			return err
		}
		keys, err := container.WatchService.OwnerKeys(cmd.Context())
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

func setEnabled(cmd *cobra.Command, enabled bool) error {
	owner, container, err := ownerAndContainer()
	if err != nil {
		return err
	}
	if err := container.WatchService.SetEnabled(cmd.Context(), owner, enabled); err != nil {
		return err
	}
	if enabled {
		fmt.Printf("%s checks enabled\n", colorSuccess("✓"))
	} else {
		fmt.Printf("%s checks disabled\n", colorWarn("•"))
	}
	return nil
}

func ownerAndContainer() (watch.OwnerRef, *application.Container, error) {
	owner, err := watch.ParseOwnerKey(ownerKey)
	if err != nil {
		return watch.OwnerRef{}, nil, fmt.Errorf("invalid --owner %q: %w", ownerKey, err)
	}
	container, err := buildContainer()
	if err != nil {
		return watch.OwnerRef{}, nil, err
	}
	return owner, container, nil
}

func init() {
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchIntervalCmd)
	watchCmd.AddCommand(watchEnableCmd)
	watchCmd.AddCommand(watchDisableCmd)
	watchCmd.AddCommand(watchCheckNowCmd)
	watchCmd.AddCommand(watchOwnersCmd)
	rootCmd.AddCommand(watchCmd)
}
