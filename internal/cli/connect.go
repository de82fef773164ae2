package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"relayconf/internal/core"
	pkgerrors "relayconf/pkg/errors"
)

// engineTimeout bounds a single engine start or stop from the CLI.
const engineTimeout = 15 * time.Second

func requireEngine() (*core.Manager, error) {
	if appInstance.Engine == nil {
		return nil, fmt.Errorf("%w: set RELAYCONF_ENGINE or pass --engine", pkgerrors.ErrNoEngine)
	}
	return appInstance.Engine, nil
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Start the proxy engine on the active configuration",
	Long: `Start the proxy engine with the active configuration: the first
configuration of the active group.

A running engine is restarted on the current active configuration.
With --follow the command stays in the foreground and restarts the engine
whenever the active configuration changes, stopping it on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := requireEngine()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		err = mgr.Connect(ctx, appInstance.Configs)
		cancel()
		switch {
		case errors.Is(err, pkgerrors.ErrNoActiveConfiguration):
			return fmt.Errorf("no active configuration: activate a group that has configurations")
		case err != nil:
			return err
		}

		status := mgr.GetStatus()
		fmt.Printf("Connected!\n\n")
		printStatus(status)

		follow, _ := cmd.Flags().GetBool("follow")
		if !follow {
			return nil
		}

		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sub := mgr.Follow(appInstance.Configs)
		defer sub.Cancel()
		fmt.Println("\nFollowing the active configuration. Press Ctrl+C to disconnect.")
		<-sigCtx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()
		if err := mgr.Stop(stopCtx); err != nil && !errors.Is(err, pkgerrors.ErrEngineNotRunning) {
			return err
		}
		fmt.Println("Disconnected.")
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Stop the proxy engine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := requireEngine()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()
		if err := mgr.Stop(ctx); err != nil {
			if errors.Is(err, pkgerrors.ErrEngineNotRunning) {
				fmt.Println("Not connected.")
				return nil
			}
			return err
		}
		fmt.Println("Disconnected.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active configuration and engine status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		group, err := appInstance.Groups.Active(ctx)
		if err != nil {
			return err
		}
		if group == nil {
			fmt.Println("Active group:          none")
		} else {
			fmt.Printf("Active group:          %s\n", group.Name)
		}

		active, err := appInstance.Configs.GetActive(ctx)
		if err != nil {
			return err
		}
		if active == nil {
			fmt.Println("Active configuration:  none")
		} else {
			fmt.Printf("Active configuration:  %s (%s)\n", active.Name, active.Endpoint())
		}

		if cfg := appInstance.Config; cfg != nil {
			fmt.Printf("Store:                 %s (%s)\n", cfg.DBPath, cfg.Driver)
		}

		if appInstance.Engine == nil {
			fmt.Println("Engine:                not configured")
			return nil
		}
		fmt.Println()
		printStatus(appInstance.Engine.GetStatus())
		return nil
	},
}

func printStatus(s *core.Status) {
	if !s.Running {
		fmt.Println("Engine:   stopped")
		return
	}
	fmt.Println("Engine:   running")
	if s.Configuration != nil {
		fmt.Printf("Relay:    %s\n", s.Configuration.Name)
		fmt.Printf("Endpoint: %s\n", s.Endpoint)
	}
	if s.PID > 0 {
		fmt.Printf("PID:      %d\n", s.PID)
	}
	if s.Uptime > 0 {
		fmt.Printf("Uptime:   %s\n", s.Uptime.Round(time.Second))
	}
}

func init() {
	connectCmd.Flags().Bool("follow", false, "restart the engine when the active configuration changes")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
}
