package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"relayconf/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long: `Launch the full-screen terminal UI for managing groups, ordering
configurations and driving the proxy engine. Reorder edits are saved when
you leave the configurations tab or quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		relay, socks := appInstance.DefaultPorts(context.Background())

		deps := tui.Deps{
			Storage:          appInstance.Storage,
			Groups:           appInstance.Groups,
			Configs:          appInstance.Configs,
			Engine:           appInstance.Engine,
			Log:              appInstance.Log,
			DefaultRelayPort: relay,
			DefaultSocksPort: socks,
		}
		if err := tui.Run(deps); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
