package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the store with demo data",
	Long: `Delete every group and configuration, then load five demo groups
with five relays in "Home". Settings are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		force, _ := cmd.Flags().GetBool("force")
		if n, err := appInstance.Storage.CountGroups(ctx); err == nil && n > 0 && !force {
			if !confirm(fmt.Sprintf("Replace %d existing groups with demo data?", n)) {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		_, err := await(appInstance.Dispatcher.Submit("seed", func(ctx context.Context) (int64, error) {
			return 0, appInstance.Storage.Seed(ctx)
		}))
		if err != nil {
			return fmt.Errorf("failed to seed store: %w", err)
		}

		groups, _ := appInstance.Groups.List(ctx)
		configs, _ := appInstance.Configs.List(ctx)
		fmt.Printf("Seeded %d groups and %d configurations.\n", len(groups), len(configs))
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolP("force", "f", false, "skip confirmation")
	rootCmd.AddCommand(seedCmd)
}
