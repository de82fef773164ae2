package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relayconf/internal/logging"
	"relayconf/internal/storage/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change stored settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := appInstance.Storage.GetAllSettings(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}

		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintln(w, "---\t-----")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\n", k, settings[k])
		}
		w.Flush()
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Print one setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := appInstance.Storage.GetSetting(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("setting not found: %s", args[0])
		}
		fmt.Println(v)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Change one setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := validateSetting(key, value); err != nil {
			return err
		}
		if err := appInstance.Storage.SetSetting(context.Background(), key, value); err != nil {
			return fmt.Errorf("failed to save setting: %w", err)
		}
		fmt.Printf("%s = %s\n", key, value)
		return nil
	},
}

func validateSetting(key, value string) error {
	switch key {
	case "default_relay_port", "default_socks_port":
		_, err := models.ParsePort(value)
		return err
	case "log_level":
		_, err := logging.ParseLevel(value)
		return err
	}
	return nil
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
