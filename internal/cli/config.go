package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"relayconf/internal/ordering"
	"relayconf/internal/storage/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage relay configurations",
	Long:  "Add, list, show, edit, reorder and delete relay configurations",
}

var configAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a configuration to a group",
	Long: `Add a configuration to a group. It is appended after the group's
existing configurations, so it never becomes active by itself unless the
group was empty.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		groupArg, _ := cmd.Flags().GetString("group")
		group, err := resolveGroup(ctx, groupArg)
		if err != nil {
			return err
		}

		relay, socks := appInstance.DefaultPorts(ctx)
		if cmd.Flags().Changed("relay-port") {
			relay, _ = cmd.Flags().GetInt("relay-port")
		}
		if cmd.Flags().Changed("socks-port") {
			socks, _ = cmd.Flags().GetInt("socks-port")
		}
		name, _ := cmd.Flags().GetString("name")
		host, _ := cmd.Flags().GetString("host")

		config := &models.Configuration{
			Name:      name,
			Host:      host,
			RelayPort: relay,
			SocksPort: socks,
			GroupID:   group.ID,
		}
		id, err := await(appInstance.Configs.Insert(config))
		if err != nil {
			return fmt.Errorf("failed to add configuration: %w", err)
		}

		saved, err := appInstance.Configs.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read configuration back: %w", err)
		}

		fmt.Printf("Configuration added!\n\n")
		fmt.Printf("  ID:       %d\n", saved.ID)
		fmt.Printf("  Name:     %s\n", saved.Name)
		fmt.Printf("  Endpoint: %s\n", saved.Endpoint())
		fmt.Printf("  Group:    %s\n", group.Name)
		fmt.Printf("  Priority: %d\n", saved.Priority)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var (
			configs []*models.Configuration
			err     error
		)
		if groupArg, _ := cmd.Flags().GetString("group"); groupArg != "" {
			group, gerr := resolveGroup(ctx, groupArg)
			if gerr != nil {
				return gerr
			}
			configs, err = appInstance.Configs.ForGroup(ctx, group.ID)
		} else {
			configs, err = appInstance.Configs.List(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to get configurations: %w", err)
		}

		if len(configs) == 0 {
			fmt.Println("No configurations found.")
			return nil
		}

		var activeID int64
		if active, err := appInstance.Configs.GetActive(ctx); err == nil && active != nil {
			activeID = active.ID
		}
		names := groupNames(ctx)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tHOST\tRELAY\tSOCKS\tGROUP\tPRIORITY\tACTIVE")
		fmt.Fprintln(w, "--\t----\t----\t-----\t-----\t-----\t--------\t------")
		for _, c := range configs {
			active := ""
			if c.ID == activeID {
				active = "●"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%d\t%s\n",
				c.ID, c.Name, c.Host, c.RelayPort, c.SocksPort, names[c.GroupID], c.Priority, active)
		}
		w.Flush()

		fmt.Printf("\nTotal: %d configurations\n", len(configs))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:               "show <config>",
	Short:             "Show configuration details",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeConfigNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		config, err := resolveConfiguration(ctx, args[0])
		if err != nil {
			return err
		}
		group, err := appInstance.Groups.Get(ctx, config.GroupID)
		if err != nil {
			return fmt.Errorf("failed to get group: %w", err)
		}

		active := false
		if a, err := appInstance.Configs.GetActive(ctx); err == nil && a != nil {
			active = a.ID == config.ID
		}

		fmt.Printf("Configuration Details\n")
		fmt.Printf("═════════════════════\n\n")
		fmt.Printf("ID:          %d\n", config.ID)
		fmt.Printf("Name:        %s\n", config.Name)
		fmt.Printf("Host:        %s\n", config.Host)
		fmt.Printf("Relay port:  %d\n", config.RelayPort)
		fmt.Printf("SOCKS port:  %d\n", config.SocksPort)
		fmt.Printf("Group:       %s\n", group.Name)
		fmt.Printf("Priority:    %d\n", config.Priority)
		fmt.Printf("Active:      %v\n", active)
		fmt.Printf("Created:     %s\n", config.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated:     %s\n", config.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:               "edit <config>",
	Short:             "Change a configuration's fields",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeConfigNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		config, err := resolveConfiguration(ctx, args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		changed := false
		if flags.Changed("name") {
			config.Name, _ = flags.GetString("name")
			changed = true
		}
		if flags.Changed("host") {
			config.Host, _ = flags.GetString("host")
			changed = true
		}
		if flags.Changed("relay-port") {
			config.RelayPort, _ = flags.GetInt("relay-port")
			changed = true
		}
		if flags.Changed("socks-port") {
			config.SocksPort, _ = flags.GetInt("socks-port")
			changed = true
		}
		if !changed {
			fmt.Println("Nothing to change.")
			return nil
		}

		if _, err := await(appInstance.Configs.InsertOrUpdate(config)); err != nil {
			return fmt.Errorf("failed to update configuration: %w", err)
		}
		fmt.Printf("Configuration updated: %s (%s)\n", config.Name, config.Endpoint())
		return nil
	},
}

var configMoveCmd = &cobra.Command{
	Use:   "move <group> <from> <to>",
	Short: "Move a configuration to another position in its group",
	Long: `Move the configuration at position <from> to position <to> (both
1-based) and renumber the group's priorities. Moving to position 1 makes it
the group's first choice.`,
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: completeGroupNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		group, err := resolveGroup(ctx, args[0])
		if err != nil {
			return err
		}
		from, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position: %s", args[1])
		}
		to, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid position: %s", args[2])
		}

		configs, err := appInstance.Configs.ForGroup(ctx, group.ID)
		if err != nil {
			return fmt.Errorf("failed to get configurations: %w", err)
		}

		session := ordering.NewSession(group.ID, configs)
		defer session.Close()
		if err := session.Move(from-1, to-1); err != nil {
			return err
		}
		if _, err := await(session.Commit(appInstance.Configs)); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}

		for i, c := range session.Items() {
			fmt.Printf("  %d. %s\n", i+1, c.Name)
		}
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:               "delete <config>",
	Short:             "Delete a configuration",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeConfigNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		config, err := resolveConfiguration(ctx, args[0])
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirm(fmt.Sprintf("Delete configuration '%s' (ID: %d)?", config.Name, config.ID)) {
			fmt.Println("Cancelled.")
			return nil
		}

		if _, err := await(appInstance.Configs.Remove(config)); err != nil {
			return fmt.Errorf("failed to delete configuration: %w", err)
		}

		fmt.Printf("Configuration deleted: %s\n", config.Name)
		return nil
	},
}

func init() {
	configAddCmd.Flags().StringP("group", "g", "", "group name or ID")
	configAddCmd.Flags().StringP("name", "n", "", "configuration name")
	configAddCmd.Flags().String("host", "", "relay host (IPv4)")
	configAddCmd.Flags().Int("relay-port", 0, "relay port (default from settings)")
	configAddCmd.Flags().Int("socks-port", 0, "local SOCKS port (default from settings)")
	configAddCmd.MarkFlagRequired("group")
	configAddCmd.MarkFlagRequired("name")
	configAddCmd.MarkFlagRequired("host")

	configEditCmd.Flags().StringP("name", "n", "", "new name")
	configEditCmd.Flags().String("host", "", "new host (IPv4)")
	configEditCmd.Flags().Int("relay-port", 0, "new relay port")
	configEditCmd.Flags().Int("socks-port", 0, "new SOCKS port")

	configListCmd.Flags().StringP("group", "g", "", "filter by group")

	configDeleteCmd.Flags().BoolP("force", "f", false, "skip confirmation")

	// Flag completions
	configAddCmd.RegisterFlagCompletionFunc("group", completeGroupNamesForFlag)
	configListCmd.RegisterFlagCompletionFunc("group", completeGroupNamesForFlag)

	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configMoveCmd)
	configCmd.AddCommand(configDeleteCmd)
}
