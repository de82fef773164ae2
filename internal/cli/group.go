package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relayconf/internal/storage/models"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
	Long:  "Create, list, rename, activate and delete configuration groups",
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		groups, err := appInstance.Groups.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to get groups: %w", err)
		}
		if len(groups) == 0 {
			fmt.Println("No groups found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tACTIVE\tCONFIGS")
		fmt.Fprintln(w, "--\t----\t------\t-------")
		for _, group := range groups {
			configs, err := appInstance.Configs.ForGroup(ctx, group.ID)
			if err != nil {
				return fmt.Errorf("failed to get configurations: %w", err)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", group.ID, group.Name, mark(group.Active), len(configs))
		}
		w.Flush()

		fmt.Printf("\nTotal: %d groups\n", len(groups))
		return nil
	},
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		active, _ := cmd.Flags().GetBool("active")

		id, err := await(appInstance.Groups.Insert(&models.Group{Name: args[0], Active: active}))
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		fmt.Printf("Group created!\n\n")
		fmt.Printf("  ID:     %d\n", id)
		fmt.Printf("  Name:   %s\n", args[0])
		fmt.Printf("  Active: %v\n", active)
		return nil
	},
}

var groupRenameCmd = &cobra.Command{
	Use:               "rename <group> <new-name>",
	Short:             "Rename a group",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeGroupNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		group, err := resolveGroup(ctx, args[0])
		if err != nil {
			return err
		}

		group.Name = args[1]
		if _, err := await(appInstance.Groups.Update(group)); err != nil {
			return fmt.Errorf("failed to rename group: %w", err)
		}
		fmt.Printf("Group %d renamed to %s\n", group.ID, group.Name)
		return nil
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:               "delete <group>",
	Short:             "Delete a group and its configurations",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGroupNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		group, err := resolveGroup(ctx, args[0])
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirm(fmt.Sprintf("Delete group '%s' and all its configurations?", group.Name)) {
			fmt.Println("Cancelled.")
			return nil
		}

		if _, err := await(appInstance.Groups.Delete(group)); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		fmt.Printf("Group deleted: %s\n", group.Name)
		if group.Active {
			fmt.Println("No group is active now.")
		}
		return nil
	},
}

var groupActivateCmd = &cobra.Command{
	Use:               "activate <group>",
	Short:             "Make a group the active one",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGroupNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setGroupActive(args[0], true)
	},
}

var groupDeactivateCmd = &cobra.Command{
	Use:               "deactivate <group>",
	Short:             "Clear the active flag of a group",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGroupNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setGroupActive(args[0], false)
	},
}

func setGroupActive(arg string, active bool) error {
	ctx := context.Background()
	group, err := resolveGroup(ctx, arg)
	if err != nil {
		return err
	}
	if _, err := await(appInstance.Groups.SetActive(group, active)); err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	if !active {
		fmt.Printf("Group deactivated: %s\n", group.Name)
		return nil
	}
	fmt.Printf("Active group: %s\n", group.Name)
	if c, err := appInstance.Configs.GetActive(ctx); err == nil && c != nil {
		fmt.Printf("Active configuration: %s (%s)\n", c.Name, c.Endpoint())
	} else {
		fmt.Println("The group has no configurations yet.")
	}
	return nil
}

var groupConfigsCmd = &cobra.Command{
	Use:               "configs <group>",
	Short:             "List a group's configurations in priority order",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGroupNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		group, err := resolveGroup(ctx, args[0])
		if err != nil {
			return err
		}

		configs, err := appInstance.Configs.ForGroup(ctx, group.ID)
		if err != nil {
			return fmt.Errorf("failed to get configurations: %w", err)
		}
		if len(configs) == 0 {
			fmt.Printf("No configurations in group '%s'.\n", group.Name)
			return nil
		}

		fmt.Printf("Configurations in group: %s\n", group.Name)
		fmt.Println(strings.Repeat("═", 60))
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tNAME\tHOST\tRELAY\tSOCKS")
		fmt.Fprintln(w, "-\t--\t----\t----\t-----\t-----")
		for _, c := range configs {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%d\n", c.Priority, c.ID, c.Name, c.Host, c.RelayPort, c.SocksPort)
		}
		w.Flush()

		fmt.Printf("\nTotal: %d configurations\n", len(configs))
		return nil
	},
}

func init() {
	groupCreateCmd.Flags().Bool("active", false, "activate the new group")
	groupDeleteCmd.Flags().BoolP("force", "f", false, "skip confirmation")

	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupRenameCmd)
	groupCmd.AddCommand(groupDeleteCmd)
	groupCmd.AddCommand(groupActivateCmd)
	groupCmd.AddCommand(groupDeactivateCmd)
	groupCmd.AddCommand(groupConfigsCmd)
}
