package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"relayconf/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the store for ordering and activation problems",
	Long: `Check that at most one group is active and that every group's
priorities run 1..N. With --watch the check repeats on the configured
interval until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")

		s, err := audit.NewScheduler(appInstance.Storage, appInstance.Dispatcher, appInstance.Config.AuditInterval, appInstance.Log)
		if err != nil {
			return err
		}

		if !watch {
			report, err := s.RunOnce(context.Background())
			if err != nil {
				return err
			}
			printReport(report)
			if !report.OK() {
				return fmt.Errorf("%d violations found", len(report.Violations))
			}
			return nil
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		s.OnReport(printReport)
		if err := s.Start(ctx); err != nil {
			return err
		}
		fmt.Printf("Auditing every %s. Press Ctrl+C to stop.\n\n", appInstance.Config.AuditInterval)

		<-ctx.Done()
		return s.Stop()
	},
}

func printReport(r *audit.Report) {
	fmt.Printf("[%s] %d groups, %d configurations\n",
		r.CheckedAt.Format("15:04:05"), r.Groups, r.Configurations)
	if r.OK() {
		fmt.Println("  ✓ no problems found")
		return
	}
	for _, v := range r.Violations {
		fmt.Printf("  ✗ %v\n", v)
	}
}

func init() {
	auditCmd.Flags().BoolP("watch", "w", false, "keep auditing on an interval")
	rootCmd.AddCommand(auditCmd)
}
