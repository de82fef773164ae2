package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"relayconf/internal/app"
	"relayconf/internal/repository"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "relayconf",
	Short: "relayconf - local relay configuration store",
	Long: `relayconf - local relay configuration store

  Keep relay endpoints in groups, pick the active group, and order the
  relays inside it. The first relay of the active group is the active
  configuration handed to the proxy engine.

  Quick start:
    relayconf seed
    relayconf group activate Home
    relayconf config add --group Home --name office --host 10.0.0.8
    relayconf config move Home 3 1
    relayconf tui`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initApp,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance != nil {
			err := appInstance.Close()
			appInstance = nil
			return err
		}
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("env-file", "", "dotenv file (default ~/.config/relayconf/.env)")
	rootCmd.PersistentFlags().String("db", "", "database path")
	rootCmd.PersistentFlags().String("driver", "", "sqlite driver: sqlite3 (cgo) or sqlite (pure Go)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", `log file, "-" for stderr`)
	rootCmd.PersistentFlags().String("engine", "", "proxy engine command")
	rootCmd.PersistentFlags().Bool("seed", false, "load demo data into an empty store")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relayconf %s\n", version)
	},
}

// loadConfig resolves defaults, the .env file, the environment and finally
// any flag set on the command line, in that order.
func loadConfig(cmd *cobra.Command) (*app.Config, error) {
	flags := cmd.Flags()
	envFile, _ := flags.GetString("env-file")

	cfg, err := app.LoadConfig(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("driver") {
		cfg.Driver, _ = flags.GetString("driver")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
	if flags.Changed("engine") {
		v, _ := flags.GetString("engine")
		cfg.EngineCommand = strings.Fields(v)
	}
	if flags.Changed("seed") {
		cfg.SeedOnEmpty, _ = flags.GetBool("seed")
	}
	return cfg, cfg.Validate()
}

func initApp(cmd *cobra.Command, args []string) error {
	if appInstance != nil {
		return nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	appInstance, err = app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return nil
}

// commandTimeout bounds how long a command waits for its write to land.
const commandTimeout = 30 * time.Second

// await blocks until a queued write has run so the process does not exit
// before it lands.
func await(t *repository.Ticket, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	if t == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := t.Wait(ctx); err != nil {
		return 0, err
	}
	return t.ID(), nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt + " [y/N]: ")
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}
