package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ledgerbase/dualdb/pkg/config"
	"github.com/ledgerbase/dualdb/pkg/database"
	"github.com/ledgerbase/dualdb/pkg/logger"

	_ "github.com/ledgerbase/dualdb/pkg/adapter/postgres"
	_ "github.com/ledgerbase/dualdb/pkg/adapter/sqlite"
)

var (
	version = "0.1.0"
	// Build information variables
	GitCommit = "unknown" // Git commit hash
	BuildTime = "unknown" // Build timestamp
)

// printVersionInfo displays detailed version information
func printVersionInfo() {
	fmt.Printf("dualdb v%s\n", version)
	fmt.Printf("Built: %s, from commit: %s\n", BuildTime, GitCommit)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dualdb",
	Short: "Dual-backend database tool",
	Long: "Inspect and exercise the dualdb adapter layer against either the embedded SQLite " +
		"backend or a PostgreSQL server, selected through DUALDB_* environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Lookup("version") != nil && cmd.Flags().Lookup("version").Changed {
			printVersionInfo()
			return nil
		}
		return cmd.Help()
	},
}

// openManager resolves configuration from the environment and opens the
// manager on the configured backend. The caller owns Close.
func openManager(ctx context.Context) (*database.Manager, error) {
	cfg, err := config.Resolve(os.Getenv)
	if err != nil {
		return nil, err
	}
	log := logger.New("dualdb", version)
	mgr := database.New(cfg, database.WithLogger(log))
	if err := mgr.Open(ctx, cfg.AdapterKind); err != nil {
		return nil, err
	}
	return mgr, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(execCmd)
}

func main() {
	Execute()
}
