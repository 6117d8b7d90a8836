package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// pingCmd represents the ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Open the configured backend and verify it answers",
	Long:  `Resolve the configuration, open the configured backend, and report which adapter ended up serving along with its server version.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		conn, err := mgr.Connection()
		if err != nil {
			return err
		}
		if err := conn.Ping(ctx); err != nil {
			return err
		}
		serverVersion, err := conn.Version(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Backend:  %s\n", mgr.Adapter())
		fmt.Printf("Version:  %s\n", serverVersion)
		if fallbackErr := mgr.LastError(); fallbackErr != nil {
			fmt.Printf("Warning:  serving after fallback, original error: %v\n", fallbackErr)
		}
		for _, w := range conn.Warnings() {
			fmt.Printf("Warning:  %s\n", w)
		}
		return nil
	},
}
