package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerbase/dualdb/pkg/config"
	"github.com/ledgerbase/dualdb/pkg/health"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run the health probe battery against the configured backend",
	Long: `Run the full probe battery (connectivity, version, required tables, integrity, ` +
		`latency, sync state) and print the aggregate result. With --watch the battery ` +
		`repeats on an interval and transitions are reported; with --serve the result is ` +
		`exposed over HTTP on /health.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		watch, _ := cmd.Flags().GetDuration("watch")
		serve, _ := cmd.Flags().GetString("serve")

		cfg, err := config.Resolve(os.Getenv)
		if err != nil {
			return err
		}

		mgr, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		var opts []health.MonitorOption
		if cfg.SchemaValidationEnable {
			opts = append(opts, health.WithRequiredTables("messages", "messages_clock"))
		}
		monitor := health.NewMonitor(mgr, opts...)

		if serve != "" {
			monitor.Start(ctx, watchOrDefault(watch), func(h health.DatabaseHealth) {
				fmt.Printf("Health changed to %s\n", h.Overall)
			})
			defer monitor.Stop()

			fmt.Printf("Serving health on http://%s/health\n", serve)
			return serveUntilSignal(serve, health.NewHandler(monitor).Router())
		}

		if watch > 0 {
			monitor.Start(ctx, watch, func(h health.DatabaseHealth) {
				fmt.Printf("%s  health changed to %s\n", h.Timestamp.Format(time.RFC3339), h.Overall)
			})
			defer monitor.Stop()
			return waitForSignal()
		}

		result := monitor.RunOnce(ctx)
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		if result.Overall == health.Unhealthy {
			os.Exit(1)
		}
		return nil
	},
}

func watchOrDefault(watch time.Duration) time.Duration {
	if watch > 0 {
		return watch
	}
	return 30 * time.Second
}

func serveUntilSignal(addr string, handler http.Handler) error {
	server := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		return server.Close()
	}
}

func waitForSignal() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func init() {
	healthCmd.Flags().Duration("watch", 0, "Repeat the battery on this interval and report transitions")
	healthCmd.Flags().String("serve", "", "Expose GET /health on this address (host:port)")
}
