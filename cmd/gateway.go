package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/internal/gateway"
)

var gatewayPort int

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the patternscope dashboard daemon",
	Long: `Starts the patternscope gateway: a long-running daemon that combines
the analysis worker pool, the batch scan coordinator and an automated
scan scheduler behind a REST + SSE control plane.

The gateway exposes a local HTTP API (default: http://127.0.0.1:7080):

  GET  /health                                  liveness check
  GET  /api/status                              daemon status snapshot
  GET  /api/repositories                        list tracked repositories
  POST /api/repositories/{id}/analyze           queue an analysis job
  GET  /api/repositories/{id}/status            latest job for a repository
  POST /api/repositories/scan-all               batch-scan the whole fleet
  POST /api/repositories/{owner}/{repo}/refresh re-analyze and reconcile one repository
  GET  /api/jobs                                list analysis jobs
  GET  /api/recommendations                     list recommendations
  POST /api/recommendations/dedupe              collapse duplicate records
  GET  /api/scanner                             automated scanner state
  POST /api/scanner/start                       enable the periodic scanner
  POST /api/scanner/stop                        disable the periodic scanner
  GET  /events                                  SSE stream of live events`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().IntVar(&gatewayPort, "port", 0,
		"HTTP port to listen on (default 7080, overrides config)")
}

func runGateway(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gateway gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if gatewayPort > 0 {
		cfg.Gateway.Port = gatewayPort
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Printf("patternscope gateway starting\n")
	fmt.Printf("  Workers    : %d\n", cfg.Analyzer.Workers)
	fmt.Printf("  Batch size : %d\n", cfg.Analyzer.BatchSize)
	fmt.Printf("  API        : http://127.0.0.1:%d\n", cfg.Gateway.Port)
	fmt.Printf("  Events     : http://127.0.0.1:%d/events\n\n", cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	gw, err := gateway.New(cfg, db)
	if err != nil {
		return err
	}
	return gw.Start(ctx)
}
