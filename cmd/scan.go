package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/patternscope/patternscope/internal/analysis"
	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/internal/detect"
	"github.com/patternscope/patternscope/internal/recommend"
	"github.com/patternscope/patternscope/internal/repository"
	"github.com/patternscope/patternscope/internal/scanner"
)

var (
	scanBatchSize int
	scanDelaySecs int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Batch-scan every tracked repository",
	Long: `Analyses every tracked repository in bounded parallel groups and
prints an aggregate report. A failure in one repository never stops the
rest of the batch.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanBatchSize, "batch-size", 0,
		"repositories scanned concurrently per group (overrides config)")
	scanCmd.Flags().IntVar(&scanDelaySecs, "batch-delay", -1,
		"seconds to pause between groups (overrides config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if scanBatchSize > 0 {
		cfg.Analyzer.BatchSize = scanBatchSize
	}
	if scanDelaySecs >= 0 {
		cfg.Analyzer.BatchDelaySeconds = scanDelaySecs
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	store := analysis.NewStore(db)
	detector, err := detect.NewDetector()
	if err != nil {
		return fmt.Errorf("loading detection rules: %w", err)
	}
	pipeline := analysis.NewPipeline(store,
		repository.NewCloneManager(gitTokens(cfg)),
		detector, scanner.NewHeuristic(), recommend.NewGenerator(),
		nil, slog.Default())
	coordinator := analysis.NewCoordinator(store, pipeline,
		cfg.Analyzer.BatchSize,
		time.Duration(cfg.Analyzer.BatchDelaySeconds)*time.Second,
		slog.Default())

	fmt.Printf("Starting batch scan (batch size %d, delay %ds)...\n\n",
		cfg.Analyzer.BatchSize, cfg.Analyzer.BatchDelaySeconds)

	report, err := coordinator.ScanAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Batch scan finished in %s\n",
		report.CompletedAt.Sub(report.StartedAt).Round(time.Second))
	fmt.Printf("  Repositories : %d\n", report.TotalRepositories)
	fmt.Printf("  Successful   : %d\n", report.Successful)
	fmt.Printf("  Failed       : %d\n", report.Failed)
	fmt.Printf("  Patterns     : %d\n", report.TotalPatterns)
	fmt.Printf("  Issues       : %d\n", report.TotalIssues)
	fmt.Printf("  Recs         : %d\n", report.TotalRecommendations)
	for _, e := range report.Errors {
		fmt.Printf("  FAILED %s: %s\n", e.Repository, e.Error)
	}
	return nil
}
