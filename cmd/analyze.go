package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patternscope/patternscope/internal/analysis"
	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/internal/detect"
	"github.com/patternscope/patternscope/internal/recommend"
	"github.com/patternscope/patternscope/internal/repository"
	"github.com/patternscope/patternscope/internal/scanner"
	"github.com/patternscope/patternscope/models"
)

var analyzeLocal bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <owner/name | path>",
	Short: "Analyse a single repository in the foreground",
	Long: `Runs the full analysis pipeline for one repository and waits for the
result: tech stack detection, pattern and issue extraction, persistence
and recommendation generation.

The argument is either a tracked repository ("owner/name") or, with
--local, a path to a checkout on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeLocal, "local", false,
		"treat the argument as a local directory instead of owner/name")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
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

	var (
		repo *models.Repository
		ws   analysis.Workspace
	)
	if analyzeLocal {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		repo = &models.Repository{
			ID:       "local:" + abs,
			Provider: "local",
			Owner:    "local",
			Name:     filepath.Base(abs),
			FullName: "local/" + filepath.Base(abs),
		}
		if err := store.UpsertRepository(ctx, repo); err != nil {
			return fmt.Errorf("registering local repository: %w", err)
		}
		ws = &repository.LocalWorkspace{Path: abs}
	} else {
		fullName := strings.TrimSpace(args[0])
		repo, err = store.GetRepositoryByFullName(ctx, fullName)
		if err != nil {
			return fmt.Errorf("repository %s is not tracked (add it with 'patternscope repo add')", fullName)
		}
		ws = repository.NewCloneManager(gitTokens(cfg))
	}

	pipeline := analysis.NewPipeline(store, ws, detector,
		scanner.NewHeuristic(), recommend.NewGenerator(), nil, slog.Default())

	job, err := store.CreateJob(ctx, repo.ID, models.JobTypeFullScan)
	if err != nil {
		return err
	}

	fmt.Printf("Analysing %s (job %s)...\n", repo.FullName, job.ID)
	if err := pipeline.Run(ctx, job); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	done, err := store.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Analysis %s.\n", done.Status)
	if results := done.Results(); results != nil {
		fmt.Printf("  Patterns extracted : %d\n", results.PatternsExtracted)
		fmt.Printf("  Tech stack         : %s\n", strings.Join(results.TechStackDetected, ", "))
		fmt.Printf("  Confidence         : %.2f\n", results.Confidence)
	}
	recs, err := store.GetActiveRecommendations(ctx, repo.ID, "")
	if err == nil {
		fmt.Printf("  Active recs        : %d\n", len(recs))
	}
	return nil
}

// gitTokens builds the per-provider clone credential map from config.
func gitTokens(cfg *config.Config) map[string]string {
	tokens := make(map[string]string)
	for _, gh := range cfg.Git.GitHub {
		if gh.Token != "" {
			tokens["github"] = gh.Token
		}
	}
	for _, gl := range cfg.Git.GitLab {
		if gl.Token != "" {
			tokens["gitlab"] = gl.Token
		}
	}
	return tokens
}
