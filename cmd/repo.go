package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/patternscope/patternscope/internal/analysis"
	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/internal/repository"
)

var repoProviderFlag string

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage tracked repositories",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <owner/name>",
	Short: "Track a repository for analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, db, cfg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		parts := strings.SplitN(strings.TrimSpace(args[0]), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("expected owner/name, got %q", args[0])
		}

		provider, err := buildProvider(cfg, repoProviderFlag)
		if err != nil {
			return err
		}
		repo, err := provider.GetRepo(ctx, parts[0], parts[1])
		if err != nil {
			return fmt.Errorf("fetching repository metadata: %w", err)
		}
		if err := store.UpsertRepository(ctx, repo); err != nil {
			return err
		}
		fmt.Printf("Tracking %s (%s, default branch %s)\n",
			repo.FullName, repo.Provider, repo.DefaultBranch)
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, db, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := store.ListRepositories(ctx)
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No repositories tracked yet. Add one with 'patternscope repo add owner/name'.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "REPOSITORY\tPROVIDER\tLANGUAGE\tSTATUS\tPATTERNS\tLAST ANALYZED")
		for _, r := range repos {
			last := "never"
			if r.LastAnalyzed != nil {
				last = r.LastAnalyzed.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.FullName, r.Provider, r.Language, r.AnalysisStatus, r.PatternsCount, last)
		}
		return tw.Flush()
	},
}

var repoImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import all repositories visible to the configured credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, db, cfg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		provider, err := buildProvider(cfg, repoProviderFlag)
		if err != nil {
			return err
		}
		repos, err := provider.ListRepos(ctx, repository.ListReposOptions{})
		if err != nil {
			return err
		}
		for i := range repos {
			if err := store.UpsertRepository(ctx, &repos[i]); err != nil {
				return fmt.Errorf("registering %s: %w", repos[i].FullName, err)
			}
		}
		fmt.Printf("Imported %d repositories from %s.\n", len(repos), provider.Name())
		return nil
	},
}

func init() {
	repoCmd.PersistentFlags().StringVar(&repoProviderFlag, "provider", "github",
		"hosting provider (github or gitlab)")
	repoCmd.AddCommand(repoAddCmd, repoListCmd, repoImportCmd)
}

func openStore(ctx context.Context) (*analysis.Store, database.DB, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return analysis.NewStore(db), db, cfg, nil
}

func buildProvider(cfg *config.Config, name string) (repository.Provider, error) {
	switch name {
	case "github":
		if len(cfg.Git.GitHub) == 0 {
			return nil, fmt.Errorf("no GitHub credentials configured (run 'patternscope onboard')")
		}
		return repository.NewGitHub(cfg.Git.GitHub[0])
	case "gitlab":
		if len(cfg.Git.GitLab) == 0 {
			return nil, fmt.Errorf("no GitLab credentials configured (run 'patternscope onboard')")
		}
		return repository.NewGitLab(cfg.Git.GitLab[0])
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: github, gitlab)", name)
	}
}
