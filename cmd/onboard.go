package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/patternscope/patternscope/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Interactive setup wizard for patternscope",
	Long: `Walks you through configuring patternscope:
  - Git provider credentials (GitHub, GitLab)
  - Storage backend (SQLite by default, MySQL optional)
  - Analyzer settings (workers, batch size, scan interval)

Credentials are stored in ~/.patternscope/config.json.`,
	RunE: runOnboard,
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#2563EB")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

func runOnboard(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  patternscope — repository pattern analysis dashboard"))
	fmt.Println(dimStyle.Render("  Tracks code patterns, issues and recommendations across your repos.\n"))

	// Load existing config or start fresh.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}

	// --- Step 1: Git providers ---
	fmt.Println(headerStyle.Render("  Step 1/3 · Git providers"))
	fmt.Println(dimStyle.Render("  A token lets patternscope list and clone your private repositories.\n"))

	var githubToken, gitlabToken string
	if len(cfg.Git.GitHub) > 0 {
		githubToken = cfg.Git.GitHub[0].Token
	}
	if len(cfg.Git.GitLab) > 0 {
		gitlabToken = cfg.Git.GitLab[0].Token
	}

	gitForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub token (leave blank to skip)").
				Description("Needs repo read scope. github.com → Settings → Developer settings.").
				Placeholder("ghp_...").
				EchoMode(huh.EchoModePassword).
				Value(&githubToken),
			huh.NewInput().
				Title("GitLab token (leave blank to skip)").
				Description("Needs read_api + read_repository scopes.").
				Placeholder("glpat-...").
				EchoMode(huh.EchoModePassword).
				Value(&gitlabToken),
		),
	)
	if err := gitForm.Run(); err != nil {
		return err
	}

	cfg.Git.GitHub = nil
	if githubToken != "" {
		cfg.Git.GitHub = []config.GitHubConfig{{Token: githubToken}}
	}
	cfg.Git.GitLab = nil
	if gitlabToken != "" {
		cfg.Git.GitLab = []config.GitLabConfig{{Token: gitlabToken}}
	}

	// --- Step 2: Storage ---
	fmt.Println(headerStyle.Render("  Step 2/3 · Storage"))

	driver := cfg.Database.Driver
	if driver == "" {
		driver = "sqlite"
	}
	dsn := cfg.Database.DSN

	storageForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Database backend").
				Options(
					huh.NewOption("SQLite (zero-config, recommended)", "sqlite"),
					huh.NewOption("MySQL", "mysql"),
				).
				Value(&driver),
		),
	)
	if err := storageForm.Run(); err != nil {
		return err
	}
	if driver == "mysql" {
		dsnForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("MySQL DSN").
					Placeholder("user:pass@tcp(127.0.0.1:3306)/patternscope").
					Value(&dsn),
			),
		)
		if err := dsnForm.Run(); err != nil {
			return err
		}
	}
	cfg.Database.Driver = driver
	cfg.Database.DSN = dsn

	// --- Step 3: Analyzer settings ---
	fmt.Println(headerStyle.Render("  Step 3/3 · Analyzer"))

	workers := orDefault(cfg.Analyzer.Workers, 3)
	batchSize := orDefault(cfg.Analyzer.BatchSize, 3)
	interval := orDefault(cfg.Analyzer.ScanIntervalMinutes, 60)

	workersStr := strconv.Itoa(workers)
	batchStr := strconv.Itoa(batchSize)
	intervalStr := strconv.Itoa(interval)

	analyzerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Background workers").
				Description("Concurrent analysis jobs the gateway executes.").
				Value(&workersStr).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Batch size").
				Description("Repositories scanned in parallel during scan-all.").
				Value(&batchStr).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Automated scan interval (minutes)").
				Value(&intervalStr).
				Validate(validatePositiveInt),
		),
	)
	if err := analyzerForm.Run(); err != nil {
		return err
	}
	cfg.Analyzer.Workers, _ = strconv.Atoi(workersStr)
	cfg.Analyzer.BatchSize, _ = strconv.Atoi(batchStr)
	cfg.Analyzer.ScanIntervalMinutes, _ = strconv.Atoi(intervalStr)
	if cfg.Analyzer.BatchDelaySeconds == 0 {
		cfg.Analyzer.BatchDelaySeconds = 2
	}

	if err := config.Save(cfg, cfgFile); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	path, _ := config.ConfigPath(cfgFile)

	fmt.Println()
	fmt.Println(successStyle.Render("  Configuration saved to " + path))
	fmt.Println(dimStyle.Render("  Next: 'patternscope repo import' then 'patternscope gateway'."))
	fmt.Println()
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}
