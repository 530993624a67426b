package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Analyzer.Workers != 3 || cfg.Analyzer.BatchSize != 3 {
		t.Fatalf("analyzer defaults = %+v", cfg.Analyzer)
	}
	if cfg.Analyzer.BatchDelaySeconds != 2 {
		t.Fatalf("batch delay = %d, want 2", cfg.Analyzer.BatchDelaySeconds)
	}
	if cfg.Analyzer.ScanIntervalMinutes != 60 {
		t.Fatalf("scan interval = %d, want 60", cfg.Analyzer.ScanIntervalMinutes)
	}
	if cfg.Gateway.Port != 7080 {
		t.Fatalf("port = %d, want 7080", cfg.Gateway.Port)
	}
	if cfg.Database.Path == "" {
		t.Fatal("database path default missing")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	in := &Config{
		Database: DatabaseConfig{Driver: "sqlite", Path: "/tmp/ps-test.db"},
		Git: GitConfig{
			GitHub: []GitHubConfig{{Token: "ghp_token", Host: "github.mycompany.com"}},
			GitLab: []GitLabConfig{{Token: "glpat_token"}},
		},
		Analyzer: AnalyzerConfig{
			Workers:             5,
			BatchSize:           4,
			BatchDelaySeconds:   10,
			ScanIntervalMinutes: 15,
			IncludeSelf:         true,
		},
		Gateway: GatewayConfig{Port: 9100},
	}
	if err := Save(in, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Analyzer.Workers != 5 || out.Analyzer.ScanIntervalMinutes != 15 {
		t.Fatalf("analyzer did not round-trip: %+v", out.Analyzer)
	}
	if !out.Analyzer.IncludeSelf {
		t.Fatal("include_self did not round-trip")
	}
	if out.Gateway.Port != 9100 {
		t.Fatalf("port = %d, want 9100", out.Gateway.Port)
	}
	if len(out.Git.GitHub) != 1 || out.Git.GitHub[0].Host != "github.mycompany.com" {
		t.Fatalf("github config did not round-trip: %+v", out.Git.GitHub)
	}
	if len(out.Git.GitLab) != 1 || out.Git.GitLab[0].Token != "glpat_token" {
		t.Fatalf("gitlab config did not round-trip: %+v", out.Git.GitLab)
	}
	if out.Database.Path != "/tmp/ps-test.db" {
		t.Fatalf("database path = %q", out.Database.Path)
	}
}

func TestLoadExpandsHomeInDatabasePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"database":{"path":"~/data/ps.db"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	home, _ := os.UserHomeDir()
	if cfg.Database.Path != filepath.Join(home, "data", "ps.db") {
		t.Fatalf("path = %q, want expanded home", cfg.Database.Path)
	}
}
