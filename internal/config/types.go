package config

// Config is the root configuration structure for patternscope.
// Serialised to ~/.patternscope/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" json:"analyzer"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  json:"gateway"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// GitConfig holds credentials for each supported git hosting platform.
type GitConfig struct {
	GitHub []GitHubConfig `mapstructure:"github" json:"github"`
	GitLab []GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
}

// GitHubConfig holds credentials for a single GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host"  json:"host"`
}

// GitLabConfig holds credentials for a single GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
}

// AnalyzerConfig controls the analysis pipeline and batch coordinator.
type AnalyzerConfig struct {
	// Workers is the size of the background job worker pool.
	Workers int `mapstructure:"workers" json:"workers"`
	// BatchSize is how many repositories are scanned concurrently per
	// batch group during scan-all.
	BatchSize int `mapstructure:"batch_size" json:"batch_size"`
	// BatchDelaySeconds is the fixed pause between batch groups. This is
	// a pacing policy against provider API rate limits, not a backoff.
	BatchDelaySeconds int `mapstructure:"batch_delay_seconds" json:"batch_delay_seconds"`
	// ScanIntervalMinutes is the default period of the automated scanner.
	ScanIntervalMinutes int `mapstructure:"scan_interval_minutes" json:"scan_interval_minutes"`
	// IncludeSelf also scans the repository patternscope itself runs from.
	IncludeSelf bool `mapstructure:"include_self" json:"include_self"`
}

// GatewayConfig controls the dashboard API daemon.
type GatewayConfig struct {
	// Port is the localhost HTTP port the gateway listens on (default: 7080).
	Port int `mapstructure:"port" json:"port"`
}
