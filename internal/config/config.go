// Package config loads odin settings from .odin.yaml, ODIN_* environment
// variables and command-line flags through viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Log formats accepted by logging.format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the full odin configuration
type Config struct {
	Repository string        `mapstructure:"repository"`
	Board      BoardConfig   `mapstructure:"board"`
	GitHub     GitHubConfig  `mapstructure:"github"`
	Logging    LoggingConfig `mapstructure:"logging"`
}

// BoardConfig contains settings for the Projects board
type BoardConfig struct {
	Name          string `mapstructure:"name"`
	RoadmapLayout string `mapstructure:"roadmap_layout"`
}

// GitHubConfig contains optional authentication settings. With neither a
// token nor an App configured, odin uses the gh CLI's own login.
type GitHubConfig struct {
	Token            string `mapstructure:"token"`
	AppID            int64  `mapstructure:"app_id"`
	InstallationID   int64  `mapstructure:"installation_id"`
	PrivateKeyPath   string `mapstructure:"private_key_path"`
	PrivateKeySecret string `mapstructure:"private_key_secret"` // Secret Manager name or resource path
	GCPProject       string `mapstructure:"gcp_project"`
	APIURL           string `mapstructure:"api_url"`
	WritesPerMinute  int    `mapstructure:"writes_per_minute"` // 0 disables pacing
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`
}

// DefaultWritesPerMinute stays under GitHub's secondary limit on
// content-creating requests.
const DefaultWritesPerMinute = 60

// EnvPrefix is the prefix of environment overrides: ODIN_GITHUB_APP_ID sets
// github.app_id.
const EnvPrefix = "ODIN"

// Keys lists every configuration key.
var Keys = []string{
	"repository",
	"board.name",
	"board.roadmap_layout",
	"github.token",
	"github.app_id",
	"github.installation_id",
	"github.private_key_path",
	"github.private_key_secret",
	"github.gcp_project",
	"github.api_url",
	"github.writes_per_minute",
	"logging.format",
	"logging.verbose",
}

// BindEnv makes every key in Keys overridable from the environment.
// Explicit binding is needed for nested keys to reach Unmarshal.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	v.SetDefault("github.writes_per_minute", DefaultWritesPerMinute)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	cfg.Repository = strings.TrimSpace(cfg.Repository)

	if cfg.Board.RoadmapLayout == "" {
		cfg.Board.RoadmapLayout = "roadmap"
	}

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
}

// UsesApp reports whether any GitHub App setting is present.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID != 0 || g.InstallationID != 0 || g.PrivateKeyPath != "" || g.PrivateKeySecret != ""
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Repository != "" {
		if err := ValidateRepository(c.Repository); err != nil {
			return err
		}
	}

	switch c.Board.RoadmapLayout {
	case "roadmap", "board", "table":
	default:
		return fmt.Errorf("invalid board.roadmap_layout: %s (must be roadmap, board, or table)", c.Board.RoadmapLayout)
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("invalid logging.format: %s (must be text or json)", c.Logging.Format)
	}

	if c.GitHub.WritesPerMinute < 0 {
		return fmt.Errorf("invalid github.writes_per_minute: %d (must be 0 or more)", c.GitHub.WritesPerMinute)
	}

	if c.GitHub.UsesApp() {
		if c.GitHub.Token != "" {
			return fmt.Errorf("set either github.token or GitHub App settings, not both")
		}
		if c.GitHub.AppID <= 0 {
			return fmt.Errorf("GitHub App ID is required when App authentication is configured")
		}
		if c.GitHub.InstallationID <= 0 {
			return fmt.Errorf("GitHub App Installation ID is required when App authentication is configured")
		}
		if c.GitHub.PrivateKeyPath == "" && c.GitHub.PrivateKeySecret == "" {
			return fmt.Errorf("GitHub App private key is required (set private_key_path or private_key_secret)")
		}
		if c.GitHub.PrivateKeyPath != "" && c.GitHub.PrivateKeySecret != "" {
			return fmt.Errorf("set only one of github.private_key_path and github.private_key_secret")
		}
	}

	return nil
}

// ValidateRepository checks that repo has the form owner/name.
func ValidateRepository(repo string) error {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.ContainsAny(repo, " \t") {
		return fmt.Errorf("invalid repository %q (expected owner/name)", repo)
	}
	return nil
}
