// Package config handles per-job workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matsen/citetrack/internal/dedup"
	"github.com/matsen/citetrack/internal/format"
	"github.com/matsen/citetrack/internal/integrity"
	"github.com/matsen/citetrack/internal/manager"
	"github.com/matsen/citetrack/internal/validate"
	"gopkg.in/yaml.v3"
)

// Config is the job configuration stored in .citetrack/config.yaml.
type Config struct {
	JobID string `yaml:"job_id"`
	Style string `yaml:"style"` // author-date or numeric

	TitleThreshold  float64 `yaml:"title_threshold,omitempty"`
	AuthorThreshold float64 `yaml:"author_threshold,omitempty"`

	CacheTTL      Duration `yaml:"cache_ttl,omitempty"`
	RetryAttempts int      `yaml:"retry_attempts,omitempty"`
	MaxOutbound   int64    `yaml:"max_outbound,omitempty"`

	OverRelianceFraction float64 `yaml:"over_reliance_fraction,omitempty"`
}

// Duration wraps time.Duration so config.yaml carries "24h" instead of a
// raw nanosecond count.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler, accepting anything
// time.ParseDuration does.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

const (
	CitetrackDir = ".citetrack"
	ConfigFile   = "config.yaml"
	DBFile       = "citations.db"

	// RootEnv overrides workspace discovery, pointing straight at the
	// directory containing .citetrack.
	RootEnv = "CT_ROOT"
)

// WorkspacePath returns the path to the .citetrack directory from a root path.
func WorkspacePath(root string) string {
	return filepath.Join(root, CitetrackDir)
}

// ConfigPath returns the path to config.yaml from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, CitetrackDir, ConfigFile)
}

// DBPath returns the path to the citation store from a root path.
func DBPath(root string) string {
	return filepath.Join(root, CitetrackDir, DBFile)
}

// IsWorkspace checks if the given path contains a citetrack workspace.
func IsWorkspace(root string) bool {
	info, err := os.Stat(WorkspacePath(root))
	return err == nil && info.IsDir()
}

// FindWorkspace locates the workspace root. The CT_ROOT environment
// variable wins; otherwise it walks up from the given path.
func FindWorkspace(start string) (string, error) {
	if root := os.Getenv(RootEnv); root != "" {
		if !IsWorkspace(root) {
			return "", fmt.Errorf("%s=%s is not a citetrack workspace (no %s directory)", RootEnv, root, CitetrackDir)
		}
		return root, nil
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsWorkspace(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a citetrack workspace (no %s directory found)", CitetrackDir)
		}
		abs = parent
	}
}

// Default returns a config with every tunable at its default.
func Default(jobID string) *Config {
	return &Config{
		JobID:                jobID,
		Style:                string(format.StyleAuthorDate),
		TitleThreshold:       dedup.DefaultTitleThreshold,
		AuthorThreshold:      dedup.DefaultAuthorThreshold,
		CacheTTL:             Duration(validate.DefaultCacheTTL),
		RetryAttempts:        validate.DefaultRetry.Attempts,
		MaxOutbound:          manager.DefaultMaxOutbound,
		OverRelianceFraction: integrity.DefaultOverRelianceFraction,
	}
}

// Load reads configuration from the workspace at the given root.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.JobID == "" {
		return nil, fmt.Errorf("config at %s has no job_id", ConfigPath(root))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes configuration to the workspace at the given root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks the tunables that have meaningful ranges.
func (c *Config) Validate() error {
	if _, err := format.ParseStyle(c.Style); err != nil {
		return err
	}
	if c.TitleThreshold < 0 || c.TitleThreshold > 1 {
		return fmt.Errorf("title_threshold %v out of range [0,1]", c.TitleThreshold)
	}
	if c.AuthorThreshold < 0 || c.AuthorThreshold > 1 {
		return fmt.Errorf("author_threshold %v out of range [0,1]", c.AuthorThreshold)
	}
	if c.OverRelianceFraction < 0 || c.OverRelianceFraction > 1 {
		return fmt.Errorf("over_reliance_fraction %v out of range [0,1]", c.OverRelianceFraction)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be non-negative")
	}
	return nil
}

// ParsedStyle returns the config's style as a format.Style. Call Validate
// first; this panics on an unparseable style.
func (c *Config) ParsedStyle() format.Style {
	style, err := format.ParseStyle(c.Style)
	if err != nil {
		panic(fmt.Sprintf("config: style %q not validated: %v", c.Style, err))
	}
	return style
}
