package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dedup-domains configuration.
type Config struct {
	// Pruning behaviour
	Prune PruneConfig `yaml:"prune"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Outputs besides the pruned lists
	Outputs OutputsConfig `yaml:"outputs"`
}

// PruneConfig configures a prune run.
type PruneConfig struct {
	Directory string   `yaml:"directory"`
	Files     []string `yaml:"files"`
	InputExt  string   `yaml:"input_ext"`  // default ".fat"
	OutputExt string   `yaml:"output_ext"` // default ".txt"

	// Strategy is "indexed" (rows re-read at output) or "inline" (rows kept in memory).
	Strategy string `yaml:"strategy"`

	// LiteralFilter removes records matched by regex rows.
	LiteralFilter bool   `yaml:"literal_filter"`
	MatchTimeout  string `yaml:"match_timeout"`
	IgnoreCase    bool   `yaml:"ignore_case"`
}

// OutputsConfig configures optional run artifacts.
type OutputsConfig struct {
	ReportFile  string `yaml:"report_file"`
	MetricsFile string `yaml:"metrics_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Prune: PruneConfig{
			InputExt:      ".fat",
			OutputExt:     ".txt",
			Strategy:      "indexed",
			LiteralFilter: false,
			MatchTimeout:  "100ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			// Defaults if config file doesn't exist
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// written beside the target and renamed so a reader never sees half a file
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.WriteString(saveHeader)
	if err == nil {
		_, err = tmp.Write(data)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0644)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

const saveHeader = "# dedup-domains configuration. DEDUP_DOMAINS_* environment variables override these values.\n"

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DEDUP_DOMAINS_STRATEGY"); v != "" {
		c.Prune.Strategy = v
	}
	if v := os.Getenv("DEDUP_DOMAINS_LITERAL_FILTER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Prune.LiteralFilter = b
		}
	}
	if v := os.Getenv("DEDUP_DOMAINS_MATCH_TIMEOUT"); v != "" {
		c.Prune.MatchTimeout = v
	}
	if v := os.Getenv("DEDUP_DOMAINS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// ValidStrategies lists the record storage strategies.
var ValidStrategies = []string{"indexed", "inline"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validStrategy := false
	for _, s := range ValidStrategies {
		if c.Prune.Strategy == s {
			validStrategy = true
			break
		}
	}
	if !validStrategy {
		return fmt.Errorf("invalid strategy: %s (valid: %v)", c.Prune.Strategy, ValidStrategies)
	}

	if len(c.Prune.InputExt) < 2 {
		return fmt.Errorf("input extension must be at least two characters, e.g. '.F' (got %q)", c.Prune.InputExt)
	}
	if c.Prune.OutputExt == "" {
		return fmt.Errorf("output extension must not be empty")
	}
	if c.Prune.InputExt == c.Prune.OutputExt {
		return fmt.Errorf("input and output extension are both %q", c.Prune.InputExt)
	}

	if _, err := time.ParseDuration(c.Prune.MatchTimeout); err != nil && c.Prune.MatchTimeout != "" {
		return fmt.Errorf("invalid match_timeout %q: %w", c.Prune.MatchTimeout, err)
	}

	return c.Logging.Validate()
}

// GetMatchTimeout returns the regex match timeout as a duration.
func (c *Config) GetMatchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Prune.MatchTimeout)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}
