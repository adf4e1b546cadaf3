package config

import "fmt"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, console
	File       string          `yaml:"file" json:"file,omitempty"`             // append JSON logs here too
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	switch c.Format {
	case "", "json", "console", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}
	return nil
}
