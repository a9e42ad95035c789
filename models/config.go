// Package models defines data structures for configuration.
package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can say "30s" or "500ms".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the runtime configuration for a localize run. Values come
// from the defaults, optionally overridden by a YAML config file, and
// finally by CLI flags.
type Config struct {
	FileExt      string   `yaml:"file_ext"`
	ImageDirName string   `yaml:"image_dir"`
	MaxRetries   int      `yaml:"max_retries"`
	Timeout      Duration `yaml:"timeout"`
	RetryDelay   Duration `yaml:"retry_delay"`
	UserAgent    string   `yaml:"user_agent"`
	HTMLImages   bool     `yaml:"html_images"`
	LogFile      string   `yaml:"log_file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		FileExt:      ".md",
		ImageDirName: "local_images",
		MaxRetries:   3,
		Timeout:      Duration(30 * time.Second),
		RetryDelay:   0,
		UserAgent:    "md-image-localizer/1.0",
		HTMLImages:   true,
		LogFile:      "md-image-localizer.log",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
