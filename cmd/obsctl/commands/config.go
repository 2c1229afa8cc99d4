package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qtilities/qtilities-go/pkg/inspect"
	"github.com/qtilities/qtilities-go/pkg/observer"
)

// ShellConfig configures the interactive shell.
type ShellConfig struct {
	// DefaultPolicy is used by new and attach when no policy is given.
	DefaultPolicy string `yaml:"default_policy"`

	// MaxWalkDepth bounds the cycle check of the observer manager.
	MaxWalkDepth int `yaml:"max_walk_depth"`

	// TraceFile receives binary trace events. Empty disables tracing.
	TraceFile string `yaml:"trace_file"`

	// MetricsAddr serves Prometheus metrics, e.g. ":9090". Empty disables
	// the endpoint; metrics are still collected for the stats command.
	MetricsAddr string `yaml:"metrics_addr"`

	// SnapshotDir holds named snapshots. Empty disables save and load.
	SnapshotDir string `yaml:"snapshot_dir"`

	// LogLevel is the operational log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// RootName names the root observer.
	RootName string `yaml:"root_name"`
}

// DefaultShellConfig returns the shell defaults.
func DefaultShellConfig() ShellConfig {
	return ShellConfig{
		DefaultPolicy: "manual",
		MaxWalkDepth:  observer.DefaultConfig().MaxWalkDepth,
		LogLevel:      "warn",
		RootName:      "root",
	}
}

// ParseShellConfig parses YAML on top of the defaults.
func ParseShellConfig(data []byte) (ShellConfig, error) {
	cfg := DefaultShellConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing shell config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadShellConfig reads a YAML config file.
func LoadShellConfig(path string) (ShellConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultShellConfig(), fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseShellConfig(data)
}

// Validate checks the config values.
func (c ShellConfig) Validate() error {
	var errs []error
	if _, ok := inspect.ResolvePolicyName(c.DefaultPolicy); !ok {
		errs = append(errs, fmt.Errorf("default_policy: unknown policy %q", c.DefaultPolicy))
	}
	if c.MaxWalkDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_walk_depth: must be positive, got %d", c.MaxWalkDepth))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.RootName == "" {
		errs = append(errs, errors.New("root_name: must not be empty"))
	}
	return errors.Join(errs...)
}

// Level returns the slog level of LogLevel.
func (c ShellConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log_level: invalid level %q", c.LogLevel)
	}
	return level, nil
}
