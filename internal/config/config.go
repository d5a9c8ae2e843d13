// Package config loads the localpublish YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "localpublish.yaml"

// Config represents the application configuration.
type Config struct {
	LocalRepository LocalRepositoryConfig `yaml:"local_repository"`
	Repositories    []RepositoryConfig    `yaml:"repositories,omitempty"`
	Workspace       WorkspaceConfig       `yaml:"workspace,omitempty"`
	History         HistoryConfig         `yaml:"history,omitempty"`
	Metrics         MetricsConfig         `yaml:"metrics,omitempty"`
	Logging         LoggingConfig         `yaml:"logging,omitempty"`
	Watch           WatchConfig           `yaml:"watch,omitempty"`
}

// LocalRepositoryConfig is the default install destination.
type LocalRepositoryConfig struct {
	Location string `yaml:"location"`
	Layout   string `yaml:"layout"`
}

// RepositoryConfig is a named repository description. Its layout is reused
// when installing locally on its behalf.
type RepositoryConfig struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Layout   string `yaml:"layout,omitempty"`
}

// WorkspaceConfig controls where per-publish temporary directories live.
type WorkspaceConfig struct {
	// BaseDir defaults to the OS temp directory.
	BaseDir string `yaml:"base_dir,omitempty"`
}

// HistoryConfig controls the publish event store.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// IsEnabled reports whether history is recorded; it is on unless disabled.
func (h HistoryConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the gathered metrics after each command.
	Textfile string `yaml:"textfile,omitempty"`
}

// LoggingConfig controls the default slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Load reads, expands, defaults and validates the configuration at path.
// A missing file is a config-category error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path) // #nosec G304 -- configuration path is user supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, perrors.ConfigNotFound(path)
		}
		return nil, perrors.Wrap(err, perrors.CategoryConfig, perrors.SeverityFatal, "failed to read config file").
			WithContext("path", path)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, perrors.Wrap(err, perrors.CategoryConfig, perrors.SeverityFatal, "failed to parse config file").
			WithContext("path", path)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when no file
// exists at path.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("No configuration file, using defaults", slog.String("path", path))
		loadEnvFiles()
		return Default()
	}
	return Load(path)
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var cfg Config
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	enabled := true
	example := Config{
		LocalRepository: LocalRepositoryConfig{
			Location: "${HOME}/.m2/repository",
			Layout:   "default",
		},
		Repositories: []RepositoryConfig{
			{Name: "legacy-mirror", Location: "/srv/maven1", Layout: "legacy"},
			{Name: "dist", Location: "./dist/repo", Layout: "flat"},
		},
		History: HistoryConfig{Enabled: &enabled, Path: "${HOME}/.localpublish/history.db"},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		Watch:   WatchConfig{Debounce: defaultWatchDebounce},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
