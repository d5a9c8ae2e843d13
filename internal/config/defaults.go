package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultLayout        = "default"
	defaultWatchDebounce = 500 * time.Millisecond
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type repositoryDefaults struct{}

func (repositoryDefaults) Domain() string { return "repositories" }

func (repositoryDefaults) ApplyDefaults(cfg *Config) error {
	if strings.TrimSpace(cfg.LocalRepository.Location) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.LocalRepository.Location = filepath.Join(home, ".m2", "repository")
	}
	if cfg.LocalRepository.Layout == "" {
		cfg.LocalRepository.Layout = defaultLayout
	}

	for i := range cfg.Repositories {
		if cfg.Repositories[i].Layout == "" {
			cfg.Repositories[i].Layout = defaultLayout
		}
	}

	var err error
	cfg.LocalRepository.Location, err = expandHome(cfg.LocalRepository.Location)
	if err != nil {
		return err
	}
	for i := range cfg.Repositories {
		if cfg.Repositories[i].Location, err = expandHome(cfg.Repositories[i].Location); err != nil {
			return err
		}
	}
	return nil
}

type historyDefaults struct{}

func (historyDefaults) Domain() string { return "history" }

func (historyDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.History.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.History.Path = filepath.Join(home, ".localpublish", "history.db")
	}
	var err error
	cfg.History.Path, err = expandHome(cfg.History.Path)
	return err
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) error {
	// unknown values are kept so validation can report them
	if cfg.Logging.Level == "" || logLevelNormalizer.Changed(string(cfg.Logging.Level)) {
		cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	}
	if cfg.Logging.Format == "" || logFormatNormalizer.Changed(string(cfg.Logging.Format)) {
		cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	}
	return nil
}

type watchDefaults struct{}

func (watchDefaults) Domain() string { return "watch" }

func (watchDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = defaultWatchDebounce
	}
	return nil
}

var defaultAppliers = []DefaultApplier{
	repositoryDefaults{},
	historyDefaults{},
	loggingDefaults{},
	watchDefaults{},
}

func applyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("apply %s defaults: %w", applier.Domain(), err)
		}
	}
	return nil
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
