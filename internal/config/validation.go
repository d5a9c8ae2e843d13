package config

import (
	"fmt"
	"strings"

	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"git.home.luguber.info/inful/localpublish/internal/repository"
)

// ValidateConfig validates a defaulted configuration.
func ValidateConfig(cfg *Config) error {
	return (&configurationValidator{config: cfg}).validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateRepositories(); err != nil {
		return err
	}
	if err := cv.validateLogging(); err != nil {
		return err
	}
	if cv.config.Watch.Debounce < 0 {
		return perrors.ValidationFailed("watch.debounce", "must not be negative")
	}
	return nil
}

// Layout names are resolved lazily at publish time, so only their presence
// is checked here.
func (cv *configurationValidator) validateRepositories() error {
	if strings.TrimSpace(cv.config.LocalRepository.Location) == "" {
		return perrors.ValidationFailed("local_repository.location", "must not be empty")
	}

	seen := make(map[string]bool, len(cv.config.Repositories))
	for i, repo := range cv.config.Repositories {
		field := fmt.Sprintf("repositories[%d]", i)
		name := strings.TrimSpace(repo.Name)
		if name == "" {
			return perrors.ValidationFailed(field+".name", "must not be empty")
		}
		if name == repository.LocalName {
			return perrors.ValidationFailed(field+".name", fmt.Sprintf("%q is reserved for local_repository", repository.LocalName))
		}
		if seen[name] {
			return perrors.ValidationFailed(field+".name", fmt.Sprintf("duplicate repository name %q", name))
		}
		seen[name] = true
		if strings.TrimSpace(repo.Location) == "" {
			return perrors.ValidationFailed(field+".location", "must not be empty")
		}
	}
	return nil
}

func (cv *configurationValidator) validateLogging() error {
	if _, err := logLevelNormalizer.NormalizeWithError(string(cv.config.Logging.Level)); err != nil {
		return perrors.ValidationFailed("logging.level", err.Error())
	}
	if _, err := logFormatNormalizer.NormalizeWithError(string(cv.config.Logging.Format)); err != nil {
		return perrors.ValidationFailed("logging.format", err.Error())
	}
	return nil
}
