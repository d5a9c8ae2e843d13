package config

import (
	"fmt"

	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"git.home.luguber.info/inful/localpublish/internal/repository"
)

// Local returns the default install destination as a repository description.
func (c *Config) Local() repository.Config {
	return repository.Config{
		Name:       repository.LocalName,
		Location:   c.LocalRepository.Location,
		LayoutName: c.LocalRepository.Layout,
	}
}

// Repository returns the description named name. The empty name and "local"
// select the local repository.
func (c *Config) Repository(name string) (repository.Config, error) {
	if name == "" || name == repository.LocalName {
		return c.Local(), nil
	}
	for _, r := range c.Repositories {
		if r.Name == name {
			return repository.Config{Name: r.Name, Location: r.Location, LayoutName: r.Layout}, nil
		}
	}
	return repository.Config{}, perrors.ConfigurationError("repository", fmt.Sprintf("no repository named %q is configured", name))
}

// RepositoryNames lists the configured repository names, local first.
func (c *Config) RepositoryNames() []string {
	names := []string{repository.LocalName}
	for _, r := range c.Repositories {
		names = append(names, r.Name)
	}
	return names
}
