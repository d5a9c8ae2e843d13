package publisher

import (
	"git.home.luguber.info/inful/localpublish/internal/deploy"
	"git.home.luguber.info/inful/localpublish/internal/layout"
	"git.home.luguber.info/inful/localpublish/internal/repository"
)

// Strategy supplies the destination-specific steps of a publish.
type Strategy interface {
	// CreateDeployOperation binds a fresh operation to descriptor.
	CreateDeployOperation(descriptor string) (*deploy.Operation, error)
	// PostConfigure injects the destination taken from repo into op.
	PostConfigure(op *deploy.Operation, repo repository.Config) error
}

// LocalStrategy publishes into a repository on the local filesystem.
type LocalStrategy struct {
	resolver layout.Resolver
	engine   deploy.Engine
}

// NewLocalStrategy returns a strategy resolving layouts through resolver and
// placing files with engine.
func NewLocalStrategy(resolver layout.Resolver, engine deploy.Engine) *LocalStrategy {
	return &LocalStrategy{resolver: resolver, engine: engine}
}

var _ Strategy = (*LocalStrategy)(nil)

// CreateDeployOperation implements Strategy.
func (s *LocalStrategy) CreateDeployOperation(descriptor string) (*deploy.Operation, error) {
	return deploy.NewOperation(descriptor, s.ResolveRepositoryHandle, s.engine), nil
}

// PostConfigure stores the location and the repository's declared layout
// name. Nothing else is read from repo.
func (s *LocalStrategy) PostConfigure(op *deploy.Operation, repo repository.Config) error {
	return op.Configure(deploy.Target{
		Location:   repo.Location,
		LayoutName: repo.LayoutName,
	})
}

// ResolveRepositoryHandle builds the local handle for target. It runs inside
// Execute; an unknown layout fails with a layout error.
func (s *LocalStrategy) ResolveRepositoryHandle(target deploy.Target) (*repository.LocalHandle, error) {
	strategy, err := s.resolver.Resolve(target.LayoutName)
	if err != nil {
		return nil, err
	}
	return repository.NewLocalHandle(target.Location, strategy), nil
}
