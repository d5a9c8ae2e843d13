package commands

import (
	"git.home.luguber.info/inful/localpublish/internal/config"
	"git.home.luguber.info/inful/localpublish/internal/deploy"
	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"git.home.luguber.info/inful/localpublish/internal/publisher"
)

// TargetFlags are the descriptor, artifact and destination flags shared by
// install and watch.
type TargetFlags struct {
	Descriptor string   `arg:"" name:"descriptor" help:"Descriptor (POM) file to install"`
	Artifacts  []string `name:"artifact" short:"a" sep:"none" help:"Artifact to install alongside the descriptor, as [classifier=]path (repeatable)"`
	Repository string   `name:"repository" short:"r" xor:"target" help:"Configured repository to install into (default: local_repository)"`
	Location   string   `name:"location" short:"l" xor:"target" help:"Repository directory to install into, overriding the configured local repository"`
	Layout     string   `name:"layout" help:"Layout to use instead of the repository's configured layout"`
}

// Request builds the publish request described by the flags.
func (f *TargetFlags) Request(cfg *config.Config) (publisher.Request, error) {
	repo, err := cfg.Repository(f.Repository)
	if err != nil {
		return publisher.Request{}, err
	}
	if f.Location != "" {
		repo.Location = f.Location
	}
	if f.Layout != "" {
		repo.LayoutName = f.Layout
	}

	artifacts := make([]deploy.Artifact, 0, len(f.Artifacts))
	for _, raw := range f.Artifacts {
		a, err := deploy.ParseArtifact(raw)
		if err != nil {
			return publisher.Request{}, perrors.ValidationFailed("artifact", err.Error())
		}
		artifacts = append(artifacts, a)
	}

	return publisher.Request{
		Descriptor: f.Descriptor,
		Artifacts:  artifacts,
		Repository: repo,
	}, nil
}
