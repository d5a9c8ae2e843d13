package deploy

import (
	"context"

	"git.home.luguber.info/inful/localpublish/internal/repository"
)

// Engine places the descriptor and artifacts into the repository behind a
// resolved handle.
type Engine interface {
	Install(ctx context.Context, req InstallRequest) (*Report, error)
}

// InstallRequest carries everything the engine needs for one placement.
type InstallRequest struct {
	Descriptor string
	Artifacts  []Artifact
	Handle     *repository.LocalHandle
	// StagingDir is the per-publish scratch directory; the engine may
	// write anything below it and never needs to clean it up.
	StagingDir string
}

// Report describes what an install wrote.
type Report struct {
	Files        []InstalledFile
	MetadataPath string
}

// InstalledFile is one file copied into the repository.
type InstalledFile struct {
	Source      string
	Destination string
	SHA256      string
	Size        int64
}

// TotalBytes sums the size of every installed file.
func (r *Report) TotalBytes() int64 {
	if r == nil {
		return 0
	}
	var n int64
	for _, f := range r.Files {
		n += f.Size
	}
	return n
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req InstallRequest) (*Report, error)

// Install calls f.
func (f EngineFunc) Install(ctx context.Context, req InstallRequest) (*Report, error) {
	return f(ctx, req)
}
