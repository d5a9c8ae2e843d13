// Package install is the filesystem engine that places a descriptor and its
// artifacts into a local repository.
//
// Every input is first staged into a content-addressable store under the
// publish's staging directory. Destinations are computed from the handle's
// layout, checked for collisions, and written beside their destinations
// together with the module's local metadata file. Only once every file is
// written are they renamed into place.
package install

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/localpublish/internal/deploy"
	"git.home.luguber.info/inful/localpublish/internal/descriptor"
	"git.home.luguber.info/inful/localpublish/internal/layout"
	"git.home.luguber.info/inful/localpublish/internal/logfields"
	"git.home.luguber.info/inful/localpublish/internal/storage"
)

// StoreFactory opens the staging store for one install.
type StoreFactory func(stagingDir string) (storage.ObjectStore, error)

// Engine implements deploy.Engine on the local filesystem.
type Engine struct {
	newStore StoreFactory
	now      func() time.Time
}

// NewEngine returns an engine staging into an FSStore.
func NewEngine() *Engine {
	return &Engine{
		newStore: func(dir string) (storage.ObjectStore, error) {
			return storage.NewFSStore(filepath.Join(dir, "staging"))
		},
		now: time.Now,
	}
}

// WithStoreFactory overrides how the staging store is opened.
func (e *Engine) WithStoreFactory(f StoreFactory) *Engine {
	e.newStore = f
	return e
}

// WithClock overrides the time source used for metadata timestamps.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

var _ deploy.Engine = (*Engine)(nil)

type placement struct {
	source      string
	destination string
	object      *storage.Object
}

// Install implements deploy.Engine.
//
// Every file, including the metadata, is written beside its destination
// before any is moved into place. A failure before that point leaves the
// repository as it was.
func (e *Engine) Install(ctx context.Context, req deploy.InstallRequest) (*deploy.Report, error) {
	if req.Handle == nil || req.Handle.Layout == nil {
		return nil, fmt.Errorf("install requires a resolved repository handle")
	}
	if req.StagingDir == "" {
		return nil, fmt.Errorf("install requires a staging directory")
	}

	desc, err := descriptor.Load(req.Descriptor)
	if err != nil {
		return nil, err
	}
	baseDir, err := req.Handle.BaseDir()
	if err != nil {
		return nil, err
	}
	baseDir = filepath.Clean(baseDir)

	store, err := e.newStore(req.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("open staging store: %w", err)
	}
	defer func() { _ = store.Close() }()

	plan, err := e.stage(ctx, store, desc, req.Artifacts, req.Handle.Layout, baseDir)
	if err != nil {
		return nil, err
	}
	if err := checkCollisions(plan); err != nil {
		return nil, err
	}
	metaPath, err := resolveDestination(baseDir, req.Handle.Layout.MetadataPathOf(coordinatesOf(desc), req.Handle.Name))
	if err != nil {
		return nil, err
	}

	pending := &batch{baseDir: baseDir}
	report := &deploy.Report{Files: make([]deploy.InstalledFile, 0, len(plan)), MetadataPath: metaPath}
	for _, p := range plan {
		if err := ctx.Err(); err != nil {
			pending.abort()
			return nil, err
		}
		f, err := prepare(ctx, store, p)
		if err != nil {
			pending.abort()
			return nil, err
		}
		pending.add(f)
		report.Files = append(report.Files, deploy.InstalledFile{
			Source:      p.source,
			Destination: p.destination,
			SHA256:      f.sum,
			Size:        f.size,
		})
	}

	meta, err := e.prepareMetadata(desc, metaPath)
	if err != nil {
		pending.abort()
		return nil, err
	}
	pending.add(meta)

	if err := pending.commit(); err != nil {
		return nil, err
	}
	for _, f := range report.Files {
		slog.Debug("Installed file",
			logfields.Artifact(f.Source),
			logfields.Path(f.Destination),
			logfields.Bytes(f.Size))
	}
	return report, nil
}

func coordinatesOf(desc *descriptor.Descriptor) layout.Coordinates {
	return layout.Coordinates{
		GroupID:    desc.Coordinates.GroupID,
		ArtifactID: desc.Coordinates.ArtifactID,
		Version:    desc.Coordinates.Version,
	}
}

func (e *Engine) stage(ctx context.Context, store storage.ObjectStore, desc *descriptor.Descriptor, artifacts []deploy.Artifact, strategy layout.Strategy, baseDir string) ([]placement, error) {
	coords := coordinatesOf(desc)

	type input struct {
		path       string
		objectType storage.ObjectType
		coords     layout.Coordinates
	}
	pom := coords
	pom.Extension = "pom"
	inputs := []input{{path: desc.Path, objectType: storage.ObjectTypeDescriptor, coords: pom}}
	for _, a := range artifacts {
		c := coords
		c.Classifier = a.Classifier
		c.Extension = a.Extension
		if a.Classifier == "" {
			ext, err := mainExtension(desc, a)
			if err != nil {
				return nil, err
			}
			c.Extension = ext
		}
		inputs = append(inputs, input{path: a.Path, objectType: storage.ObjectTypeArtifact, coords: c})
	}

	plan := make([]placement, 0, len(inputs))
	for _, in := range inputs {
		dest, err := resolveDestination(baseDir, strategy.PathOf(in.coords))
		if err != nil {
			return nil, err
		}
		obj, err := stageFile(ctx, store, in.path, in.objectType)
		if err != nil {
			return nil, err
		}
		plan = append(plan, placement{
			source:      in.path,
			destination: dest,
			object:      obj,
		})
	}
	return plan, nil
}

// mainExtension picks the extension of the primary artifact: the file's own
// extension, else the one implied by the descriptor's packaging.
func mainExtension(desc *descriptor.Descriptor, a deploy.Artifact) (string, error) {
	implied := desc.MainExtension()
	if implied == "" {
		slog.Warn("Descriptor packaging produces no main artifact",
			logfields.Descriptor(desc.Path),
			slog.String("packaging", desc.Packaging),
			logfields.Artifact(a.Path))
	}
	if a.Extension != "" {
		return a.Extension, nil
	}
	if implied == "" {
		return "", fmt.Errorf("artifact %s has no extension and %s packaging implies none", a.Path, desc.Packaging)
	}
	return implied, nil
}

func stageFile(ctx context.Context, store storage.ObjectStore, path string, objectType storage.ObjectType) (*storage.Object, error) {
	// #nosec G304 -- artifact paths are caller supplied
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	obj, err := store.Put(ctx, f, objectType)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", path, err)
	}
	return obj, nil
}

func checkCollisions(plan []placement) error {
	seen := make(map[string]string, len(plan))
	for _, p := range plan {
		if prev, ok := seen[p.destination]; ok {
			return fmt.Errorf("%s and %s both install to %s", prev, p.source, p.destination)
		}
		seen[p.destination] = p.source

		if info, err := os.Stat(p.destination); err == nil && info.IsDir() {
			return fmt.Errorf("destination %s is a directory", p.destination)
		}
	}
	return nil
}

func prepare(ctx context.Context, store storage.ObjectStore, p placement) (*pendingFile, error) {
	rc, err := store.Open(ctx, p.object.Hash)
	if err != nil {
		return nil, fmt.Errorf("open staged %s: %w", p.source, err)
	}
	defer func() { _ = rc.Close() }()

	return prepareFile(p.destination, rc, p.object.Hash)
}

func (e *Engine) prepareMetadata(desc *descriptor.Descriptor, path string) (*pendingFile, error) {
	coords := desc.Coordinates
	meta, err := readMetadata(path)
	if err != nil {
		return nil, err
	}
	meta.addVersion(coords.GroupID, coords.ArtifactID, coords.Version, e.now())

	data, err := meta.encode()
	if err != nil {
		return nil, err
	}
	f, err := prepareFile(path, bytes.NewReader(data), "")
	if err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	return f, nil
}
