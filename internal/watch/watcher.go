// Package watch republishes a descriptor whenever it or one of its artifacts
// changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/localpublish/internal/logfields"
	"git.home.luguber.info/inful/localpublish/internal/publisher"
)

// DefaultDebounce is used when New receives a non-positive debounce.
const DefaultDebounce = 500 * time.Millisecond

// Publisher is the part of publisher.Publisher the watcher drives.
type Publisher interface {
	PublishArtifacts(ctx context.Context, req publisher.Request) (*publisher.Result, error)
}

// NotifyFunc observes the outcome of each publish the watcher runs.
type NotifyFunc func(res *publisher.Result, err error)

// Watcher monitors the files of one publish request.
type Watcher struct {
	pub      Publisher
	req      publisher.Request
	debounce time.Duration
	notify   NotifyFunc

	watcher *fsnotify.Watcher
	files   map[string]struct{}
	trigger chan struct{}

	mu      sync.Mutex
	running bool
}

// New creates a watcher for req's descriptor and artifacts.
func New(pub Publisher, req publisher.Request, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	files := make(map[string]struct{}, len(req.Artifacts)+1)
	paths := []string{req.Descriptor}
	for _, a := range req.Artifacts {
		paths = append(paths, a.Path)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve watched path %s: %w", p, err)
		}
		files[abs] = struct{}{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		pub:      pub,
		req:      req,
		debounce: debounce,
		watcher:  watcher,
		files:    files,
		trigger:  make(chan struct{}, 1),
	}, nil
}

// WithNotify registers fn to be called after every publish.
func (w *Watcher) WithNotify(fn NotifyFunc) *Watcher {
	w.notify = fn
	return w
}

// Files returns the absolute paths being watched.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// Run publishes once, then republishes after each debounced change until ctx
// is canceled. Publish failures are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	// Watch directories rather than files so editors that replace the file
	// on save keep being tracked.
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	slog.Info("Watching for changes",
		logfields.Descriptor(w.req.Descriptor),
		slog.Int("files", len(w.files)),
		slog.Duration("debounce", w.debounce))

	go w.watchLoop(ctx)

	w.publish(ctx)
	w.publishLoop(ctx)
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if _, tracked := w.files[filepath.Clean(event.Name)]; !tracked {
				continue
			}

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				slog.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				w.triggerPublish()
			case event.Has(fsnotify.Remove):
				slog.Warn("Watched file removed", logfields.Path(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) publishLoop(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping watcher", logfields.Descriptor(w.req.Descriptor))
			return
		case <-w.trigger:
			timer.Reset(w.debounce)
		case <-timer.C:
			w.publish(ctx)
		}
	}
}

func (w *Watcher) triggerPublish() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) publish(ctx context.Context) {
	res, err := w.pub.PublishArtifacts(ctx, w.req)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Republish failed, still watching", logfields.Descriptor(w.req.Descriptor), logfields.Error(err))
		}
	} else {
		slog.Info("Republished", logfields.Descriptor(w.req.Descriptor), slog.Int("files", len(res.Files)))
	}
	if w.notify != nil {
		w.notify(res, err)
	}
}
