// Package publisher runs the fixed publish sequence around a deploy operation:
// acquire a scratch directory, create and configure the operation, execute it
// with diagnostics captured, and release the directory on every path.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/localpublish/internal/capture"
	"git.home.luguber.info/inful/localpublish/internal/deploy"
	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"git.home.luguber.info/inful/localpublish/internal/eventstore"
	"git.home.luguber.info/inful/localpublish/internal/logfields"
	"git.home.luguber.info/inful/localpublish/internal/metrics"
	"git.home.luguber.info/inful/localpublish/internal/observability"
	"git.home.luguber.info/inful/localpublish/internal/repository"
	"git.home.luguber.info/inful/localpublish/internal/workspace"
)

// captureMu serializes the capture-execute-restore section across every
// Publisher in the process, since the routing it swaps is process-wide.
var captureMu sync.Mutex

// Stage names used for logging and metrics.
const (
	StageAcquire   = "acquire"
	StageCreate    = "create"
	StageConfigure = "configure"
	StageExecute   = "execute"
	StageRelease   = "release"
)

// Request describes one publish.
type Request struct {
	Descriptor string
	Artifacts  []deploy.Artifact
	Repository repository.Config
}

// Result is returned by a successful publish.
type Result struct {
	PublishID    string
	Handle       *repository.LocalHandle
	Files        []deploy.InstalledFile
	MetadataPath string
	Duration     time.Duration
	// Diagnostics holds the output captured while the operation executed.
	Diagnostics string
}

// Publisher drives publishes through a Strategy. It is safe for concurrent use.
type Publisher struct {
	strategy Strategy
	provider workspace.Provider
	capture  capture.Facility
	recorder metrics.Recorder
	events   eventstore.Store
	newID    func() string
}

// New creates a publisher with a temp-directory provider under the OS temp
// dir, debug-level diagnostic capture and no metrics or history.
func New(strategy Strategy) *Publisher {
	return &Publisher{
		strategy: strategy,
		provider: workspace.NewTempProvider(""),
		capture:  capture.NewSlogFacility(slog.LevelDebug),
		recorder: metrics.NoopRecorder{},
		newID:    uuid.NewString,
	}
}

// WithProvider sets the temporary-directory provider.
func (p *Publisher) WithProvider(provider workspace.Provider) *Publisher {
	p.provider = provider
	return p
}

// WithCapture sets the diagnostic capture facility.
func (p *Publisher) WithCapture(f capture.Facility) *Publisher {
	p.capture = f
	return p
}

// WithRecorder sets the metrics recorder.
func (p *Publisher) WithRecorder(r metrics.Recorder) *Publisher {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	p.recorder = r
	return p
}

// WithEventStore records publish history into store.
func (p *Publisher) WithEventStore(store eventstore.Store) *Publisher {
	p.events = store
	return p
}

// WithIDGenerator overrides how publish IDs are generated.
func (p *Publisher) WithIDGenerator(gen func() string) *Publisher {
	p.newID = gen
	return p
}

// Publish installs descriptor into the repository described by repo.
func (p *Publisher) Publish(ctx context.Context, descriptor string, repo repository.Config) (*Result, error) {
	return p.PublishArtifacts(ctx, Request{Descriptor: descriptor, Repository: repo})
}

// PublishArtifacts installs the descriptor and its artifacts.
//
// Preconditions are checked before anything is acquired. Once the scratch
// directory is acquired it is released on every exit path, and any error
// from the operation is returned unchanged.
func (p *Publisher) PublishArtifacts(ctx context.Context, req Request) (*Result, error) {
	publishID := p.newID()
	ctx = observability.WithPublishID(ctx, publishID)
	ctx = observability.WithRepository(ctx, req.Repository.Name)
	start := time.Now()

	if err := checkPreconditions(req); err != nil {
		observability.WarnContext(ctx, "Publish rejected", logfields.Descriptor(req.Descriptor), logfields.Error(err))
		p.recorder.IncPublishOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	observability.InfoContext(ctx, "Publishing",
		logfields.Descriptor(req.Descriptor),
		logfields.Location(req.Repository.Location),
		logfields.Layout(req.Repository.LayoutName))
	p.emit(ctx, func() (eventstore.Event, error) {
		return eventstore.NewPublishStarted(publishID, eventstore.PublishStartedMeta{
			Descriptor:    req.Descriptor,
			Repository:    req.Repository.Name,
			Location:      req.Repository.Location,
			Layout:        req.Repository.LayoutName,
			ArtifactCount: len(req.Artifacts),
		})
	})

	res, err := p.run(ctx, req)
	duration := time.Since(start)
	p.recorder.ObservePublishDuration(duration)

	if err != nil {
		p.recorder.IncPublishOutcome(metrics.OutcomeFailed)
		observability.ErrorContext(ctx, "Publish failed",
			logfields.Descriptor(req.Descriptor),
			logfields.DurationMS(float64(duration.Milliseconds())),
			logfields.Error(err))
		p.emit(ctx, func() (eventstore.Event, error) {
			return eventstore.NewPublishFailed(publishID, string(perrors.GetCategory(err)), err.Error())
		})
		return nil, err
	}

	res.PublishID = publishID
	res.Duration = duration
	p.recorder.IncPublishOutcome(metrics.OutcomeSuccess)
	observability.InfoContext(ctx, "Published",
		logfields.Location(res.Handle.Location),
		logfields.Layout(res.Handle.LayoutID()),
		slog.Int("files", len(res.Files)),
		logfields.DurationMS(float64(duration.Milliseconds())))
	p.emit(ctx, func() (eventstore.Event, error) {
		var total int64
		for _, f := range res.Files {
			total += f.Size
		}
		return eventstore.NewPublishCompleted(publishID, len(res.Files), total, duration)
	})
	return res, nil
}

func (p *Publisher) run(ctx context.Context, req Request) (res *Result, err error) {
	dir, err := timeStage(p, StageAcquire, func() (string, error) {
		dir, err := p.provider.Acquire()
		if err != nil {
			return "", perrors.WorkspaceError("acquire", err)
		}
		return dir, nil
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_, rerr := timeStage(p, StageRelease, func() (struct{}, error) {
			return struct{}{}, p.provider.Release(dir)
		})
		if rerr == nil {
			return
		}
		observability.WarnContext(ctx, "Failed to release workspace", logfields.Path(dir), logfields.Error(rerr))
		if err == nil {
			res, err = nil, perrors.WorkspaceError("release", rerr)
		}
	}()

	op, err := timeStage(p, StageCreate, func() (*deploy.Operation, error) {
		op, err := p.strategy.CreateDeployOperation(req.Descriptor)
		if err != nil {
			return nil, err
		}
		op.SetStagingDir(dir)
		if err := op.AddArtifacts(req.Artifacts...); err != nil {
			return nil, err
		}
		return op, nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := timeStage(p, StageConfigure, func() (struct{}, error) {
		return struct{}{}, p.strategy.PostConfigure(op, req.Repository)
	}); err != nil {
		return nil, err
	}

	diagnostics, err := timeStage(p, StageExecute, func() (string, error) {
		return p.executeCaptured(ctx, op)
	})
	replay(ctx, diagnostics)
	p.recordExecution(ctx, op, req.Repository)
	if err != nil {
		return nil, err
	}

	report := op.Report()
	res = &Result{
		Handle:      op.Handle(),
		Diagnostics: diagnostics,
	}
	if report != nil {
		res.Files = report.Files
		res.MetadataPath = report.MetadataPath
		p.recorder.AddBytesInstalled(report.TotalBytes())
	}
	return res, nil
}

// executeCaptured runs op with diagnostics captured. Capture always ends,
// and the prior routing is restored, before the lock is released.
func (p *Publisher) executeCaptured(ctx context.Context, op *deploy.Operation) (diagnostics string, err error) {
	captureMu.Lock()
	defer captureMu.Unlock()

	tok := p.capture.Begin()
	defer func() {
		out, endErr := p.capture.End(tok)
		diagnostics = out
		if endErr != nil && err == nil {
			err = perrors.InternalError("failed to end diagnostic capture", endErr)
		}
	}()

	return "", op.Execute(observability.WithStage(ctx, StageExecute))
}

func (p *Publisher) recordExecution(ctx context.Context, op *deploy.Operation, repo repository.Config) {
	publishID := observability.GetContext(ctx).PublishID
	handle := op.Handle()
	switch {
	case handle != nil:
		p.recorder.IncLayoutResolution(handle.LayoutID(), true)
		p.emit(ctx, func() (eventstore.Event, error) {
			return eventstore.NewLayoutResolved(publishID, handle.LayoutID(), handle.Location)
		})
	case perrors.IsCategory(op.Err(), perrors.CategoryLayout):
		p.recorder.IncLayoutResolution(repo.LayoutName, false)
	}

	if report := op.Report(); report != nil {
		for _, f := range report.Files {
			p.emit(ctx, func() (eventstore.Event, error) {
				return eventstore.NewArtifactInstalled(publishID, f.Source, f.Destination, f.SHA256, f.Size)
			})
		}
	}
}

// emit appends an event when a store is attached. History is best effort:
// failures are logged and never fail the publish.
func (p *Publisher) emit(ctx context.Context, build func() (eventstore.Event, error)) {
	if p.events == nil {
		return
	}
	event, err := build()
	if err == nil {
		err = eventstore.AppendEvent(context.WithoutCancel(ctx), p.events, event)
	}
	if err != nil {
		observability.WarnContext(ctx, "Failed to record publish event", logfields.Error(err))
	}
}

func timeStage[T any](p *Publisher, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	p.recorder.ObserveStageDuration(stage, time.Since(start))
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
	}
	p.recorder.IncStageResult(stage, result)
	return out, err
}

// replay re-emits captured output at debug level through the restored logger.
func replay(ctx context.Context, diagnostics string) {
	for _, line := range strings.Split(strings.TrimRight(diagnostics, "\n"), "\n") {
		if line == "" {
			continue
		}
		observability.DebugContext(ctx, "Deploy diagnostics", slog.String("line", line))
	}
}

func checkPreconditions(req Request) error {
	if strings.TrimSpace(req.Descriptor) == "" {
		return perrors.ConfigurationError("descriptor", "descriptor path is empty")
	}
	f, err := os.Open(req.Descriptor) // #nosec G304 -- descriptor path is caller supplied
	if err != nil {
		return perrors.DescriptorNotFound(req.Descriptor, err)
	}
	info, err := f.Stat()
	_ = f.Close()
	if err != nil {
		return perrors.DescriptorNotFound(req.Descriptor, err)
	}
	if !info.Mode().IsRegular() {
		return perrors.DescriptorNotFound(req.Descriptor, fmt.Errorf("%s is not a regular file", req.Descriptor))
	}

	if strings.TrimSpace(req.Repository.Location) == "" {
		return perrors.ConfigurationError("location", "repository location is empty")
	}
	return nil
}
