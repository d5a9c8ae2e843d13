package publisher

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"git.home.luguber.info/inful/localpublish/internal/capture"
	"git.home.luguber.info/inful/localpublish/internal/deploy"
	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"git.home.luguber.info/inful/localpublish/internal/eventstore"
	"git.home.luguber.info/inful/localpublish/internal/install"
	"git.home.luguber.info/inful/localpublish/internal/layout"
	"git.home.luguber.info/inful/localpublish/internal/metrics"
	"git.home.luguber.info/inful/localpublish/internal/repository"
	"git.home.luguber.info/inful/localpublish/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectPOM = `<project>
  <groupId>org.example</groupId>
  <artifactId>project</artifactId>
  <version>1.0</version>
</project>`

type countingProvider struct {
	inner      *workspace.TempProvider
	releaseErr error

	mu       sync.Mutex
	acquires int
	releases int
}

func newCountingProvider(t *testing.T) *countingProvider {
	return &countingProvider{inner: workspace.NewTempProvider(t.TempDir())}
}

func (p *countingProvider) Acquire() (string, error) {
	p.mu.Lock()
	p.acquires++
	p.mu.Unlock()
	return p.inner.Acquire()
}

func (p *countingProvider) Release(dir string) error {
	p.mu.Lock()
	p.releases++
	p.mu.Unlock()
	if err := p.inner.Release(dir); err != nil {
		return err
	}
	return p.releaseErr
}

func (p *countingProvider) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires, p.releases
}

type countingCapture struct {
	*capture.SlogFacility

	mu     sync.Mutex
	begins int
}

func newCountingCapture() *countingCapture {
	return &countingCapture{SlogFacility: capture.NewSlogFacility(slog.LevelDebug)}
}

func (c *countingCapture) Begin() capture.Token {
	c.mu.Lock()
	c.begins++
	c.mu.Unlock()
	return c.SlogFacility.Begin()
}

func (c *countingCapture) beginCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begins
}

type recordingRecorder struct {
	metrics.NoopRecorder

	mu        sync.Mutex
	outcomes  []metrics.OutcomeLabel
	layouts   map[string]bool
	bytes     int64
	stageRuns map[string]metrics.ResultLabel
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{layouts: map[string]bool{}, stageRuns: map[string]metrics.ResultLabel{}}
}

func (r *recordingRecorder) IncPublishOutcome(o metrics.OutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingRecorder) IncLayoutResolution(name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts[name] = ok
}

func (r *recordingRecorder) AddBytesInstalled(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes += n
}

func (r *recordingRecorder) IncStageResult(stage string, result metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stageRuns[stage] = result
}

type fixture struct {
	provider *countingProvider
	capture  *countingCapture
	pub      *Publisher
}

func newFixture(t *testing.T, engine deploy.Engine) *fixture {
	t.Helper()
	if engine == nil {
		engine = install.NewEngine()
	}
	f := &fixture{provider: newCountingProvider(t), capture: newCountingCapture()}
	f.pub = New(NewLocalStrategy(layout.DefaultRegistry(), engine)).
		WithProvider(f.provider).
		WithCapture(f.capture)
	return f
}

func writePOM(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pom.xml")
	require.NoError(t, os.WriteFile(path, []byte(projectPOM), 0o600))
	return path
}

func TestPublish_LocalRepositoryDefaultLayout(t *testing.T) {
	f := newFixture(t, nil)
	repo := t.TempDir()

	res, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: repo, LayoutName: "default",
	})
	require.NoError(t, err)

	require.NotNil(t, res.Handle)
	assert.Equal(t, "local", res.Handle.Name)
	assert.Equal(t, repo, res.Handle.Location)
	assert.Equal(t, "default", res.Handle.LayoutID())
	assert.NotEmpty(t, res.PublishID)

	installed := filepath.Join(repo, "org", "example", "project", "1.0", "project-1.0.pom")
	data, err := os.ReadFile(installed)
	require.NoError(t, err)
	assert.Equal(t, projectPOM, string(data))
	assert.FileExists(t, filepath.Join(repo, "org", "example", "project", "maven-metadata-local.xml"))

	acquires, releases := f.provider.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
	assert.Equal(t, 0, f.provider.inner.Active())
}

func TestPublish_WithArtifacts(t *testing.T) {
	f := newFixture(t, nil)
	rec := newRecordingRecorder()
	f.pub.WithRecorder(rec)
	repo := t.TempDir()
	jar := filepath.Join(t.TempDir(), "project-1.0.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar bytes"), 0o600))

	res, err := f.pub.PublishArtifacts(context.Background(), Request{
		Descriptor: writePOM(t),
		Artifacts:  []deploy.Artifact{{Path: jar, Extension: "jar"}},
		Repository: repository.Config{Name: repository.LocalName, Location: repo, LayoutName: "default"},
	})
	require.NoError(t, err)

	assert.Len(t, res.Files, 2)
	assert.FileExists(t, filepath.Join(repo, "org", "example", "project", "1.0", "project-1.0.jar"))
	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeSuccess}, rec.outcomes)
	assert.True(t, rec.layouts["default"])
	assert.Equal(t, int64(len(projectPOM)+len("jar bytes")), rec.bytes)
	for _, stage := range []string{StageAcquire, StageCreate, StageConfigure, StageExecute, StageRelease} {
		assert.Equal(t, metrics.ResultSuccess, rec.stageRuns[stage], stage)
	}
}

func TestPublish_UsesRepositoryLayout(t *testing.T) {
	f := newFixture(t, nil)
	repo := t.TempDir()

	res, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: repo, LayoutName: "legacy",
	})
	require.NoError(t, err)

	assert.Equal(t, "legacy", res.Handle.LayoutID())
	assert.FileExists(t, filepath.Join(repo, "org.example", "poms", "project-1.0.pom"))
	assert.NoDirExists(t, filepath.Join(repo, "org", "example"))
}

func TestPublish_UnknownLayout(t *testing.T) {
	f := newFixture(t, nil)
	rec := newRecordingRecorder()
	f.pub.WithRecorder(rec)
	repo := t.TempDir()

	res, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: repo, LayoutName: "unknown-layout",
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryLayout), "got %v", err)

	entries, rerr := os.ReadDir(repo)
	require.NoError(t, rerr)
	assert.Empty(t, entries)

	acquires, releases := f.provider.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
	assert.Equal(t, 1, f.capture.beginCount())
	assert.Equal(t, 0, f.capture.Depth())
	assert.False(t, rec.layouts["unknown-layout"])
	assert.Equal(t, metrics.ResultFailed, rec.stageRuns[StageExecute])
}

func TestPublish_MissingDescriptor(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.pub.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.xml"), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig), "got %v", err)

	acquires, _ := f.provider.counts()
	assert.Equal(t, 0, acquires)
	assert.Equal(t, 0, f.capture.beginCount())
}

func TestPublish_DescriptorIsDirectory(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.pub.Publish(context.Background(), t.TempDir(), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig), "got %v", err)
	acquires, _ := f.provider.counts()
	assert.Equal(t, 0, acquires)
}

func TestPublish_EmptyLocation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: "  ", LayoutName: "default",
	})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig), "got %v", err)
	acquires, _ := f.provider.counts()
	assert.Equal(t, 0, acquires)
}

func TestPublish_EngineFailureKeepsCause(t *testing.T) {
	cause := stdErrors.New("disk on fire")
	f := newFixture(t, deploy.EngineFunc(func(context.Context, deploy.InstallRequest) (*deploy.Report, error) {
		return nil, cause
	}))

	_, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryDeploy))
	assert.ErrorIs(t, err, cause)

	acquires, releases := f.provider.counts()
	assert.Equal(t, acquires, releases)
}

func TestPublish_EngineReceivesAcquiredDirectory(t *testing.T) {
	var staging string
	f := newFixture(t, deploy.EngineFunc(func(_ context.Context, req deploy.InstallRequest) (*deploy.Report, error) {
		staging = req.StagingDir
		assert.DirExists(t, staging)
		return &deploy.Report{}, nil
	}))

	_, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, staging)
	assert.NoDirExists(t, staging)
}

func TestPublish_CapturesDiagnosticsAndRestoresLogger(t *testing.T) {
	before := slog.Default()
	f := newFixture(t, deploy.EngineFunc(func(_ context.Context, req deploy.InstallRequest) (*deploy.Report, error) {
		slog.Info("engine says hello", slog.String("layout", req.Handle.LayoutID()))
		return &deploy.Report{}, nil
	}))

	res, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	require.NoError(t, err)

	assert.Contains(t, res.Diagnostics, "engine says hello")
	assert.Contains(t, res.Diagnostics, "layout=default")
	assert.Same(t, before, slog.Default())
	assert.Equal(t, 0, f.capture.Depth())
}

func TestPublish_RestoresLoggerOnFailure(t *testing.T) {
	before := slog.Default()
	f := newFixture(t, deploy.EngineFunc(func(context.Context, deploy.InstallRequest) (*deploy.Report, error) {
		return nil, stdErrors.New("boom")
	}))

	_, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	require.Error(t, err)
	assert.Same(t, before, slog.Default())
	assert.Equal(t, 0, f.capture.Depth())
}

func TestPublish_ReleaseFailureIsReported(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.releaseErr = stdErrors.New("busy")

	_, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryFileSystem), "got %v", err)
}

func TestPublish_ReleaseFailureDoesNotMaskEarlierError(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.releaseErr = stdErrors.New("busy")

	_, err := f.pub.Publish(context.Background(), writePOM(t), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "nope",
	})
	assert.True(t, perrors.IsCategory(err, perrors.CategoryLayout), "got %v", err)
}

func TestPublish_RecordsHistory(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := newFixture(t, nil)
	ids := []string{"publish-ok", "publish-bad"}
	f.pub.WithEventStore(store).WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	})
	repo := t.TempDir()
	pom := writePOM(t)

	_, err = f.pub.Publish(context.Background(), pom, repository.Config{Name: "local", Location: repo, LayoutName: "default"})
	require.NoError(t, err)
	_, err = f.pub.Publish(context.Background(), pom, repository.Config{Name: "local", Location: repo, LayoutName: "nope"})
	require.Error(t, err)

	projection := eventstore.NewPublishHistoryProjection(store, 10)
	require.NoError(t, projection.Rebuild(context.Background()))

	ok, found := projection.GetPublish("publish-ok")
	require.True(t, found)
	assert.Equal(t, eventstore.StatusSucceeded, ok.Status)
	assert.Equal(t, "default", ok.Layout)
	assert.Equal(t, repo, ok.Location)
	assert.Equal(t, 1, ok.FileCount)

	bad, found := projection.GetPublish("publish-bad")
	require.True(t, found)
	assert.Equal(t, eventstore.StatusFailed, bad.Status)
	assert.Equal(t, string(perrors.CategoryLayout), bad.ErrorCategory)
}

func TestPublish_ConcurrentCallsStayBalanced(t *testing.T) {
	f := newFixture(t, nil)
	before := slog.Default()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			layoutName := "default"
			if i%3 == 0 {
				layoutName = "missing"
			}
			_, errs[i] = f.pub.Publish(context.Background(), writePOM(t), repository.Config{
				Name:       repository.LocalName,
				Location:   filepath.Join(t.TempDir(), fmt.Sprintf("repo-%d", i)),
				LayoutName: layoutName,
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if i%3 == 0 {
			assert.Error(t, err)
		} else {
			assert.NoError(t, err)
		}
	}
	acquires, releases := f.provider.counts()
	assert.Equal(t, n, acquires)
	assert.Equal(t, n, releases)
	assert.Equal(t, n, f.capture.beginCount())
	assert.Equal(t, 0, f.capture.Depth())
	assert.Same(t, before, slog.Default())
}

func TestPublish_CanceledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := f.pub.Publish(ctx, writePOM(t), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	acquires, releases := f.provider.counts()
	assert.Equal(t, acquires, releases)
}

func TestPublish_CanceledContextStillRecordsFailure(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := newFixture(t, nil)
	f.pub.WithEventStore(store).WithIDGenerator(func() string { return "publish-canceled" })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.pub.Publish(ctx, writePOM(t), repository.Config{
		Name: repository.LocalName, Location: t.TempDir(), LayoutName: "default",
	})
	require.ErrorIs(t, err, context.Canceled)

	projection := eventstore.NewPublishHistoryProjection(store, 10)
	require.NoError(t, projection.Rebuild(context.Background()))
	rec, found := projection.GetPublish("publish-canceled")
	require.True(t, found, "events are appended after cancellation")
	assert.Equal(t, eventstore.StatusFailed, rec.Status)
}

func TestPublish_CoordinatesCannotEscapeRepository(t *testing.T) {
	f := newFixture(t, nil)
	root := t.TempDir()
	repo := filepath.Join(root, "a", "b", "repo")
	pom := filepath.Join(t.TempDir(), "pom.xml")
	require.NoError(t, os.WriteFile(pom, []byte(`<project>
  <groupId>org.example</groupId>
  <artifactId>../../../../escaped</artifactId>
  <version>1.0</version>
</project>`), 0o600))

	_, err := f.pub.Publish(context.Background(), pom, repository.Config{
		Name: repository.LocalName, Location: repo, LayoutName: "default",
	})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryDeploy))

	var files []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}
		return err
	}))
	assert.Empty(t, files)
}
