package watch

import (
	"context"
	stdErrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"git.home.luguber.info/inful/localpublish/internal/deploy"
	"git.home.luguber.info/inful/localpublish/internal/install"
	"git.home.luguber.info/inful/localpublish/internal/layout"
	"git.home.luguber.info/inful/localpublish/internal/publisher"
	"git.home.luguber.info/inful/localpublish/internal/repository"
	"git.home.luguber.info/inful/localpublish/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	errs  []error
	done  chan struct{}
}

func newFakePublisher(errs ...error) *fakePublisher {
	return &fakePublisher{errs: errs, done: make(chan struct{}, 16)}
}

func (p *fakePublisher) PublishArtifacts(_ context.Context, _ publisher.Request) (*publisher.Result, error) {
	p.mu.Lock()
	p.calls++
	var err error
	if len(p.errs) > 0 {
		err, p.errs = p.errs[0], p.errs[1:]
	}
	p.mu.Unlock()
	p.done <- struct{}{}
	if err != nil {
		return nil, err
	}
	return &publisher.Result{}, nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func waitPublish(t *testing.T, p *fakePublisher) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for publish")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func startWatcher(t *testing.T, pub Publisher, req publisher.Request) (context.CancelFunc, <-chan error) {
	t.Helper()
	w, err := New(pub, req, testDebounce)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errc
}

func TestNew_TracksDescriptorAndArtifacts(t *testing.T) {
	dir := t.TempDir()
	req := publisher.Request{
		Descriptor: filepath.Join(dir, "pom.xml"),
		Artifacts:  []deploy.Artifact{{Path: filepath.Join(dir, "out", "a.jar"), Extension: "jar"}},
	}

	w, err := New(newFakePublisher(), req, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.ElementsMatch(t, []string{req.Descriptor, req.Artifacts[0].Path}, w.Files())
}

func TestWatcher_RepublishesOnChange(t *testing.T) {
	dir := t.TempDir()
	pom := filepath.Join(dir, "pom.xml")
	writeFile(t, pom, "v1")
	pub := newFakePublisher()

	cancel, errc := startWatcher(t, pub, publisher.Request{Descriptor: pom})
	waitPublish(t, pub)

	writeFile(t, pom, "v2")
	waitPublish(t, pub)
	assert.GreaterOrEqual(t, pub.count(), 2)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	pom := filepath.Join(dir, "pom.xml")
	writeFile(t, pom, "v0")
	pub := newFakePublisher()

	w, err := New(pub, publisher.Request{Descriptor: pom}, 200*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	waitPublish(t, pub)

	for i := range 5 {
		writeFile(t, pom, string(rune('a'+i)))
		time.Sleep(10 * time.Millisecond)
	}
	waitPublish(t, pub)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 2, pub.count())
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	pom := filepath.Join(dir, "pom.xml")
	writeFile(t, pom, "v1")
	pub := newFakePublisher()

	startWatcher(t, pub, publisher.Request{Descriptor: pom})
	waitPublish(t, pub)

	writeFile(t, filepath.Join(dir, "notes.txt"), "unrelated")
	time.Sleep(10 * testDebounce)
	assert.Equal(t, 1, pub.count())
}

func TestWatcher_ContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	pom := filepath.Join(dir, "pom.xml")
	writeFile(t, pom, "v1")
	pub := newFakePublisher(stdErrors.New("first publish fails"))

	var mu sync.Mutex
	var outcomes []error
	w, err := New(pub, publisher.Request{Descriptor: pom}, testDebounce)
	require.NoError(t, err)
	w.WithNotify(func(_ *publisher.Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, err)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitPublish(t, pub)
	writeFile(t, pom, "v2")
	waitPublish(t, pub)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(outcomes) >= 2
	}, 5*time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Error(t, outcomes[0])
	assert.NoError(t, outcomes[1])
}

func TestWatcher_RunTwice(t *testing.T) {
	dir := t.TempDir()
	pom := filepath.Join(dir, "pom.xml")
	writeFile(t, pom, "v1")
	pub := newFakePublisher()

	w, err := New(pub, publisher.Request{Descriptor: pom}, testDebounce)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	waitPublish(t, pub)

	assert.Error(t, w.Run(ctx))
}

func TestWatcher_RepublishesIntoRepository(t *testing.T) {
	work := t.TempDir()
	repo := t.TempDir()
	pom := filepath.Join(work, "pom.xml")
	writeFile(t, pom, `<project><groupId>org.example</groupId><artifactId>project</artifactId><version>1.0</version></project>`)

	pub := publisher.New(publisher.NewLocalStrategy(layout.DefaultRegistry(), install.NewEngine())).
		WithProvider(workspace.NewTempProvider(t.TempDir()))
	results := make(chan error, 8)
	w, err := New(pub, publisher.Request{
		Descriptor: pom,
		Repository: repository.Config{Name: repository.LocalName, Location: repo, LayoutName: "default"},
	}, testDebounce)
	require.NoError(t, err)
	w.WithNotify(func(_ *publisher.Result, err error) { results <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	select {
	case err := <-results:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial publish")
	}
	installed := filepath.Join(repo, "org", "example", "project", "1.0", "project-1.0.pom")
	assert.FileExists(t, installed)

	updated := `<project><groupId>org.example</groupId><artifactId>project</artifactId><version>1.0</version><name>x</name></project>`
	writeFile(t, pom, updated)
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(installed)
		return err == nil && string(data) == updated
	}, 5*time.Second, 20*time.Millisecond)
}
