package workspace

import (
	"fmt"
	"sync"
)

// Provider hands out scratch directories scoped to a single publish call.
type Provider interface {
	Acquire() (string, error)
	Release(dir string) error
}

// TempProvider is a Provider backed by ephemeral Managers under baseDir.
type TempProvider struct {
	baseDir string

	mu     sync.Mutex
	active map[string]*Manager
}

// NewTempProvider creates a provider rooted at baseDir (os.TempDir when empty).
func NewTempProvider(baseDir string) *TempProvider {
	return &TempProvider{
		baseDir: baseDir,
		active:  make(map[string]*Manager),
	}
}

// Acquire creates a fresh directory.
func (p *TempProvider) Acquire() (string, error) {
	m := NewManager(p.baseDir)
	if err := m.Create(); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.active[m.GetPath()] = m
	p.mu.Unlock()
	return m.GetPath(), nil
}

// Release removes a directory previously returned by Acquire.
func (p *TempProvider) Release(dir string) error {
	p.mu.Lock()
	m, ok := p.active[dir]
	delete(p.active, dir)
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("workspace %s was not acquired from this provider", dir)
	}
	return m.Cleanup()
}

// Active reports how many acquired directories have not been released.
func (p *TempProvider) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// PersistentProvider always returns the same directory and never removes it.
// Watch mode uses it so successive republishes share one staging area.
type PersistentProvider struct {
	manager *Manager
}

// NewPersistentProvider wraps a persistent Manager at baseDir/subdir.
func NewPersistentProvider(baseDir, subdir string) *PersistentProvider {
	return &PersistentProvider{manager: NewPersistentManager(baseDir, subdir)}
}

// Acquire ensures the persistent directory exists.
func (p *PersistentProvider) Acquire() (string, error) {
	if err := p.manager.Create(); err != nil {
		return "", err
	}
	return p.manager.GetPath(), nil
}

// Release is a no-op for persistent workspaces.
func (p *PersistentProvider) Release(dir string) error {
	if dir != p.manager.GetPath() {
		return fmt.Errorf("workspace %s was not acquired from this provider", dir)
	}
	return p.manager.Cleanup()
}
