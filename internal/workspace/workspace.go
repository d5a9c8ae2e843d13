package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/localpublish/internal/logfields"
)

const dirPrefix = "localpublish-"

// Manager owns one publish scratch directory.
type Manager struct {
	baseDir string
	dir     string
	// fixed managers reuse baseDir/subdir across publishes and never remove it.
	fixed bool
}

// NewManager returns a Manager that creates a fresh directory under baseDir
// for every Create and removes it on Cleanup.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager returns a Manager bound to baseDir/subdirName. Watch
// mode uses it so repeated publishes share one scratch directory.
func NewPersistentManager(baseDir, subdirName string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if subdirName == "" {
		subdirName = "working"
	}
	return &Manager{
		baseDir: baseDir,
		dir:     filepath.Join(baseDir, subdirName),
		fixed:   true,
	}
}

// Create makes the scratch directory available.
func (m *Manager) Create() error {
	if m.fixed {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace directory: %w", err)
		}
		slog.Debug("Using persistent workspace", logfields.Path(m.dir))
		return nil
	}

	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base directory: %w", err)
	}

	// the random suffix separates publishes started in the same second
	stamp := time.Now().Format("20060102-150405")
	dir, err := os.MkdirTemp(m.baseDir, dirPrefix+stamp+"-")
	if err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	m.dir = dir
	slog.Debug("Created workspace", logfields.Path(dir))
	return nil
}

// GetPath returns the scratch directory.
func (m *Manager) GetPath() string {
	return m.dir
}

// Cleanup removes a per-publish directory. Persistent directories are kept.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if m.fixed {
		slog.Debug("Keeping persistent workspace", logfields.Path(m.dir))
		return nil
	}

	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}
