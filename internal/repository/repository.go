// Package repository holds the value types describing publish destinations.
package repository

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/localpublish/internal/layout"
)

// LocalName is the fixed name of every handle produced for a local install.
const LocalName = "local"

// Config is the caller-supplied description of a destination repository.
// It carries no network or credential fields.
type Config struct {
	Name       string
	Location   string
	LayoutName string
}

// String returns a short human-readable form for logs.
func (c Config) String() string {
	name := c.Name
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("%s (%s, layout=%s)", name, c.Location, c.LayoutName)
}

// LocalHandle is the resolved, ready-to-write view of a local repository.
// A handle is built for one publish attempt and never persisted.
type LocalHandle struct {
	Name     string
	Location string
	Layout   layout.Strategy
}

// NewLocalHandle builds the handle for location using strategy.
// The location is kept exactly as given.
func NewLocalHandle(location string, strategy layout.Strategy) *LocalHandle {
	return &LocalHandle{
		Name:     LocalName,
		Location: location,
		Layout:   strategy,
	}
}

// LayoutID returns the ID of the handle's layout, or "" when none is set.
func (h *LocalHandle) LayoutID() string {
	if h == nil || h.Layout == nil {
		return ""
	}
	return h.Layout.ID()
}

// BaseDir converts the handle location into a filesystem directory.
// Both plain paths and file:// URLs are accepted.
func (h *LocalHandle) BaseDir() (string, error) {
	return BaseDir(h.Location)
}

// BaseDir converts a repository location into a filesystem directory.
func BaseDir(location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", fmt.Errorf("repository location is empty")
	}
	if !strings.HasPrefix(location, "file:") {
		return filepath.FromSlash(location), nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse repository location %q: %w", location, err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("repository location %q is not on the local host", location)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", fmt.Errorf("repository location %q has no path", location)
	}
	return filepath.FromSlash(p), nil
}
