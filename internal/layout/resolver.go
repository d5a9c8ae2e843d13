package layout

import (
	"fmt"
	"sort"
	"sync"

	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
)

// Resolver looks up a Strategy by name.
type Resolver interface {
	Resolve(name string) (Strategy, error)
}

// Registry is a Resolver backed by a name -> Strategy table.
// Registered strategies are shared by every caller that resolves them.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// DefaultRegistry returns a registry holding the built-in layouts.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []Strategy{Default(), Legacy(), Flat()} {
		// built-ins have distinct IDs
		_ = r.Register(s)
	}
	return r
}

// Register adds s under s.ID(). Names are unique.
func (r *Registry) Register(s Strategy) error {
	if s == nil || s.ID() == "" {
		return fmt.Errorf("layout strategy must have a non-empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[s.ID()]; exists {
		return fmt.Errorf("layout %q already registered", s.ID())
	}
	r.strategies[s.ID()] = s
	return nil
}

// Resolve returns the strategy registered under name. Lookup is exact and
// case-sensitive; unknown names yield a layout-category PublishError.
func (r *Registry) Resolve(name string) (Strategy, error) {
	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()

	if !ok {
		return nil, perrors.LayoutResolutionError(name, fmt.Errorf("no layout registered as %q (known: %v)", name, r.Names()))
	}
	return s, nil
}

// Names returns the registered layout names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
