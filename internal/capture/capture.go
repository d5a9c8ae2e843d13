// Package capture redirects process-wide diagnostic output into a private
// buffer for the duration of a scope and restores the previous routing on exit.
//
// Routing covers both the slog default logger and the standard log package,
// because slog.SetDefault re-points log's writer whenever the new handler is
// not slog's built-in one.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
)

// ErrUnknownToken is returned when End receives a token that is not active.
var ErrUnknownToken = errors.New("capture token is not active")

// Facility is the scoped, nesting-safe capture contract consumed by the publisher.
type Facility interface {
	Begin() Token
	End(tok Token) (string, error)
}

// Token identifies one active capture scope.
type Token struct {
	id uint64
}

// Routing is a snapshot of where process diagnostics currently go.
type Routing struct {
	Logger *slog.Logger
	Writer io.Writer
	Flags  int
	Prefix string
}

// CurrentRouting returns the routing in effect right now.
func CurrentRouting() Routing {
	return Routing{
		Logger: slog.Default(),
		Writer: log.Writer(),
		Flags:  log.Flags(),
		Prefix: log.Prefix(),
	}
}

type frame struct {
	id     uint64
	prev   Routing
	buffer *syncBuffer
}

// SlogFacility swaps slog.Default for a buffer-backed logger.
type SlogFacility struct {
	mu    sync.Mutex
	level slog.Level
	next  uint64
	stack []frame
}

// NewSlogFacility returns a facility recording records at or above level.
func NewSlogFacility(level slog.Level) *SlogFacility {
	return &SlogFacility{level: level}
}

// Begin starts a capture scope nested inside any scope already active.
func (f *SlogFacility) Begin() Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	fr := frame{
		id:     f.next,
		prev:   CurrentRouting(),
		buffer: &syncBuffer{},
	}
	f.stack = append(f.stack, fr)

	slog.SetDefault(slog.New(slog.NewTextHandler(fr.buffer, &slog.HandlerOptions{Level: f.level})))
	return Token{id: fr.id}
}

// End closes the scope identified by tok and returns what it captured.
// Ending an outer scope also unwinds every scope opened after it; routing is
// restored to what it was when tok's scope began.
func (f *SlogFacility) End(tok Token) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := -1
	for i := len(f.stack) - 1; i >= 0; i-- {
		if f.stack[i].id == tok.id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("end capture %d: %w", tok.id, ErrUnknownToken)
	}

	fr := f.stack[idx]
	f.stack = f.stack[:idx]
	restore(fr.prev)
	return fr.buffer.String(), nil
}

// Depth reports the number of active scopes.
func (f *SlogFacility) Depth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stack)
}

func restore(r Routing) {
	slog.SetDefault(r.Logger)
	log.SetOutput(r.Writer)
	log.SetFlags(r.Flags)
	log.SetPrefix(r.Prefix)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
