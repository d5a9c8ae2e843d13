// Package deploy holds the single-use operation that installs one descriptor
// (and its artifacts) into a local repository.
//
// An Operation moves through a fixed lifecycle:
//
//	Unconfigured -> Configured -> Executed -> Succeeded | Failed
//
// The repository handle is resolved lazily inside Execute, so a layout
// that cannot be resolved only surfaces once execution starts.
package deploy

import (
	"context"
	"fmt"
	"sync"

	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"git.home.luguber.info/inful/localpublish/internal/repository"
)

// Target is the destination data injected by PostConfigure.
type Target struct {
	Location   string
	LayoutName string
}

// HandleResolver turns a configured target into a ready-to-write handle.
type HandleResolver func(target Target) (*repository.LocalHandle, error)

// Operation installs one descriptor. It is not reusable.
type Operation struct {
	descriptor string
	resolve    HandleResolver
	engine     Engine

	mu         sync.Mutex
	state      State
	target     Target
	artifacts  []Artifact
	stagingDir string
	handle     *repository.LocalHandle
	report     *Report
	err        error
}

// NewOperation binds an operation to descriptor. resolve is invoked once,
// during Execute; engine performs the placement.
func NewOperation(descriptor string, resolve HandleResolver, engine Engine) *Operation {
	return &Operation{
		descriptor: descriptor,
		resolve:    resolve,
		engine:     engine,
		state:      StateUnconfigured,
	}
}

// Descriptor returns the descriptor path the operation is bound to.
func (op *Operation) Descriptor() string { return op.descriptor }

// State returns the current lifecycle state.
func (op *Operation) State() State {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

// Configure stores the target. It may be called again before Execute to
// replace the target.
func (op *Operation) Configure(target Target) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if err := op.transition(StateConfigured); err != nil {
		return err
	}
	op.target = target
	return nil
}

// Target returns the configured target and whether one was set.
func (op *Operation) Target() (Target, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.target, op.state != StateUnconfigured
}

// AddArtifacts attaches binary outputs. Only allowed before Execute.
func (op *Operation) AddArtifacts(artifacts ...Artifact) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.state != StateUnconfigured && op.state != StateConfigured {
		return perrors.MisuseError(fmt.Sprintf("cannot add artifacts to a %s operation", op.state))
	}
	op.artifacts = append(op.artifacts, artifacts...)
	return nil
}

// Artifacts returns a copy of the attached artifacts.
func (op *Operation) Artifacts() []Artifact {
	op.mu.Lock()
	defer op.mu.Unlock()
	return append([]Artifact(nil), op.artifacts...)
}

// SetStagingDir sets the scratch directory handed to the engine.
func (op *Operation) SetStagingDir(dir string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.stagingDir = dir
}

// Execute resolves the repository handle and delegates placement to the
// engine. It may be called at most once, and only on a configured operation.
//
// A handle resolution failure is returned as-is (a layout error); an engine
// failure is wrapped in a deploy error whose cause is the engine's error.
func (op *Operation) Execute(ctx context.Context) error {
	op.mu.Lock()
	switch state := op.state; {
	case state == StateUnconfigured:
		op.mu.Unlock()
		return perrors.MisuseError("execute called before the operation was configured")
	case state.IsTerminal():
		op.mu.Unlock()
		return perrors.MisuseError(fmt.Sprintf("execute called on an operation that already %s", state))
	case state == StateExecuted:
		op.mu.Unlock()
		return perrors.MisuseError("execute called while the operation is running")
	}
	if err := op.transition(StateExecuted); err != nil {
		op.mu.Unlock()
		return err
	}
	target := op.target
	req := InstallRequest{
		Descriptor: op.descriptor,
		Artifacts:  append([]Artifact(nil), op.artifacts...),
		StagingDir: op.stagingDir,
	}
	op.mu.Unlock()

	if op.resolve == nil || op.engine == nil {
		return op.finish(nil, nil, perrors.MisuseError("operation has no handle resolver or engine"))
	}

	handle, err := op.resolve(target)
	if err != nil {
		if _, ok := perrors.As(err); !ok {
			err = perrors.LayoutResolutionError(target.LayoutName, err)
		}
		return op.finish(nil, nil, err)
	}

	req.Handle = handle
	report, err := op.engine.Install(ctx, req)
	if err != nil {
		return op.finish(handle, nil, perrors.DeployExecutionError(err))
	}
	return op.finish(handle, report, nil)
}

func (op *Operation) finish(handle *repository.LocalHandle, report *Report, err error) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	op.handle = handle
	op.report = report
	op.err = err
	next := StateSucceeded
	if err != nil {
		next = StateFailed
	}
	if terr := op.transition(next); terr != nil {
		return terr
	}
	return err
}

// Handle returns the handle resolved during Execute, or nil.
func (op *Operation) Handle() *repository.LocalHandle {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.handle
}

// Report returns the engine's report after a successful Execute.
func (op *Operation) Report() *Report {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.report
}

// Err returns the error Execute finished with.
func (op *Operation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// transition must be called with op.mu held.
func (op *Operation) transition(to State) error {
	if !isAllowedTransition(op.state, to) {
		return perrors.MisuseError(fmt.Sprintf("disallowed transition %s -> %s", op.state, to))
	}
	op.state = to
	return nil
}
