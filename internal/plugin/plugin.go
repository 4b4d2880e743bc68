// SPDX-License-Identifier: LGPL-2.1-only

// Package plugin implements an ordered registry of application callback
// capabilities, invoked in registration order during forward phases and in
// reverse registration order during revert.
package plugin

import (
	"context"
	"time"

	"github.com/yconfd/yconfd/internal/mgmterror"
)

// Phase identifies one callback hook.
type Phase int

const (
	PhaseReset Phase = iota
	PhasePreValidate
	PhaseValidate
	PhaseCommit
	PhaseCommitDone
	PhaseRevert
)

// Transaction is the subset of the transaction engine's state a callback
// observes and may mutate. It is defined here (rather than imported from
// package txn) to avoid an import cycle: txn depends on plugin, not the
// other way around.
type Transaction struct {
	Source, Target string
	Diff           *Diff
	Phase          string
}

// Diff is the set of added/removed/changed nodes a callback sees. Concrete
// shape lives in package txn; plugins only need read/write access to it,
// modeled here as an opaque pointer the callback is trusted to interpret
// via the txn package's own accessor functions.
type Diff struct {
	Opaque interface{}
}

// Callback is the set of phase hooks one application may implement. Every
// hook is optional; a nil func is simply not invoked.
type Callback struct {
	Name        string
	Reset       func(ctx context.Context, target string) error
	PreValidate func(ctx context.Context, txn *Transaction) error
	Validate    func(ctx context.Context, txn *Transaction) error
	Commit      func(ctx context.Context, txn *Transaction) error
	CommitDone  func(ctx context.Context, txn *Transaction) error
	Revert      func(ctx context.Context, txn *Transaction, reason string) error
	Timeout     time.Duration // 0 means DefaultTimeout
}

const DefaultTimeout = 60 * time.Second

// Registry holds the ordered sequence of registered capability records.
type Registry struct {
	callbacks []*Callback
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends cb to the registration order. Order matters: forward
// phases run in this order, revert runs in reverse.
func (r *Registry) Register(cb *Callback) {
	r.callbacks = append(r.callbacks, cb)
}

func (r *Registry) All() []*Callback {
	return append([]*Callback(nil), r.callbacks...)
}

func (r *Registry) timeout(cb *Callback) time.Duration {
	if cb.Timeout > 0 {
		return cb.Timeout
	}
	return DefaultTimeout
}

// runWithTimeout executes fn and treats exceeding cb's soft timeout as a
// callback failure.
func (r *Registry) runWithTimeout(cb *Callback, fn func() error) error {
	if fn == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- mgmterror.NewOperationFailedApplicationError("plugin callback panicked")
			}
		}()
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout(cb)):
		return mgmterror.NewOperationFailedApplicationError(cb.Name + ": callback timed out")
	}
}

// RunReset invokes every registered Reset hook in registration order.
func (r *Registry) RunReset(ctx context.Context, target string) error {
	for _, cb := range r.callbacks {
		if cb.Reset == nil {
			continue
		}
		if err := r.runWithTimeout(cb, func() error { return cb.Reset(ctx, target) }); err != nil {
			return err
		}
	}
	return nil
}

// RunPreValidate invokes every registered PreValidate hook in order,
// stopping at the first failure.
func (r *Registry) RunPreValidate(ctx context.Context, txn *Transaction) error {
	for _, cb := range r.callbacks {
		if cb.PreValidate == nil {
			continue
		}
		if err := r.runWithTimeout(cb, func() error { return cb.PreValidate(ctx, txn) }); err != nil {
			return err
		}
	}
	return nil
}

// RunValidate invokes every registered Validate hook in order.
func (r *Registry) RunValidate(ctx context.Context, txn *Transaction) error {
	for _, cb := range r.callbacks {
		if cb.Validate == nil {
			continue
		}
		if err := r.runWithTimeout(cb, func() error { return cb.Validate(ctx, txn) }); err != nil {
			return err
		}
	}
	return nil
}

// CommitOutcome reports which callbacks succeeded, for driving revert.
type CommitOutcome struct {
	Succeeded []*Callback
	Err       error
	Failed    *Callback
}

// RunCommit invokes every registered Commit hook in order, stopping at the
// first failure. It returns the ordered list of callbacks that succeeded so
// the caller can revert them in reverse order (E step 5).
func (r *Registry) RunCommit(ctx context.Context, txn *Transaction) CommitOutcome {
	var out CommitOutcome
	for _, cb := range r.callbacks {
		if cb.Commit == nil {
			out.Succeeded = append(out.Succeeded, cb)
			continue
		}
		if err := r.runWithTimeout(cb, func() error { return cb.Commit(ctx, txn) }); err != nil {
			out.Err = err
			out.Failed = cb
			return out
		}
		out.Succeeded = append(out.Succeeded, cb)
	}
	return out
}

// RunRevert invokes Revert on each of succeeded in reverse order, so that
// each plugin sees resources torn down after its dependents.
// Per-callback errors are collected but do not stop the sweep: a revert
// that fails at all is fatal at the engine level, and the engine needs to
// know about every failure, not just the first.
func (r *Registry) RunRevert(ctx context.Context, txn *Transaction, reason string, succeeded []*Callback) []error {
	var errs []error
	for i := len(succeeded) - 1; i >= 0; i-- {
		cb := succeeded[i]
		if cb.Revert == nil {
			continue
		}
		if err := r.runWithTimeout(cb, func() error { return cb.Revert(ctx, txn, reason) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// RunCommitDone invokes every registered CommitDone hook, best-effort:
// failures are returned for logging but never cause a revert.
func (r *Registry) RunCommitDone(ctx context.Context, txn *Transaction) []error {
	var errs []error
	for _, cb := range r.callbacks {
		if cb.CommitDone == nil {
			continue
		}
		if err := r.runWithTimeout(cb, func() error { return cb.CommitDone(ctx, txn) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
