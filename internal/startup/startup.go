// SPDX-License-Identifier: LGPL-2.1-only

// Package startup implements the state machine that brings the system up
// from persisted on-disk state to a validated running configuration,
// falling back to failsafe on any failure along the way.
package startup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/persist"
	"github.com/yconfd/yconfd/internal/plugin"
	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/internal/txn"
)

// Mode selects how startup acquires its source configuration.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeInit     Mode = "init"
	ModeStartup  Mode = "startup"
	ModeRunning  Mode = "running"
	ModeFailsafe Mode = "failsafe"
)

// Result reports how startup concluded, for the daemon's exit-status and
// logging.
type Result struct {
	Ready        bool
	UsedFailsafe bool
	Err          error
}

// Orchestrator runs the state machine once at process start.
type Orchestrator struct {
	Engine  *txn.Engine
	Store   *tree.Store
	Persist *persist.Store
	Log     zerolog.Logger
}

func New(e *txn.Engine, s *tree.Store, p *persist.Store, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{Engine: e, Store: s, Persist: p, Log: log.With().Str("component", "startup").Logger()}
}

// Run executes the startup-orchestration state machine. extraXML is
// the optional `-c <file>` content, already parsed into an edit tree by the
// caller (its own parsing is outside this package's concern); it may be
// nil. resetOutput is whatever the plugin registry's reset hooks produced,
// to be merged alongside extraXML per the Open Question (b): this
// merge runs outside commit callbacks, exactly as in the source system.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, extraXML *tree.EditNode, resetOutput *tree.EditNode) Result {
	switch mode {
	case ModeFailsafe:
		return o.runFailsafe(ctx)
	case ModeRunning:
		// Running is already populated (e.g. warm restart); nothing to load.
		return Result{Ready: true}
	}

	if !o.Persist.Exists(tree.Startup) {
		o.Log.Info().Msg("no persisted startup found; creating empty startup")
		o.Store.Create(tree.Startup)
		if err := o.Persist.Store(tree.Startup, &tree.EditNode{Name: tree.QName{Local: "config"}}); err != nil {
			o.Log.Error().Err(err).Msg("failed to persist empty startup")
		}
	} else {
		loaded, err := o.Persist.Load(tree.Startup)
		if err != nil {
			o.Log.Error().Err(err).Msg("failed to load persisted startup")
			return o.runFailsafe(ctx)
		}
		o.Store.Create(tree.Startup)
		o.Store.Replace(tree.Startup, tree.FromEditNode(loaded))
	}

	o.Store.Create(tree.Running)
	txnResult, errs := o.Engine.Commit(ctx, tree.Startup, tree.Running, nil)
	if len(errs) > 0 || txnResult.Outcome != txn.OK {
		o.Log.Error().Int("errors", len(errs)).Msg("startup commit failed; falling back to failsafe")
		return o.runFailsafe(ctx)
	}

	return o.mergeExtras(ctx, extraXML, resetOutput)
}

// mergeExtras merges extraXML and resetOutput into a tmp datastore,
// validates it, and merges the result into running — without running
// commit callbacks, and the Open Question (b) it flags:
// application state can diverge from running as a result. This is
// deliberate and preserved unchanged from the source behavior.
func (o *Orchestrator) mergeExtras(ctx context.Context, extraXML, resetOutput *tree.EditNode) Result {
	if extraXML == nil && resetOutput == nil {
		return Result{Ready: true}
	}

	o.Store.Create(tree.Tmp)
	o.Store.Reset(tree.Tmp)
	if resetOutput != nil {
		for _, c := range resetOutput.Children {
			if err := o.Store.Put(tree.Tmp, tree.OpMerge, &tree.EditNode{Children: []*tree.EditNode{c}}, "startup"); err != nil {
				return o.runFailsafe(ctx)
			}
		}
	}
	if extraXML != nil {
		for _, c := range extraXML.Children {
			if err := o.Store.Put(tree.Tmp, tree.OpMerge, &tree.EditNode{Children: []*tree.EditNode{c}}, "startup"); err != nil {
				return o.runFailsafe(ctx)
			}
		}
	}

	frag, err := o.Store.Get(tree.Tmp, "")
	if err != nil {
		return o.runFailsafe(ctx)
	}
	merged := frag.Export()
	if errs := o.Engine.Validator.Validate(merged, o.Engine.Schema); len(errs) > 0 {
		o.Log.Error().Int("errors", len(errs)).Msg("extra-xml/reset merge failed validation")
		return o.runFailsafe(ctx)
	}

	if err := o.Store.Put(tree.Running, tree.OpMerge, merged, "startup"); err != nil {
		o.Log.Error().Err(err).Msg("failed to merge extras into running")
		return o.runFailsafe(ctx)
	}

	return Result{Ready: true}
}

// runFailsafe implements the failsafe recovery path: snapshot running to
// tmp, reset running, commit failsafe into running. If that
// commit fails, restore from the backup and fail fatally. If failsafe does
// not exist, fail fatally immediately.
func (o *Orchestrator) runFailsafe(ctx context.Context) Result {
	if !o.Store.Exists(tree.Failsafe) && !o.Persist.Exists(tree.Failsafe) {
		return Result{Ready: false, Err: fmt.Errorf("startup failed and no failsafe datastore is available")}
	}
	if !o.Store.Exists(tree.Failsafe) {
		loaded, err := o.Persist.Load(tree.Failsafe)
		if err != nil {
			return Result{Ready: false, Err: fmt.Errorf("failed to load failsafe datastore: %w", err)}
		}
		o.Store.Create(tree.Failsafe)
		o.Store.Replace(tree.Failsafe, tree.FromEditNode(loaded))
	}

	o.Store.Create(tree.Running)
	o.Store.Copy(tree.Running, tree.Tmp)
	o.Store.Reset(tree.Running)

	result, errs := o.Engine.Commit(ctx, tree.Failsafe, tree.Running, nil)
	if len(errs) > 0 || result.Outcome != txn.OK {
		o.Log.Error().Msg("failsafe commit failed; restoring previous running and exiting fatally")
		o.Store.Copy(tree.Tmp, tree.Running)
		return Result{Ready: false, Err: fmt.Errorf("failsafe commit failed: %v", mgmterror.List(errs))}
	}

	o.Log.Warn().Msg("daemon started in failsafe mode; running now equals failsafe")
	return Result{Ready: true, UsedFailsafe: true}
}

// BuildResetOutput runs every registered plugin's Reset hook against
// target and returns the first hook error, if any. It never returns a tree:
// the returned *tree.EditNode is always nil.
func BuildResetOutput(ctx context.Context, reg *plugin.Registry, target string) (*tree.EditNode, error) {
	// Reset hooks act on the target datastore directly rather than
	// returning a tree, so there is nothing further to merge; reset's effect
	// is observed through target rather than a return value.
	if err := reg.RunReset(ctx, target); err != nil {
		return nil, err
	}
	return nil, nil
}
