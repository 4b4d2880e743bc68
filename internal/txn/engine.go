// SPDX-License-Identifier: LGPL-2.1-only

package txn

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yconfd/yconfd/internal/audit"
	"github.com/yconfd/yconfd/internal/metrics"
	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/persist"
	"github.com/yconfd/yconfd/internal/plugin"
	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/internal/validate"
)

// Phase is one of the transaction's lifecycle phases.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseValidate   Phase = "validate"
	PhaseCommit     Phase = "commit"
	PhaseCommitDone Phase = "commit-done"
	PhaseRevert     Phase = "revert"
	PhaseEnd        Phase = "end"
)

// Outcome is the transaction's terminal result.
type Outcome string

const (
	Pending Outcome = "pending"
	OK      Outcome = "ok"
	Invalid Outcome = "invalid"
	Failed  Outcome = "failed"
)

// Transaction is the source/target datastore, candidate and original
// trees, phase and outcome tuple. It is
// created by the Engine, unique in the process at any given time
// (serialized by the process-wide lock), and destroyed after either
// commit-done or revert completes.
type Transaction struct {
	ID        string
	Source    tree.Name
	Target    tree.Name
	Candidate *tree.EditNode
	Original  *tree.EditNode
	Phase     Phase
	Outcome   Outcome
	diff      *Diff
}

// SchemaPathOf resolves sn, the schema root, against one of the diff's
// changes for callers that need the tagged schema node; kept as a free
// function (rather than storing *schema.Node on Change) so package tree
// never needs to import package schema.
func SchemaPathOf(root *schema.Node, path string) *schema.Node {
	// path is of the form "/a/b[k=v]/c"; strip predicates and walk by
	// local element name only.
	cur := root
	for _, step := range splitPath(path) {
		if cur == nil {
			return nil
		}
		cur = cur.Child(step)
	}
	return cur
}

func splitPath(path string) []string {
	var out []string
	start := 0
	depth := 0
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '/':
			if depth == 0 {
				if i > start {
					out = append(out, stripPredicate(path[start:i]))
				}
				start = i + 1
			}
		}
	}
	if start < len(path) {
		out = append(out, stripPredicate(path[start:]))
	}
	return out
}

func stripPredicate(step string) string {
	for i := 0; i < len(step); i++ {
		if step[i] == '[' {
			return step[:i]
		}
	}
	return step
}

// Engine drives the commit pipeline. It is the explicit handle
// threaded through the dispatcher and RPC handlers in place of the
// legacy daemon's process-wide globals.
type Engine struct {
	Store     *tree.Store
	Persist   *persist.Store
	Registry  *plugin.Registry
	Validator *validate.Validator
	Schema    *schema.Node
	Audit     *audit.Store
	Metrics   *metrics.Registry
	Log       zerolog.Logger

	lock             txnLock
	failsafeRequired bool
}

func New(store *tree.Store, p *persist.Store, reg *plugin.Registry, v *validate.Validator, sch *schema.Node, log zerolog.Logger) *Engine {
	return &Engine{
		Store:     store,
		Persist:   p,
		Registry:  reg,
		Validator: v,
		Schema:    sch,
		Log:       log.With().Str("component", "txn").Logger(),
	}
}

// FailsafeRequired reports whether a prior revert failure marked the
// process for failsafe recovery on next start: a revert that itself fails
// is fatal.
func (e *Engine) FailsafeRequired() bool { return e.failsafeRequired }

func isPersistent(name tree.Name) bool {
	switch name {
	case tree.Running, tree.Startup, tree.Failsafe:
		return true
	default:
		return false
	}
}

// Commit drives source → target through init/validate/commit/commit-done.
// candidateOverride, if non-nil, is used as the candidate tree instead of
// loading it from the source datastore, so a caller can hand the engine a
// pre-built tree without a second named datastore round trip.
func (e *Engine) Commit(ctx context.Context, source, target tree.Name, candidateOverride *tree.EditNode) (*Transaction, mgmterror.List) {
	if !e.lock.tryAcquire() {
		return nil, mgmterror.List{mgmterror.NewInUseError("a commit is already in progress")}
	}
	defer e.lock.release()

	started := time.Now()
	txn := &Transaction{
		ID:     uuid.NewString(),
		Source: source,
		Target: target,
		Phase:  PhaseInit,
	}
	log := e.Log.With().Str("txn", txn.ID).Str("source", string(source)).Str("target", string(target)).Logger()

	originalArena := e.Store.Snapshot(target)
	txn.Original = tree.ExportArena(originalArena)

	if candidateOverride != nil {
		txn.Candidate = candidateOverride
	} else {
		frag, err := e.Store.Get(source, "")
		if err != nil {
			return e.finish(txn, Invalid, mgmterror.List{err}, started, log)
		}
		txn.Candidate = frag.Export()
	}

	d := computeDiff(txn.Original, txn.Candidate)
	txn.diff = d
	if d.Empty() {
		log.Debug().Msg("no-op commit, short-circuiting to ok")
		return e.finish(txn, OK, nil, started, log)
	}

	txn.Phase = PhaseValidate
	pluginTxn := &plugin.Transaction{Source: string(source), Target: string(target), Phase: string(PhaseValidate), Diff: &plugin.Diff{Opaque: d}}

	if err := e.Registry.RunPreValidate(ctx, pluginTxn); err != nil {
		log.Warn().Err(err).Msg("pre-validate failed")
		return e.finish(txn, Invalid, toErrList(err), started, log)
	}

	if errs := e.Validator.Validate(txn.Candidate, e.Schema); len(errs) > 0 {
		log.Warn().Int("errors", len(errs)).Msg("structural validation failed")
		return e.finish(txn, Invalid, errs, started, log)
	}

	if err := e.Registry.RunValidate(ctx, pluginTxn); err != nil {
		log.Warn().Err(err).Msg("application validate failed")
		return e.finish(txn, Invalid, toErrList(err), started, log)
	}

	// Freeze the diff: commit and revert see the end-of-validate diff
	// regardless of what a commit callback subsequently mutates.
	frozen := d.Clone()
	txn.Phase = PhaseCommit
	commitTxn := &plugin.Transaction{Source: string(source), Target: string(target), Phase: string(PhaseCommit), Diff: &plugin.Diff{Opaque: frozen}}

	commitStart := time.Now()
	result := e.Registry.RunCommit(ctx, commitTxn)
	e.Metrics.ObservePhase("commit", commitStart)

	if result.Err != nil {
		log.Error().Err(result.Err).Str("callback", result.Failed.Name).Msg("commit callback failed, reverting")
		txn.Phase = PhaseRevert
		revertTxn := &plugin.Transaction{Source: string(source), Target: string(target), Phase: string(PhaseRevert), Diff: &plugin.Diff{Opaque: frozen}}
		revertErrs := e.Registry.RunRevert(ctx, revertTxn, "abort", result.Succeeded)
		e.Store.Replace(target, originalArena)
		if len(revertErrs) > 0 {
			e.failsafeRequired = true
			log.Error().Int("revert_errors", len(revertErrs)).Msg("revert itself failed; marking process for failsafe recovery")
		}
		return e.finish(txn, Failed, toErrList(result.Err), started, log)
	}

	// Commit succeeded: install the candidate as the new target.
	e.Store.Replace(target, tree.FromEditNode(txn.Candidate))

	txn.Phase = PhaseCommitDone
	doneErrs := e.Registry.RunCommitDone(ctx, commitTxn)
	for _, err := range doneErrs {
		log.Error().Err(err).Msg("commit-done callback failed (best-effort, not reverted)")
	}

	if isPersistent(target) {
		if perr := e.Persist.Store(target, txn.Candidate); perr != nil {
			log.Error().Err(perr).Msg("failed to persist committed target")
		}
	}

	return e.finish(txn, OK, nil, started, log)
}

func (e *Engine) finish(txn *Transaction, outcome Outcome, errs mgmterror.List, started time.Time, log zerolog.Logger) (*Transaction, mgmterror.List) {
	reached := txn.Phase
	txn.Outcome = outcome
	txn.Phase = PhaseEnd
	e.Metrics.CountCommit(string(outcome))
	if e.Audit != nil {
		rec := audit.Record{
			ID: txn.ID, Source: string(txn.Source), Target: string(txn.Target),
			Phase: string(reached), Outcome: string(outcome),
			StartedAt: started, Duration: time.Since(started),
		}
		if len(errs) > 0 {
			rec.Error = errs.Error()
		}
		if err := e.Audit.Append(rec); err != nil {
			log.Warn().Err(err).Msg("failed to append audit record")
		}
	}
	log.Info().Str("outcome", string(outcome)).Dur("duration", time.Since(started)).Msg("commit finished")
	return txn, errs
}

func toErrList(err error) mgmterror.List {
	if err == nil {
		return nil
	}
	if me, ok := err.(*mgmterror.Error); ok {
		return mgmterror.List{me}
	}
	if list, ok := err.(mgmterror.List); ok {
		return list
	}
	return mgmterror.List{mgmterror.NewOperationFailedApplicationError(err.Error())}
}
