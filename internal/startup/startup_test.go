// SPDX-License-Identifier: LGPL-2.1-only

package startup

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yconfd/yconfd/internal/metrics"
	"github.com/yconfd/yconfd/internal/persist"
	"github.com/yconfd/yconfd/internal/plugin"
	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/internal/txn"
	"github.com/yconfd/yconfd/internal/validate"
)

func newHarness(t *testing.T) (*Orchestrator, *tree.Store, *persist.Store) {
	store := tree.NewStore()
	p := persist.New(t.TempDir(), zerolog.Nop())
	reg := plugin.NewRegistry()
	v := validate.New(nil)
	sch := &schema.Node{Name: "config", Kind: schema.KindContainer,
		Children: []*schema.Node{{Name: "foo", Kind: schema.KindLeaf, Type: &schema.Type{Name: "string"}}}}
	e := txn.New(store, p, reg, v, sch, zerolog.Nop())
	e.Metrics = metrics.New(prometheus.NewRegistry())
	return New(e, store, p, zerolog.Nop()), store, p
}

func TestStartupEmpty(t *testing.T) {
	// no startup file, no failsafe -> startup created empty, running
	// empty, daemon READY.
	o, store, _ := newHarness(t)
	result := o.Run(context.Background(), ModeStartup, nil, nil)
	require.True(t, result.Ready)
	require.False(t, result.UsedFailsafe)
	require.True(t, store.Exists(tree.Startup))
	require.Equal(t, tree.StateEmpty, store.State(tree.Running))
}

func TestStartupValid(t *testing.T) {
	// startup contains <config><foo>1</foo></config>, validator accepts
	// -> running equals startup; state READY.
	o, store, p := newHarness(t)
	require.Nil(t, p.Store(tree.Startup, tree.BuildEdit(map[string]string{"foo": "1"})))

	result := o.Run(context.Background(), ModeStartup, nil, nil)
	require.True(t, result.Ready)
	require.False(t, result.UsedFailsafe)

	running, _ := store.Get(tree.Running, "")
	startupT, _ := store.Get(tree.Startup, "")
	require.True(t, tree.Equal(running.Export(), startupT.Export()))
}

func TestStartupInvalidFallsBackToFailsafe(t *testing.T) {
	// startup fails validation, failsafe contains
	// <config><foo>0</foo></config> -> running equals failsafe, READY in
	// failsafe mode.
	o, store, p := newHarness(t)
	// foo is a string leaf; feed it a list-shaped child to break structural
	// validation deterministically regardless of type looseness: use a
	// PreValidate rejector instead, which is guaranteed to fail regardless
	// of the minimal schema's leniency.
	o.Engine.Registry.Register(&plugin.Callback{
		Name: "reject-startup",
		PreValidate: func(ctx context.Context, txn *plugin.Transaction) error {
			if txn.Target == string(tree.Running) && txn.Source == string(tree.Startup) {
				return errStartupRejected
			}
			return nil
		},
	})
	require.Nil(t, p.Store(tree.Startup, tree.BuildEdit(map[string]string{"foo": "1"})))
	require.Nil(t, p.Store(tree.Failsafe, tree.BuildEdit(map[string]string{"foo": "0"})))

	result := o.Run(context.Background(), ModeStartup, nil, nil)
	require.True(t, result.Ready)
	require.True(t, result.UsedFailsafe)

	running, _ := store.Get(tree.Running, "")
	failsafe, _ := store.Get(tree.Failsafe, "")
	require.True(t, tree.Equal(running.Export(), failsafe.Export()))
}

var errStartupRejected = &rejectErr{}

type rejectErr struct{}

func (e *rejectErr) Error() string { return "startup rejected for test" }
