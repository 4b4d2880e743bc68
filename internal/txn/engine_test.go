// SPDX-License-Identifier: LGPL-2.1-only

package txn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yconfd/yconfd/internal/metrics"
	"github.com/yconfd/yconfd/internal/persist"
	"github.com/yconfd/yconfd/internal/plugin"
	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/internal/validate"
)

func newTestEngine(t *testing.T) (*Engine, *tree.Store) {
	store := tree.NewStore()
	store.Create(tree.Running)
	store.Create(tree.Candidate)
	p := persist.New(t.TempDir(), zerolog.Nop())
	reg := plugin.NewRegistry()
	v := validate.New(nil)
	sch := &schema.Node{Name: "config", Kind: schema.KindContainer}
	e := New(store, p, reg, v, sch, zerolog.Nop())
	e.Metrics = metrics.New(prometheus.NewRegistry())
	return e, store
}

func TestCommitNoopShortCircuits(t *testing.T) {
	e, _ := newTestEngine(t)
	txn, errs := e.Commit(context.Background(), tree.Candidate, tree.Running, nil)
	require.Empty(t, errs)
	require.Equal(t, OK, txn.Outcome)
}

var errRejected = errors.New("rejected by policy")
var errCallbackFailed = errors.New("second callback failed")

func TestCommitInvalidLeavesTargetUnchanged(t *testing.T) {
	e, store := newTestEngine(t)
	require.Nil(t, store.Put(tree.Running, tree.OpMerge, tree.BuildEdit(map[string]string{"foo": "1"}), "tester"))
	require.Nil(t, store.Put(tree.Candidate, tree.OpMerge, tree.BuildEdit(map[string]string{"foo": "2"}), "tester"))

	e.Registry.Register(&plugin.Callback{
		Name: "rejector",
		PreValidate: func(ctx context.Context, txn *plugin.Transaction) error {
			return errRejected
		},
	})

	before, _ := store.Get(tree.Running, "")
	beforeExported := before.Export()

	txn, errs := e.Commit(context.Background(), tree.Candidate, tree.Running, nil)
	require.NotEmpty(t, errs)
	require.Equal(t, Invalid, txn.Outcome)

	after, _ := store.Get(tree.Running, "")
	require.True(t, tree.Equal(beforeExported, after.Export()))
}

func TestCommitRollbackInvokesFirstCallbacksRevertInReverseOrder(t *testing.T) {
	e, store := newTestEngine(t)
	require.Nil(t, store.Put(tree.Running, tree.OpMerge, tree.BuildEdit(map[string]string{"foo": "1"}), "tester"))
	require.Nil(t, store.Put(tree.Candidate, tree.OpMerge, tree.BuildEdit(map[string]string{"foo": "2"}), "tester"))

	var revertOrder []string
	var revertReason string
	e.Registry.Register(&plugin.Callback{
		Name:   "first",
		Commit: func(ctx context.Context, txn *plugin.Transaction) error { return nil },
		Revert: func(ctx context.Context, txn *plugin.Transaction, reason string) error {
			revertReason = reason
			revertOrder = append(revertOrder, "first")
			return nil
		},
	})
	e.Registry.Register(&plugin.Callback{
		Name: "second",
		Commit: func(ctx context.Context, txn *plugin.Transaction) error {
			return errCallbackFailed
		},
	})

	before, _ := store.Get(tree.Running, "")
	beforeExported := before.Export()

	txn, errs := e.Commit(context.Background(), tree.Candidate, tree.Running, nil)
	require.NotEmpty(t, errs)
	require.Equal(t, Failed, txn.Outcome)
	require.Equal(t, []string{"first"}, revertOrder)
	require.Equal(t, "abort", revertReason)

	after, _ := store.Get(tree.Running, "")
	require.True(t, tree.Equal(beforeExported, after.Export()))
}

func TestConcurrentCommitRejectedWithInUse(t *testing.T) {
	e, store := newTestEngine(t)
	require.Nil(t, store.Put(tree.Running, tree.OpMerge, tree.BuildEdit(map[string]string{"foo": "1"}), "tester"))
	require.Nil(t, store.Put(tree.Candidate, tree.OpMerge, tree.BuildEdit(map[string]string{"foo": "2"}), "tester"))

	release := make(chan struct{})
	entered := make(chan struct{})
	e.Registry.Register(&plugin.Callback{
		Name: "slow",
		Commit: func(ctx context.Context, txn *plugin.Transaction) error {
			close(entered)
			<-release
			return nil
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Commit(context.Background(), tree.Candidate, tree.Running, nil)
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first commit never reached its commit callback")
	}

	_, errs := e.Commit(context.Background(), tree.Candidate, tree.Running, nil)
	require.NotEmpty(t, errs)
	require.Equal(t, "in-use", string(errs[0].Tag))

	close(release)
	wg.Wait()
}
