// SPDX-License-Identifier: LGPL-2.1-only

package rpcengine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yconfd/yconfd/internal/auth"
	"github.com/yconfd/yconfd/internal/metrics"
	"github.com/yconfd/yconfd/internal/persist"
	"github.com/yconfd/yconfd/internal/plugin"
	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/internal/txn"
	"github.com/yconfd/yconfd/internal/validate"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	store := tree.NewStore()
	store.Create(tree.Candidate)
	store.Create(tree.Running)
	p := persist.New(t.TempDir(), zerolog.Nop())
	reg := plugin.NewRegistry()
	v := validate.New(nil)
	sch := &schema.Node{Name: "config", Kind: schema.KindContainer}
	e := txn.New(store, p, reg, v, sch, zerolog.Nop())
	e.Metrics = metrics.New(prometheus.NewRegistry())

	sessions := NewSessionManager()
	d := New(e, store, sessions, auth.AllowAll{}, zerolog.Nop())
	d.Metrics = e.Metrics
	return d
}

func TestLockContention(t *testing.T) {
	// S1 holds lock on candidate; S2 issues edit-config -> S2 gets
	// in-use; S1 unaffected.
	d := newTestDispatcher(t)
	d.Sessions.Open("s1", false, false)
	d.Sessions.Open("s2", false, false)

	lockResp := d.Dispatch(context.Background(), Request{SessionID: "s1", Method: MethodLock, Target: tree.Candidate})
	require.True(t, lockResp.OK)

	editResp := d.Dispatch(context.Background(), Request{
		SessionID: "s2", Method: MethodEditConfig, Target: tree.Candidate,
		DefaultOp: tree.OpMerge, Payload: tree.BuildEdit(map[string]string{"foo": "1"}),
	})
	require.False(t, editResp.OK)
	require.Equal(t, "in-use", string(editResp.Errors[0].Tag))

	s1Edit := d.Dispatch(context.Background(), Request{
		SessionID: "s1", Method: MethodEditConfig, Target: tree.Candidate,
		DefaultOp: tree.OpMerge, Payload: tree.BuildEdit(map[string]string{"foo": "1"}),
	})
	require.True(t, s1Edit.OK)
}

func TestCloseSessionReleasesLocks(t *testing.T) {
	d := newTestDispatcher(t)
	d.Sessions.Open("s1", false, false)
	d.Sessions.Open("s2", false, false)
	require.Nil(t, d.Sessions.Lock("s1", tree.Candidate))

	d.Dispatch(context.Background(), Request{SessionID: "s1", Method: MethodCloseSession})

	require.Nil(t, d.Sessions.Lock("s2", tree.Candidate))
	editResp := d.Dispatch(context.Background(), Request{
		SessionID: "s2", Method: MethodEditConfig, Target: tree.Candidate,
		DefaultOp: tree.OpMerge, Payload: tree.BuildEdit(map[string]string{"foo": "1"}),
	})
	require.True(t, editResp.OK)
}

func TestEditConfigRequiresLockWhenAutolockOff(t *testing.T) {
	d := newTestDispatcher(t)
	d.Sessions.Open("s1", false, false)

	editResp := d.Dispatch(context.Background(), Request{
		SessionID: "s1", Method: MethodEditConfig, Target: tree.Candidate,
		DefaultOp: tree.OpMerge, Payload: tree.BuildEdit(map[string]string{"foo": "1"}),
	})
	require.False(t, editResp.OK)

	require.Nil(t, d.Sessions.Lock("s1", tree.Candidate))
	editResp2 := d.Dispatch(context.Background(), Request{
		SessionID: "s1", Method: MethodEditConfig, Target: tree.Candidate,
		DefaultOp: tree.OpMerge, Payload: tree.BuildEdit(map[string]string{"foo": "1"}),
	})
	require.True(t, editResp2.OK)
}

func TestKillSessionRequiresPrivilege(t *testing.T) {
	d := newTestDispatcher(t)
	d.Sessions.Open("s1", false, false)
	d.Sessions.Open("victim", false, false)
	require.Nil(t, d.Sessions.Lock("victim", tree.Candidate))

	resp := d.Dispatch(context.Background(), Request{SessionID: "s1", Method: MethodKillSession, KillID: "victim"})
	require.False(t, resp.OK)
	require.Equal(t, "access-denied", string(resp.Errors[0].Tag))

	d.Sessions.Open("admin", true, false)
	resp2 := d.Dispatch(context.Background(), Request{SessionID: "admin", Method: MethodKillSession, KillID: "victim"})
	require.True(t, resp2.OK)
}

func TestGetConfigOnMissingDatastoreFails(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{SessionID: "s1", Method: MethodGetConfig, Source: tree.Startup})
	require.False(t, resp.OK)
	require.Equal(t, "missing-element", string(resp.Errors[0].Tag))
}
