// SPDX-License-Identifier: LGPL-2.1-only

package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCommitStopsAtFirstFailure(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.Register(&Callback{Name: "a", Commit: func(context.Context, *Transaction) error {
		order = append(order, "a")
		return nil
	}})
	r.Register(&Callback{Name: "b", Commit: func(context.Context, *Transaction) error {
		order = append(order, "b")
		return errors.New("boom")
	}})
	r.Register(&Callback{Name: "c", Commit: func(context.Context, *Transaction) error {
		order = append(order, "c")
		return nil
	}})

	out := r.RunCommit(context.Background(), &Transaction{})
	require.Error(t, out.Err)
	require.Equal(t, "b", out.Failed.Name)
	require.Equal(t, []string{"a", "b"}, order)
	require.Len(t, out.Succeeded, 1)
	require.Equal(t, "a", out.Succeeded[0].Name)
}

func TestRunRevertRunsInReverseOfSucceeded(t *testing.T) {
	r := NewRegistry()
	var order []string
	a := &Callback{Name: "a", Revert: func(context.Context, *Transaction, string) error {
		order = append(order, "a")
		return nil
	}}
	b := &Callback{Name: "b", Revert: func(context.Context, *Transaction, string) error {
		order = append(order, "b")
		return nil
	}}
	r.Register(a)
	r.Register(b)

	errs := r.RunRevert(context.Background(), &Transaction{}, "abort", []*Callback{a, b})
	require.Empty(t, errs)
	require.Equal(t, []string{"b", "a"}, order)
}

func TestRunWithTimeoutCatchesPanic(t *testing.T) {
	r := NewRegistry()
	cb := &Callback{Name: "panics"}
	err := r.runWithTimeout(cb, func() error { panic("oops") })
	require.Error(t, err)
}
