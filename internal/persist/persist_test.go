// SPDX-License-Identifier: LGPL-2.1-only

package persist

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yconfd/yconfd/internal/tree"
)

func TestStoreLoadRoundTrips(t *testing.T) {
	// persisted running file round-trips: load→serialize equals what was
	// written.
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())

	doc := tree.BuildEdit(map[string]string{
		"interfaces/interface[name='eth0']/name": "eth0",
		"interfaces/interface[name='eth0']/mtu":  "1500",
	})
	require.Nil(t, s.Store(tree.Running, doc))

	original, reserialized, err := s.RoundTrip(tree.Running)
	require.Nil(t, err)
	require.Equal(t, string(original), string(reserialized))
}

func TestLoadOfAbsentFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	got, err := s.Load(tree.Startup)
	require.Nil(t, err)
	require.Empty(t, got.Children)
}

func TestResetTruncatesButKeepsFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	require.Nil(t, s.Store(tree.Running, tree.BuildEdit(map[string]string{"foo": "1"})))
	require.Nil(t, s.Reset(tree.Running))
	require.True(t, s.Exists(tree.Running))
	got, err := s.Load(tree.Running)
	require.Nil(t, err)
	require.Empty(t, got.Children)
}

func TestFailedStoreLeavesPreviousFileIntact(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission enforcement is bypassed for root")
	}
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	require.Nil(t, s.Store(tree.Running, tree.BuildEdit(map[string]string{"foo": "1"})))
	before, _ := s.Load(tree.Running)

	require.NoError(t, os.Chmod(dir, 0o500))
	defer os.Chmod(dir, 0o750)

	err := s.Store(tree.Running, tree.BuildEdit(map[string]string{"foo": "2"}))
	require.NotNil(t, err)

	require.NoError(t, os.Chmod(dir, 0o750))
	after, _ := s.Load(tree.Running)
	require.Equal(t, before.Children[0].Body, after.Children[0].Body)
}
