// SPDX-License-Identifier: LGPL-2.1-only

package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeIdempotence(t *testing.T) {
	// put(D, merge, e); put(D, merge, e) == put(D, merge, e)
	s := NewStore()
	s.Create("candidate")

	edit := BuildEdit(map[string]string{
		"interfaces/interface[name='eth0']/name":    "eth0",
		"interfaces/interface[name='eth0']/mtu":     "1500",
		"interfaces/interface[name='eth0']/address": "10.0.0.1",
	})

	require.Nil(t, s.Put(Candidate, OpMerge, edit, "tester"))
	once, err := s.Get(Candidate, "")
	require.Nil(t, err)
	onceExported := once.Export()

	require.Nil(t, s.Put(Candidate, OpMerge, edit, "tester"))
	twice, err := s.Get(Candidate, "")
	require.Nil(t, err)
	twiceExported := twice.Export()

	require.True(t, Equal(onceExported, twiceExported))
}

func TestCopyIsByteEquivalent(t *testing.T) {
	// copy(A, B); get(B) == get(A)
	s := NewStore()
	s.Create("candidate")
	edit := BuildEdit(map[string]string{"foo": "1"})
	require.Nil(t, s.Put(Candidate, OpMerge, edit, "tester"))

	require.Nil(t, s.Copy(Candidate, Running))
	a, _ := s.Get(Candidate, "")
	b, _ := s.Get(Running, "")
	require.True(t, Equal(a.Export(), b.Export()))
}

func TestCreateFailsIfExists(t *testing.T) {
	s := NewStore()
	s.Create("candidate")
	edit := BuildEdit(map[string]string{"foo": "1"})
	require.Nil(t, s.Put(Candidate, OpCreate, edit, "tester"))
	err := s.Put(Candidate, OpCreate, edit, "tester")
	require.NotNil(t, err)
	require.Equal(t, "data-exists", string(err.Tag))
}

func TestDeleteFailsIfMissing(t *testing.T) {
	s := NewStore()
	s.Create("candidate")
	edit := BuildEdit(map[string]string{"foo": "1"})
	err := s.Put(Candidate, OpDelete, edit, "tester")
	require.NotNil(t, err)
	require.Equal(t, "data-missing", string(err.Tag))
}

func TestRemoveIsSilentIfMissing(t *testing.T) {
	s := NewStore()
	s.Create("candidate")
	edit := BuildEdit(map[string]string{"foo": "1"})
	require.Nil(t, s.Put(Candidate, OpRemove, edit, "tester"))
}

func TestGetMissingDatastore(t *testing.T) {
	s := NewStore()
	_, err := s.Get(Running, "")
	require.NotNil(t, err)
	require.Equal(t, "missing-element", string(err.Tag))
}

func TestGetNonMatchingXPathIsEmptyNotError(t *testing.T) {
	s := NewStore()
	s.Create("candidate")
	require.Nil(t, s.Put(Candidate, OpMerge, BuildEdit(map[string]string{"foo": "1"}), "tester"))
	frag, err := s.Get(Candidate, "/does-not-exist")
	require.Nil(t, err)
	require.True(t, frag.Empty())
}

func TestBuildEditKeepsDistinctListEntriesByKeyValue(t *testing.T) {
	s := NewStore()
	s.Create("candidate")
	edit := BuildEdit(map[string]string{
		"interfaces/interface[name='eth0']/mtu": "1500",
		"interfaces/interface[name='eth1']/mtu": "9000",
	})
	require.Nil(t, s.Put(Candidate, OpMerge, edit, "tester"))

	frag, err := s.Get(Candidate, "/interfaces")
	require.Nil(t, err)
	exported := frag.Export()
	require.Len(t, exported.Children, 1)
	interfaces := exported.Children[0]
	require.Len(t, interfaces.Children, 2)

	eth0, err1 := s.Get(Candidate, "/interfaces/interface[name='eth0']")
	require.Nil(t, err1)
	require.Equal(t, "1500", childBody(eth0.arena, eth0.roots[0], "mtu"))

	eth1, err2 := s.Get(Candidate, "/interfaces/interface[name='eth1']")
	require.Nil(t, err2)
	require.Equal(t, "9000", childBody(eth1.arena, eth1.roots[0], "mtu"))
}

func TestListEntriesMatchByKeyNotPosition(t *testing.T) {
	s := NewStore()
	s.Create("candidate")
	edit := BuildEdit(map[string]string{
		"interfaces/interface[name='eth1']/name": "eth1",
		"interfaces/interface[name='eth1']/mtu":  "1500",
	})
	require.Nil(t, s.Put(Candidate, OpMerge, edit, "tester"))

	update := BuildEdit(map[string]string{
		"interfaces/interface[name='eth1']/mtu": "9000",
	})
	require.Nil(t, s.Put(Candidate, OpMerge, update, "tester"))

	frag, err := s.Get(Candidate, "/interfaces/interface[name='eth1']")
	require.Nil(t, err)
	require.False(t, frag.Empty())
	exported := frag.Export()
	require.Len(t, exported.Children, 1)
	require.Equal(t, "eth1", childBody(frag.arena, frag.roots[0], "name"))
	require.Equal(t, "9000", childBody(frag.arena, frag.roots[0], "mtu"))
}
