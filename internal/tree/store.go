// SPDX-License-Identifier: LGPL-2.1-only

package tree

import (
	"sort"
	"sync"

	"github.com/yconfd/yconfd/internal/mgmterror"
)

// Name is a datastore name drawn from the fixed set of named datastores.
type Name string

const (
	Running   Name = "running"
	Candidate Name = "candidate"
	Startup   Name = "startup"
	Failsafe  Name = "failsafe"
	Tmp       Name = "tmp"
)

// State is a datastore's lifecycle state.
type State int

const (
	StateAbsent State = iota
	StateEmpty
	StatePopulated
)

// Store holds the set of named datastores for one engine instance. All
// operations are safe for concurrent use; callers needing atomicity across
// several operations must take a transaction lock themselves (that is the
// engine's job, not the store's).
type Store struct {
	mu    sync.RWMutex
	trees map[Name]*Arena
}

func NewStore() *Store {
	return &Store{trees: make(map[Name]*Arena)}
}

// Exists reports whether the named datastore has been created.
func (s *Store) Exists(name Name) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.trees[name]
	return ok
}

// State reports the datastore's lifecycle state.
func (s *Store) State(name Name) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.trees[name]
	if !ok {
		return StateAbsent
	}
	if a.IsEmpty() {
		return StateEmpty
	}
	return StatePopulated
}

// Create creates an empty tree for the named datastore. It is idempotent:
// creating an already-present datastore is a no-op.
func (s *Store) Create(name Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trees[name]; !ok {
		s.trees[name] = NewArena()
	}
}

// Delete removes the named datastore entirely (it becomes absent).
func (s *Store) Delete(name Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trees, name)
}

// arena returns the arena for name, creating it lazily is NOT done here:
// callers must Create() first, matching the explicit lifecycle.
func (s *Store) arena(name Name) (*Arena, *mgmterror.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.trees[name]
	if !ok {
		return nil, mgmterror.NewMissingElementError(string(name))
	}
	return a, nil
}

// Get returns a fragment of the named datastore. An empty xpath returns the
// whole tree. A non-matching xpath returns an empty result, never an error.
func (s *Store) Get(name Name, xpath string) (*Fragment, *mgmterror.Error) {
	a, err := s.arena(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := selectPath(a, a.root, xpath)
	return &Fragment{arena: a, roots: matches}, nil
}

// Fragment is a read-only view over a subset of an arena's nodes, returned
// by Get and consumed by serializers (internal/persist) and diffing
// (internal/txn).
type Fragment struct {
	arena *Arena
	roots []handle
}

func (f *Fragment) Empty() bool { return f == nil || len(f.roots) == 0 }

// exists reports whether the node addressed by path (matched by qualified
// name only, one step per element) is present in a.
func (s *Store) exists(a *Arena, path []QName) bool {
	h := a.root
	for _, q := range path {
		child := findChild(a, h, q)
		if child == noHandle {
			return false
		}
		h = child
	}
	return true
}

func findChild(a *Arena, parent handle, name QName) handle {
	p := a.get(parent)
	if p == nil {
		return noHandle
	}
	for _, c := range p.children {
		if a.get(c).name == name {
			return c
		}
	}
	return noHandle
}

// Copy atomically replaces dst's contents with a clone of src's. Any
// previous dst contents are discarded.
func (s *Store) Copy(src, dst Name) *mgmterror.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.trees[src]
	if !ok {
		return mgmterror.NewMissingElementError(string(src))
	}
	s.trees[dst] = a.Clone()
	return nil
}

// Reset truncates the named datastore to empty in place, keeping it present.
func (s *Store) Reset(name Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[name] = NewArena()
}

// Snapshot returns a cloned arena for name, used by the transaction engine
// to capture the "original" tree before a commit.
func (s *Store) Snapshot(name Name) *Arena {
	s.mu.RLock()
	a, ok := s.trees[name]
	s.mu.RUnlock()
	if !ok {
		return NewArena()
	}
	return a.Clone()
}

// Replace installs arena as the contents of name, used by the engine to
// commit a candidate or to roll back to a snapshot.
func (s *Store) Replace(name Name, a *Arena) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[name] = a
}

// sortedKeys is a small helper used by export to produce
// stable iteration order for map-typed attrs without affecting child order:
// containers' order is insignificant but list order must be preserved.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
