// SPDX-License-Identifier: LGPL-2.1-only

// Package rpcengine implements , the RPC dispatcher: parsing
// requests, routing them to engine operations, formatting replies, and
// enforcing the per-datastore and per-session lock rules of
package rpcengine

import (
	"sync"

	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/tree"
)

// Session is one connected client's identity and held locks.
type Session struct {
	ID         string
	Privileged bool
	Autolock   bool
	heldLocks  map[tree.Name]bool
}

// SessionManager tracks connected sessions and the advisory per-datastore
// locks they hold.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[tree.Name]string // datastore -> holding session id
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		locks:    make(map[tree.Name]string),
	}
}

func (m *SessionManager) Open(id string, privileged, autolock bool) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{ID: id, Privileged: privileged, Autolock: autolock, heldLocks: make(map[tree.Name]bool)}
	m.sessions[id] = s
	return s
}

// Close releases all locks held by id and forgets the session, matching
// the "close-session releases all locks held by that session."
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseAllLocked(id)
	delete(m.sessions, id)
}

// Kill is permitted only to privileged sessions by the caller (this type
// does not itself check privilege; Dispatcher does).
// It revokes the target's locks exactly like Close.
func (m *SessionManager) Kill(id string) {
	m.Close(id)
}

func (m *SessionManager) releaseAllLocked(id string) {
	for ds, holder := range m.locks {
		if holder == id {
			delete(m.locks, ds)
		}
	}
	if s, ok := m.sessions[id]; ok {
		s.heldLocks = make(map[tree.Name]bool)
	}
}

// Lock acquires the advisory lock on name for session id. It fails with
// lock-denied if another session already holds it.
func (m *SessionManager) Lock(id string, name tree.Name) *mgmterror.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if holder, ok := m.locks[name]; ok && holder != id {
		return mgmterror.NewLockDeniedError(holder)
	}
	m.locks[name] = id
	if s, ok := m.sessions[id]; ok {
		s.heldLocks[name] = true
	}
	return nil
}

// Unlock releases name if held by id.
func (m *SessionManager) Unlock(id string, name tree.Name) *mgmterror.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	holder, ok := m.locks[name]
	if !ok {
		return mgmterror.NewOperationFailedApplicationError("datastore is not locked")
	}
	if holder != id {
		return mgmterror.NewLockDeniedError(holder)
	}
	delete(m.locks, name)
	if s, ok := m.sessions[id]; ok {
		delete(s.heldLocks, name)
	}
	return nil
}

// CheckWritable enforces the "in-use"/lock-required semantics: edit-config
// on a datastore locked by another session fails with in-use. When
// autolock mode is off, the editing session must itself hold the
// datastore's lock; an unlocked datastore does not grant implicit write
// access, since autolock mode being off means locking is mandatory.
func (m *SessionManager) CheckWritable(id string, name tree.Name, autolockMode bool) *mgmterror.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	holder, locked := m.locks[name]
	if !locked {
		if autolockMode {
			return nil
		}
		return mgmterror.NewOperationFailedApplicationError("edit-config requires holding the datastore's lock when autolock is off")
	}
	if holder == id {
		return nil
	}
	return mgmterror.NewInUseError("datastore is locked by another session")
}
