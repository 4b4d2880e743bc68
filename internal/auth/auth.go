// SPDX-License-Identifier: LGPL-2.1-only

// Package auth defines the pluggable authenticator collaborator the core
// engine treats as out of scope: it only consumes authenticated/denied.
package auth

import "context"

// Authenticator returns whether sessionID is authenticated to act at all;
// it does not perform authorization of individual operations.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionID string) bool
}

// AllowAll is the reference implementation used when no external
// authenticator is wired in (e.g. local development, or transports like a
// Unix socket where peer credentials are trusted implicitly).
type AllowAll struct{}

func (AllowAll) Authenticate(context.Context, string) bool { return true }

// Static authenticates only sessions present in Allowed, used by tests and
// by simple deployments that pre-provision a fixed session allowlist.
type Static struct {
	Allowed map[string]bool
}

func (s Static) Authenticate(_ context.Context, sessionID string) bool {
	return s.Allowed[sessionID]
}
