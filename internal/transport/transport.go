// SPDX-License-Identifier: LGPL-2.1-only

// Package transport implements the Listener collaborator: the dispatcher
// is transport-agnostic and only ever sees a net.Conn-shaped stream plus a
// session identity. This package supplies the concrete listeners the
// `-a UNIX|IPv4|IPv6 -u <addr>` flag surface selects between, plus a
// systemd socket-activation listener and an SSH subsystem listener
// standing in for NETCONF-over-SSH.
package transport

import (
	"context"
	"fmt"
	"net"

	systemdActivation "github.com/coreos/go-systemd/v22/activation"
)

// Kind selects the transport family, matching `-a UNIX|IPv4|IPv6`.
type Kind string

const (
	KindUnix Kind = "UNIX"
	KindIPv4 Kind = "IPv4"
	KindIPv6 Kind = "IPv6"
)

// Listen opens a listener for kind at addr. For KindUnix, addr is a
// filesystem path; for KindIPv4/IPv6 it is a host:port pair.
func Listen(kind Kind, addr string) (net.Listener, error) {
	switch kind {
	case KindUnix:
		return net.Listen("unix", addr)
	case KindIPv4:
		return net.Listen("tcp4", addr)
	case KindIPv6:
		return net.Listen("tcp6", addr)
	default:
		return nil, fmt.Errorf("unknown transport kind %q", kind)
	}
}

// ListenActivated returns the first socket handed to the process by
// systemd socket activation (LISTEN_FDS/LISTEN_PID), falling back to a
// plain Listen if no activated sockets are present.
func ListenActivated(fallbackKind Kind, fallbackAddr string) (net.Listener, error) {
	listeners, err := systemdActivation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("systemd activation: %w", err)
	}
	if len(listeners) > 0 {
		return listeners[0], nil
	}
	return Listen(fallbackKind, fallbackAddr)
}

// Conn is the minimal shape the RPC dispatcher's framing layer needs from
// an accepted connection, regardless of which Listener produced it.
type Conn interface {
	net.Conn
}

// Server accepts connections from a Listener and hands each to handle,
// which is expected to read framed requests and write framed replies until
// the peer disconnects (the NETCONF-over-local-socket framing, or
// RESTCONF's HTTP framing via a different Server implementation).
type Server struct {
	Listener net.Listener
	Handle   func(ctx context.Context, conn net.Conn)
}

// Serve accepts connections until ctx is cancelled or the listener errors.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Listener.Close()
	}()
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.Handle(ctx, conn)
	}
}
