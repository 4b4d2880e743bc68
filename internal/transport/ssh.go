// SPDX-License-Identifier: LGPL-2.1-only

package transport

import (
	"context"
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/ssh"
)

// SSHListener wraps a net.Listener with an SSH server config and exposes
// the NETCONF "netconf" subsystem channel as a plain io.ReadWriteCloser
// stream, standing in for the NETCONF-over-SSH transport. The core only
// requires NETCONF-over-local-socket; SSH is one of the optional
// collaborator transports a deployment can add.
type SSHListener struct {
	listener net.Listener
	config   *ssh.ServerConfig
}

// NewSSHListener wraps an already-open listener (typically from Listen or
// ListenActivated) with SSH framing, authenticating connections against
// publicKeyCallback.
func NewSSHListener(inner net.Listener, hostKey ssh.Signer, publicKeyCallback func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error)) *SSHListener {
	cfg := &ssh.ServerConfig{PublicKeyCallback: publicKeyCallback}
	cfg.AddHostKey(hostKey)
	return &SSHListener{listener: inner, config: cfg}
}

// AcceptNetconfSubsystem blocks until a client opens the "netconf"
// subsystem on a new SSH connection, returning the resulting stream. Only
// the netconf subsystem is recognized; any other request is rejected.
func (l *SSHListener) AcceptNetconfSubsystem(ctx context.Context) (io.ReadWriteCloser, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, l.config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		for req := range requests {
			if req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "netconf" {
				req.Reply(true, nil)
				return &sshStream{Channel: channel, conn: sshConn}, nil
			}
			req.Reply(false, nil)
		}
	}
	sshConn.Close()
	return nil, fmt.Errorf("connection closed before netconf subsystem request")
}

type sshStream struct {
	ssh.Channel
	conn ssh.Conn
}

func (s *sshStream) Close() error {
	s.Channel.Close()
	return s.conn.Close()
}
