// SPDX-License-Identifier: LGPL-2.1-only

// Package client is a Go client library for yconfd's RPC dispatcher: it
// dials the daemon's socket, frames requests/replies the same way the
// netconf package does on the server side, and exposes one typed method
// per RPC the dispatcher understands.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/netconf"
	"github.com/yconfd/yconfd/internal/rpcengine"
	"github.com/yconfd/yconfd/internal/tree"
)

// wireRequest/wireReply are the JSON envelope this client and a JSON-speaking
// dispatcher front-end exchange; it carries the same fields as
// rpcengine.Request/Response so no information is lost in translation.
type wireRequest struct {
	SessionID string         `json:"session_id"`
	Method    string         `json:"method"`
	Source    string         `json:"source,omitempty"`
	Target    string         `json:"target,omitempty"`
	DefaultOp string         `json:"default_op,omitempty"`
	Payload   *tree.EditNode `json:"payload,omitempty"`
	XPath     string         `json:"xpath,omitempty"`
	KillID    string         `json:"kill_id,omitempty"`
	Level     string         `json:"level,omitempty"`
	Stream    string         `json:"stream,omitempty"`
}

type wireReply struct {
	OK     bool              `json:"ok"`
	Data   *tree.EditNode    `json:"data,omitempty"`
	Errors []mgmterror.Error `json:"errors,omitempty"`
}

// Client is one session's connection to a running yconfd daemon.
type Client struct {
	conn      net.Conn
	r         *bufio.Reader
	sessionID string
	mode      netconf.Mode
}

// Dial connects to address over network ("unix" or "tcp") and opens a
// session identified by sessionID. If sessionID is empty a random one is
// generated.
func Dial(network, address, sessionID string) (*Client, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), sessionID: sessionID, mode: netconf.ModeChunked}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SessionID returns the session identity this client presents on every
// request.
func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) call(req wireRequest) (*wireReply, error) {
	req.SessionID = c.sessionID
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := netconf.WriteMessage(c.conn, c.mode, payload); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	raw, err := netconf.ReadMessage(c.r, c.mode)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	var rep wireReply
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if !rep.OK && len(rep.Errors) > 0 {
		return &rep, fmt.Errorf("%s: %s", rep.Errors[0].Tag, rep.Errors[0].Message)
	}
	return &rep, nil
}

// GetConfig retrieves source's subtree rooted at xpath (empty for the
// whole datastore).
func (c *Client) GetConfig(source tree.Name, xpath string) (*tree.EditNode, error) {
	rep, err := c.call(wireRequest{Method: string(rpcengine.MethodGetConfig), Source: string(source), XPath: xpath})
	if err != nil {
		return nil, err
	}
	return rep.Data, nil
}

// EditConfig applies payload to target under defaultOp.
func (c *Client) EditConfig(target tree.Name, defaultOp tree.Op, payload *tree.EditNode) error {
	_, err := c.call(wireRequest{
		Method:    string(rpcengine.MethodEditConfig),
		Target:    string(target),
		DefaultOp: defaultOp.String(),
		Payload:   payload,
	})
	return err
}

// CopyConfig replaces target's contents wholesale with source's.
func (c *Client) CopyConfig(source, target tree.Name) error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodCopyConfig), Source: string(source), Target: string(target)})
	return err
}

// DeleteConfig removes target's named datastore contents entirely.
func (c *Client) DeleteConfig(target tree.Name) error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodDeleteConfig), Target: string(target)})
	return err
}

// Validate runs structural and application validation against candidate
// without committing it.
func (c *Client) Validate() error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodValidate), Source: string(tree.Candidate)})
	return err
}

// Commit drives candidate into running through the full commit pipeline.
func (c *Client) Commit() error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodCommit), Source: string(tree.Candidate), Target: string(tree.Running)})
	return err
}

// DiscardChanges resets candidate back to running, abandoning any pending
// edits.
func (c *Client) DiscardChanges() error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodDiscardChanges), Source: string(tree.Running), Target: string(tree.Candidate)})
	return err
}

// Lock acquires target's advisory datastore lock for this session.
func (c *Client) Lock(target tree.Name) error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodLock), Target: string(target)})
	return err
}

// Unlock releases target's advisory datastore lock held by this session.
func (c *Client) Unlock(target tree.Name) error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodUnlock), Target: string(target)})
	return err
}

// CloseSession ends this session on the server, releasing any locks it
// holds.
func (c *Client) CloseSession() error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodCloseSession)})
	return err
}

// KillSession asks the server to forcibly terminate another session by ID.
func (c *Client) KillSession(killID string) error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodKillSession), KillID: killID})
	return err
}

// CreateSubscription subscribes this session to stream's notifications.
func (c *Client) CreateSubscription(stream string) error {
	_, err := c.call(wireRequest{Method: string(rpcengine.MethodCreateSubscription), Stream: stream})
	return err
}

// WithContext is a placeholder hook point for callers that want to bound a
// call with a context.Context; the underlying framed protocol has no
// per-request cancellation today; the connection is closed to cancel
// in-flight work.
func (c *Client) WithContext(ctx context.Context) *Client {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()
	return c
}
