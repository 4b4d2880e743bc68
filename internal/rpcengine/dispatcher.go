// SPDX-License-Identifier: LGPL-2.1-only

package rpcengine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yconfd/yconfd/internal/auth"
	"github.com/yconfd/yconfd/internal/metrics"
	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/notify"
	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/internal/txn"
)

// Method is one of the RPCs the dispatcher understands.
type Method string

const (
	MethodGetConfig          Method = "get-config"
	MethodEditConfig         Method = "edit-config"
	MethodCopyConfig         Method = "copy-config"
	MethodDeleteConfig       Method = "delete-config"
	MethodValidate           Method = "validate"
	MethodCommit             Method = "commit"
	MethodDiscardChanges     Method = "discard-changes"
	MethodLock               Method = "lock"
	MethodUnlock             Method = "unlock"
	MethodCloseSession       Method = "close-session"
	MethodKillSession        Method = "kill-session"
	MethodCreateSubscription Method = "create-subscription"
	MethodDebug              Method = "debug"
)

// Request is one incoming RPC, decoded from whatever wire framing the
// transport used ; the dispatcher itself is framing-agnostic.
type Request struct {
	SessionID string
	Method    Method
	Source    tree.Name
	Target    tree.Name
	DefaultOp tree.Op
	Payload   *tree.EditNode
	XPath     string
	KillID    string
	Level     string
	Stream    string
}

// Response carries either Data or a non-empty Errors list, mirroring
// the "Error records are the sole currency between the engine and
// callers."
type Response struct {
	OK     bool
	Data   *tree.EditNode
	Errors mgmterror.List
}

// Dispatcher wires the engine, tree store, session manager and
// authenticator together behind a framing-agnostic operation surface.
type Dispatcher struct {
	Engine       *txn.Engine
	Store        *tree.Store
	Sessions     *SessionManager
	Auth         auth.Authenticator
	Notify       notify.Sink
	Metrics      *metrics.Registry
	Log          zerolog.Logger
	AutolockMode bool
}

func New(e *txn.Engine, store *tree.Store, sessions *SessionManager, authn auth.Authenticator, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Engine:   e,
		Store:    store,
		Sessions: sessions,
		Auth:     authn,
		Log:      log.With().Str("component", "rpc").Logger(),
	}
}

// Dispatch routes req to the matching engine operation and returns a
// Response. Every failure is an *mgmterror.Error ; no other
// error channel is used.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) *Response {
	if d.Auth != nil {
		if !d.Auth.Authenticate(ctx, req.SessionID) {
			d.count(req.Method, "denied")
			return errResponse(mgmterror.NewAccessDeniedError("session is not authenticated"))
		}
	}

	resp := d.dispatch(ctx, req)
	if resp.OK {
		d.count(req.Method, "ok")
	} else {
		d.count(req.Method, "error")
	}
	return resp
}

func (d *Dispatcher) count(method Method, result string) {
	if d.Metrics != nil {
		d.Metrics.CountRPC(string(method), result)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) *Response {
	switch req.Method {
	case MethodGetConfig:
		return d.getConfig(req)
	case MethodEditConfig:
		return d.editConfig(req)
	case MethodCopyConfig:
		return d.copyConfig(req)
	case MethodDeleteConfig:
		return d.deleteConfig(req)
	case MethodValidate:
		return d.validate(ctx, req)
	case MethodCommit:
		return d.commit(ctx, req)
	case MethodDiscardChanges:
		return d.discardChanges(req)
	case MethodLock:
		return d.lock(req)
	case MethodUnlock:
		return d.unlock(req)
	case MethodCloseSession:
		d.Sessions.Close(req.SessionID)
		return okResponse(nil)
	case MethodKillSession:
		return d.killSession(req)
	case MethodCreateSubscription:
		return d.createSubscription(req)
	case MethodDebug:
		return okResponse(nil)
	default:
		return errResponse(mgmterror.NewOperationNotSupportedError("unknown method: " + string(req.Method)))
	}
}

func (d *Dispatcher) getConfig(req Request) *Response {
	if !d.Store.Exists(req.Source) {
		return errResponse(mgmterror.NewMissingElementError(string(req.Source)))
	}
	frag, err := d.Store.Get(req.Source, req.XPath)
	if err != nil {
		return errResponse(err)
	}
	return okResponse(frag.Export())
}

// editConfig enforces the lock rule: lock is required before
// edit-config when autolock mode is off; otherwise it is acquired and
// released implicitly around the edit.
func (d *Dispatcher) editConfig(req Request) *Response {
	if !d.AutolockMode {
		if err := d.Sessions.CheckWritable(req.SessionID, req.Target, d.AutolockMode); err != nil {
			return errResponse(err)
		}
	} else {
		if err := d.Sessions.Lock(req.SessionID, req.Target); err != nil {
			return errResponse(err)
		}
		defer d.Sessions.Unlock(req.SessionID, req.Target)
	}
	if err := d.Store.Put(req.Target, req.DefaultOp, req.Payload, req.SessionID); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func (d *Dispatcher) copyConfig(req Request) *Response {
	if err := d.Store.Copy(req.Source, req.Target); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func (d *Dispatcher) deleteConfig(req Request) *Response {
	if !d.Store.Exists(req.Target) {
		return errResponse(mgmterror.NewDataMissingError(string(req.Target)))
	}
	d.Store.Reset(req.Target)
	return okResponse(nil)
}

func (d *Dispatcher) validate(ctx context.Context, req Request) *Response {
	frag, err := d.Store.Get(req.Source, "")
	if err != nil {
		return errResponse(err)
	}
	errs := d.Engine.Validator.Validate(frag.Export(), d.Engine.Schema)
	if len(errs) > 0 {
		return &Response{OK: false, Errors: errs}
	}
	return okResponse(nil)
}

func (d *Dispatcher) commit(ctx context.Context, req Request) *Response {
	source := req.Source
	if source == "" {
		source = tree.Candidate
	}
	target := req.Target
	if target == "" {
		target = tree.Running
	}
	_, errs := d.Engine.Commit(ctx, source, target, nil)
	if len(errs) > 0 {
		return &Response{OK: false, Errors: errs}
	}
	return okResponse(nil)
}

func (d *Dispatcher) discardChanges(req Request) *Response {
	if err := d.Store.Copy(tree.Running, tree.Candidate); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func (d *Dispatcher) lock(req Request) *Response {
	if err := d.Sessions.Lock(req.SessionID, req.Target); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func (d *Dispatcher) unlock(req Request) *Response {
	if err := d.Sessions.Unlock(req.SessionID, req.Target); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

// killSession is permitted only to privileged sessions.
func (d *Dispatcher) killSession(req Request) *Response {
	s, ok := d.Sessions.sessions[req.SessionID]
	if !ok || !s.Privileged {
		return errResponse(mgmterror.NewAccessDeniedError("kill-session requires a privileged session"))
	}
	d.Sessions.Kill(req.KillID)
	return okResponse(nil)
}

func (d *Dispatcher) createSubscription(req Request) *Response {
	if d.Notify == nil {
		return errResponse(mgmterror.NewOperationNotSupportedError("no notification sink configured"))
	}
	if err := d.Notify.Subscribe(req.SessionID, req.Stream, req.XPath); err != nil {
		return errResponse(mgmterror.NewOperationFailedApplicationError(err.Error()))
	}
	return okResponse(nil)
}

func okResponse(data *tree.EditNode) *Response {
	return &Response{OK: true, Data: data}
}

func errResponse(err *mgmterror.Error) *Response {
	return &Response{OK: false, Errors: mgmterror.List{err}}
}
