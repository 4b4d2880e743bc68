// SPDX-License-Identifier: LGPL-2.1-only

package netconf

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/rs/zerolog"

	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/rpcengine"
	"github.com/yconfd/yconfd/internal/tree"
)

// jsonRequest/jsonResponse are the JSON RPC envelope pkg/client speaks, as
// opposed to Session's NETCONF <rpc> XML envelope; fields mirror
// rpcengine.Request/Response field-for-field so no information is lost.
type jsonRequest struct {
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

type jsonResponse struct {
	OK     bool              `json:"ok"`
	Data   *tree.EditNode    `json:"data,omitempty"`
	Errors []mgmterror.Error `json:"errors,omitempty"`
}

func (jr jsonRequest) toRequest(sessionID string) rpcengine.Request {
	return rpcengine.Request{
		SessionID: sessionID,
		Method:    rpcengine.Method(jr.Method),
		Source:    tree.Name(jr.Source),
		Target:    tree.Name(jr.Target),
		DefaultOp: tree.ParseOp(jr.DefaultOp),
		Payload:   jr.Payload,
		XPath:     jr.XPath,
		KillID:    jr.KillID,
		Level:     jr.Level,
		Stream:    jr.Stream,
	}
}

func toJSONResponse(resp *rpcengine.Response) jsonResponse {
	out := jsonResponse{OK: resp.OK, Data: resp.Data}
	for _, e := range resp.Errors {
		out.Errors = append(out.Errors, *e)
	}
	return out
}

// JSONSession handles one connection speaking the JSON RPC envelope
// pkg/client uses, framed the same way Session frames its XML envelope.
// It exists because decodeRequest's NETCONF <rpc> operation grammar is a
// placeholder (see rpc.go); this is the listener pkg/client and
// cmd/yconfcli actually talk to.
type JSONSession struct {
	Dispatcher *rpcengine.Dispatcher
	ID         string
	Mode       Mode
	Log        zerolog.Logger
}

// Serve reads framed JSON requests from conn until it errs or closes,
// dispatching each and writing back a framed JSON reply.
func (s *JSONSession) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.Dispatcher.Sessions.Close(s.ID)
	s.Dispatcher.Sessions.Open(s.ID, false, s.Dispatcher.AutolockMode)

	r := bufio.NewReader(conn)
	for {
		raw, err := ReadMessage(r, s.Mode)
		if err != nil {
			return
		}
		var jr jsonRequest
		var resp *rpcengine.Response
		if err := json.Unmarshal(raw, &jr); err != nil {
			resp = &rpcengine.Response{OK: false, Errors: mgmterror.List{mgmterror.NewMalformedMessageError(err.Error())}}
		} else {
			resp = s.Dispatcher.Dispatch(ctx, jr.toRequest(s.ID))
		}
		out, err := json.Marshal(toJSONResponse(resp))
		if err != nil {
			s.Log.Error().Err(err).Msg("encode json rpc reply")
			return
		}
		if err := WriteMessage(conn, s.Mode, out); err != nil {
			return
		}
	}
}
