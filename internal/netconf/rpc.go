// SPDX-License-Identifier: LGPL-2.1-only

package netconf

import (
	"bufio"
	"context"
	"encoding/xml"
	"net"

	"github.com/rs/zerolog"

	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/rpcengine"
)

// rpcEnvelope is the minimal <rpc> wire shape this engine understands: an
// operation name and its raw inner XML, which the specific operation
// handler below further decodes.
type rpcEnvelope struct {
	XMLName   xml.Name `xml:"rpc"`
	MessageID string   `xml:"message-id,attr"`
	Inner     []byte   `xml:",innerxml"`
}

type rpcReplyOK struct {
	XMLName   xml.Name  `xml:"rpc-reply"`
	MessageID string    `xml:"message-id,attr"`
	OK        *struct{} `xml:"ok"`
}

type rpcErrorElem struct {
	Type     string `xml:"error-type"`
	Tag      string `xml:"error-tag"`
	Severity string `xml:"error-severity"`
	Path     string `xml:"error-path,omitempty"`
	Message  string `xml:"error-message,omitempty"`
}

type rpcReplyError struct {
	XMLName   xml.Name       `xml:"rpc-reply"`
	MessageID string         `xml:"message-id,attr"`
	Errors    []rpcErrorElem `xml:"rpc-error"`
}

func renderReply(messageID string, resp *rpcengine.Response) []byte {
	if resp.OK {
		out, _ := xml.Marshal(rpcReplyOK{MessageID: messageID, OK: &struct{}{}})
		return out
	}
	reply := rpcReplyError{MessageID: messageID}
	for _, e := range resp.Errors {
		reply.Errors = append(reply.Errors, rpcErrorElem{
			Type: string(e.Type), Tag: string(e.Tag), Severity: string(e.Severity),
			Path: e.Path, Message: e.Message,
		})
	}
	out, _ := xml.Marshal(reply)
	return out
}

// Session handles one connection's framed request/reply exchange, calling
// into a rpcengine.Dispatcher for every <rpc> decodeRequest accepts (at
// present none; see decodeRequest).
type Session struct {
	Dispatcher *rpcengine.Dispatcher
	ID         string
	Mode       Mode
	Log        zerolog.Logger
}

// Serve reads framed messages from conn until it errs or closes, decoding
// each as an <rpc> and writing back an <rpc-reply>.
func (s *Session) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.Dispatcher.Sessions.Close(s.ID)
	s.Dispatcher.Sessions.Open(s.ID, false, s.Dispatcher.AutolockMode)

	r := bufio.NewReader(conn)
	for {
		raw, err := ReadMessage(r, s.Mode)
		if err != nil {
			return
		}
		var env rpcEnvelope
		if err := xml.Unmarshal(raw, &env); err != nil {
			reply := renderReply("", errResp(mgmterror.NewMalformedMessageError(err.Error())))
			WriteMessage(conn, s.Mode, reply)
			continue
		}
		req, decodeErr := decodeRequest(s.ID, env)
		var resp *rpcengine.Response
		if decodeErr != nil {
			resp = errResp(decodeErr)
		} else {
			resp = s.Dispatcher.Dispatch(ctx, req)
		}
		WriteMessage(conn, s.Mode, renderReply(env.MessageID, resp))
	}
}

func errResp(err *mgmterror.Error) *rpcengine.Response {
	return &rpcengine.Response{OK: false, Errors: mgmterror.List{err}}
}

// decodeRequest is a placeholder mapping from the raw <rpc> inner XML to a
// structured rpcengine.Request; a full NETCONF operation grammar (get,
// edit-config, etc. each with their own element shapes) is out of scope
// for this reference adapter, which focuses on the engine and dispatcher
// behind it. It decodes no operation: every <rpc> gets an
// operation-not-supported error. internal/restconf and JSONSession build
// rpcengine.Request values directly instead.
func decodeRequest(sessionID string, env rpcEnvelope) (rpcengine.Request, *mgmterror.Error) {
	return rpcengine.Request{SessionID: sessionID}, mgmterror.NewOperationNotSupportedError(
		"raw NETCONF operation decoding is not implemented in this reference adapter")
}
