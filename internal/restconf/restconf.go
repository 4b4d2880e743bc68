// SPDX-License-Identifier: LGPL-2.1-only

// Package restconf implements the RESTCONF HTTP mapping: method→operation
// translation, the well-known resource, error status mapping, and JSON
// media negotiation. It is a thin adapter over internal/rpcengine and
// duplicates none of the engine's logic.
package restconf

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/rpcengine"
	"github.com/yconfd/yconfd/internal/tree"
)

const wellKnownHostMeta = `<XRD><Link rel='restconf' href='/restconf'/></XRD>`

// Handler implements http.Handler for the /restconf/* surface.
type Handler struct {
	Dispatcher    *rpcengine.Dispatcher
	SessionOf     func(*http.Request) string
	Authenticated func(*http.Request) bool
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/.well-known/host-meta" {
		w.Header().Set("Content-Type", "application/xrd+xml")
		w.Write([]byte(wellKnownHostMeta))
		return
	}

	if !acceptsJSON(r) {
		writeError(w, r, mgmterror.NewOperationNotSupportedError("unsupported media type"), true, 415)
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/restconf/data/"):
		h.handleData(w, r)
	case strings.HasPrefix(r.URL.Path, "/restconf/operations/"):
		h.handleOperation(w, r)
	default:
		writeError(w, r, mgmterror.NewMissingElementError(r.URL.Path), h.isAuthenticated(r), http.StatusNotFound)
	}
}

func acceptsJSON(r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if part == "*/*" || strings.Contains(part, "json") {
			return true
		}
	}
	return false
}

func (h *Handler) isAuthenticated(r *http.Request) bool {
	if h.Authenticated == nil {
		return true
	}
	return h.Authenticated(r)
}

func (h *Handler) sessionID(r *http.Request) string {
	if h.SessionOf != nil {
		return h.SessionOf(r)
	}
	return r.RemoteAddr
}

// handleData maps GET/PUT/POST/PATCH/DELETE under /restconf/data/* onto
// get-config/edit-config's method table.
func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/restconf/data")
	sid := h.sessionID(r)

	var req rpcengine.Request
	req.SessionID = sid
	req.XPath = path

	switch r.Method {
	case http.MethodGet:
		req.Method = rpcengine.MethodGetConfig
		req.Source = tree.Running
	case http.MethodPut:
		req.Method = rpcengine.MethodEditConfig
		req.Target = tree.Running
		req.DefaultOp = tree.OpReplace
		req.Payload = decodeBody(r)
	case http.MethodPost:
		req.Method = rpcengine.MethodEditConfig
		req.Target = tree.Running
		req.DefaultOp = tree.OpCreate
		req.Payload = decodeBody(r)
	case http.MethodPatch:
		req.Method = rpcengine.MethodEditConfig
		req.Target = tree.Running
		req.DefaultOp = tree.OpMerge
		req.Payload = decodeBody(r)
	case http.MethodDelete:
		req.Method = rpcengine.MethodDeleteConfig
		req.Target = tree.Running
	default:
		e := mgmterror.NewOperationNotSupportedError("method not supported")
		writeError(w, r, e, h.isAuthenticated(r), 0)
		return
	}

	// RESTCONF has no client-visible lock/unlock operations (RFC 8040), so
	// a data-modifying request acquires and releases target's lock around
	// itself, the same implicit acquire/release editConfig does under
	// autolock mode.
	if req.Method == rpcengine.MethodEditConfig || req.Method == rpcengine.MethodDeleteConfig {
		if lockErr := h.Dispatcher.Sessions.Lock(sid, req.Target); lockErr != nil {
			h.writeResponse(w, r, &rpcengine.Response{Errors: mgmterror.List{lockErr}})
			return
		}
		defer h.Dispatcher.Sessions.Unlock(sid, req.Target)
	}

	resp := h.Dispatcher.Dispatch(r.Context(), req)
	h.writeResponse(w, r, resp)
}

func (h *Handler) handleOperation(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/restconf/operations/")
	if r.Method != http.MethodPost {
		writeError(w, r, mgmterror.NewOperationNotSupportedError("operations require POST"), h.isAuthenticated(r), 0)
		return
	}
	req := rpcengine.Request{
		SessionID: h.sessionID(r),
		Method:    rpcengine.Method(name),
		Payload:   decodeBody(r),
	}
	resp := h.Dispatcher.Dispatch(r.Context(), req)
	h.writeResponse(w, r, resp)
}

func decodeBody(r *http.Request) *tree.EditNode {
	var paths map[string]string
	_ = json.NewDecoder(r.Body).Decode(&paths)
	return tree.BuildEdit(paths)
}

func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, resp *rpcengine.Response) {
	if resp.OK {
		w.Header().Set("Content-Type", "application/yang-data+json")
		w.WriteHeader(http.StatusOK)
		if resp.Data != nil {
			json.NewEncoder(w).Encode(resp.Data)
		}
		return
	}
	writeErrors(w, r, resp.Errors, h.isAuthenticated(r))
}

func writeError(w http.ResponseWriter, r *http.Request, err *mgmterror.Error, authenticated bool, forceStatus int) {
	writeErrorsStatus(w, r, mgmterror.List{err}, authenticated, forceStatus)
}

type restconfErrorBody struct {
	Errors struct {
		Error []restconfError `json:"error"`
	} `json:"ietf-restconf:errors"`
}

type restconfError struct {
	ErrorType    string `json:"error-type"`
	ErrorTag     string `json:"error-tag"`
	ErrorSev     string `json:"error-severity"`
	ErrorMessage string `json:"error-message,omitempty"`
}

func writeErrors(w http.ResponseWriter, r *http.Request, errs mgmterror.List, authenticated bool) {
	writeErrorsStatus(w, r, errs, authenticated, 0)
}

func writeErrorsStatus(w http.ResponseWriter, r *http.Request, errs mgmterror.List, authenticated bool, forceStatus int) {
	status := 500
	allow := ""
	if len(errs) > 0 {
		status, allow = errs[0].HTTPStatus(authenticated)
	}
	if forceStatus != 0 {
		status = forceStatus
	}
	if allow != "" {
		w.Header().Set("Allow", allow)
	}
	w.Header().Set("Content-Type", "application/yang-data+json")
	w.WriteHeader(status)
	var body restconfErrorBody
	for _, e := range errs {
		body.Errors.Error = append(body.Errors.Error, restconfError{
			ErrorType: string(e.Type), ErrorTag: string(e.Tag), ErrorSev: string(e.Severity), ErrorMessage: e.Message,
		})
	}
	json.NewEncoder(w).Encode(body)
}
