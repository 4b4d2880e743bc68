// SPDX-License-Identifier: LGPL-2.1-only

package restconf

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yconfd/yconfd/internal/auth"
	"github.com/yconfd/yconfd/internal/metrics"
	"github.com/yconfd/yconfd/internal/persist"
	"github.com/yconfd/yconfd/internal/plugin"
	"github.com/yconfd/yconfd/internal/rpcengine"
	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/internal/txn"
	"github.com/yconfd/yconfd/internal/validate"
)

func newTestHandler(t *testing.T) *Handler {
	store := tree.NewStore()
	store.Create(tree.Candidate)
	store.Create(tree.Running)
	p := persist.New(t.TempDir(), zerolog.Nop())
	reg := plugin.NewRegistry()
	v := validate.New(nil)
	sch := &schema.Node{Name: "config", Kind: schema.KindContainer}
	e := txn.New(store, p, reg, v, sch, zerolog.Nop())
	e.Metrics = metrics.New(prometheus.NewRegistry())

	sessions := rpcengine.NewSessionManager()
	d := rpcengine.New(e, store, sessions, auth.AllowAll{}, zerolog.Nop())
	d.Metrics = e.Metrics
	return &Handler{Dispatcher: d}
}

func TestWellKnownHostMeta(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/host-meta", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "restconf")
}

func TestUnacceptableMediaTypeReturns415(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/restconf/data/interfaces", nil)
	req.Header.Set("Accept", "application/xml")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUnacceptableContentTypeReturns415(t *testing.T) {
	h := newTestHandler(t)
	body := strings.NewReader("not json")
	req := httptest.NewRequest(http.MethodPut, "/restconf/data/interfaces", body)
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestGetDataReturnsEmptyRunning(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/restconf/data/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPatchDataMergesIntoRunning(t *testing.T) {
	h := newTestHandler(t)

	body := strings.NewReader(`{"interfaces/interface[name='eth0']/name":"eth0"}`)
	patchReq := httptest.NewRequest(http.MethodPatch, "/restconf/data/", body)
	patchRec := httptest.NewRecorder()
	h.ServeHTTP(patchRec, patchReq)
	require.Equal(t, http.StatusOK, patchRec.Code)
}

func TestUnknownPathReturns404(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/not-restconf", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationRequiresPOST(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/restconf/operations/commit", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Allow"))
}
