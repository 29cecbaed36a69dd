package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/entstore/adapters/api"
	"github.com/codewandler/entstore/core/defaults"
	"github.com/codewandler/entstore/core/entity"
	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/core/metrics"
	"github.com/codewandler/entstore/core/registry"
)

type provider struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	Label   string `json:"label,omitempty"`
}

type recordingMetrics struct {
	mu        sync.Mutex
	completed []string
}

func (m *recordingMetrics) RequestDuration(string, string) metrics.Timer { return metrics.NopTimer() }

func (m *recordingMetrics) RequestCompleted(route, method string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, method+" "+route+" "+http.StatusText(status))
}

func (m *recordingMetrics) has(s string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.completed, s)
}

type fixture struct {
	mem     *es.InMemoryStore
	server  *httptest.Server
	metrics *recordingMetrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	reg := registry.NewBuilder[provider]().
		Register(func() provider { return provider{Type: "generic"} }, "providers").
		MustBuild()

	mem := es.NewTestStore(t, es.ReplayEvent{
		MutationEvent: es.NewMutationEvent(entity.EventType, es.NewIdentifier("a", "providers"), []byte(`{"label":"A"}`), "JSON"),
	})
	defs := defaults.New(mem, reg)
	t.Cleanup(defs.Close)
	ents := entity.New(mem, reg, defs)
	t.Cleanup(ents.Close)
	es.AwaitStarted(t, ents)

	m := &recordingMetrics{}
	srv := api.NewServer(api.WithMetrics(m), api.WithWriteTimeout(time.Second))
	api.Mount[provider](srv, "/entities", ents)
	api.Mount[map[string]any](srv, "/defaults", defs)
	srv.MountReload(mem)

	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return fixture{mem: mem, server: hs, metrics: m}
}

func (f fixture) do(t *testing.T, method, path, contentType, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(b)
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"ok"}`, body)
}

func TestServer_Get(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/entities/providers/a", "", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"type":"generic","enabled":false,"label":"A"}`, body)

	status, _ = f.do(t, http.MethodGet, "/entities/providers/missing", "", "")
	require.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, "/entities/providers//a", "", "")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestServer_List(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/entities?path=providers", "", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"identifiers":["providers/a"]}`, body)

	status, body = f.do(t, http.MethodGet, "/entities?path=codelists", "", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"identifiers":[]}`, body)
}

func TestServer_PutPatchDelete(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPut, "/entities/providers/b", "application/json", `{"type":"generic","label":"B"}`)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"type":"generic","enabled":false,"label":"B"}`, body)

	status, body = f.do(t, http.MethodPatch, "/entities/providers/b", "application/yaml", "enabled: true\n")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"type":"generic","enabled":true,"label":"B"}`, body)

	status, _ = f.do(t, http.MethodPatch, "/entities/providers/missing", "application/json", `{"enabled":true}`)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPatch, "/entities/providers/b", "application/json", `{"enabled":`)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/entities/providers/b", "", "")
	require.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodGet, "/entities/providers/b", "", "")
	require.Equal(t, http.StatusNotFound, status)

	assert.Eventually(t, func() bool { return f.metrics.has("PUT /entities/* OK") }, es.TestTimeout, 10*time.Millisecond)
}

func TestServer_UnknownEntityType(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPut, "/entities/codelists/x", "application/json", `{"label":"x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	var res map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	require.Contains(t, res["error"], es.ErrUnknownType.Error())
}

func TestServer_Reload(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPut, "/defaults/providers", "application/json", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodPost, "/reload", "application/json", `{"type":"entities"}`)
	require.Equal(t, http.StatusAccepted, status)

	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/entities/providers/a", "", "")
		return strings.Contains(body, `"enabled":true`)
	}, es.TestTimeout, 10*time.Millisecond)

	status, _ = f.do(t, http.MethodPost, "/reload", "application/json", `{}`)
	require.Equal(t, http.StatusBadRequest, status)
}
