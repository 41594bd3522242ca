package statusapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/esembed/pkg/metrics"
	"github.com/marmos91/esembed/pkg/orchestrator"
)

type fakeInstance struct {
	status orchestrator.Status
}

func (f *fakeInstance) Status() orchestrator.Status { return f.status }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	inst := &fakeInstance{status: orchestrator.Status{
		State:   orchestrator.StateWaitingForReady,
		BaseURL: "http://127.0.0.1:50000",
	}}
	h := NewRouter(inst, "8.15.0")

	rec, resp := get(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Error, "WaitingForReady")

	inst.status.State = orchestrator.StateFailed
	inst.status.Error = "readiness timeout"
	_, resp = get(t, h, "/health")
	assert.Contains(t, resp.Error, "readiness timeout")

	inst.status.State = orchestrator.StateReady
	inst.status.Error = ""
	rec, resp = get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ready", data["state"])
	assert.Equal(t, "http://127.0.0.1:50000", data["base_url"])
}

func TestHealthWithoutInstance(t *testing.T) {
	h := NewRouter(nil, "")
	rec, _ := get(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, resp := get(t, h, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
}

func TestStatus(t *testing.T) {
	inst := &fakeInstance{status: orchestrator.Status{
		ID:          "abc",
		State:       orchestrator.StateInstallingPlugins,
		BaseURL:     "http://127.0.0.1:50000",
		Port:        50000,
		ClusterName: "cluster-50000",
		NodeName:    "node-50000",
		WorkDir:     "/tmp/esembed/abc",
		Plugins:     []orchestrator.Plugin{{Name: "analysis-icu"}},
	}}
	rec, resp := get(t, NewRouter(inst, "8.15.0"), "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "InstallingPlugins", data["state"])
	assert.Equal(t, "cluster-50000", data["cluster_name"])
	assert.Equal(t, "/tmp/esembed/abc", data["work_dir"])
	assert.Equal(t, "8.15.0", data["version"])
	assert.Len(t, data["plugins"], 1)
}

func TestRootRedirects(t *testing.T) {
	rec, _ := get(t, NewRouter(nil, ""), "/")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/status", rec.Header().Get("Location"))
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Reset()
	rec, _ := get(t, NewRouter(nil, ""), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)
	rec, _ = get(t, NewRouter(nil, ""), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServerLifecycle(t *testing.T) {
	inst := &fakeInstance{status: orchestrator.Status{State: orchestrator.StateReady}}
	srv := NewServer(Config{Host: "127.0.0.1"}, inst, "dev")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestServerListenError(t *testing.T) {
	ln := httptest.NewServer(http.NotFoundHandler())
	defer ln.Close()
	port := ln.Listener.Addr().(*net.TCPAddr).Port

	srv := NewServer(Config{Host: "127.0.0.1", Port: port}, nil, "")
	err := srv.Start(context.Background())
	assert.Error(t, err)
}
