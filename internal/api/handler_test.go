package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/orchestrator"
	"github.com/shaiso/Overseer/internal/telemetry"
)

type fakeStatus struct {
	snap    orchestrator.Snapshot
	history []*domain.Execution
	task    string
}

func (f *fakeStatus) Snapshot() orchestrator.Snapshot { return f.snap }

func (f *fakeStatus) History(task string) []*domain.Execution {
	f.task = task
	if task == "" {
		return f.history
	}
	var out []*domain.Execution
	for _, e := range f.history {
		if e.Task == task {
			out = append(out, e)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, status StatusProvider, reg *prometheus.Registry) *httptest.Server {
	t.Helper()
	h := NewHandler(Config{Status: status, Gatherer: reg, Logger: quietLogger()})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func monitoringStatus() *fakeStatus {
	run := domain.NewRun("overseer.yaml")
	run.State = domain.RunStateMonitoring
	started := time.Now()

	return &fakeStatus{
		snap: orchestrator.Snapshot{
			Run: *run,
			Members: []orchestrator.MemberStatus{
				{Task: "web", Attempt: 1, PID: 100, StartedAt: &started},
				{Task: "worker", Attempt: 2, PID: 101, StartedAt: &started},
			},
		},
		history: []*domain.Execution{
			{Task: "worker", Attempt: 1, Status: domain.ExecutionFailed, ExitCode: 1},
			{Task: "migrate", Attempt: 1, Status: domain.ExecutionSucceeded},
		},
	}
}

func TestHealth(t *testing.T) {
	status := monitoringStatus()
	srv := newTestServer(t, status, prometheus.NewRegistry())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, domain.RunStateMonitoring, body.State)
	assert.Equal(t, 2, body.LiveServices)
}

func TestHealth_Terminated(t *testing.T) {
	status := monitoringStatus()
	status.snap.Run.State = domain.RunStateTerminated
	status.snap.Members = nil
	srv := newTestServer(t, status, prometheus.NewRegistry())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t, monitoringStatus(), prometheus.NewRegistry())

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Data orchestrator.Snapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, domain.RunStateMonitoring, body.Data.Run.State)
	require.Len(t, body.Data.Members, 2)
	assert.Equal(t, "web", body.Data.Members[0].Task)
	assert.Equal(t, 101, body.Data.Members[1].PID)
}

func TestListExecutions(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"worker", "migrate"}},
		{"filtered", "?task=migrate", []string{"migrate"}},
		{"unknown task", "?task=nope", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, monitoringStatus(), prometheus.NewRegistry())

			resp, err := http.Get(srv.URL + "/api/v1/executions" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body struct {
				Data  []domain.Execution `json:"data"`
				Total int                `json:"total"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

			got := make([]string, 0, len(body.Data))
			for _, e := range body.Data {
				got = append(got, e.Task)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), body.Total)
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	metrics.TaskStarted("web", domain.KindService)

	srv := newTestServer(t, monitoringStatus(), reg)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "overseer_task_starts_total")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, monitoringStatus(), prometheus.NewRegistry())

	resp, err := http.Post(srv.URL+"/api/v1/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRecovery(t *testing.T) {
	h := Recovery(quietLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ErrCodeInternalError, body.Error.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("first"), mw("second"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, NewHandler(Config{Status: monitoringStatus(), Logger: quietLogger()}).Routes(), quietLogger())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestLogging_LevelByStatus(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ok := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String(), "successful requests are logged at debug")

	failing := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=500")
	assert.Contains(t, out, "path=/api/v1/status")
}
