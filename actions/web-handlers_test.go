package actions

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/pipeline"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/sirupsen/logrus"
)

// mockConnectionLoader serves mock store connections so handler tests run
// without a config file or real databases.
type mockConnectionLoader struct{}

func (m *mockConnectionLoader) GetConnectionType(connectionName string) (string, error) {
	return constants.ConnectionTypeMock, nil
}

func (m *mockConnectionLoader) GetConnectionDetails(connectionName string, connectionType string) (*shared.ConnectionDetails, error) {
	return &shared.ConnectionDetails{Type: constants.ConnectionTypeMock, LogicalName: connectionName}, nil
}

func newTestRouter(log *logrus.Logger, web *WebServerConfig) *mux.Router {
	r := mux.NewRouter()
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/runs").HandlerFunc(GetHandlerRunList(log, web.Registry))
	r.Path("/runs/{runId}").HandlerFunc(GetHandlerRunStatus(log, web.Registry))
	r.Path(urlContext4Sync).Methods(http.MethodPost).Headers("Content-Type", "application/json").HandlerFunc(
		GetHandlerSyncLaunch(log, web))
	return r
}

func newTestWebConfig() *WebServerConfig {
	return &WebServerConfig{
		LogLevel:    "info",
		Scheme:      "http",
		Addr:        net.IP{0, 0, 0, 0},
		Port:        8080,
		Connections: &mockConnectionLoader{},
		Registry:    pipeline.NewRunRegistry(),
	}
}

func TestHandlerHealth(t *testing.T) {
	log := logrus.New()
	r := newTestRouter(log, newTestWebConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatal("expected 200; got ", w.Code)
	}
	resp := struct {
		Status string `json:"status"`
	}{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Fatal("expected ok; got ", resp.Status)
	}
}

func TestHandlerRunStatusUnknownRun(t *testing.T) {
	log := logrus.New()
	r := newTestRouter(log, newTestWebConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/no-such-run", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatal("expected 400; got ", w.Code)
	}
}

func TestHandlerSyncLaunchBadJson(t *testing.T) {
	log := logrus.New()
	r := newTestRouter(log, newTestWebConfig())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatal("expected 400; got ", w.Code)
	}
}

func TestHandlerSyncLaunchAndStatus(t *testing.T) {
	log := logrus.New()
	web := newTestWebConfig()
	r := newTestRouter(log, web)
	// Launch a run over an empty mock window.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(`{"windowDays": 7}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatal("expected 200; got ", w.Code, ": ", w.Body.String())
	}
	launch := ResponseSyncLaunch{}
	if err := json.Unmarshal(w.Body.Bytes(), &launch); err != nil {
		t.Fatal(err)
	}
	if launch.RunId == "" {
		t.Fatal("expected a run id; got ", w.Body.String())
	}
	// Wait for the background run to finish.
	deadline := time.Now().Add(3 * time.Second)
	var summary *pipeline.Summary
	for time.Now().Before(deadline) {
		s, ok := web.Registry.Get(launch.RunId)
		if ok && s.Stage == pipeline.StageCommitted {
			summary = s
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if summary == nil {
		t.Fatal("run did not commit before the deadline")
	}
	if summary.ReadCount != 0 || summary.Failed() {
		t.Fatal("expected a clean empty-window run; got ", summary.Status, ": ", summary.Error)
	}
	// The run must be visible via the API.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/"+launch.RunId, nil))
	if w.Code != http.StatusOK {
		t.Fatal("expected 200; got ", w.Code)
	}
	status := ResponseRunStatus{}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Run == nil || status.Run.RunId != launch.RunId {
		t.Fatal("expected the run summary; got ", w.Body.String())
	}
	// And in the list.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	list := ResponseRunList{}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Runs) != 1 || list.Runs[0].RunId != launch.RunId {
		t.Fatal("expected 1 run in the list; got ", w.Body.String())
	}
}
