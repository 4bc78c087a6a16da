package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eddielth/sensor-gateway/gateway"
)

type stubStore struct{ count int }

func (s *stubStore) Insert(gateway.Reading) int { s.count++; return s.count - 1 }
func (s *stubStore) NextUnsynced() (gateway.Reading, int, bool) {
	return gateway.Reading{}, 0, false
}
func (s *stubStore) MarkSynced(int)                      {}
func (s *stubStore) Count() int                          { return s.count }
func (s *stubStore) Full() bool                          { return false }
func (s *stubStore) ActiveSenderCount(time.Duration) int { return s.count }

type stubUplink struct{}

func (stubUplink) Update()       {}
func (stubUplink) Online() bool  { return true }
func (stubUplink) Label() string { return "ONLINE" }

type stubClient struct{}

func (stubClient) SendReading(gateway.Reading) bool          { return true }
func (stubClient) SendStatus(string, int, string, bool) bool { return true }
func (stubClient) CheckHealth() bool                         { return true }
func (stubClient) Reachable() bool                           { return true }

func testServer(t *testing.T) (*Server, *stubStore) {
	t.Helper()
	store := &stubStore{}
	orch := gateway.NewOrchestrator("gateway-01", store, stubUplink{}, stubClient{})
	return NewServer(":0", orch), store
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)
	w := get(t, s, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, store := testServer(t)
	store.Insert(gateway.Reading{NodeID: "n1"})
	s.orch.Tick()

	w := get(t, s, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", w.Code)
	}

	var snap gateway.StatusSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("status response is not valid JSON: %v", err)
	}
	if snap.ConnectivityLabel != "ONLINE" {
		t.Errorf("connectivityLabel = %q, want ONLINE", snap.ConnectivityLabel)
	}
	if !snap.Reachable {
		t.Error("reachable = false, want true")
	}
	if snap.BufferedCount != 1 {
		t.Errorf("bufferedCount = %d, want 1", snap.BufferedCount)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t)
	w := get(t, s, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatal("metrics response is empty")
	}
}
