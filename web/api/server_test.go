package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
	"github.com/hochfrequenz/regression-orchestrator/internal/runstore"
)

func sampleRuns() []*domain.Run {
	started := time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Hour)
	return []*domain.Run{
		{
			ID: "1", RunDir: "nv_small_2024-03-09_22-00-00", Project: "nv_small", Kind: domain.KindSanity,
			Verdict: domain.StatusPass, Status: domain.StatusComplete, StartedAt: started, FinishedAt: &finished,
			Steps: []domain.StepResult{{Step: domain.StepPlan, Duration: time.Hour}},
		},
		{
			ID: "2", RunDir: "nv_small_256_2024-03-10_22-00-00", Project: "nv_small_256", Kind: domain.KindAll,
			Status: domain.StatusTreeBuildFail, ExitCode: 2, StartedAt: started.Add(24 * time.Hour),
		},
	}
}

func TestListRunsHandler(t *testing.T) {
	store := &mockStore{runs: sampleRuns()}
	server := NewServer(store, ":8080")

	req := httptest.NewRequest("GET", "/api/runs?project=nv_small&limit=5", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	var runs []RunResponse
	json.NewDecoder(w.Body).Decode(&runs)

	if len(runs) != 1 {
		t.Fatalf("Run count = %d, want 1", len(runs))
	}
	if runs[0].Duration != "2h0m0s" {
		t.Errorf("Duration = %q, want 2h0m0s", runs[0].Duration)
	}
	if store.lastOpts.Limit != 5 {
		t.Errorf("Limit = %d, want 5", store.lastOpts.Limit)
	}
}

func TestListRunsHandler_BadLimit(t *testing.T) {
	server := NewServer(&mockStore{}, ":8080")

	req := httptest.NewRequest("GET", "/api/runs?limit=many", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", w.Code)
	}
}

func TestGetRunHandler(t *testing.T) {
	server := NewServer(&mockStore{runs: sampleRuns()}, ":8080")

	req := httptest.NewRequest("GET", "/api/runs/nv_small_2024-03-09_22-00-00", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	var run RunResponse
	json.NewDecoder(w.Body).Decode(&run)
	if run.Status != "REGRESSION_COMPLETE" {
		t.Errorf("Status = %q", run.Status)
	}
	if len(run.Steps) != 1 || run.Steps[0].Step != "plan" {
		t.Errorf("Steps = %+v", run.Steps)
	}
}

func TestGetRunHandler_NotFound(t *testing.T) {
	server := NewServer(&mockStore{}, ":8080")

	req := httptest.NewRequest("GET", "/api/runs/missing", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	server := NewServer(&mockStore{runs: sampleRuns()}, ":8080")

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	var status StatusResponse
	json.NewDecoder(w.Body).Decode(&status)

	if status.Total != 2 {
		t.Errorf("Total = %d, want 2", status.Total)
	}
	if status.ByStatus["TREE_BUILD_FAIL"] != 1 {
		t.Errorf("TREE_BUILD_FAIL = %d, want 1", status.ByStatus["TREE_BUILD_FAIL"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := NewServer(&mockStore{}, ":8080")

	req := httptest.NewRequest("POST", "/api/runs", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", w.Code)
	}
}

func TestLiveHandler(t *testing.T) {
	store := &mockStore{runs: sampleRuns()}
	server := NewServer(store, ":8080")
	server.SetPollInterval(10 * time.Millisecond)

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var event LiveEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read initial event: %v", err)
	}
	if event.Type != "runs" || len(event.Runs) != 2 {
		t.Fatalf("initial event = %s with %d runs, want runs with 2", event.Type, len(event.Runs))
	}
	if store.lastOpts.Limit != liveLimit {
		t.Errorf("Limit = %d, want %d", store.lastOpts.Limit, liveLimit)
	}

	store.add(&domain.Run{
		ID: "3", RunDir: "nv_small_2024-03-11_22-00-00", Project: "nv_small", Kind: domain.KindRandom,
		Status: domain.StatusComplete, StartedAt: time.Now(),
	})

	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(event.Runs) != 3 {
		t.Fatalf("update has %d runs, want 3", len(event.Runs))
	}
	if event.Runs[0].ID != "3" {
		t.Errorf("newest run = %q, want 3", event.Runs[0].ID)
	}
}

func TestSnapshotKey(t *testing.T) {
	runs := sampleRuns()
	before := snapshotKey(runs)

	runs[1].Status = domain.StatusComplete
	if snapshotKey(runs) == before {
		t.Error("status change should change the snapshot key")
	}
	if snapshotKey(nil) != "" {
		t.Error("empty history should have an empty key")
	}
}

type mockStore struct {
	mu       sync.Mutex
	runs     []*domain.Run
	lastOpts runstore.ListOptions
}

func (m *mockStore) add(r *domain.Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append([]*domain.Run{r}, m.runs...)
}

func (m *mockStore) ListRuns(opts runstore.ListOptions) ([]*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOpts = opts
	var out []*domain.Run
	for _, r := range m.runs {
		if opts.Project != "" && r.Project != opts.Project {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) GetRun(ref string) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == ref || r.RunDir == ref {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", runstore.ErrNotFound, ref)
}

func (m *mockStore) CountByStatus() (map[domain.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.Status]int)
	for _, r := range m.runs {
		counts[r.Status]++
	}
	return counts, nil
}
