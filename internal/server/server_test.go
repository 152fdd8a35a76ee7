package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(":0", nil, time.Millisecond)
	return s, s.Handler()
}

func doRequest(h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler, cfg SessionConfig) SessionStatus {
	t.Helper()
	body, _ := json.Marshal(cfg)
	w := doRequest(h, http.MethodPost, "/api/v1/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var st SessionStatus
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return st
}

func TestServer_CreateSession(t *testing.T) {
	_, h := newTestServer(t)

	st := createSession(t, h, smallConfig(10))

	if st.ID == "" {
		t.Error("Session ID should not be empty")
	}
	if st.State != StateIdle {
		t.Errorf("Expected idle state, got %s", st.State)
	}
}

func TestServer_CreateSession_Invalid(t *testing.T) {
	_, h := newTestServer(t)

	w := doRequest(h, http.MethodPost, "/api/v1/sessions", []byte("{not json"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad JSON, got %d", w.Code)
	}

	w = doRequest(h, http.MethodPost, "/api/v1/sessions", []byte(`{"params":{"populationSize":0,"maxIterations":5,"alphaDecayRate":0.9}}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid params, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "PopulationSize") {
		t.Errorf("Expected error to name the field, got %q", w.Body.String())
	}
}

func TestServer_ListSessions(t *testing.T) {
	_, h := newTestServer(t)

	createSession(t, h, smallConfig(5))
	createSession(t, h, smallConfig(5))

	w := doRequest(h, http.MethodGet, "/api/v1/sessions", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var list []SessionStatus
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Expected 2 sessions, got %d", len(list))
	}
}

func TestServer_GetSession(t *testing.T) {
	_, h := newTestServer(t)
	st := createSession(t, h, smallConfig(5))

	w := doRequest(h, http.MethodGet, "/api/v1/sessions/"+st.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var got SessionStatus
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Snapshot == nil || len(got.Snapshot.Positions) != 10 {
		t.Errorf("Expected snapshot with 10 fireflies, got %+v", got.Snapshot)
	}

	w = doRequest(h, http.MethodGet, "/api/v1/sessions/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_StepAndReset(t *testing.T) {
	_, h := newTestServer(t)
	st := createSession(t, h, smallConfig(2))

	for k := 1; k <= 2; k++ {
		w := doRequest(h, http.MethodPost, "/api/v1/sessions/"+st.ID+"/step", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Step %d: expected status 200, got %d", k, w.Code)
		}
		var got SessionStatus
		json.NewDecoder(w.Body).Decode(&got)
		if got.Iteration != k {
			t.Errorf("Expected iteration %d, got %d", k, got.Iteration)
		}
	}

	w := doRequest(h, http.MethodPost, "/api/v1/sessions/"+st.ID+"/start", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Starting a completed session: expected 409, got %d", w.Code)
	}

	w = doRequest(h, http.MethodPost, "/api/v1/sessions/"+st.ID+"/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Reset: expected status 200, got %d", w.Code)
	}
	var got SessionStatus
	json.NewDecoder(w.Body).Decode(&got)
	if got.Iteration != 0 || got.Phase != firefly.PhaseInitialized {
		t.Errorf("Expected fresh session, got iteration %d phase %s", got.Iteration, got.Phase)
	}
}

func TestServer_StartAndPause(t *testing.T) {
	s, h := newTestServer(t)
	st := createSession(t, h, smallConfig(100000))
	defer s.Shutdown(context.Background())

	w := doRequest(h, http.MethodPost, "/api/v1/sessions/"+st.ID+"/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Start: expected status 200, got %d", w.Code)
	}

	w = doRequest(h, http.MethodPost, "/api/v1/sessions/"+st.ID+"/step", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Step while running: expected 409, got %d", w.Code)
	}

	w = doRequest(h, http.MethodPost, "/api/v1/sessions/"+st.ID+"/pause", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Pause: expected status 200, got %d", w.Code)
	}
	var got SessionStatus
	json.NewDecoder(w.Body).Decode(&got)
	if got.State != StatePaused {
		t.Errorf("Expected paused, got %s", got.State)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t)
	st := createSession(t, h, smallConfig(5))

	tests := []struct {
		method, path string
	}{
		{http.MethodDelete, "/api/v1/sessions"},
		{http.MethodGet, "/api/v1/sessions/" + st.ID + "/start"},
		{http.MethodPost, "/api/v1/sessions/" + st.ID},
		{http.MethodPost, "/api/v1/sessions/" + st.ID + "/curve"},
	}
	for _, tt := range tests {
		w := doRequest(h, tt.method, tt.path, nil)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tt.method, tt.path, w.Code)
		}
	}

	w := doRequest(h, http.MethodGet, "/api/v1/sessions/"+st.ID+"/bogus", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown action, got %d", w.Code)
	}
}

func TestServer_Curve(t *testing.T) {
	s, h := newTestServer(t)
	st := createSession(t, h, smallConfig(5))

	w := doRequest(h, http.MethodGet, "/api/v1/sessions/"+st.ID+"/curve?points=11", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var curve []objective.Point
	if err := json.NewDecoder(w.Body).Decode(&curve); err != nil {
		t.Fatalf("Failed to decode curve: %v", err)
	}
	if len(curve) != 11 {
		t.Fatalf("Expected 11 points, got %d", len(curve))
	}
	if curve[0].X != -3 || curve[10].X != 3 {
		t.Errorf("Expected curve over [-3, 3], got [%f, %f]", curve[0].X, curve[10].X)
	}
	if curve[5].Y != objective.Example([]float64{curve[5].X}) {
		t.Errorf("Unexpected curve value at %f: %f", curve[5].X, curve[5].Y)
	}

	if s.curves.ItemCount() != 1 {
		t.Errorf("Expected curve to be cached, cache has %d items", s.curves.ItemCount())
	}
	doRequest(h, http.MethodGet, "/api/v1/sessions/"+st.ID+"/curve?points=11", nil)
	if s.curves.ItemCount() != 1 {
		t.Errorf("Repeated request should hit the cache, cache has %d items", s.curves.ItemCount())
	}

	w = doRequest(h, http.MethodGet, "/api/v1/sessions/"+st.ID+"/curve?points=1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for too few points, got %d", w.Code)
	}
}

func TestServer_Curve2DRejected(t *testing.T) {
	_, h := newTestServer(t)
	st := createSession(t, h, SessionConfig{Objective: "sphere", Dimension: 2})

	w := doRequest(h, http.MethodGet, "/api/v1/sessions/"+st.ID+"/curve", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for 2D curve, got %d", w.Code)
	}
}

func TestServer_Chart(t *testing.T) {
	_, h := newTestServer(t)
	st := createSession(t, h, smallConfig(5))
	doRequest(h, http.MethodPost, "/api/v1/sessions/"+st.ID+"/step", nil)

	w := doRequest(h, http.MethodGet, "/api/v1/sessions/"+st.ID+"/chart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Expected HTML, got %s", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "fireflies") {
		t.Error("Chart should contain the fireflies series")
	}

	high := createSession(t, h, SessionConfig{Objective: "sphere", Dimension: 3})
	w = doRequest(h, http.MethodGet, "/api/v1/sessions/"+high.ID+"/chart", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for 3D chart, got %d", w.Code)
	}
}

func TestServer_Index(t *testing.T) {
	_, h := newTestServer(t)
	st := createSession(t, h, smallConfig(5))

	w := doRequest(h, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), st.ID) {
		t.Error("Index should list the session")
	}

	w = doRequest(h, http.MethodGet, "/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestServer_CORS(t *testing.T) {
	_, h := newTestServer(t)

	w := doRequest(h, http.MethodOptions, "/api/v1/sessions", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Missing CORS header")
	}
}

func TestServer_Stream(t *testing.T) {
	s, h := newTestServer(t)
	st := createSession(t, h, smallConfig(3))

	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/sessions/"+st.ID+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	// Wait until the handler has subscribed before animating
	for s.sessions.broadcaster.ClientCount(st.ID) == 0 {
		time.Sleep(time.Millisecond)
	}
	s.sessions.Start(st.ID)

	reader := bufio.NewReader(resp.Body)
	seen := map[int]bool{}
	for len(seen) < 4 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("Failed to read stream after iterations %v: %v", seen, err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev SnapshotEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("Bad event payload: %v", err)
		}
		if ev.SessionID != st.ID {
			t.Errorf("Event for wrong session: %s", ev.SessionID)
		}
		seen[ev.Iteration] = true
	}
	for k := 0; k <= 3; k++ {
		if !seen[k] {
			t.Errorf("Missing snapshot for iteration %d", k)
		}
	}
}

func TestServer_InfiniteFitnessStaysEncodable(t *testing.T) {
	_, h := newTestServer(t)

	// Squares of coordinates near 1e200 overflow to +Inf
	p := firefly.DefaultParameters().ScalarBounds(-1e200, 1e200)
	p.MaxIterations = 3
	body, _ := json.Marshal(SessionConfig{Objective: "sphere", Dimension: 1, Seed: 4, Params: &p})

	w := doRequest(h, http.MethodPost, "/api/v1/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var st SessionStatus
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode created session: %v", err)
	}
	if st.ID == "" {
		t.Fatal("Created session has no ID")
	}

	w = doRequest(h, http.MethodPost, "/api/v1/sessions/"+st.ID+"/step", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Step failed: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(h, http.MethodGet, "/api/v1/sessions/"+st.ID, nil)
	var got SessionStatus
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if got.Snapshot == nil || got.Snapshot.Iteration != 1 {
		t.Fatalf("Expected snapshot at iteration 1, got %+v", got.Snapshot)
	}
	if !math.IsInf(got.BestFitness, 1) {
		t.Errorf("Expected +Inf best fitness to round trip, got %v", got.BestFitness)
	}
	for i, f := range got.Snapshot.Fitness {
		if !math.IsInf(f, 1) {
			t.Errorf("Firefly %d: expected +Inf fitness, got %v", i, f)
		}
	}

	rec := httptest.NewRecorder()
	if err := writeSSEEvent(rec, newSnapshotEvent(st.ID, StateIdle, firefly.PhaseRunning, *got.Snapshot)); err != nil {
		t.Fatalf("SSE frame failed: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"+Inf"`) {
		t.Errorf("Expected +Inf encoded as a string in %s", rec.Body.String())
	}
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, map[string]float64{"x": math.Inf(1)})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestServer_StreamSendsCurrentSnapshotOnce(t *testing.T) {
	s, h := newTestServer(t)
	st := createSession(t, h, smallConfig(10))
	if _, err := s.sessions.Step(st.ID); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/sessions/"+st.ID+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Stream request failed: %v", err)
	}
	defer resp.Body.Close()

	frames := make(chan SnapshotEvent, 8)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev SnapshotEvent
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				frames <- ev
			}
		}
	}()

	select {
	case ev := <-frames:
		if ev.Iteration != 1 {
			t.Errorf("Expected the current snapshot (iteration 1), got %d", ev.Iteration)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No initial snapshot received")
	}

	select {
	case ev := <-frames:
		t.Errorf("Idle session sent a second frame for iteration %d", ev.Iteration)
	case <-time.After(100 * time.Millisecond):
	}
}
