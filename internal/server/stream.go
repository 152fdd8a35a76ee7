package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
)

// SnapshotEvent carries one population snapshot to SSE clients
type SnapshotEvent struct {
	SessionID          string        `json:"sessionId"`
	State              SessionState  `json:"state"`
	Phase              firefly.Phase `json:"phase"`
	Iteration          int           `json:"iteration"`
	RandomizationScale float64       `json:"alpha"`
	BestFitness        float64       `json:"bestFitness"`
	BestPosition       []float64     `json:"bestPosition"`
	Positions          [][]float64   `json:"positions"`
	Fitness            []float64     `json:"fitness"`
	Timestamp          time.Time     `json:"timestamp"`
}

func newSnapshotEvent(id string, state SessionState, phase firefly.Phase, s firefly.PopulationState) SnapshotEvent {
	return SnapshotEvent{
		SessionID:          id,
		State:              state,
		Phase:              phase,
		Iteration:          s.Iteration,
		RandomizationScale: s.RandomizationScale,
		BestFitness:        s.BestFitness,
		BestPosition:       s.BestPosition,
		Positions:          s.Positions,
		Fitness:            s.Fitness,
		Timestamp:          time.Now(),
	}
}

// EventBroadcaster manages SSE connections per session
type EventBroadcaster struct {
	mu        sync.Mutex
	clients   map[string]map[chan SnapshotEvent]bool // sessionID -> set of client channels
	lastEvent map[string]SnapshotEvent               // sessionID -> last event for new clients
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan SnapshotEvent]bool),
		lastEvent: make(map[string]SnapshotEvent),
	}
}

// Subscribe adds a client to receive events for a session
func (eb *EventBroadcaster) Subscribe(sessionID string) chan SnapshotEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan SnapshotEvent, 16) // Buffered to prevent blocking

	if eb.clients[sessionID] == nil {
		eb.clients[sessionID] = make(map[chan SnapshotEvent]bool)
	}
	eb.clients[sessionID][ch] = true

	// Replay the last event for reconnecting clients
	if lastEvent, ok := eb.lastEvent[sessionID]; ok {
		select {
		case ch <- lastEvent:
		default:
		}
	}

	slog.Debug("SSE client subscribed", "session_id", sessionID, "total_clients", len(eb.clients[sessionID]))
	return ch
}

// Unsubscribe removes a client from receiving events
func (eb *EventBroadcaster) Unsubscribe(sessionID string, ch chan SnapshotEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[sessionID]; ok {
		if clients[ch] {
			delete(clients, ch)
			close(ch)
		}
		if len(clients) == 0 {
			delete(eb.clients, sessionID)
		}
	}

	slog.Debug("SSE client unsubscribed", "session_id", sessionID)
}

// Broadcast sends an event to all subscribed clients of its session
func (eb *EventBroadcaster) Broadcast(event SnapshotEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.lastEvent[event.SessionID] = event

	clients, ok := eb.clients[event.SessionID]
	if !ok || len(clients) == 0 {
		return
	}

	slog.Debug("Broadcasting snapshot", "session_id", event.SessionID, "clients", len(clients), "iteration", event.Iteration)

	for ch := range clients {
		select {
		case ch <- event:
		default:
			// Slow client, drop the frame rather than block the worker
			slog.Warn("SSE channel full, skipping event", "session_id", event.SessionID)
		}
	}
}

// ClientCount returns the number of subscribers of a session.
func (eb *EventBroadcaster) ClientCount(sessionID string) int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.clients[sessionID])
}

// handleSessionStream handles SSE connections for session snapshots
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, exists := s.sessions.GetSession(sessionID); !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe replays the latest snapshot, so the client starts from the
	// current state without a separate initial frame.
	eventChan := s.sessions.broadcaster.Subscribe(sessionID)
	defer s.sessions.broadcaster.Unsubscribe(sessionID, eventChan)
	flusher.Flush()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("SSE client disconnected", "session_id", sessionID)
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()

		case <-pingTicker.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE format
func writeSSEEvent(w http.ResponseWriter, event SnapshotEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// MarshalJSON writes non-finite fitness values as strings.
func (e SnapshotEvent) MarshalJSON() ([]byte, error) {
	type plain SnapshotEvent
	return json.Marshal(struct {
		plain
		BestFitness objective.Float   `json:"bestFitness"`
		Fitness     []objective.Float `json:"fitness"`
	}{plain(e), objective.Float(e.BestFitness), objective.Floats(e.Fitness)})
}

func (e *SnapshotEvent) UnmarshalJSON(data []byte) error {
	type plain SnapshotEvent
	aux := struct {
		*plain
		BestFitness objective.Float   `json:"bestFitness"`
		Fitness     []objective.Float `json:"fitness"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.BestFitness = float64(aux.BestFitness)
	e.Fitness = objective.Float64s(aux.Fitness)
	return nil
}
