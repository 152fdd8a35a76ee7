package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
	"github.com/cwbudde/fireflyviz/internal/store"
)

// SessionState represents the current state of an animation session
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateRunning   SessionState = "running"
	StatePaused    SessionState = "paused"
	StateCompleted SessionState = "completed"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
	ErrSessionRunning   = errors.New("session is running")

	errTickDropped = errors.New("session no longer running")
)

// SessionConfig is the request body for creating a session.
type SessionConfig struct {
	Objective  string              `json:"objective"`
	Dimension  int                 `json:"dim"`
	Seed       int64               `json:"seed"`
	IntervalMs int                 `json:"intervalMs"`
	Params     *firefly.Parameters `json:"params,omitempty"`
}

// resolve fills in defaults and validates the configuration.
func (c *SessionConfig) resolve(defaultInterval time.Duration) (objective.Func, time.Duration, error) {
	if c.Objective == "" {
		c.Objective = "example"
	}
	def, err := objective.Lookup(c.Objective)
	if err != nil {
		return nil, 0, err
	}
	if c.Dimension == 0 {
		c.Dimension = max(def.Dims, 1)
	}
	if err := def.CheckDimension(c.Dimension); err != nil {
		return nil, 0, err
	}

	p := firefly.DefaultParameters()
	if c.Params != nil {
		p = *c.Params
		p.Lower = append([]float64(nil), p.Lower...)
		p.Upper = append([]float64(nil), p.Upper...)
	}
	c.Params = &p
	if len(c.Params.Lower) == 0 {
		c.Params.Lower = []float64{def.Lower}
	}
	if len(c.Params.Upper) == 0 {
		c.Params.Upper = []float64{def.Upper}
	}
	if err := c.Params.Validate(c.Dimension); err != nil {
		return nil, 0, err
	}

	// Pin the seed so a persisted run can be replayed
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}

	interval := defaultInterval
	if c.IntervalMs < 0 {
		return nil, 0, fmt.Errorf("intervalMs cannot be negative")
	} else if c.IntervalMs > 0 {
		interval = time.Duration(c.IntervalMs) * time.Millisecond
	}
	c.IntervalMs = int(interval / time.Millisecond)

	return objective.Guard(def.Func), interval, nil
}

// Session is one interactive firefly run.
type Session struct {
	ID        string
	State     SessionState
	Config    SessionConfig
	CreatedAt time.Time
	RunID     string // Set once the completed run is persisted
	Error     string

	driver   *firefly.Driver
	interval time.Duration
	states   []firefly.PopulationState
	cancel   context.CancelFunc
}

// SessionStatus is a point-in-time copy of a session, safe to encode.
type SessionStatus struct {
	ID           string                   `json:"id"`
	State        SessionState             `json:"state"`
	Phase        firefly.Phase            `json:"phase"`
	Config       SessionConfig            `json:"config"`
	Iteration    int                      `json:"iteration"`
	BestFitness  float64                  `json:"bestFitness"`
	BestPosition []float64                `json:"bestPosition,omitempty"`
	CreatedAt    time.Time                `json:"createdAt"`
	RunID        string                   `json:"runId,omitempty"`
	Error        string                   `json:"error,omitempty"`
	Snapshot     *firefly.PopulationState `json:"snapshot,omitempty"`
}

// status must be called with the manager lock held.
func (s *Session) status(withSnapshot bool) SessionStatus {
	st := SessionStatus{
		ID:        s.ID,
		State:     s.State,
		Phase:     s.driver.Phase(),
		Config:    s.Config,
		CreatedAt: s.CreatedAt,
		RunID:     s.RunID,
		Error:     s.Error,
	}
	if state, ok := s.driver.State(); ok {
		st.Iteration = state.Iteration
		st.BestFitness = state.BestFitness
		st.BestPosition = append([]float64(nil), state.BestPosition...)
		if withSnapshot {
			snap := state.Clone()
			st.Snapshot = &snap
		}
	}
	return st
}

// SessionManager manages the lifecycle of sessions
type SessionManager struct {
	mu              sync.RWMutex
	sessions        map[string]*Session
	broadcaster     *EventBroadcaster
	store           *store.FSStore
	defaultInterval time.Duration
}

// NewSessionManager creates a new SessionManager. Completed sessions are
// persisted to st when it is not nil.
func NewSessionManager(st *store.FSStore, defaultInterval time.Duration) *SessionManager {
	if defaultInterval <= 0 {
		defaultInterval = 500 * time.Millisecond
	}
	return &SessionManager{
		sessions:        make(map[string]*Session),
		broadcaster:     NewEventBroadcaster(),
		store:           st,
		defaultInterval: defaultInterval,
	}
}

// CreateSession validates the configuration and creates an initialized,
// idle session.
func (sm *SessionManager) CreateSession(cfg SessionConfig) (SessionStatus, error) {
	fn, interval, err := cfg.resolve(sm.defaultInterval)
	if err != nil {
		return SessionStatus{}, err
	}

	driver, err := firefly.NewDriver(*cfg.Params, fn, cfg.Dimension, firefly.NewSource(cfg.Seed))
	if err != nil {
		return SessionStatus{}, err
	}
	initial, err := driver.Reset()
	if err != nil {
		return SessionStatus{}, err
	}

	session := &Session{
		ID:        uuid.New().String(),
		State:     StateIdle,
		Config:    cfg,
		CreatedAt: time.Now(),
		driver:    driver,
		interval:  interval,
		states:    []firefly.PopulationState{initial},
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	st := session.status(false)
	sm.mu.Unlock()

	sm.broadcaster.Broadcast(newSnapshotEvent(session.ID, StateIdle, firefly.PhaseInitialized, initial))

	slog.Info("Session created",
		"session_id", session.ID,
		"objective", cfg.Objective,
		"dimension", cfg.Dimension,
		"population", cfg.Params.PopulationSize,
		"seed", cfg.Seed,
	)
	return st, nil
}

// GetSession returns the status of a session, including its latest snapshot.
func (sm *SessionManager) GetSession(id string) (SessionStatus, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[id]
	if !exists {
		return SessionStatus{}, false
	}
	return session.status(true), true
}

// ListSessions returns all sessions, oldest first
func (sm *SessionManager) ListSessions() []SessionStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]SessionStatus, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		list = append(list, session.status(false))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// History returns the best fitness of every state the session has produced.
func (sm *SessionManager) History(id string) ([]float64, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	h := make([]float64, len(session.states))
	for i, s := range session.states {
		h[i] = s.BestFitness
	}
	return h, nil
}

// Start launches the animation worker. Starting a running session is a no-op.
func (sm *SessionManager) Start(id string) (SessionStatus, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[id]
	if !exists {
		return SessionStatus{}, ErrSessionNotFound
	}
	switch session.State {
	case StateCompleted:
		return session.status(false), ErrSessionCompleted
	case StateRunning:
		return session.status(false), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	session.cancel = cancel
	session.State = StateRunning
	go runSession(ctx, sm, id, session.interval)

	slog.Info("Session started", "session_id", id, "interval", session.interval)
	return session.status(false), nil
}

// Pause stops the animation worker, keeping the current state.
func (sm *SessionManager) Pause(id string) (SessionStatus, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[id]
	if !exists {
		return SessionStatus{}, ErrSessionNotFound
	}
	if session.State == StateRunning {
		session.stop()
		session.State = StatePaused
		slog.Info("Session paused", "session_id", id)
	}
	return session.status(false), nil
}

// Step advances a session that is not animating by one generation.
func (sm *SessionManager) Step(id string) (SessionStatus, error) {
	_, err := sm.advance(id, func(s *Session) error {
		if s.State == StateRunning {
			return ErrSessionRunning
		}
		return nil
	})
	if err != nil {
		return SessionStatus{}, err
	}
	st, _ := sm.GetSession(id)
	return st, nil
}

// Reset pauses the session and draws a fresh initial population. The
// random source keeps going, so the new population differs from the last.
func (sm *SessionManager) Reset(id string) (SessionStatus, error) {
	sm.mu.Lock()
	session, exists := sm.sessions[id]
	if !exists {
		sm.mu.Unlock()
		return SessionStatus{}, ErrSessionNotFound
	}

	session.stop()
	initial, err := session.driver.Reset()
	if err != nil {
		sm.mu.Unlock()
		return SessionStatus{}, err
	}
	session.State = StateIdle
	session.RunID = ""
	session.Error = ""
	session.states = []firefly.PopulationState{initial}
	st := session.status(true)
	sm.mu.Unlock()

	sm.broadcaster.Broadcast(newSnapshotEvent(id, StateIdle, firefly.PhaseInitialized, initial))
	slog.Info("Session reset", "session_id", id)
	return st, nil
}

// Shutdown stops every running worker.
func (sm *SessionManager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, session := range sm.sessions {
		if session.State == StateRunning {
			session.stop()
			session.State = StatePaused
		}
	}
}

// stop cancels the worker, if any. Must be called with the manager lock held.
func (s *Session) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// tick is the worker's step. It is dropped once ctx is cancelled or the
// session left the running state, both checked under the manager lock so
// a Pause or Reset that wins the lock is never followed by a step.
func (sm *SessionManager) tick(ctx context.Context, id string) (bool, error) {
	return sm.advance(id, func(s *Session) error {
		if ctx.Err() != nil || s.State != StateRunning {
			return errTickDropped
		}
		return nil
	})
}

// advance performs one step under the manager lock, broadcasts the snapshot
// and persists the run once it completes. allow vetoes the step after the
// lock is taken. It reports whether the session is now completed.
func (sm *SessionManager) advance(id string, allow func(*Session) error) (bool, error) {
	sm.mu.Lock()
	session, exists := sm.sessions[id]
	if !exists {
		sm.mu.Unlock()
		return false, ErrSessionNotFound
	}
	if session.State == StateCompleted {
		sm.mu.Unlock()
		return true, nil
	}
	if err := allow(session); err != nil {
		sm.mu.Unlock()
		return false, err
	}

	state, err := session.driver.Step()
	if err != nil {
		session.stop()
		session.State = StatePaused
		session.Error = err.Error()
		sm.mu.Unlock()
		return false, err
	}
	session.states = append(session.states, state)

	done := session.driver.Done()
	if done {
		session.stop()
		session.State = StateCompleted
	}
	event := newSnapshotEvent(id, session.State, session.driver.Phase(), state)

	var record *store.RunRecord
	var states []firefly.PopulationState
	if done && sm.store != nil {
		session.RunID = uuid.New().String()
		cfg := session.Config
		record = store.NewRunRecord(session.RunID, "server", cfg.Objective, cfg.Dimension, cfg.Seed, *cfg.Params, session.states)
		states = session.states
	}
	sm.mu.Unlock()

	sm.broadcaster.Broadcast(event)

	if done {
		slog.Info("Session completed",
			"session_id", id,
			"iterations", state.Iteration,
			"best_fitness", state.BestFitness,
		)
	}
	if record != nil {
		if err := sm.store.SaveRunWithTrace(record, states); err != nil {
			slog.Error("Failed to persist session run", "session_id", id, "run_id", record.RunID, "error", err)
			sm.mu.Lock()
			session.RunID = ""
			session.Error = err.Error()
			sm.mu.Unlock()
		} else {
			slog.Info("Session run saved", "session_id", id, "run_id", record.RunID)
		}
	}
	return done, nil
}

// MarshalJSON writes a non-finite best fitness as a string.
func (s SessionStatus) MarshalJSON() ([]byte, error) {
	type plain SessionStatus
	return json.Marshal(struct {
		plain
		BestFitness objective.Float `json:"bestFitness"`
	}{plain(s), objective.Float(s.BestFitness)})
}

func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	type plain SessionStatus
	aux := struct {
		*plain
		BestFitness objective.Float `json:"bestFitness"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.BestFitness = float64(aux.BestFitness)
	return nil
}
