package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
)

// TraceEntry is one population snapshot, serialized as a JSON line in
// trace.jsonl. Replaying the entries in order reproduces the animation.
type TraceEntry struct {
	Iteration          int         `json:"iteration"`
	BestFitness        float64     `json:"bestFitness"`
	BestPosition       []float64   `json:"bestPosition"`
	RandomizationScale float64     `json:"randomizationScale"`
	Positions          [][]float64 `json:"positions"`
	Fitness            []float64   `json:"fitness"`
	Timestamp          time.Time   `json:"timestamp"`
}

// NewTraceEntry captures a state for the trace.
func NewTraceEntry(s firefly.PopulationState) TraceEntry {
	return TraceEntry{
		Iteration:          s.Iteration,
		BestFitness:        s.BestFitness,
		BestPosition:       s.BestPosition,
		RandomizationScale: s.RandomizationScale,
		Positions:          s.Positions,
		Fitness:            s.Fitness,
		Timestamp:          time.Now(),
	}
}

// State converts the entry back into a population snapshot.
func (e TraceEntry) State() firefly.PopulationState {
	return firefly.PopulationState{
		Positions:          e.Positions,
		Fitness:            e.Fitness,
		Iteration:          e.Iteration,
		RandomizationScale: e.RandomizationScale,
		BestPosition:       e.BestPosition,
		BestFitness:        e.BestFitness,
	}
}

// TraceGapError reports a snapshot whose iteration does not follow the
// previous one.
type TraceGapError struct {
	RunID string
	Want  int
	Got   int
}

func (e *TraceGapError) Error() string {
	return fmt.Sprintf("trace of run %s: expected iteration %d, got %d", e.RunID, e.Want, e.Got)
}

func tracePath(baseDir, runID string) string {
	return filepath.Join(runDir(baseDir, runID), "trace.jsonl")
}

// TraceWriter records the snapshots of one run, starting at iteration 0.
// It is safe for concurrent use.
type TraceWriter struct {
	mu    sync.Mutex
	runID string
	file  *os.File
	buf   *bufio.Writer
	enc   *json.Encoder
	next  int
	path  string
}

// CreateTrace creates or truncates <baseDir>/runs/<runID>/trace.jsonl.
func CreateTrace(baseDir, runID string) (*TraceWriter, error) {
	if err := os.MkdirAll(runDir(baseDir, runID), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := tracePath(baseDir, runID)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	buf := bufio.NewWriterSize(file, 64*1024)
	return &TraceWriter{
		runID: runID,
		file:  file,
		buf:   buf,
		enc:   json.NewEncoder(buf),
		path:  path,
	}, nil
}

// Record appends the next snapshot. Snapshots must arrive in iteration order.
func (tw *TraceWriter) Record(s firefly.PopulationState) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if s.Iteration != tw.next {
		return &TraceGapError{RunID: tw.runID, Want: tw.next, Got: s.Iteration}
	}
	if err := tw.enc.Encode(NewTraceEntry(s)); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	tw.next++
	return nil
}

// Len returns the number of recorded snapshots.
func (tw *TraceWriter) Len() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.next
}

// Close flushes buffered entries and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.buf.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// ReplayTrace streams a run's snapshots to visit in iteration order. It
// stops at the first error returned by visit.
func ReplayTrace(baseDir, runID string, visit func(firefly.PopulationState) error) error {
	file, err := os.Open(tracePath(baseDir, runID))
	if err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{RunID: runID}
		}
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	dec := json.NewDecoder(bufio.NewReader(file))
	for want := 0; ; want++ {
		var entry TraceEntry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode trace entry %d: %w", want, err)
		}
		if entry.Iteration != want {
			return &TraceGapError{RunID: runID, Want: want, Got: entry.Iteration}
		}
		if err := visit(entry.State()); err != nil {
			return err
		}
	}
}

// LoadStates reads a run's full trace back as population states.
func LoadStates(baseDir, runID string) ([]firefly.PopulationState, error) {
	var states []firefly.PopulationState
	err := ReplayTrace(baseDir, runID, func(s firefly.PopulationState) error {
		states = append(states, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// MarshalJSON writes non-finite fitness values as strings.
func (e TraceEntry) MarshalJSON() ([]byte, error) {
	type plain TraceEntry
	return json.Marshal(struct {
		plain
		BestFitness objective.Float   `json:"bestFitness"`
		Fitness     []objective.Float `json:"fitness"`
	}{plain(e), objective.Float(e.BestFitness), objective.Floats(e.Fitness)})
}

func (e *TraceEntry) UnmarshalJSON(data []byte) error {
	type plain TraceEntry
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
