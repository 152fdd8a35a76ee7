package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
	"github.com/cwbudde/fireflyviz/internal/store"
)

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	toDelete := selectRunsForDeletion(infos, 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if !containsRun(toDelete, "run1") || !containsRun(toDelete, "run4") {
		t.Error("Expected run1 and run4 to be selected for deletion")
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 2, 0, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if !containsRun(toDelete, "run1") || !containsRun(toDelete, "run4") {
		t.Error("Expected the two oldest runs (run1, run4) to be selected")
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	// Older than 7 days selects run1 and run4; keeping 3 also selects run4, no duplicates
	toDelete := selectRunsForDeletion(infos, 3, 7, now)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 runs to delete, got %d", len(toDelete))
	}
}

func TestSelectRunsForDeletion_NothingToDelete(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.Add(-time.Hour)},
	}

	if got := selectRunsForDeletion(infos, 5, 7, now); len(got) != 0 {
		t.Errorf("Expected nothing to delete, got %d", len(got))
	}
}

func TestPrintRunTable(t *testing.T) {
	runStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	params := firefly.DefaultParameters()
	params.MaxIterations = 3
	states, err := firefly.RunToCompletion(params, objective.Example, 1, 5)
	if err != nil {
		t.Fatalf("RunToCompletion failed: %v", err)
	}
	record := store.NewRunRecord("0123456789abcdef", "cli", "example", 1, 5, params, states)
	if err := runStore.SaveRunWithTrace(record, states); err != nil {
		t.Fatalf("SaveRunWithTrace failed: %v", err)
	}

	infos, _ := runStore.ListRuns()
	var buf bytes.Buffer
	printRunTable(&buf, runStore, infos)

	out := buf.String()
	if !strings.Contains(out, "0123456789ab...") {
		t.Errorf("Expected shortened run ID in output:\n%s", out)
	}
	if !strings.Contains(out, "example (1D)") {
		t.Errorf("Expected objective column in output:\n%s", out)
	}
	if strings.Contains(out, "unknown") {
		t.Errorf("Expected a directory size in output:\n%s", out)
	}
}

func containsRun(infos []store.RunInfo, id string) bool {
	for _, info := range infos {
		if info.RunID == id {
			return true
		}
	}
	return false
}
