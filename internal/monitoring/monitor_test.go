package monitoring

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"barrobot/internal/hardware"
)

func TestBoard_Snapshot(t *testing.T) {
	b := NewBoard()
	b.Set("recipes_imported_at", "2026-10-16T04:00:00Z")

	snap := b.Snapshot()

	value, exists := snap["recipes_imported_at"]
	if !exists {
		t.Fatalf("Expected 'recipes_imported_at' on the board, but it was not")
	}
	if value != "2026-10-16T04:00:00Z" {
		t.Errorf("Expected import time to be kept, but got %v", value)
	}
	if _, exists := snap["uptime_seconds"]; !exists {
		t.Errorf("Expected 'uptime_seconds' on the board, but it was not")
	}
}

func TestBoard_RecordDispense(t *testing.T) {
	b := NewBoard()

	b.RecordDispense("Martini", "ready", 2*time.Second)
	b.RecordDispense("Negroni", "ready", time.Second)
	b.RecordDispense("Negroni", "missing", 0)

	snap := b.Snapshot()

	if snap["dispenses_ready"] != 2 {
		t.Errorf("Expected 'dispenses_ready' to be 2, but got %v", snap["dispenses_ready"])
	}
	if snap["dispenses_missing"] != 1 {
		t.Errorf("Expected 'dispenses_missing' to be 1, but got %v", snap["dispenses_missing"])
	}
	if snap["last_dispense_outcome"] != "missing" {
		t.Errorf("Expected last outcome 'missing', but got %v", snap["last_dispense_outcome"])
	}
	if snap["last_dispense_recipe"] != "Negroni" {
		t.Errorf("Expected last recipe 'Negroni', but got %v", snap["last_dispense_recipe"])
	}
}

func TestBoard_NoteFault(t *testing.T) {
	b := NewBoard()
	at := time.Date(2026, 10, 16, 21, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return at }

	b.NoteFault(errors.New("step pin stuck"))

	if v, _ := b.Get("last_fault"); v != "step pin stuck" {
		t.Errorf("Expected last fault text, but got %v", v)
	}
	if v, _ := b.Get("last_fault_at"); v != "2026-10-16T21:30:00Z" {
		t.Errorf("Expected fault time 2026-10-16T21:30:00Z, but got %v", v)
	}
}

func TestBoard_Reset(t *testing.T) {
	b := NewBoard()
	b.Set("last_fault", "x")
	b.RecordDispense("Martini", "ready", time.Second)

	b.Reset()

	snap := b.Snapshot()
	if _, exists := snap["last_fault"]; exists {
		t.Errorf("Expected 'last_fault' to be gone after Reset(), but it was present")
	}
	if _, exists := snap["dispenses_ready"]; exists {
		t.Errorf("Expected outcome counts to be cleared after Reset(), but they were present")
	}
	if _, exists := snap["uptime_seconds"]; !exists {
		t.Errorf("Expected 'uptime_seconds' on the board, but it was not")
	}
}

func TestMetrics_ObserveAction(t *testing.T) {
	m := NewMetrics()

	m.ObserveAction(hardware.Action{Kind: hardware.ActionRotate, Simulated: true, Slots: 3})
	m.ObserveAction(hardware.Action{Kind: hardware.ActionRotate, Slots: 10})
	m.ObserveAction(hardware.Action{Kind: hardware.ActionPress, Press: 1, Of: 2})
	m.ObserveAction(hardware.Action{Kind: hardware.ActionPress, Press: 2, Of: 2})

	if got := testutil.ToFloat64(m.rotations.WithLabelValues("simulated")); got != 1 {
		t.Errorf("simulated rotations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.slotsTravelled); got != 10 {
		t.Errorf("slots travelled = %v, want 10 (simulated moves are not counted)", got)
	}
	if got := testutil.ToFloat64(m.presses.WithLabelValues("real")); got != 2 {
		t.Errorf("real presses = %v, want 2", got)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	m := NewMetrics()
	m.RecordDispense("fault", 3*time.Second)
	m.RecordFault("rotate")
	m.RecordMissing("campari")

	expected := `
# HELP barrobot_hardware_faults_total Hardware faults by failing operation
# TYPE barrobot_hardware_faults_total counter
barrobot_hardware_faults_total{op="rotate"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "barrobot_hardware_faults_total"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(m.missing); n != 1 {
		t.Errorf("missing series = %d, want 1", n)
	}
	if got := testutil.ToFloat64(m.dispenses.WithLabelValues("fault")); got != 1 {
		t.Errorf("fault dispenses = %v, want 1", got)
	}
}
