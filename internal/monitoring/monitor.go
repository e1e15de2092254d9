package monitoring

import (
	"sync"
	"time"
)

// Board is the status board served with the rig status: the latest value of
// a few named facts and how many dispenses ended with each outcome.
type Board struct {
	mu      sync.RWMutex
	facts   map[string]interface{}
	counts  map[string]int
	started time.Time
	now     func() time.Time
}

func NewBoard() *Board {
	return &Board{
		facts:   make(map[string]interface{}),
		counts:  make(map[string]int),
		started: time.Now(),
		now:     time.Now,
	}
}

// Set pins a fact to the board, replacing any previous value.
func (b *Board) Set(name string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facts[name] = value
}

func (b *Board) Get(name string) (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.facts[name]
	return v, ok
}

// NoteFault records the last hardware fault and when it happened.
func (b *Board) NoteFault(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facts["last_fault"] = err.Error()
	b.facts["last_fault_at"] = b.now().Format(time.RFC3339)
}

// RecordDispense describes the last dispense and counts its outcome.
func (b *Board) RecordDispense(recipe, outcome string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facts["last_dispense_recipe"] = recipe
	b.facts["last_dispense_outcome"] = outcome
	b.facts["last_dispense_seconds"] = d.Seconds()
	b.facts["last_dispense_at"] = b.now().Format(time.RFC3339)
	b.counts[outcome]++
}

// Snapshot flattens the board into one map. Outcome counts appear as
// dispenses_<outcome>.
func (b *Board) Snapshot() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]interface{}, len(b.facts)+len(b.counts)+1)
	for k, v := range b.facts {
		out[k] = v
	}
	for outcome, n := range b.counts {
		out["dispenses_"+outcome] = n
	}
	out["uptime_seconds"] = b.now().Sub(b.started).Seconds()
	return out
}

// Reset wipes facts and counts; uptime keeps running.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facts = make(map[string]interface{})
	b.counts = make(map[string]int)
}
