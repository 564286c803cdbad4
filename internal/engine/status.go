package engine

import (
	"sync"
	"time"
)

// Snapshot: итог последнего цикла для админского API.
type Snapshot struct {
	CycleID     string    `json:"cycle_id"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  int64     `json:"duration_ms"`
	Outcome     Outcome   `json:"outcome"`
	State       string    `json:"state,omitempty"`
	Description string    `json:"description,omitempty"`
	Metric      *int64    `json:"metric,omitempty"`
	Error       string    `json:"error,omitempty"`
	Cycles      uint64    `json:"cycles"`
}

// StatusTracker хранит последний Snapshot. Пишет только цикл агента,
// читает HTTP-сервер из своих горутин.
type StatusTracker struct {
	mu   sync.RWMutex
	last Snapshot
	seen bool
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

func (s *StatusTracker) record(res CycleResult) {
	snap := Snapshot{
		CycleID:    res.ID,
		StartedAt:  res.StartedAt,
		DurationMs: res.Duration.Milliseconds(),
		Outcome:    res.Outcome,
	}
	if res.Event != nil {
		snap.State = res.Event.State.String()
		snap.Description = res.Event.Description
		snap.Metric = res.Event.Metric
	}
	if res.Err != nil {
		snap.Error = res.Err.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Cycles = s.last.Cycles + 1
	s.last = snap
	s.seen = true
}

// Snapshot возвращает копию последнего цикла; ok=false, пока циклов не было.
func (s *StatusTracker) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.seen
}
