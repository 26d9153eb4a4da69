package watch

import (
	"sync"
	"time"
)

// State is the externally observable phase of one unit's session.
type State string

const (
	StateWatching State = "watching"
	StateBuilding State = "building"
	StateSyncing  State = "syncing"
	StateError    State = "error"
	StateSkipped  State = "skipped"
	StateClosed   State = "closed"
)

// Status is a point-in-time snapshot of one unit's session, published
// for the status server and any other observers.
type Status struct {
	UnitID    string    `json:"unit_id"`
	Handle    string    `json:"handle"`
	State     State     `json:"state"`
	Errors    []string  `json:"errors,omitempty"`
	BuildSeq  uint64    `json:"build_seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// statusBoard aggregates per-unit statuses and notifies a single
// listener on every change. Sessions write to it from their own event
// loops; readers take snapshots.
type statusBoard struct {
	mu       sync.RWMutex
	statuses map[string]Status
	onUpdate func(Status)
}

func newStatusBoard(onUpdate func(Status)) *statusBoard {
	return &statusBoard{
		statuses: make(map[string]Status),
		onUpdate: onUpdate,
	}
}

func (b *statusBoard) set(status Status) {
	status.UpdatedAt = time.Now()
	b.mu.Lock()
	b.statuses[status.UnitID] = status
	b.mu.Unlock()
	if b.onUpdate != nil {
		b.onUpdate(status)
	}
}

// Snapshot returns a copy of every unit's latest status.
func (b *statusBoard) Snapshot() []Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Status, 0, len(b.statuses))
	for _, s := range b.statuses {
		out = append(out, s)
	}
	return out
}
