package events

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory append-only store for tests and the CLI.
type MemoryRepo struct {
	mu     sync.Mutex
	events []SyncEvent
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e SyncEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) List(_ context.Context, f Filter) ([]SyncEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SyncEvent, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		if f.Matches(r.events[i]) {
			out = append(out, r.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Events returns every event in append order.
func (r *MemoryRepo) Events() []SyncEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SyncEvent, len(r.events))
	copy(out, r.events)
	return out
}
