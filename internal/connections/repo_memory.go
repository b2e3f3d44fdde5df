package connections

import (
	"context"
	"strings"
	"sync"
)

type MemoryRepo struct {
	mu    sync.Mutex
	conns []Connection
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(_ context.Context, c Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.conns {
		if strings.EqualFold(existing.Name, c.Name) {
			return ErrInvalidRequest
		}
	}
	r.conns = append(r.conns, c)
	return nil
}

func (r *MemoryRepo) ListAll(context.Context) ([]Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Connection, len(r.conns))
	copy(out, r.conns)
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.ID == id {
			return c, nil
		}
	}
	return Connection{}, ErrNotFound
}

func (r *MemoryRepo) Update(_ context.Context, c Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conns {
		if r.conns[i].ID == c.ID {
			r.conns[i] = c
			return nil
		}
	}
	return ErrNotFound
}
