package mapping

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory Store for tests and the CLI.
type MemoryRepo struct {
	mu       sync.Mutex
	configs  map[string]SyncConfiguration
	mappings map[string][]FieldMapping
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{configs: map[string]SyncConfiguration{}, mappings: map[string][]FieldMapping{}}
}

func (r *MemoryRepo) ListActive(ctx context.Context, sourceEntity string, direction Direction) ([]SyncConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SyncConfiguration
	for _, c := range r.configs {
		if c.Status != StatusActive || c.Direction != direction {
			continue
		}
		if !strings.EqualFold(c.SourceEntity, sourceEntity) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) Mappings(ctx context.Context, configID string) ([]FieldMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms := r.mappings[configID]
	out := make([]FieldMapping, len(ms))
	copy(out, ms)
	return out, nil
}

func (r *MemoryRepo) CreateConfig(ctx context.Context, cfg SyncConfiguration, mappings []FieldMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ID] = cfg
	ms := make([]FieldMapping, len(mappings))
	copy(ms, mappings)
	r.mappings[cfg.ID] = ms
	return nil
}

func (r *MemoryRepo) ListConfigs(ctx context.Context) ([]SyncConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SyncConfiguration, 0, len(r.configs))
	for _, c := range r.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) GetConfig(ctx context.Context, id string) (SyncConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return SyncConfiguration{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	r.configs[id] = c
	return nil
}

func (r *MemoryRepo) DeleteConfig(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[id]; !ok {
		return ErrNotFound
	}
	delete(r.configs, id)
	delete(r.mappings, id)
	return nil
}

func (r *MemoryRepo) AddMapping(ctx context.Context, m FieldMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[m.ConfigID]; !ok {
		return ErrNotFound
	}
	r.mappings[m.ConfigID] = append(r.mappings[m.ConfigID], m)
	return nil
}
