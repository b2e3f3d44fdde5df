package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var ErrInvalidEntityType = errors.New("mapping: entity type required")

// Repository is the read contract the engine needs from configuration storage.
type Repository interface {
	// ListActive returns every Active configuration for the source entity and
	// direction. Entity names are matched case-insensitively.
	ListActive(ctx context.Context, sourceEntity string, direction Direction) ([]SyncConfiguration, error)
	// Mappings returns the configuration's mappings in declaration order.
	Mappings(ctx context.Context, configID string) ([]FieldMapping, error)
}

// Resolver picks the applicable configuration for an entity type.
//
// When more than one Active configuration matches, the earliest created wins,
// ties broken by the smaller ID.
type Resolver struct {
	repo Repository
	log  *slog.Logger
}

func NewResolver(repo Repository, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{repo: repo, log: log}
}

// Resolve returns (config, true, nil) when an Active configuration exists and
// (ResolvedConfig{}, false, nil) when none does. The result may still be
// unusable; see ResolvedConfig.Usable.
func (r *Resolver) Resolve(ctx context.Context, entityType string) (ResolvedConfig, bool, error) {
	entityType = strings.TrimSpace(entityType)
	if entityType == "" {
		return ResolvedConfig{}, false, ErrInvalidEntityType
	}
	if r.repo == nil {
		return ResolvedConfig{}, false, errors.New("mapping: repository not configured")
	}

	cfgs, err := r.repo.ListActive(ctx, entityType, DirectionOutbound)
	if err != nil {
		return ResolvedConfig{}, false, fmt.Errorf("mapping: list configurations for %s: %w", entityType, err)
	}
	active := cfgs[:0:0]
	for _, c := range cfgs {
		if c.Status == StatusActive {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return ResolvedConfig{}, false, nil
	}
	if len(active) > 1 {
		r.log.Warn("multiple active sync configurations", "entity", entityType, "count", len(active))
	}
	chosen := pickEarliest(active)

	ms, err := r.repo.Mappings(ctx, chosen.ID)
	if err != nil {
		return ResolvedConfig{}, false, fmt.Errorf("mapping: load mappings for %s: %w", chosen.ID, err)
	}
	ordered := make([]FieldMapping, len(ms))
	copy(ordered, ms)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	return ResolvedConfig{Config: chosen, Mappings: ordered}, true, nil
}

func pickEarliest(cfgs []SyncConfiguration) SyncConfiguration {
	best := cfgs[0]
	for _, c := range cfgs[1:] {
		if c.CreatedAt.Before(best.CreatedAt) || (c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID) {
			best = c
		}
	}
	return best
}

// Snapshot memoizes resolutions for the lifetime of one batch so that every
// record of the same entity sees the same configuration. Safe for concurrent use.
type Snapshot struct {
	resolver *Resolver

	mu      sync.Mutex
	entries map[string]*snapshotEntry
}

type snapshotEntry struct {
	once sync.Once
	rc   ResolvedConfig
	ok   bool
	err  error
}

func (r *Resolver) Snapshot() *Snapshot {
	return &Snapshot{resolver: r, entries: map[string]*snapshotEntry{}}
}

func (s *Snapshot) Resolve(ctx context.Context, entityType string) (ResolvedConfig, bool, error) {
	key := strings.ToLower(strings.TrimSpace(entityType))

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &snapshotEntry{}
		s.entries[key] = e
	}
	s.mu.Unlock()

	e.once.Do(func() {
		e.rc, e.ok, e.err = s.resolver.Resolve(ctx, entityType)
	})
	return e.rc, e.ok, e.err
}
