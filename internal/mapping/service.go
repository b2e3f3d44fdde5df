package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the full persistence contract used by the administration surface.
type Store interface {
	Repository

	CreateConfig(ctx context.Context, cfg SyncConfiguration, mappings []FieldMapping) error
	ListConfigs(ctx context.Context) ([]SyncConfiguration, error)
	GetConfig(ctx context.Context, id string) (SyncConfiguration, error)
	SetStatus(ctx context.Context, id string, status Status) error
	// DeleteConfig removes the configuration and all of its mappings.
	DeleteConfig(ctx context.Context, id string) error
	AddMapping(ctx context.Context, m FieldMapping) error
}

var (
	ErrNotFound       = errors.New("mapping: not found")
	ErrInvalidRequest = errors.New("mapping: invalid request")
)

// Service is the thin administration layer over Store. It validates writes;
// it does not decide usability, which is the engine's concern.
type Service struct {
	store Store
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

type CreateConfigRequest struct {
	SourceEntity string         `json:"source_entity" yaml:"source_entity"`
	TargetEntity string         `json:"target_entity" yaml:"target_entity"`
	Status       Status         `json:"status" yaml:"status"`
	Mappings     []FieldMapping `json:"mappings" yaml:"mappings"`
}

func (s *Service) Create(ctx context.Context, req CreateConfigRequest) (ResolvedConfig, error) {
	src := strings.TrimSpace(req.SourceEntity)
	if src == "" {
		return ResolvedConfig{}, fmt.Errorf("%w: source_entity required", ErrInvalidRequest)
	}
	target := strings.TrimSpace(req.TargetEntity)
	if target == "" {
		target = "profile"
	}
	status := req.Status
	if status == "" {
		status = StatusInactive
	}
	if !status.Valid() {
		return ResolvedConfig{}, fmt.Errorf("%w: status %q", ErrInvalidRequest, status)
	}

	cfg := SyncConfiguration{
		ID:           uuid.NewString(),
		SourceEntity: src,
		TargetEntity: target,
		Status:       status,
		Direction:    DirectionOutbound,
		CreatedAt:    s.clock().UTC(),
	}

	ms := make([]FieldMapping, 0, len(req.Mappings))
	seen := map[string]struct{}{}
	for i, m := range req.Mappings {
		nm, err := normalizeMapping(m)
		if err != nil {
			return ResolvedConfig{}, err
		}
		key := strings.ToLower(nm.TargetField)
		if _, dup := seen[key]; dup {
			return ResolvedConfig{}, fmt.Errorf("%w: duplicate target field %q", ErrInvalidRequest, nm.TargetField)
		}
		seen[key] = struct{}{}
		nm.ID = uuid.NewString()
		nm.ConfigID = cfg.ID
		nm.Position = i
		ms = append(ms, nm)
	}

	if err := s.store.CreateConfig(ctx, cfg, ms); err != nil {
		return ResolvedConfig{}, err
	}
	return ResolvedConfig{Config: cfg, Mappings: ms}, nil
}

func (s *Service) List(ctx context.Context) ([]ResolvedConfig, error) {
	cfgs, err := s.store.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ResolvedConfig, 0, len(cfgs))
	for _, c := range cfgs {
		ms, err := s.store.Mappings(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedConfig{Config: c, Mappings: ms})
	}
	return out, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status Status) error {
	if id == "" || !status.Valid() {
		return ErrInvalidRequest
	}
	return s.store.SetStatus(ctx, id, status)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidRequest
	}
	return s.store.DeleteConfig(ctx, id)
}

// AddMapping appends a mapping after the existing ones.
func (s *Service) AddMapping(ctx context.Context, configID string, m FieldMapping) (FieldMapping, error) {
	if configID == "" {
		return FieldMapping{}, ErrInvalidRequest
	}
	if _, err := s.store.GetConfig(ctx, configID); err != nil {
		return FieldMapping{}, err
	}
	nm, err := normalizeMapping(m)
	if err != nil {
		return FieldMapping{}, err
	}
	existing, err := s.store.Mappings(ctx, configID)
	if err != nil {
		return FieldMapping{}, err
	}
	next := 0
	for _, e := range existing {
		if strings.EqualFold(e.TargetField, nm.TargetField) {
			return FieldMapping{}, fmt.Errorf("%w: duplicate target field %q", ErrInvalidRequest, nm.TargetField)
		}
		if e.Position >= next {
			next = e.Position + 1
		}
	}
	nm.ID = uuid.NewString()
	nm.ConfigID = configID
	nm.Position = next
	if err := s.store.AddMapping(ctx, nm); err != nil {
		return FieldMapping{}, err
	}
	return nm, nil
}

func normalizeMapping(m FieldMapping) (FieldMapping, error) {
	m.SourceField = strings.TrimSpace(m.SourceField)
	m.TargetField = strings.TrimSpace(m.TargetField)
	if m.SourceField == "" || m.TargetField == "" {
		return FieldMapping{}, fmt.Errorf("%w: source and target fields required", ErrInvalidRequest)
	}
	m.DataType = ParseDataType(string(m.DataType))
	if !m.DataType.Known() {
		return FieldMapping{}, fmt.Errorf("%w: unknown data type %q", ErrInvalidRequest, m.DataType)
	}
	return m, nil
}
