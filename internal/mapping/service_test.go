package mapping

import (
	"context"
	"errors"
	"testing"
)

func TestService_CreateValidatesAndOrders(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	rc, err := svc.Create(context.Background(), CreateConfigRequest{
		SourceEntity: "Lead",
		Status:       StatusActive,
		Mappings: []FieldMapping{
			{SourceField: "Email", TargetField: "customer_id", Mandatory: true},
			{SourceField: "AnnualRevenue", TargetField: "revenue", DataType: "number"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rc.Config.TargetEntity != "profile" || rc.Config.Direction != DirectionOutbound {
		t.Fatalf("expected defaults applied, got %+v", rc.Config)
	}
	if rc.Mappings[0].DataType != TypeText || rc.Mappings[1].DataType != TypeNumber {
		t.Fatalf("expected normalized data types, got %+v", rc.Mappings)
	}
	if rc.Mappings[1].Position != 1 {
		t.Fatalf("expected positions in declaration order")
	}
}

func TestService_CreateRejectsBadInput(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateConfigRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing entity, got %v", err)
	}
	_, err := svc.Create(ctx, CreateConfigRequest{SourceEntity: "Lead", Mappings: []FieldMapping{{SourceField: "A", TargetField: "a", DataType: "Geo"}}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for unknown type, got %v", err)
	}
	_, err = svc.Create(ctx, CreateConfigRequest{SourceEntity: "Lead", Mappings: []FieldMapping{
		{SourceField: "A", TargetField: "x"}, {SourceField: "B", TargetField: "X"},
	}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for duplicate target, got %v", err)
	}
}

func TestService_StatusToggleAndCascadeDelete(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	rc, err := svc.Create(ctx, CreateConfigRequest{SourceEntity: "Contact", Mappings: []FieldMapping{{SourceField: "Email", TargetField: "customer_id", Mandatory: true}}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rc.Config.Status != StatusInactive {
		t.Fatalf("expected new configs to start inactive")
	}
	if err := svc.SetStatus(ctx, rc.Config.ID, StatusActive); err != nil {
		t.Fatalf("set status: %v", err)
	}
	active, _ := repo.ListActive(ctx, "contact", DirectionOutbound)
	if len(active) != 1 {
		t.Fatalf("expected config to be active")
	}

	m, err := svc.AddMapping(ctx, rc.Config.ID, FieldMapping{SourceField: "Phone", TargetField: "phone"})
	if err != nil {
		t.Fatalf("add mapping: %v", err)
	}
	if m.Position != 1 {
		t.Fatalf("expected appended position 1, got %d", m.Position)
	}

	if err := svc.Delete(ctx, rc.Config.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ms, _ := repo.Mappings(ctx, rc.Config.ID)
	if len(ms) != 0 {
		t.Fatalf("expected mappings deleted with config")
	}
	if err := svc.SetStatus(ctx, rc.Config.ID, StatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseSeed_DefaultsActive(t *testing.T) {
	sf, err := ParseSeed([]byte(`
configs:
  - source_entity: Lead
    mappings:
      - {source: Email, target: customer_id, type: Text, mandatory: true}
      - {source: Phone, target: phone}
`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(sf.Configs) != 1 || sf.Configs[0].Status != StatusActive {
		t.Fatalf("expected one active config, got %+v", sf.Configs)
	}

	svc := NewService(NewMemoryRepo())
	rcs, err := sf.Apply(context.Background(), svc)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !rcs[0].Usable() {
		t.Fatalf("expected seeded config usable")
	}
}
