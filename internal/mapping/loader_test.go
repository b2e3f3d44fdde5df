package mapping

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const seedYAML = `configs:
  - source_entity: Lead
    mappings:
      - {source: Email, target: customer_id, type: Text, mandatory: true}
      - {source: AnnualRevenue, target: revenue, type: number}
  - source_entity: Contact
    status: Inactive
    mappings:
      - {source: Email, target: customer_id, mandatory: true}
`

func TestParseSeed_DefaultsToActive(t *testing.T) {
	sf, err := ParseSeed([]byte(seedYAML))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(sf.Configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(sf.Configs))
	}
	if sf.Configs[0].Status != StatusActive {
		t.Fatalf("expected default Active, got %q", sf.Configs[0].Status)
	}
	if sf.Configs[1].Status != StatusInactive {
		t.Fatalf("expected explicit Inactive kept, got %q", sf.Configs[1].Status)
	}
	m := sf.Configs[0].Mappings[0]
	if m.SourceField != "Email" || m.TargetField != "customer_id" || !m.Mandatory {
		t.Fatalf("unexpected mapping: %+v", m)
	}
}

func TestSeedFile_ApplyThroughService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	sf, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	repo := NewMemoryRepo()
	out, err := sf.Apply(context.Background(), NewService(repo))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out) != 2 || !out[0].Usable() {
		t.Fatalf("unexpected resolved configs: %+v", out)
	}
	if out[0].Mappings[1].DataType != TypeNumber {
		t.Fatalf("expected data type normalized, got %q", out[0].Mappings[1].DataType)
	}

	active, err := repo.ListActive(context.Background(), "Lead", DirectionOutbound)
	if err != nil || len(active) != 1 {
		t.Fatalf("expected one active Lead config, got %v %v", active, err)
	}
}

func TestParseSeed_Invalid(t *testing.T) {
	if _, err := ParseSeed([]byte("configs: [")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}
