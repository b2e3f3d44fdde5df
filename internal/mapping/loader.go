package mapping

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML form of a set of sync configurations, used by the CLI
// to run batches without a database.
//
//	configs:
//	  - source_entity: Lead
//	    status: Active
//	    mappings:
//	      - {source: Email, target: customer_id, type: Text, mandatory: true}
//	      - {source: FirstName, target: first_name}
type SeedFile struct {
	Configs []CreateConfigRequest `yaml:"configs"`
}

func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (*SeedFile, error) {
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}
	for i := range sf.Configs {
		if sf.Configs[i].Status == "" {
			sf.Configs[i].Status = StatusActive
		}
	}
	return &sf, nil
}

// Apply creates every configuration in the seed through the service so that
// the same validation applies as for the admin API.
func (sf *SeedFile) Apply(ctx context.Context, svc *Service) ([]ResolvedConfig, error) {
	out := make([]ResolvedConfig, 0, len(sf.Configs))
	for i, req := range sf.Configs {
		rc, err := svc.Create(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("config %d (%s): %w", i, req.SourceEntity, err)
		}
		out = append(out, rc)
	}
	return out, nil
}
