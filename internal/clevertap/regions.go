// Package clevertap resolves the upload endpoint for a connection and sends
// profile uploads to it.
package clevertap

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError marks a configuration problem that must halt a sync run rather
// than be recorded as a per-record failure.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return "configuration error: " + e.Reason + ": " + e.Err.Error()
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// DefaultRegions maps region codes to the profile upload URL.
var DefaultRegions = map[string]string{
	"US": "https://us1.api.clevertap.com/1/upload",
	"IN": "https://in1.api.clevertap.com/1/upload",
	"EU": "https://eu1.api.clevertap.com/1/upload",
}

// RegionTable is an immutable, case-insensitive region lookup.
type RegionTable struct {
	urls map[string]string
}

func NewRegionTable(entries map[string]string) (*RegionTable, error) {
	t := &RegionTable{urls: make(map[string]string, len(entries))}
	for code, url := range entries {
		c := strings.ToUpper(strings.TrimSpace(code))
		u := strings.TrimSpace(url)
		if c == "" || u == "" {
			return nil, fmt.Errorf("region table: blank code or url for %q", code)
		}
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			return nil, fmt.Errorf("region table: %s url %q is not http(s)", c, u)
		}
		if _, dup := t.urls[c]; dup {
			return nil, fmt.Errorf("region table: duplicate code %s", c)
		}
		t.urls[c] = u
	}
	return t, nil
}

// Default returns the built-in US/IN/EU table.
func Default() *RegionTable {
	t, _ := NewRegionTable(DefaultRegions)
	return t
}

type regionFile struct {
	Regions map[string]string `yaml:"regions"`
}

// LoadRegionTable reads a YAML document of the form:
//
//	regions:
//	  US: https://us1.api.clevertap.com/1/upload
func LoadRegionTable(path string) (*RegionTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region table: %w", err)
	}
	return ParseRegionTable(b)
}

func ParseRegionTable(b []byte) (*RegionTable, error) {
	var f regionFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse region table: %w", err)
	}
	if len(f.Regions) == 0 {
		return nil, errors.New("parse region table: no regions defined")
	}
	return NewRegionTable(f.Regions)
}

// Codes lists the known region codes in sorted order.
func (t *RegionTable) Codes() []string {
	out := make([]string, 0, len(t.urls))
	for c := range t.urls {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (t *RegionTable) Lookup(region string) (string, bool) {
	u, ok := t.urls[strings.ToUpper(strings.TrimSpace(region))]
	return u, ok
}

// Resolve returns the upload URL for a region code. Unknown or blank
// regions are configuration errors.
func (t *RegionTable) Resolve(region string) (string, error) {
	if strings.TrimSpace(region) == "" {
		return "", &ConfigError{Reason: "connection has no region"}
	}
	u, ok := t.Lookup(region)
	if !ok {
		return "", &ConfigError{Reason: fmt.Sprintf("unsupported region %q (known: %s)", region, strings.Join(t.Codes(), ", "))}
	}
	return u, nil
}
