package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Record is the read-only view the sync engine needs of a CRM record.
//
// Field lookups are by source field name and must not fail for unknown names;
// a missing field is reported with ok=false and treated as null by callers.
type Record interface {
	ID() string
	Type() string
	Field(name string) (value any, ok bool)
}

// Map is a Record backed by a plain key/value map.
// Field names are matched case-insensitively, the way CRM API names are.
type Map struct {
	RecordID   string
	RecordType string
	Values     map[string]any
}

func (m Map) ID() string   { return m.RecordID }
func (m Map) Type() string { return m.RecordType }

func (m Map) Field(name string) (any, bool) {
	if m.Values == nil || name == "" {
		return nil, false
	}
	if v, ok := m.Values[name]; ok {
		return v, true
	}
	for k, v := range m.Values {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

var ErrInvalidRecord = errors.New("records: invalid record")

// Envelope is the wire form of a record accepted by the HTTP API and the CLI.
type Envelope struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// Record converts the envelope into a Map. The Id field is exposed as "Id"
// unless the envelope already carries one.
func (e Envelope) Record() (Map, error) {
	if strings.TrimSpace(e.ID) == "" {
		return Map{}, fmt.Errorf("%w: id required", ErrInvalidRecord)
	}
	vals := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		vals[k] = v
	}
	if _, ok := vals["Id"]; !ok {
		vals["Id"] = e.ID
	}
	return Map{RecordID: e.ID, RecordType: e.Type, Values: vals}, nil
}

// Decode parses a JSON array of envelopes. Numbers are kept as json.Number so
// that numeric fields reach the coercion layer without float rounding.
func Decode(data []byte) ([]Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out []Envelope
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("records: decode: %w", err)
	}
	return out, nil
}

// DecodeOne parses a single envelope with the same number handling as Decode.
func DecodeOne(data []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out Envelope
	if err := dec.Decode(&out); err != nil {
		return Envelope{}, fmt.Errorf("records: decode: %w", err)
	}
	return out, nil
}
