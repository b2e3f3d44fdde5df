package mapping

import (
	"strings"
	"time"
)

// IdentifierField is the external unique identifier every usable
// configuration must map exactly once, as a mandatory mapping.
const IdentifierField = "customer_id"

// SyncConfiguration declares that one source entity synchronizes to one
// external entity. It is owned by administrators; the engine only reads it.
type SyncConfiguration struct {
	ID           string    `json:"id" db:"id" yaml:"id"`
	SourceEntity string    `json:"source_entity" db:"source_entity" yaml:"source_entity"`
	TargetEntity string    `json:"target_entity" db:"target_entity" yaml:"target_entity"`
	Status       Status    `json:"status" db:"status" yaml:"status"`
	Direction    Direction `json:"direction" db:"direction" yaml:"direction"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" yaml:"created_at"`
}

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

func (s Status) Valid() bool { return s == StatusActive || s == StatusInactive }

// Direction tags which way a configuration syncs. Only outbound exists today.
type Direction string

const DirectionOutbound Direction = "CRM_TO_CLEVERTAP"

// FieldMapping is one source-field to target-field rule. Position keeps the
// administrator's declaration order.
type FieldMapping struct {
	ID          string   `json:"id" db:"id" yaml:"id"`
	ConfigID    string   `json:"config_id" db:"config_id" yaml:"-"`
	Position    int      `json:"position" db:"position" yaml:"-"`
	SourceField string   `json:"source_field" db:"source_field" yaml:"source"`
	TargetField string   `json:"target_field" db:"target_field" yaml:"target"`
	DataType    DataType `json:"data_type" db:"data_type" yaml:"type"`
	Mandatory   bool     `json:"mandatory" db:"mandatory" yaml:"mandatory"`
}

// IsIdentifier reports whether the mapping feeds the external identity.
func (m FieldMapping) IsIdentifier() bool {
	return m.Mandatory && strings.EqualFold(strings.TrimSpace(m.TargetField), IdentifierField)
}

type DataType string

const (
	TypeText     DataType = "Text"
	TypeNumber   DataType = "Number"
	TypeDate     DataType = "Date"
	TypeDateTime DataType = "DateTime"
	TypeBoolean  DataType = "Boolean"
)

// ParseDataType normalizes a declared type name. Unknown names are returned
// unchanged so that coercion reports them.
func ParseDataType(s string) DataType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string":
		return TypeText
	case "number", "numeric", "decimal", "integer":
		return TypeNumber
	case "date":
		return TypeDate
	case "datetime":
		return TypeDateTime
	case "boolean", "bool", "checkbox":
		return TypeBoolean
	default:
		return DataType(s)
	}
}

func (t DataType) Known() bool {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeDateTime, TypeBoolean:
		return true
	default:
		return false
	}
}

// ResolvedConfig bundles the chosen configuration with its ordered mappings.
type ResolvedConfig struct {
	Config   SyncConfiguration `json:"config"`
	Mappings []FieldMapping    `json:"mappings"`
}

// Identifier returns the single mandatory identifier mapping.
// ok is false when there is none or more than one.
func (rc ResolvedConfig) Identifier() (FieldMapping, bool) {
	var found FieldMapping
	n := 0
	for _, m := range rc.Mappings {
		if m.IsIdentifier() {
			found = m
			n++
		}
	}
	return found, n == 1
}

// Usable reports whether the configuration can produce a payload at all.
func (rc ResolvedConfig) Usable() bool {
	_, ok := rc.Identifier()
	return ok
}
