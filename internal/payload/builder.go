// Package payload assembles the external profile upload from a record and
// its resolved field mappings.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"clevertap-sync/internal/coerce"
	"clevertap-sync/internal/mapping"
	"clevertap-sync/internal/records"
)

// ProfileType is the upload discriminator for profile upserts.
const ProfileType = "profile"

// Upload is the request body of the profile upload API.
type Upload struct {
	D []Profile `json:"d"`
}

type Profile struct {
	Type        string         `json:"type"`
	ProfileData map[string]any `json:"profileData"`
	Identity    string         `json:"identity"`
}

// Payload is a built upload plus the non-fatal problems met while building it.
type Payload struct {
	Upload      Upload
	Diagnostics []string
}

// Body returns the JSON request body.
func (p Payload) Body() ([]byte, error) {
	return json.Marshal(p.Upload)
}

// Trace renders the body followed by any diagnostics, for the event log.
func (p Payload) Trace() string {
	b, err := p.Body()
	if err != nil {
		return fmt.Sprintf("unencodable payload: %v", err)
	}
	if len(p.Diagnostics) == 0 {
		return string(b)
	}
	return string(b) + "\nDiagnostics:\n- " + strings.Join(p.Diagnostics, "\n- ")
}

var (
	ErrNilRecord        = errors.New("payload: record is nil")
	ErrNoIdentifier     = errors.New("payload: configuration has no mandatory identifier mapping")
	ErrBlankIdentifier  = errors.New("payload: identifier value is blank")
	ErrMandatoryMissing = errors.New("payload: mandatory field has no value")
)

// BuildError aborts a record before any network call. Partial holds the
// best-effort payload or diagnostic text for the event log.
type BuildError struct {
	RecordID string
	Field    string
	Err      error
	Partial  string
}

func (e *BuildError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("build payload for %s: field %s: %v", e.RecordID, e.Field, e.Err)
	}
	return fmt.Sprintf("build payload for %s: %v", e.RecordID, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder converts records into uploads. It holds no state and is safe for
// concurrent use.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// Build walks the mappings in declaration order. Missing source fields are
// treated as null. Mandatory fields that are null or fail coercion abort the
// record; optional ones that fail coercion are dropped and reported.
func (b *Builder) Build(rec records.Record, rc mapping.ResolvedConfig) (Payload, error) {
	if rec == nil {
		return Payload{}, ErrNilRecord
	}
	if !rc.Usable() {
		return Payload{}, &BuildError{RecordID: rec.ID(), Err: ErrNoIdentifier}
	}

	prof := Profile{Type: ProfileType, ProfileData: map[string]any{}}
	var diags []string
	identified := false

	for _, m := range rc.Mappings {
		raw, _ := rec.Field(m.SourceField)
		val, err := coerce.Coerce(raw, m.DataType)

		if m.IsIdentifier() {
			if err != nil {
				return Payload{}, b.fail(rec, prof, diags, m, err)
			}
			id := strings.TrimSpace(coerce.Text(val))
			if id == "" {
				return Payload{}, b.fail(rec, prof, diags, m, ErrBlankIdentifier)
			}
			prof.Identity = id
			identified = true
			continue
		}

		if err != nil {
			if m.Mandatory {
				return Payload{}, b.fail(rec, prof, diags, m, err)
			}
			diags = append(diags, fmt.Sprintf("%s -> %s dropped: %v", m.SourceField, m.TargetField, err))
			continue
		}
		if val == nil {
			if m.Mandatory {
				return Payload{}, b.fail(rec, prof, diags, m, ErrMandatoryMissing)
			}
			continue
		}
		if s, ok := val.(string); ok && m.Mandatory && strings.TrimSpace(s) == "" {
			return Payload{}, b.fail(rec, prof, diags, m, ErrMandatoryMissing)
		}
		prof.ProfileData[m.TargetField] = val
	}

	if !identified {
		return Payload{}, &BuildError{RecordID: rec.ID(), Err: ErrNoIdentifier}
	}
	return Payload{Upload: Upload{D: []Profile{prof}}, Diagnostics: diags}, nil
}

func (b *Builder) fail(rec records.Record, partial Profile, diags []string, m mapping.FieldMapping, err error) error {
	p := Payload{Upload: Upload{D: []Profile{partial}}, Diagnostics: append(diags, fmt.Sprintf("%s -> %s: %v", m.SourceField, m.TargetField, err))}
	return &BuildError{RecordID: rec.ID(), Field: m.SourceField, Err: err, Partial: p.Trace()}
}
