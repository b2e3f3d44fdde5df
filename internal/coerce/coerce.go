// Package coerce converts raw CRM field values into the primitive JSON
// representation the external platform expects for a declared data type.
package coerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"clevertap-sync/internal/mapping"
)

var (
	ErrNotNumeric      = errors.New("coerce: value is not numeric")
	ErrInvalidDate     = errors.New("coerce: value is not a date")
	ErrInvalidBoolean  = errors.New("coerce: value is not a boolean")
	ErrUnsupportedType = errors.New("coerce: unsupported data type")
)

// DateLayout is the canonical date-only representation.
const DateLayout = "2006-01-02"

var numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// Coerce converts raw to the representation for declared type t.
//
// A nil result with a nil error means "no value": the caller decides whether
// to omit the key. Text never yields nil; absent text is "".
func Coerce(raw any, t mapping.DataType) (any, error) {
	switch t {
	case mapping.TypeText:
		return Text(raw), nil
	case mapping.TypeNumber:
		return Number(raw)
	case mapping.TypeDate:
		return Date(raw)
	case mapping.TypeDateTime:
		return DateTime(raw)
	case mapping.TypeBoolean:
		return Boolean(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}
}

// Text stringifies raw. nil becomes "".
func Text(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Number returns a json.Number carrying the exact textual value so that
// encoding never rounds. Blank input means no value.
func Number(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case json.Number:
		return numberFromString(v.String())
	case string:
		return numberFromString(v)
	case int:
		return json.Number(strconv.FormatInt(int64(v), 10)), nil
	case int8:
		return json.Number(strconv.FormatInt(int64(v), 10)), nil
	case int16:
		return json.Number(strconv.FormatInt(int64(v), 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(v), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(v, 10)), nil
	case uint:
		return json.Number(strconv.FormatUint(uint64(v), 10)), nil
	case uint8:
		return json.Number(strconv.FormatUint(uint64(v), 10)), nil
	case uint16:
		return json.Number(strconv.FormatUint(uint64(v), 10)), nil
	case uint32:
		return json.Number(strconv.FormatUint(uint64(v), 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(v, 10)), nil
	case float32:
		return floatNumber(float64(v), 32)
	case float64:
		return floatNumber(v, 64)
	case *big.Int:
		if v == nil {
			return nil, nil
		}
		return json.Number(v.String()), nil
	case *big.Float:
		if v == nil {
			return nil, nil
		}
		return json.Number(v.Text('f', -1)), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotNumeric, raw)
	}
}

func numberFromString(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !numberPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return json.Number(s), nil
}

func floatNumber(f float64, bits int) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrNotNumeric, f)
	}
	return json.Number(strconv.FormatFloat(f, 'f', -1, bits)), nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Date normalizes raw to YYYY-MM-DD. The calendar day is taken in the value's
// own offset and never converted, so no time zone can shift it.
func Date(raw any) (any, error) {
	t, ok, err := toTime(raw)
	if err != nil || !ok {
		return nil, err
	}
	return t.Format(DateLayout), nil
}

// DateTime normalizes raw to RFC 3339 in the value's own offset.
func DateTime(raw any) (any, error) {
	t, ok, err := toTime(raw)
	if err != nil || !ok {
		return nil, err
	}
	return t.Format(time.RFC3339), nil
}

func toTime(raw any) (time.Time, bool, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false, nil
		}
		return v, true, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false, nil
		}
		return *v, true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false, nil
		}
		if t, err := time.Parse(DateLayout, s); err == nil {
			return t, true, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	default:
		return time.Time{}, false, fmt.Errorf("%w: %T", ErrInvalidDate, raw)
	}
}

// Boolean accepts bools and the usual textual spellings.
func Boolean(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "":
			return nil, nil
		case "true", "yes", "1", "y":
			return true, nil
		case "false", "no", "0", "n":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidBoolean, v)
	case json.Number:
		return Boolean(v.String())
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidBoolean, raw)
	}
}
