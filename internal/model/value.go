package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is a schema-agnostic map produced by the format decoders. Values
// are restricted to the canonical scalar set: string, int64, float64, bool,
// time.Time and nil. Decoders call Canonicalize to get there; every other
// coercion rule in the engine lives in this file.
type Record map[string]interface{}

// timestampLayouts is the fixed set of ISO-8601-like patterns used for
// timestamp detection and parsing.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp tries the fixed layout set against a string value.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Canonicalize converts a decoded value into the canonical scalar set.
// json.Number becomes int64 when integral, float64 otherwise; integer kinds
// fold to int64. Nested objects and arrays are not scalars and are rejected.
func Canonicalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64, time.Time:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrDecode, val.String())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrDecode, v)
	}
}

// TypeOf returns the structural type tag of a canonical value. String values
// are never classified as timestamps here; timestamp detection belongs to
// the inference step.
func TypeOf(v interface{}) TypeTag {
	switch v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBoolean
	case int64:
		return TypeInteger
	case float64:
		return TypeNumber
	case time.Time:
		return TypeTimestamp
	default:
		return TypeString
	}
}

// Coerce converts a canonical value to the schema type of a field. CSV
// decoders emit untyped strings, so string input is parsed toward the
// target type; typed input may only widen (integer into number), never
// narrow. A value that cannot meet the target type is a schema conflict.
func Coerce(v interface{}, want TypeTag) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch want {
	case TypeString, TypeNull:
		switch val := v.(type) {
		case string:
			return val, nil
		case time.Time:
			return val.UTC().Format(time.RFC3339Nano), nil
		default:
			return fmt.Sprintf("%v", val), nil
		}
	case TypeInteger:
		switch val := v.(type) {
		case int64:
			return val, nil
		case string:
			i, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", ErrSchemaConflict, val)
			}
			return i, nil
		}
	case TypeNumber:
		switch val := v.(type) {
		case float64:
			return val, nil
		case int64:
			return float64(val), nil
		case string:
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", ErrSchemaConflict, val)
			}
			return f, nil
		}
	case TypeBoolean:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			b, err := strconv.ParseBool(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a boolean", ErrSchemaConflict, val)
			}
			return b, nil
		}
	case TypeTimestamp:
		switch val := v.(type) {
		case time.Time:
			return val, nil
		case string:
			if t, ok := ParseTimestamp(val); ok {
				return t, nil
			}
			return nil, fmt.Errorf("%w: %q is not a timestamp", ErrSchemaConflict, val)
		}
	}
	return nil, fmt.Errorf("%w: cannot coerce %T to %s", ErrSchemaConflict, v, want)
}

// CompareValues totally orders two canonical values of one type family:
// numeric comparison for integer/number/boolean, chronological for
// timestamps, lexicographic for strings.
func CompareValues(a, b interface{}, t TypeTag) (int, error) {
	switch t {
	case TypeInteger, TypeNumber, TypeBoolean:
		fa, err := asFloat(a)
		if err != nil {
			return 0, err
		}
		fb, err := asFloat(b)
		if err != nil {
			return 0, err
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	case TypeTimestamp:
		ta, ok := a.(time.Time)
		if !ok {
			return 0, fmt.Errorf("%w: %T is not a timestamp", ErrDecode, a)
		}
		tb, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("%w: %T is not a timestamp", ErrDecode, b)
		}
		switch {
		case ta.Before(tb):
			return -1, nil
		case ta.After(tb):
			return 1, nil
		}
		return 0, nil
	default:
		sa, ok := a.(string)
		if !ok {
			return 0, fmt.Errorf("%w: %T is not a string", ErrDecode, a)
		}
		sb, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%w: %T is not a string", ErrDecode, b)
		}
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		}
		return 0, nil
	}
}

func asFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case int64:
		return float64(val), nil
	case float64:
		return val, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T is not numeric", ErrDecode, v)
	}
}

// EmitValue renders a canonical value for message output. Timestamps become
// RFC 3339 UTC strings keeping any sub-second digits; everything else
// passes through.
func EmitValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}
