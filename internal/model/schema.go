package model

import "fmt"

// TypeTag identifies the structural type of a field or value
type TypeTag string

const (
	TypeNull      TypeTag = "null"
	TypeBoolean   TypeTag = "boolean"
	TypeInteger   TypeTag = "integer"
	TypeNumber    TypeTag = "number"
	TypeString    TypeTag = "string"
	TypeTimestamp TypeTag = "timestamp"
)

// promotion lattice rank, narrowest to widest. Timestamp sits outside the
// lattice: it is detected independently and demotes to string on conflict.
var typeRank = map[TypeTag]int{
	TypeNull:    0,
	TypeBoolean: 1,
	TypeInteger: 2,
	TypeNumber:  3,
	TypeString:  4,
}

// Widen returns the wider of two type tags. Widening is monotonic: the
// result is never narrower than either input.
func Widen(a, b TypeTag) TypeTag {
	if a == b {
		return a
	}
	if a == TypeTimestamp || b == TypeTimestamp {
		// any non-timestamp, non-null companion forces string
		other := a
		if a == TypeTimestamp {
			other = b
		}
		if other == TypeNull {
			return TypeTimestamp
		}
		return TypeString
	}
	if typeRank[a] > typeRank[b] {
		return a
	}
	return b
}

// Field describes one schema entry
type Field struct {
	Name     string  `json:"name"`
	Type     TypeTag `json:"type"`
	Nullable bool    `json:"nullable"`
}

// Schema maps field names to types, preserving first-seen field order so
// repeated inference over the same sample yields an identical schema.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Lookup returns the field with the given name.
func (s *Schema) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Add appends a field. Returns an error on duplicates.
func (s *Schema) Add(f Field) error {
	if _, ok := s.Lookup(f.Name); ok {
		return fmt.Errorf("%w: duplicate schema field %q", ErrConfig, f.Name)
	}
	s.Fields = append(s.Fields, f)
	return nil
}

// JSONSchema renders the schema in JSON-Schema object form for emission,
// e.g. {"type":"object","properties":{"id":{"type":"integer"}}}.
func (s *Schema) JSONSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		var entry map[string]interface{}
		switch f.Type {
		case TypeTimestamp:
			if f.Nullable {
				entry = map[string]interface{}{"type": []string{"string", "null"}, "format": "date-time"}
			} else {
				entry = map[string]interface{}{"type": "string", "format": "date-time"}
			}
		case TypeNull:
			entry = map[string]interface{}{"type": []string{"string", "null"}}
		default:
			if f.Nullable {
				entry = map[string]interface{}{"type": []string{string(f.Type), "null"}}
			} else {
				entry = map[string]interface{}{"type": string(f.Type)}
			}
		}
		props[f.Name] = entry
		if !f.Nullable && f.Type != TypeNull {
			required = append(required, f.Name)
		}
	}
	out := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}
