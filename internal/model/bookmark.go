package model

import (
	"encoding/json"
	"fmt"
)

// Bookmark is the per-stream high-water mark of the replication key. It is
// owned by the checkpointer during a sync and persisted only at checkpoint
// boundaries.
type Bookmark struct {
	ReplicationKey string      // field the stream replicates on
	Value          interface{} // canonical scalar; nil until the first accepted record
	Type           TypeTag     // type family of Value
}

// IsZero reports whether the bookmark has no committed value yet.
func (b *Bookmark) IsZero() bool {
	return b == nil || b.Value == nil
}

// Admits decides whether a record value passes the bookmark. Values equal
// to the bookmark are rejected unless allowTies is set; a fresh bookmark
// admits everything.
func (b *Bookmark) Admits(v interface{}, allowTies bool) (bool, error) {
	if b.IsZero() || v == nil {
		return true, nil
	}
	cmp, err := CompareValues(v, b.Value, b.Type)
	if err != nil {
		return false, err
	}
	if allowTies {
		return cmp >= 0, nil
	}
	return cmp > 0, nil
}

// Advance moves the bookmark forward if v exceeds it. Never moves backward.
func (b *Bookmark) Advance(v interface{}, t TypeTag) error {
	if v == nil {
		return nil
	}
	if b.Value == nil {
		b.Value = v
		b.Type = t
		return nil
	}
	cmp, err := CompareValues(v, b.Value, b.Type)
	if err != nil {
		return err
	}
	if cmp > 0 {
		b.Value = v
	}
	return nil
}

type bookmarkJSON struct {
	ReplicationKey      string      `json:"replication_key"`
	ReplicationKeyValue interface{} `json:"replication_key_value,omitempty"`
	ValueType           TypeTag     `json:"value_type,omitempty"`
}

// MarshalJSON stores timestamps as RFC 3339 strings with full sub-second
// precision alongside the type tag, so the value round-trips through the
// state store without re-admitting the committed record.
func (b Bookmark) MarshalJSON() ([]byte, error) {
	out := bookmarkJSON{ReplicationKey: b.ReplicationKey, ValueType: b.Type}
	if b.Value != nil {
		out.ReplicationKeyValue = EmitValue(b.Value)
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the canonical value from its persisted form.
func (b *Bookmark) UnmarshalJSON(data []byte) error {
	var in bookmarkJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b.ReplicationKey = in.ReplicationKey
	b.Type = in.ValueType
	b.Value = nil
	if in.ReplicationKeyValue == nil {
		return nil
	}
	switch in.ValueType {
	case TypeTimestamp:
		s, ok := in.ReplicationKeyValue.(string)
		if !ok {
			return fmt.Errorf("persisted timestamp bookmark is %T, not string", in.ReplicationKeyValue)
		}
		t, ok := ParseTimestamp(s)
		if !ok {
			return fmt.Errorf("persisted bookmark %q is not a timestamp", s)
		}
		b.Value = t
	case TypeInteger:
		// encoding/json decodes numbers as float64
		f, ok := in.ReplicationKeyValue.(float64)
		if !ok {
			return fmt.Errorf("persisted integer bookmark is %T", in.ReplicationKeyValue)
		}
		b.Value = int64(f)
	case TypeNumber:
		f, ok := in.ReplicationKeyValue.(float64)
		if !ok {
			return fmt.Errorf("persisted number bookmark is %T", in.ReplicationKeyValue)
		}
		b.Value = f
	default:
		v, err := Canonicalize(in.ReplicationKeyValue)
		if err != nil {
			return err
		}
		b.Value = v
	}
	return nil
}
