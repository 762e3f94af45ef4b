package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   interface{}
		want interface{}
	}{
		{nil, nil},
		{int(7), int64(7)},
		{int32(7), int64(7)},
		{float32(1.5), float64(1.5)},
		{json.Number("42"), int64(42)},
		{json.Number("2.5"), float64(2.5)},
		{"x", "x"},
		{true, true},
	}
	for _, tc := range cases {
		got, err := Canonicalize(tc.in)
		if err != nil {
			t.Errorf("Canonicalize(%v): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Canonicalize(%v) = %T %v, want %T %v", tc.in, got, got, tc.want, tc.want)
		}
	}

	if _, err := Canonicalize(map[string]interface{}{}); !errors.Is(err, ErrDecode) {
		t.Errorf("nested value should be ErrDecode, got %v", err)
	}
}

func TestWidenLattice(t *testing.T) {
	cases := []struct {
		a, b, want TypeTag
	}{
		{TypeNull, TypeInteger, TypeInteger},
		{TypeInteger, TypeNumber, TypeNumber},
		{TypeBoolean, TypeString, TypeString},
		{TypeNumber, TypeNumber, TypeNumber},
		{TypeTimestamp, TypeNull, TypeTimestamp},
		{TypeTimestamp, TypeInteger, TypeString},
		{TypeTimestamp, TypeString, TypeString},
	}
	for _, tc := range cases {
		if got := Widen(tc.a, tc.b); got != tc.want {
			t.Errorf("Widen(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
		// widening is symmetric
		if got := Widen(tc.b, tc.a); got != tc.want {
			t.Errorf("Widen(%s, %s) = %s, want %s", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestCoerce(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := Coerce("17", TypeInteger)
	if err != nil || got != int64(17) {
		t.Errorf("string to integer = %v, %v", got, err)
	}
	got, err = Coerce(int64(3), TypeNumber)
	if err != nil || got != float64(3) {
		t.Errorf("integer widens to number = %v, %v", got, err)
	}
	got, err = Coerce("2024-03-01T12:00:00Z", TypeTimestamp)
	if err != nil || !got.(time.Time).Equal(ts) {
		t.Errorf("string to timestamp = %v, %v", got, err)
	}
	got, err = Coerce(ts, TypeString)
	if err != nil || got != "2024-03-01T12:00:00Z" {
		t.Errorf("timestamp to string = %v, %v", got, err)
	}
	got, err = Coerce("true", TypeBoolean)
	if err != nil || got != true {
		t.Errorf("string to boolean = %v, %v", got, err)
	}

	if _, err := Coerce("abc", TypeInteger); !errors.Is(err, ErrSchemaConflict) {
		t.Errorf("bad integer should be ErrSchemaConflict, got %v", err)
	}
	if _, err := Coerce(2.5, TypeInteger); !errors.Is(err, ErrSchemaConflict) {
		t.Errorf("narrowing float to integer should be ErrSchemaConflict, got %v", err)
	}
}

func TestCompareValues(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		a, b interface{}
		t    TypeTag
		want int
	}{
		{int64(1), int64(2), TypeInteger, -1},
		{int64(2), float64(1.5), TypeNumber, 1},
		{"a", "b", TypeString, -1},
		{"same", "same", TypeString, 0},
		{early, late, TypeTimestamp, -1},
		{late, early, TypeTimestamp, 1},
	}
	for _, tc := range cases {
		got, err := CompareValues(tc.a, tc.b, tc.t)
		if err != nil {
			t.Errorf("CompareValues(%v, %v): %v", tc.a, tc.b, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CompareValues(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}

	if _, err := CompareValues("x", int64(1), TypeInteger); !errors.Is(err, ErrDecode) {
		t.Errorf("type mismatch should be ErrDecode, got %v", err)
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	ok := []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00:00.123456Z",
		"2024-01-01T00:00:00",
		"2024-01-01 00:00:00",
		"2024-01-01",
	}
	for _, s := range ok {
		if _, parsed := ParseTimestamp(s); !parsed {
			t.Errorf("ParseTimestamp(%q) should succeed", s)
		}
	}
	bad := []string{"01/02/2024", "not a date", "2024-13-01", ""}
	for _, s := range bad {
		if _, parsed := ParseTimestamp(s); parsed {
			t.Errorf("ParseTimestamp(%q) should fail", s)
		}
	}
}
