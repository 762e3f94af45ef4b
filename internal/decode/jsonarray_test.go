package decode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go-stream-extract/internal/model"
)

func jsonArrayStream(path string) *model.StreamDef {
	return &model.StreamDef{
		Name:          "test",
		Format:        model.FormatJSON,
		ChunkSize:     100,
		OnDecodeError: "skip",
		JSON:          &model.JSONOptions{Path: path},
	}
}

func TestJSONArrayRootDocument(t *testing.T) {
	input := `[{"id": 1}, {"id": 2}, {"id": 3}]`
	d := newJSONArrayDecoder(jsonArrayStream(""), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if v, ok := records[2]["id"].(int64); !ok || v != 3 {
		t.Errorf("id = %T %v", records[2]["id"], records[2]["id"])
	}
}

func TestJSONArrayNestedPath(t *testing.T) {
	input := `{
		"meta": {"count": 2, "nested": [1, 2, 3]},
		"data": {
			"before": {"deep": [{"x": 1}]},
			"items": [{"id": 1, "ts": "2024-01-01"}, {"id": 2, "ts": "2024-01-02"}],
			"after": "ignored"
		}
	}`
	d := newJSONArrayDecoder(jsonArrayStream("data.items"), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["ts"] != "2024-01-01" || records[1]["ts"] != "2024-01-02" {
		t.Errorf("records = %v", records)
	}
}

func TestJSONArrayPathNotFound(t *testing.T) {
	input := `{"data": {"other": []}}`
	d := newJSONArrayDecoder(jsonArrayStream("data.items"), strings.NewReader(input))

	_, err := d.Next(context.Background())
	if !errors.Is(err, model.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestJSONArrayPathToNonArray(t *testing.T) {
	input := `{"data": {"items": {"not": "an array"}}}`
	d := newJSONArrayDecoder(jsonArrayStream("data.items"), strings.NewReader(input))

	_, err := d.Next(context.Background())
	if !errors.Is(err, model.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestJSONArrayNonObjectElementsWrapped(t *testing.T) {
	input := `[1, "two", {"id": 3}]`
	d := newJSONArrayDecoder(jsonArrayStream(""), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if v, ok := records[0]["value"].(int64); !ok || v != 1 {
		t.Errorf("wrapped = %T %v", records[0]["value"], records[0]["value"])
	}
	if records[1]["value"] != "two" {
		t.Errorf("wrapped = %v", records[1]["value"])
	}
	if v, ok := records[2]["id"].(int64); !ok || v != 3 {
		t.Errorf("object element = %v", records[2])
	}
}

func TestJSONArrayEmpty(t *testing.T) {
	d := newJSONArrayDecoder(jsonArrayStream(""), strings.NewReader(`[]`))
	chunk, err := d.Next(context.Background())
	if err != nil || chunk != nil {
		t.Fatalf("empty array: chunk = %v, err = %v", chunk, err)
	}
}
