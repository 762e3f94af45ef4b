package decode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go-stream-extract/internal/model"
)

func jsonlStream() *model.StreamDef {
	return &model.StreamDef{
		Name:          "test",
		Format:        model.FormatJSONL,
		ChunkSize:     100,
		OnDecodeError: "skip",
	}
}

func TestJSONLDecodeScalars(t *testing.T) {
	input := `{"id": 1, "name": "alice", "score": 3.5, "active": true, "note": null}` + "\n"
	d := newJSONLDecoder(jsonlStream(), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if v, ok := rec["id"].(int64); !ok || v != 1 {
		t.Errorf("id = %T %v, want int64 1", rec["id"], rec["id"])
	}
	if v, ok := rec["score"].(float64); !ok || v != 3.5 {
		t.Errorf("score = %T %v, want float64 3.5", rec["score"], rec["score"])
	}
	if v, ok := rec["active"].(bool); !ok || !v {
		t.Errorf("active = %v, want true", rec["active"])
	}
	if rec["note"] != nil {
		t.Errorf("note = %v, want nil", rec["note"])
	}
}

func TestJSONLNestedValuesKeptAsJSONText(t *testing.T) {
	input := `{"id": 1, "tags": ["a", "b"], "meta": {"k": "v"}}` + "\n"
	d := newJSONLDecoder(jsonlStream(), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["tags"] != `["a","b"]` {
		t.Errorf("tags = %v", records[0]["tags"])
	}
	if records[0]["meta"] != `{"k":"v"}` {
		t.Errorf("meta = %v", records[0]["meta"])
	}
}

func TestJSONLNonObjectLineWrapped(t *testing.T) {
	input := "42\n\"hello\"\n"
	d := newJSONLDecoder(jsonlStream(), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if v, ok := records[0]["value"].(int64); !ok || v != 42 {
		t.Errorf("wrapped value = %T %v", records[0]["value"], records[0]["value"])
	}
	if records[1]["value"] != "hello" {
		t.Errorf("wrapped value = %v", records[1]["value"])
	}
}

func TestJSONLBlankLinesIgnored(t *testing.T) {
	input := "{\"id\": 1}\n\n   \n{\"id\": 2}\n"
	d := newJSONLDecoder(jsonlStream(), strings.NewReader(input))

	records, skipped := drain(t, d)
	if len(records) != 2 || skipped != 0 {
		t.Fatalf("records = %d, skipped = %d; want 2, 0", len(records), skipped)
	}
}

func TestJSONLMalformedLinePolicy(t *testing.T) {
	input := "{\"id\": 1}\nnot json at all\n{\"id\": 2}\n"

	d := newJSONLDecoder(jsonlStream(), strings.NewReader(input))
	records, skipped := drain(t, d)
	if len(records) != 2 || skipped != 1 {
		t.Fatalf("records = %d, skipped = %d; want 2, 1", len(records), skipped)
	}

	abort := jsonlStream()
	abort.OnDecodeError = "abort"
	d2 := newJSONLDecoder(abort, strings.NewReader(input))
	_, err := d2.Next(context.Background())
	if !errors.Is(err, model.ErrDecode) {
		t.Fatalf("abort policy err = %v, want ErrDecode", err)
	}
}
