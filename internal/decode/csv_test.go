package decode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go-stream-extract/internal/model"
)

func csvStream(opts *model.CSVOptions) *model.StreamDef {
	return &model.StreamDef{
		Name:          "test",
		Format:        model.FormatCSV,
		ChunkSize:     100,
		OnDecodeError: "skip",
		CSV:           opts,
	}
}

// drain reads every chunk until exhaustion and flattens the records.
func drain(t *testing.T, d Decoder) ([]model.Record, int) {
	t.Helper()
	var records []model.Record
	skipped := 0
	for {
		chunk, err := d.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if chunk == nil {
			return records, skipped
		}
		records = append(records, chunk.Records...)
		skipped += chunk.Skipped
	}
}

func TestCSVDecodeBasic(t *testing.T) {
	input := "id,name,score\n1,alice,3.5\n2,bob,\n"
	d := newCSVDecoder(csvStream(nil), strings.NewReader(input))

	records, skipped := drain(t, d)
	if skipped != 0 {
		t.Fatalf("skipped = %d, want 0", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["id"] != "1" || records[0]["name"] != "alice" || records[0]["score"] != "3.5" {
		t.Errorf("first record = %v", records[0])
	}
	if records[1]["score"] != nil {
		t.Errorf("empty cell should decode to nil, got %v", records[1]["score"])
	}
}

func TestCSVCustomDelimiter(t *testing.T) {
	input := "id|name\n1|alice\n"
	d := newCSVDecoder(csvStream(&model.CSVOptions{Delimiter: "|"}), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 1 || records[0]["name"] != "alice" {
		t.Fatalf("records = %v", records)
	}
}

func TestCSVMultiByteDelimiter(t *testing.T) {
	// "¦" is two bytes in UTF-8; the full rune is the delimiter
	input := "id¦name\n1¦alice\n"
	d := newCSVDecoder(csvStream(&model.CSVOptions{Delimiter: "¦"}), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["id"] != "1" || records[0]["name"] != "alice" {
		t.Fatalf("record = %v", records[0])
	}
}

func TestCSVHeaderRowSkipsPreamble(t *testing.T) {
	input := "export from warehouse\nid,name\n1,alice\n"
	row := 1
	d := newCSVDecoder(csvStream(&model.CSVOptions{HeaderRow: &row}), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["id"] != "1" {
		t.Errorf("record = %v", records[0])
	}
}

func TestCSVNoHeaderSynthesizesColumns(t *testing.T) {
	input := "1,alice\n2,bob\n"
	d := newCSVDecoder(csvStream(&model.CSVOptions{NoHeader: true}), strings.NewReader(input))

	records, _ := drain(t, d)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["column_0"] != "1" || records[0]["column_1"] != "alice" {
		t.Errorf("record = %v", records[0])
	}
}

func TestCSVFieldCountMismatch(t *testing.T) {
	input := "id,name\n1,alice\n2,bob,extra\n3,carol\n"

	d := newCSVDecoder(csvStream(nil), strings.NewReader(input))
	records, skipped := drain(t, d)
	if len(records) != 2 || skipped != 1 {
		t.Fatalf("records = %d, skipped = %d; want 2, 1", len(records), skipped)
	}

	abort := csvStream(nil)
	abort.OnDecodeError = "abort"
	d2 := newCSVDecoder(abort, strings.NewReader(input))
	_, err := d2.Next(context.Background())
	if !errors.Is(err, model.ErrDecode) {
		t.Fatalf("abort policy err = %v, want ErrDecode", err)
	}
}

func TestCSVChunkBoundaries(t *testing.T) {
	stream := csvStream(nil)
	stream.ChunkSize = 2
	input := "id\n1\n2\n3\n4\n5\n"
	d := newCSVDecoder(stream, strings.NewReader(input))

	var sizes []int
	for {
		chunk, err := d.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if chunk == nil {
			break
		}
		sizes = append(sizes, len(chunk.Records))
	}
	want := []int{2, 2, 1}
	if len(sizes) != len(want) {
		t.Fatalf("chunk sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("chunk sizes = %v, want %v", sizes, want)
		}
	}
}

func TestCSVEmptyInput(t *testing.T) {
	d := newCSVDecoder(csvStream(nil), strings.NewReader(""))
	chunk, err := d.Next(context.Background())
	if err != nil || chunk != nil {
		t.Fatalf("empty input: chunk = %v, err = %v", chunk, err)
	}
}

func TestCSVHeaderOnly(t *testing.T) {
	d := newCSVDecoder(csvStream(nil), strings.NewReader("id,name\n"))
	records, _ := drain(t, d)
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
}
