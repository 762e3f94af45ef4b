package decode

import (
	"bytes"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"go-stream-extract/internal/model"
)

// writeParquetFixture builds a three-row parquet object in memory.
func writeParquetFixture(t *testing.T) []byte {
	t.Helper()
	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "updated_at", Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"alice", "bob", ""}, []bool{true, true, false})
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{1.5, 2.5, 3.5}, nil)
	tsb := b.Field(3).(*array.TimestampBuilder)
	for _, s := range []string{"2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", "2024-01-03T00:00:00Z"} {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatalf("parse fixture time: %v", err)
		}
		ts, err := arrow.TimestampFromTime(parsed, arrow.Microsecond)
		if err != nil {
			t.Fatalf("fixture timestamp: %v", err)
		}
		tsb.Append(ts)
	}

	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	if err := pqarrow.WriteTable(tbl, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		t.Fatalf("write parquet fixture: %v", err)
	}
	return buf.Bytes()
}

func parquetStream() *model.StreamDef {
	return &model.StreamDef{
		Name:          "test",
		Format:        model.FormatParquet,
		ChunkSize:     100,
		OnDecodeError: "skip",
	}
}

func TestParquetNativeSchema(t *testing.T) {
	data := writeParquetFixture(t)
	d, err := newParquetDecoder(parquetStream(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("newParquetDecoder: %v", err)
	}

	schema, err := d.NativeSchema()
	if err != nil {
		t.Fatalf("NativeSchema: %v", err)
	}
	want := map[string]model.TypeTag{
		"id":         model.TypeInteger,
		"name":       model.TypeString,
		"score":      model.TypeNumber,
		"updated_at": model.TypeTimestamp,
	}
	if len(schema.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(schema.Fields), len(want))
	}
	for name, tag := range want {
		f, ok := schema.Lookup(name)
		if !ok {
			t.Fatalf("field %q missing from schema", name)
		}
		if f.Type != tag {
			t.Errorf("field %q type = %s, want %s", name, f.Type, tag)
		}
	}
}

func TestParquetDecodeValues(t *testing.T) {
	data := writeParquetFixture(t)
	d, err := newParquetDecoder(parquetStream(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("newParquetDecoder: %v", err)
	}

	records, _ := drain(t, d)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if v, ok := records[0]["id"].(int64); !ok || v != 1 {
		t.Errorf("id = %T %v, want int64 1", records[0]["id"], records[0]["id"])
	}
	if records[0]["name"] != "alice" {
		t.Errorf("name = %v", records[0]["name"])
	}
	if records[2]["name"] != nil {
		t.Errorf("null cell = %v, want nil", records[2]["name"])
	}
	if v, ok := records[1]["score"].(float64); !ok || v != 2.5 {
		t.Errorf("score = %T %v", records[1]["score"], records[1]["score"])
	}
	ts, ok := records[1]["updated_at"].(time.Time)
	if !ok {
		t.Fatalf("updated_at = %T, want time.Time", records[1]["updated_at"])
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("updated_at = %v, want %v", ts, want)
	}
}
