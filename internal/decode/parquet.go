package decode

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"go-stream-extract/internal/model"
)

// parquetDecoder reads records in native row-group batches via arrow. The
// format carries its own schema, so inference is bypassed and the arrow
// schema is adapted directly. Parquet footers need random access, so the
// object is buffered in memory before reading.
type parquetDecoder struct {
	stream *model.StreamDef
	rdr    *file.Reader
	schema *arrow.Schema
	rows   pqarrow.RecordReader
	done   bool
}

func newParquetDecoder(stream *model.StreamDef, r io.Reader) (*parquetDecoder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransientIO, err)
	}
	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: int64(stream.ChunkSize)}, memory.DefaultAllocator)
	if err != nil {
		rdr.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	schema, err := fr.Schema()
	if err != nil {
		rdr.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	rows, err := fr.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		rdr.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	return &parquetDecoder{stream: stream, rdr: rdr, schema: schema, rows: rows}, nil
}

// NativeSchema adapts the arrow schema to the engine's schema representation.
func (d *parquetDecoder) NativeSchema() (*model.Schema, error) {
	out := &model.Schema{}
	for _, f := range d.schema.Fields() {
		if err := out.Add(model.Field{
			Name:     f.Name,
			Type:     arrowTypeTag(f.Type),
			Nullable: f.Nullable,
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *parquetDecoder) Next(ctx context.Context) (*Chunk, error) {
	if d.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.rows.Next() {
		if err := d.rows.Err(); err != nil && err != io.EOF {
			d.close()
			return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
		}
		d.close()
		return nil, nil
	}

	rec := d.rows.Record()
	n := int(rec.NumRows())
	chunk := &Chunk{Records: make([]model.Record, 0, n)}
	for i := 0; i < n; i++ {
		out := make(model.Record, len(d.schema.Fields()))
		for c, fld := range d.schema.Fields() {
			out[fld.Name] = arrowValue(rec.Column(c), fld, i)
		}
		chunk.Records = append(chunk.Records, out)
	}
	return chunk, nil
}

func (d *parquetDecoder) close() {
	if !d.done {
		d.done = true
		d.rows.Release()
		d.rdr.Close()
	}
}

// arrowTypeTag maps an arrow data type onto the engine's type set.
func arrowTypeTag(t arrow.DataType) model.TypeTag {
	switch t.ID() {
	case arrow.BOOL:
		return model.TypeBoolean
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return model.TypeInteger
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return model.TypeNumber
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return model.TypeTimestamp
	case arrow.NULL:
		return model.TypeNull
	default:
		return model.TypeString
	}
}

// arrowValue extracts one canonical scalar from an arrow column.
func arrowValue(col arrow.Array, fld arrow.Field, i int) interface{} {
	if col.IsNull(i) {
		return nil
	}
	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(i)
	case *array.Int8:
		return int64(arr.Value(i))
	case *array.Int16:
		return int64(arr.Value(i))
	case *array.Int32:
		return int64(arr.Value(i))
	case *array.Int64:
		return arr.Value(i)
	case *array.Uint8:
		return int64(arr.Value(i))
	case *array.Uint16:
		return int64(arr.Value(i))
	case *array.Uint32:
		return int64(arr.Value(i))
	case *array.Uint64:
		return int64(arr.Value(i))
	case *array.Float32:
		return float64(arr.Value(i))
	case *array.Float64:
		return arr.Value(i)
	case *array.String:
		return arr.Value(i)
	case *array.LargeString:
		return arr.Value(i)
	case *array.Timestamp:
		ts := fld.Type.(*arrow.TimestampType)
		return arr.Value(i).ToTime(ts.Unit).UTC()
	case *array.Date32:
		return arr.Value(i).ToTime().UTC()
	case *array.Date64:
		return arr.Value(i).ToTime().UTC()
	default:
		return col.ValueStr(i)
	}
}
