package decode

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go-stream-extract/internal/model"
)

// csvDecoder reads delimited text row by row. Values stay untyped strings;
// the schema step types them later. Empty cells decode to nil.
type csvDecoder struct {
	stream  *model.StreamDef
	reader  *csv.Reader
	headers []string
	started bool
	done    bool
}

func newCSVDecoder(stream *model.StreamDef, r io.Reader) *csvDecoder {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	if stream.CSV != nil && stream.CSV.Delimiter != "" {
		d, _ := utf8.DecodeRuneInString(stream.CSV.Delimiter)
		cr.Comma = d
	}
	return &csvDecoder{stream: stream, reader: cr}
}

// readHeader consumes rows up to and including the header row, or
// synthesizes column_N names in no-header mode.
func (d *csvDecoder) readHeader() error {
	opts := d.stream.CSV
	if opts != nil && opts.NoHeader {
		// field names come from the width of the first data row, lazily
		return nil
	}
	headerRow := 0
	if opts != nil && opts.HeaderRow != nil {
		headerRow = *opts.HeaderRow
	}
	for i := 0; ; i++ {
		row, err := d.reader.Read()
		if err == io.EOF {
			d.done = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading header: %v", model.ErrDecode, err)
		}
		if i == headerRow {
			d.headers = make([]string, len(row))
			for j, h := range row {
				h = strings.TrimSpace(h)
				h = strings.ReplaceAll(h, `"`, "")
				d.headers[j] = h
			}
			return nil
		}
	}
}

func (d *csvDecoder) Next(ctx context.Context) (*Chunk, error) {
	if d.done {
		return nil, nil
	}
	if !d.started {
		d.started = true
		if err := d.readHeader(); err != nil {
			return nil, err
		}
		if d.done {
			return nil, nil
		}
	}

	chunk := &Chunk{Records: make([]model.Record, 0, d.stream.ChunkSize)}
	for len(chunk.Records) < d.stream.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := d.reader.Read()
		if err == io.EOF {
			d.done = true
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && !abortOnError(d.stream) {
				chunk.Skipped++
				continue
			}
			return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
		}
		if d.headers == nil {
			// no-header mode: first data row fixes the column count
			d.headers = make([]string, len(row))
			for j := range row {
				d.headers[j] = fmt.Sprintf("column_%d", j)
			}
		}
		if len(row) != len(d.headers) {
			if abortOnError(d.stream) {
				return nil, fmt.Errorf("%w: row has %d fields, header has %d", model.ErrDecode, len(row), len(d.headers))
			}
			chunk.Skipped++
			continue
		}

		rec := make(model.Record, len(d.headers))
		for j, h := range d.headers {
			v := row[j]
			if v == "" {
				rec[h] = nil
			} else {
				rec[h] = v
			}
		}
		chunk.Records = append(chunk.Records, rec)
	}

	if len(chunk.Records) == 0 && chunk.Skipped == 0 {
		return nil, nil
	}
	return chunk, nil
}
