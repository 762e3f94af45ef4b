package decode

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go-stream-extract/internal/model"
)

// jsonlDecoder reads line-delimited records, one independent JSON document
// per line. Blank lines are ignored; malformed lines follow the stream's
// decode-error policy.
type jsonlDecoder struct {
	stream  *model.StreamDef
	scanner *bufio.Scanner
	done    bool
}

// generous line cap so one oversized record does not kill the scan
const maxLineBytes = 16 * 1024 * 1024

func newJSONLDecoder(stream *model.StreamDef, r io.Reader) *jsonlDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &jsonlDecoder{stream: stream, scanner: sc}
}

func (d *jsonlDecoder) Next(ctx context.Context) (*Chunk, error) {
	if d.done {
		return nil, nil
	}
	chunk := &Chunk{Records: make([]model.Record, 0, d.stream.ChunkSize)}
	for len(chunk.Records) < d.stream.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", model.ErrTransientIO, err)
			}
			d.done = true
			break
		}
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" {
			continue
		}
		rec, err := decodeJSONRecord(line)
		if err != nil {
			if abortOnError(d.stream) {
				return nil, err
			}
			chunk.Skipped++
			continue
		}
		chunk.Records = append(chunk.Records, rec)
	}
	if len(chunk.Records) == 0 && chunk.Skipped == 0 {
		return nil, nil
	}
	return chunk, nil
}

// decodeJSONRecord parses one JSON value into a canonical record. Objects
// map field by field; any other value is wrapped under "value". Nested
// composites are kept as their JSON text, typed string.
func decodeJSONRecord(text string) (model.Record, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		v, err := canonicalOrJSON(raw)
		if err != nil {
			return nil, err
		}
		return model.Record{"value": v}, nil
	}
	rec := make(model.Record, len(obj))
	for k, v := range obj {
		cv, err := canonicalOrJSON(v)
		if err != nil {
			return nil, err
		}
		rec[k] = cv
	}
	return rec, nil
}

// canonicalOrJSON canonicalizes a scalar, falling back to the JSON encoding
// of nested objects/arrays so every record value stays scalar.
func canonicalOrJSON(v interface{}) (interface{}, error) {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
		}
		return string(data), nil
	default:
		return model.Canonicalize(v)
	}
}
