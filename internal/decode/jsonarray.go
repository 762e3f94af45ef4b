package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go-stream-extract/internal/model"
)

// jsonArrayDecoder streams records out of a JSON document by following a
// dot-path expression to an array and emitting one record per element,
// without materializing the whole document.
type jsonArrayDecoder struct {
	stream  *model.StreamDef
	dec     *json.Decoder
	path    []string
	started bool
	done    bool
}

func newJSONArrayDecoder(stream *model.StreamDef, r io.Reader) *jsonArrayDecoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var path []string
	if stream.JSON != nil && stream.JSON.Path != "" {
		path = strings.Split(stream.JSON.Path, ".")
	}
	return &jsonArrayDecoder{stream: stream, dec: dec, path: path}
}

// descend walks the decoder down the configured path until it sits just
// inside the target array.
func (d *jsonArrayDecoder) descend() error {
	for _, segment := range d.path {
		if err := expectDelim(d.dec, '{'); err != nil {
			return fmt.Errorf("%w: path segment %q: %v", model.ErrDecode, segment, err)
		}
		found := false
		for {
			tok, err := d.dec.Token()
			if err != nil {
				return fmt.Errorf("%w: path segment %q: %v", model.ErrDecode, segment, err)
			}
			if delim, ok := tok.(json.Delim); ok && delim == '}' {
				return fmt.Errorf("%w: path segment %q not found", model.ErrDecode, segment)
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("%w: unexpected token %v", model.ErrDecode, tok)
			}
			if key == segment {
				found = true
				break
			}
			if err := skipValue(d.dec); err != nil {
				return err
			}
		}
		if !found {
			return fmt.Errorf("%w: path segment %q not found", model.ErrDecode, segment)
		}
	}
	if err := expectDelim(d.dec, '['); err != nil {
		return fmt.Errorf("%w: path does not lead to an array: %v", model.ErrDecode, err)
	}
	return nil
}

func (d *jsonArrayDecoder) Next(ctx context.Context) (*Chunk, error) {
	if d.done {
		return nil, nil
	}
	if !d.started {
		d.started = true
		if err := d.descend(); err != nil {
			return nil, err
		}
	}

	chunk := &Chunk{Records: make([]model.Record, 0, d.stream.ChunkSize)}
	for len(chunk.Records) < d.stream.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !d.dec.More() {
			d.done = true
			break
		}
		var raw interface{}
		if err := d.dec.Decode(&raw); err != nil {
			// a malformed element corrupts the decoder's position, so the
			// skip policy cannot recover mid-array
			return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
		}
		rec, err := elementToRecord(raw)
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

// elementToRecord converts one array element; non-object elements are
// wrapped under "value".
func elementToRecord(raw interface{}) (model.Record, error) {
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

// expectDelim consumes one token and requires it to be the given delimiter.
func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("unexpected end of document")
		}
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// skipValue consumes one complete JSON value, tracking delimiter depth.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrDecode, err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
