// Package decode turns byte streams into lazy, finite, chunked sequences of
// records, one decoding strategy per supported format.
package decode

import (
	"context"
	"fmt"
	"io"

	"go-stream-extract/internal/model"
)

// Chunk is a bounded batch of records. A chunk boundary never splits a
// logical record.
type Chunk struct {
	Records []model.Record
	Skipped int // malformed records dropped under the "skip" decode-error policy
}

// Decoder produces record chunks from a single byte stream. Next returns
// (nil, nil) once the stream is exhausted; decoders hold no state across
// locators, so re-opening the source and building a fresh decoder restarts
// from the beginning.
type Decoder interface {
	Next(ctx context.Context) (*Chunk, error)
}

// NativeSchemaer is implemented by decoders whose format carries its own
// schema (columnar binary), letting the orchestrator skip inference.
type NativeSchemaer interface {
	NativeSchema() (*model.Schema, error)
}

// New builds the decoder strategy for the stream's format over r.
func New(stream *model.StreamDef, r io.Reader) (Decoder, error) {
	switch stream.Format {
	case model.FormatCSV:
		return newCSVDecoder(stream, r), nil
	case model.FormatJSONL:
		return newJSONLDecoder(stream, r), nil
	case model.FormatJSON:
		return newJSONArrayDecoder(stream, r), nil
	case model.FormatParquet:
		return newParquetDecoder(stream, r)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", model.ErrConfig, stream.Format)
	}
}

// abortOnError reports whether the stream wants malformed records to abort
// the decode instead of being skipped and counted.
func abortOnError(stream *model.StreamDef) bool {
	return stream.OnDecodeError == "abort"
}
