package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go-stream-extract/internal/model"
)

// Emitter writes the three logical message kinds — SCHEMA, RECORD, STATE —
// as JSON lines. Wire framing beyond that is the host's concern. Streams
// synced in parallel share one emitter, so writes are serialized.
type Emitter struct {
	mu  sync.Mutex
	enc *json.Encoder

	// message counters for the run summary
	Schemas int
	Records int
	States  int
}

// NewEmitter wraps a writer, typically stdout or a run-scoped output file.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{enc: json.NewEncoder(w)}
}

type schemaMessage struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream"`
	Schema        map[string]interface{} `json:"schema"`
	KeyProperties []string               `json:"key_properties"`
}

type recordMessage struct {
	Type   string                 `json:"type"`
	Stream string                 `json:"stream"`
	Record map[string]interface{} `json:"record"`
}

type stateMessage struct {
	Type  string     `json:"type"`
	Value stateValue `json:"value"`
}

type stateValue struct {
	Bookmarks map[string]model.Bookmark `json:"bookmarks"`
}

// Schema emits a SCHEMA message. Must precede the stream's first record.
func (e *Emitter) Schema(stream string, schema *model.Schema, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Schemas++
	return e.enc.Encode(schemaMessage{
		Type:          "SCHEMA",
		Stream:        stream,
		Schema:        schema.JSONSchema(),
		KeyProperties: keys,
	})
}

// Record emits a RECORD message with timestamps rendered RFC 3339 UTC.
func (e *Emitter) Record(stream string, rec model.Record) error {
	out := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		out[k] = model.EmitValue(v)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Records++
	return e.enc.Encode(recordMessage{Type: "RECORD", Stream: stream, Record: out})
}

// State emits a STATE message carrying a bookmark snapshot.
func (e *Emitter) State(bookmarks map[string]model.Bookmark) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.States++
	if err := e.enc.Encode(stateMessage{Type: "STATE", Value: stateValue{Bookmarks: bookmarks}}); err != nil {
		return fmt.Errorf("emit state: %w", err)
	}
	return nil
}
