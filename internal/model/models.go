package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Supported stream formats
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// Replication modes
const (
	ReplicationFull        = "FULL"
	ReplicationIncremental = "INCREMENTAL"
)

// CSVOptions holds delimited-text decoding options
type CSVOptions struct {
	Delimiter string `json:"delimiter,omitempty"` // defaults to ","
	HeaderRow *int   `json:"headerRow,omitempty"` // row index of the header; nil means row 0
	NoHeader  bool   `json:"noHeader,omitempty"`  // synthesize column_N field names
	Encoding  string `json:"encoding,omitempty"`  // informational; sources are decoded as UTF-8
}

// JSONOptions holds options for jsonl and nested-array decoding
type JSONOptions struct {
	Path     string `json:"path,omitempty"`     // dot path to the array, e.g. "data.items"; empty means root
	Encoding string `json:"encoding,omitempty"` // informational; sources are decoded as UTF-8
}

// StreamDef defines a single extraction stream. Immutable once a sync run starts.
type StreamDef struct {
	Name                 string       `json:"name"`
	URI                  string       `json:"uri,omitempty"`
	URIs                 []string     `json:"uris,omitempty"` // overrides URI when set
	Pattern              string       `json:"pattern,omitempty"`
	Format               string       `json:"format,omitempty"`
	Keys                 []string     `json:"keys,omitempty"`
	ReplicationMethod    string       `json:"replicationMethod,omitempty"`
	ReplicationKey       string       `json:"replicationKey,omitempty"`
	ReplicationAllowTies bool         `json:"replicationAllowTies,omitempty"`
	ChunkSize            int          `json:"chunkSize,omitempty"`
	InferSamples         int          `json:"inferSamples,omitempty"`
	Schema               *Schema      `json:"schema,omitempty"`
	CSV                  *CSVOptions  `json:"csv,omitempty"`
	JSON                 *JSONOptions `json:"json,omitempty"`
	Strict               bool         `json:"strict,omitempty"`
	OnDecodeError        string       `json:"onDecodeError,omitempty"` // "skip" (default) or "abort"
}

// AuthConfig carries already-resolved credential material for cloud backends.
// The engine hands it to the byte-source providers and never inspects it further.
type AuthConfig struct {
	AWSProfile         string `json:"awsProfile,omitempty"`
	AWSAccessKeyID     string `json:"awsAccessKeyId,omitempty"`
	AWSSecretAccessKey string `json:"awsSecretAccessKey,omitempty"`
	AWSSessionToken    string `json:"awsSessionToken,omitempty"`
	AWSRegion          string `json:"awsRegion,omitempty"`
}

// ConcurrencyConfig defines worker and timeout options for a run
type ConcurrencyConfig struct {
	StreamWorkers int    `json:"streamWorkers,omitempty"` // streams synced in parallel
	RunTimeout    string `json:"runTimeout,omitempty"`    // e.g. "30m"
}

// TapConfig is the full run configuration consumed by the orchestrator
type TapConfig struct {
	Streams            []StreamDef       `json:"streams"`
	Auth               *AuthConfig       `json:"auth,omitempty"`
	CheckpointInterval int               `json:"stateCheckpointInterval,omitempty"`
	Concurrency        ConcurrencyConfig `json:"concurrency,omitempty"`
}

// Defaults applied during validation
const (
	DefaultChunkSize          = 50000
	DefaultInferSamples       = 2000
	DefaultCheckpointInterval = 10000
)

// DecodeTapConfig parses a config document, rejecting unknown keys.
func DecodeTapConfig(data []byte) (*TapConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg TapConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration before any I/O and fills in defaults.
func (c *TapConfig) Validate() error {
	if len(c.Streams) == 0 {
		return fmt.Errorf("%w: at least one stream is required", ErrConfig)
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.Concurrency.StreamWorkers <= 0 {
		c.Concurrency.StreamWorkers = 2
	}
	seen := make(map[string]bool)
	for i := range c.Streams {
		s := &c.Streams[i]
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate stream name %q", ErrConfig, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Validate checks a single stream definition and fills in defaults.
func (s *StreamDef) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: stream missing name", ErrConfig)
	}
	if s.URI == "" && len(s.URIs) == 0 {
		return fmt.Errorf("%w: stream %q missing 'uri' or 'uris'", ErrConfig, s.Name)
	}
	switch s.Format {
	case FormatCSV, FormatJSONL, FormatJSON, FormatParquet:
	case "":
		s.Format = FormatCSV
	default:
		return fmt.Errorf("%w: stream %q has unsupported format %q", ErrConfig, s.Name, s.Format)
	}
	switch s.ReplicationMethod {
	case ReplicationFull, ReplicationIncremental:
	case "":
		s.ReplicationMethod = ReplicationFull
	default:
		return fmt.Errorf("%w: stream %q has invalid replication method %q", ErrConfig, s.Name, s.ReplicationMethod)
	}
	if s.ReplicationMethod == ReplicationIncremental && s.ReplicationKey == "" {
		return fmt.Errorf("%w: stream %q is INCREMENTAL but has no replication key", ErrConfig, s.Name)
	}
	switch s.OnDecodeError {
	case "", "skip":
		s.OnDecodeError = "skip"
	case "abort":
	default:
		return fmt.Errorf("%w: stream %q has invalid onDecodeError %q", ErrConfig, s.Name, s.OnDecodeError)
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.InferSamples <= 0 {
		s.InferSamples = DefaultInferSamples
	}
	return nil
}

// SourceURIs returns the effective URI list for the stream.
func (s *StreamDef) SourceURIs() []string {
	if len(s.URIs) > 0 {
		return s.URIs
	}
	return []string{s.URI}
}

// SourceLocator is a concrete, protocol-qualified path to one source object.
type SourceLocator struct {
	Scheme string `json:"scheme"` // "file", "s3"
	Path   string `json:"path"`   // scheme-local path (file path, or bucket/key)
}

// String reassembles the locator into URI form for logs and errors.
func (l SourceLocator) String() string {
	if l.Scheme == "file" {
		return l.Path
	}
	return l.Scheme + "://" + l.Path
}
