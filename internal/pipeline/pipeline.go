// Package pipeline orchestrates a sync run: resolving stream URIs into
// concrete sources, freezing a schema per stream, decoding and converting
// records, filtering them against bookmarks and emitting the result as a
// JSON-line message sequence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go-stream-extract/internal/decode"
	"go-stream-extract/internal/infer"
	"go-stream-extract/internal/model"
	"go-stream-extract/internal/resolver"
	"go-stream-extract/internal/source"
	"go-stream-extract/internal/store"
)

// Per-stream lifecycle states, recorded in stream_progress.
const (
	StateInit          = "INIT"
	StateResolving     = "RESOLVING"
	StateDecoding      = "DECODING"
	StateCheckpointing = "CHECKPOINTING"
	StateDone          = "DONE"
	StateFailed        = "FAILED"
)

// Deps bundles the collaborators a run needs. Emitter and State are
// required; Registry defaults to a file-only registry when nil.
type Deps struct {
	Registry *source.Registry
	Emitter  *Emitter
	State    StateStore
	Retry    *RetryConfig
}

// Run executes every configured stream and returns the aggregated summary.
// Stream failures are isolated: one stream going down never stops its
// siblings. Run returns an error only when the whole run is unusable
// (bad deps, timeout, cancellation or every stream failing).
func Run(ctx context.Context, runID string, cfg *model.TapConfig, deps Deps) (*RunSummary, error) {
	if deps.Emitter == nil {
		return nil, fmt.Errorf("%w: no emitter configured", model.ErrConfig)
	}
	if deps.State == nil {
		return nil, fmt.Errorf("%w: no state store configured", model.ErrConfig)
	}
	if deps.Registry == nil {
		deps.Registry = source.NewRegistry(source.NewFileProvider())
	}
	retry := DefaultOpenRetry
	if deps.Retry != nil {
		retry = *deps.Retry
	}

	if cfg.Concurrency.RunTimeout != "" {
		d, err := time.ParseDuration(cfg.Concurrency.RunTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid runTimeout %q", model.ErrConfig, cfg.Concurrency.RunTimeout)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	summary := &RunSummary{RunID: runID, StartedAt: time.Now().UTC()}
	trackRunStatus(runID, "running")
	fmt.Fprintf(os.Stderr, "🚀 Starting run %s with %d stream(s), %d worker(s)\n",
		runID, len(cfg.Streams), cfg.Concurrency.StreamWorkers)

	jobs := make(chan *model.StreamDef)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency.StreamWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stream := range jobs {
				summary.Add(syncStream(ctx, runID, stream, cfg, deps, retry))
			}
		}()
	}

feed:
	for i := range cfg.Streams {
		select {
		case jobs <- &cfg.Streams[i]:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	summary.EndedAt = time.Now().UTC()
	switch {
	case ctx.Err() != nil:
		trackRunStatus(runID, "cancelled")
		trackSummary(runID, summary)
		return summary, ctx.Err()
	case summary.Failed():
		trackRunStatus(runID, "failed")
		trackSummary(runID, summary)
		return summary, fmt.Errorf("all %d stream(s) failed", len(summary.Streams))
	default:
		trackRunStatus(runID, "completed")
		trackSummary(runID, summary)
		fmt.Fprintf(os.Stderr, "✅ Run %s finished: %d records across %d stream(s)\n",
			runID, summary.TotalRecords(), len(summary.Streams))
		return summary, nil
	}
}

// syncStream runs the full lifecycle for one stream. Any returned state
// other than DONE means the stream's bookmark only reflects its last
// successful checkpoint.
func syncStream(ctx context.Context, runID string, stream *model.StreamDef, cfg *model.TapConfig, deps Deps, retry RetryConfig) StreamSummary {
	sum := StreamSummary{Stream: stream.Name, State: StateInit, StartedAt: time.Now().UTC()}
	fail := func(err error) StreamSummary {
		sum.State = StateFailed
		sum.Error = err.Error()
		sum.EndedAt = time.Now().UTC()
		fmt.Fprintf(os.Stderr, "❌ Stream %s failed: %v\n", stream.Name, err)
		trackError(runID, stream.Name, err)
		trackProgress(runID, &sum)
		return sum
	}

	sum.State = StateResolving
	trackProgress(runID, &sum)
	res := resolver.New(deps.Registry)
	locators, err := res.Resolve(ctx, stream)
	if err != nil && (!errors.Is(err, model.ErrNoMatch) || stream.Strict) {
		return fail(err)
	}
	if len(locators) == 0 {
		if stream.Strict {
			return fail(fmt.Errorf("%w: stream %q resolved zero objects", model.ErrNoMatch, stream.Name))
		}
		fmt.Fprintf(os.Stderr, "⚠️  Stream %s matched no sources, skipping\n", stream.Name)
		trackLog(runID, stream.Name, "warn", "no sources matched", nil)
		sum.State = StateDone
		sum.EndedAt = time.Now().UTC()
		trackProgress(runID, &sum)
		return sum
	}
	sum.LocatorsResolved = len(locators)
	fmt.Fprintf(os.Stderr, "🔍 Stream %s resolved %d source(s)\n", stream.Name, len(locators))

	prior, err := deps.State.Bookmark(stream.Name)
	if err != nil {
		return fail(fmt.Errorf("load bookmark: %w", err))
	}

	schema, err := freezeSchema(ctx, stream, locators, deps.Registry, retry)
	if err != nil {
		return fail(err)
	}
	if err := deps.Emitter.Schema(stream.Name, schema, stream.Keys); err != nil {
		return fail(err)
	}

	keyType := model.TypeString
	if stream.ReplicationMethod == model.ReplicationIncremental {
		f, ok := schema.Lookup(stream.ReplicationKey)
		if !ok {
			return fail(fmt.Errorf("%w: replication key %q not in schema", model.ErrSchemaConflict, stream.ReplicationKey))
		}
		keyType = f.Type
	}
	cp := NewCheckpointer(stream, prior, keyType, cfg.CheckpointInterval, deps.Emitter, deps.State)

	for _, loc := range locators {
		if err := ctx.Err(); err != nil {
			cp.Checkpoint()
			return fail(err)
		}
		if err := syncLocator(ctx, stream, loc, schema, cp, deps, retry, &sum); err != nil {
			if stream.Strict || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				cp.Checkpoint()
				return fail(fmt.Errorf("source %s: %w", loc, err))
			}
			sum.LocatorsFailed++
			fmt.Fprintf(os.Stderr, "⚠️  Stream %s: source %s failed: %v\n", stream.Name, loc, err)
			trackError(runID, stream.Name, fmt.Errorf("source %s: %w", loc, err))
		}
		sum.State = StateCheckpointing
		if err := cp.Checkpoint(); err != nil {
			return fail(err)
		}
		sum.Checkpoints = cp.Checkpoints
		sum.RecordsEmitted = cp.Accepted
		sum.RecordsFiltered = cp.Rejected
		trackProgress(runID, &sum)
	}

	if err := cp.Checkpoint(); err != nil {
		return fail(err)
	}
	sum.Checkpoints = cp.Checkpoints
	sum.RecordsEmitted = cp.Accepted
	sum.RecordsFiltered = cp.Rejected
	sum.State = StateDone
	sum.EndedAt = time.Now().UTC()
	fmt.Fprintf(os.Stderr, "✅ Stream %s done: %d records emitted, %d filtered\n",
		stream.Name, sum.RecordsEmitted, sum.RecordsFiltered)
	trackProgress(runID, &sum)
	return sum
}

// syncLocator decodes a single source end to end, converting, filtering
// and emitting every record. Returned errors fail the locator; per-record
// decode errors and schema conflicts are counted and skipped unless the
// stream is strict.
func syncLocator(ctx context.Context, stream *model.StreamDef, loc model.SourceLocator, schema *model.Schema, cp *Checkpointer, deps Deps, retry RetryConfig, sum *StreamSummary) error {
	rc, err := openWithRetry(ctx, deps.Registry, loc, retry)
	if err != nil {
		return err
	}
	defer rc.Close()

	dec, err := decode.New(stream, rc)
	if err != nil {
		return err
	}
	sum.State = StateDecoding

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := dec.Next(ctx)
		if err != nil {
			return err
		}
		if chunk == nil {
			return nil
		}
		sum.DecodeErrors += chunk.Skipped

		for _, rec := range chunk.Records {
			conv, err := ConvertRecord(rec, schema)
			if err != nil {
				if stream.Strict {
					return err
				}
				sum.SchemaConflicts++
				continue
			}
			ok, err := cp.Admit(conv)
			if err != nil {
				if stream.Strict || abortOnDecodeError(stream) {
					return err
				}
				sum.DecodeErrors++
				continue
			}
			if !ok {
				continue
			}
			if err := deps.Emitter.Record(stream.Name, conv); err != nil {
				return err
			}
			if err := cp.Commit(conv); err != nil {
				return err
			}
			if cp.Due() {
				if err := cp.Checkpoint(); err != nil {
					return err
				}
			}
		}
	}
}

// freezeSchema picks the one schema the whole stream is emitted under:
// the explicit schema when configured, the format's native schema when it
// carries one, otherwise inference over a bounded sample read from the
// resolved sources in order. Sampled sources are re-opened afterwards, so
// sampling never consumes records.
func freezeSchema(ctx context.Context, stream *model.StreamDef, locators []model.SourceLocator, registry *source.Registry, retry RetryConfig) (*model.Schema, error) {
	if stream.Schema != nil {
		return stream.Schema, nil
	}

	if stream.Format == model.FormatParquet {
		rc, err := openWithRetry(ctx, registry, locators[0], retry)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", locators[0], err)
		}
		defer rc.Close()
		dec, err := decode.New(stream, rc)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", locators[0], err)
		}
		if ns, ok := dec.(decode.NativeSchemaer); ok {
			return ns.NativeSchema()
		}
	}

	samples, err := collectSamples(ctx, stream, locators, registry, retry)
	if err != nil {
		return nil, err
	}
	return infer.Infer(samples, stream), nil
}

// collectSamples reads up to inferSamples records across the locators.
// Sources that fail to open or decode during sampling are skipped; the
// real pass will surface their failures.
func collectSamples(ctx context.Context, stream *model.StreamDef, locators []model.SourceLocator, registry *source.Registry, retry RetryConfig) ([]model.Record, error) {
	var samples []model.Record
	for _, loc := range locators {
		if len(samples) >= stream.InferSamples {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := func() error {
			rc, err := openWithRetry(ctx, registry, loc, retry)
			if err != nil {
				return err
			}
			defer rc.Close()
			dec, err := decode.New(stream, rc)
			if err != nil {
				return err
			}
			for len(samples) < stream.InferSamples {
				chunk, err := dec.Next(ctx)
				if err != nil || chunk == nil {
					return err
				}
				samples = append(samples, chunk.Records...)
			}
			return nil
		}()
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return nil, err
		}
	}
	if len(samples) > stream.InferSamples {
		samples = samples[:stream.InferSamples]
	}
	return samples, nil
}

func abortOnDecodeError(stream *model.StreamDef) bool {
	return stream.OnDecodeError == "abort"
}

// Run tracking writes are best effort and only happen when the store has
// been initialized; the single-shot CLI runs without a database.

func trackRunStatus(runID, status string) {
	if runID == "" || !store.Ready() {
		return
	}
	store.UpdateRunStatus(runID, status)
}

func trackSummary(runID string, sum *RunSummary) {
	if runID == "" || !store.Ready() {
		return
	}
	store.SaveRunSummary(runID, sum)
}

func trackError(runID, stream string, err error) {
	if runID == "" || !store.Ready() {
		return
	}
	store.SaveRunError(runID, stream, err)
}

func trackLog(runID, stream, level, message string, details map[string]interface{}) {
	if runID == "" || !store.Ready() {
		return
	}
	store.SaveRunLog(runID, stream, level, message, details)
}

func trackProgress(runID string, sum *StreamSummary) {
	if runID == "" || !store.Ready() {
		return
	}
	var ended *time.Time
	if !sum.EndedAt.IsZero() {
		ended = &sum.EndedAt
	}
	started := sum.StartedAt
	store.SaveStreamProgress(runID, sum.Stream, sum.State,
		sum.RecordsEmitted, sum.DecodeErrors+sum.SchemaConflicts+sum.LocatorsFailed, &started, ended)
}
