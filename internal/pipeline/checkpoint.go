package pipeline

import (
	"fmt"

	"go-stream-extract/internal/model"
)

// StateStore is the persisted-state handle passed into a run. It maps
// stream names to their last-committed bookmarks; absence of a bookmark
// means a full initial sync.
type StateStore interface {
	Bookmark(stream string) (*model.Bookmark, error)
	SaveBookmark(stream string, bm model.Bookmark) error
}

// Checkpointer filters records against the stream's bookmark and advances
// it monotonically. It exclusively owns the bookmark for the duration of
// one stream's sync; everything else reads it through checkpoints.
type Checkpointer struct {
	stream   *model.StreamDef
	keyType  model.TypeTag
	bookmark *model.Bookmark
	interval int
	emitter  *Emitter
	state    StateStore

	sinceCheckpoint int
	Accepted        int
	Rejected        int
	Checkpoints     int
}

// NewCheckpointer seeds the filter from a prior bookmark (nil for a full
// initial sync). keyType is the frozen schema type of the replication key.
func NewCheckpointer(stream *model.StreamDef, prior *model.Bookmark, keyType model.TypeTag, interval int, emitter *Emitter, state StateStore) *Checkpointer {
	bm := prior
	if bm == nil {
		bm = &model.Bookmark{ReplicationKey: stream.ReplicationKey, Type: keyType}
	}
	return &Checkpointer{
		stream:   stream,
		keyType:  keyType,
		bookmark: bm,
		interval: interval,
		emitter:  emitter,
		state:    state,
	}
}

// Admit decides whether a converted record passes the incremental filter.
// FULL mode admits everything. In INCREMENTAL mode a record passes iff its
// replication-key value is strictly greater than the bookmark (ties admitted
// only with replicationAllowTies). A missing or null key value is admitted
// too. A key value whose type disagrees with the schema is a decode error,
// never silently coerced. Admit does not touch the bookmark; the caller
// confirms every admitted record with Commit once it is safely emitted.
func (c *Checkpointer) Admit(rec model.Record) (bool, error) {
	if c.stream.ReplicationMethod != model.ReplicationIncremental {
		return true, nil
	}

	v := rec[c.stream.ReplicationKey]
	if v != nil && model.TypeOf(v) != c.keyType {
		return false, fmt.Errorf("%w: replication key %q has type %s, schema says %s",
			model.ErrDecode, c.stream.ReplicationKey, model.TypeOf(v), c.keyType)
	}

	ok, err := c.bookmark.Admits(v, c.stream.ReplicationAllowTies)
	if err != nil {
		return false, fmt.Errorf("%w: replication key %q: %v", model.ErrDecode, c.stream.ReplicationKey, err)
	}
	if !ok {
		c.Rejected++
		return false, nil
	}
	return true, nil
}

// Commit confirms that an admitted record was emitted. Only now does the
// bookmark advance: a checkpoint written after a failed emit must never
// cover the record that was lost.
func (c *Checkpointer) Commit(rec model.Record) error {
	if c.stream.ReplicationMethod == model.ReplicationIncremental {
		v := rec[c.stream.ReplicationKey]
		if err := c.bookmark.Advance(v, c.keyType); err != nil {
			return fmt.Errorf("%w: replication key %q: %v", model.ErrDecode, c.stream.ReplicationKey, err)
		}
	}
	c.Accepted++
	c.sinceCheckpoint++
	return nil
}

// Due reports whether the accepted-record cadence calls for a checkpoint.
func (c *Checkpointer) Due() bool {
	return c.interval > 0 && c.sinceCheckpoint >= c.interval
}

// Checkpoint emits a STATE message and, for incremental streams, persists
// the bookmark. Called at the cadence boundary, at the end of every
// locator and at the end of the stream.
func (c *Checkpointer) Checkpoint() error {
	c.sinceCheckpoint = 0
	c.Checkpoints++
	if c.stream.ReplicationMethod == model.ReplicationIncremental {
		if err := c.state.SaveBookmark(c.stream.Name, *c.bookmark); err != nil {
			return fmt.Errorf("persist bookmark for %s: %w", c.stream.Name, err)
		}
	}
	return c.emitter.State(map[string]model.Bookmark{c.stream.Name: *c.bookmark})
}

// Bookmark returns the current in-memory bookmark.
func (c *Checkpointer) Bookmark() model.Bookmark {
	return *c.bookmark
}
