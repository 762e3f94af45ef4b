package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"

	"go-stream-extract/internal/model"
	"go-stream-extract/internal/store"
)

// MemoryState holds bookmarks in memory, optionally seeded from a state
// document produced by an earlier run's final STATE message. The single-shot
// CLI uses it; state only survives through the emitted messages.
type MemoryState struct {
	mu        sync.Mutex
	bookmarks map[string]model.Bookmark
}

// NewMemoryState builds an empty in-memory state store.
func NewMemoryState() *MemoryState {
	return &MemoryState{bookmarks: make(map[string]model.Bookmark)}
}

// LoadMemoryState parses a state document of the same shape the emitter
// writes: {"bookmarks": {"<stream>": {...}}}.
func LoadMemoryState(data []byte) (*MemoryState, error) {
	var doc struct {
		Bookmarks map[string]model.Bookmark `json:"bookmarks"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid state document: %v", model.ErrConfig, err)
	}
	s := NewMemoryState()
	for name, bm := range doc.Bookmarks {
		s.bookmarks[name] = bm
	}
	return s, nil
}

func (s *MemoryState) Bookmark(stream string) (*model.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bm, ok := s.bookmarks[stream]
	if !ok {
		return nil, nil
	}
	return &bm, nil
}

func (s *MemoryState) SaveBookmark(stream string, bm model.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks[stream] = bm
	return nil
}

// DBState persists bookmarks in the sqlite store, shared across runs.
// The API server uses it so incremental streams resume between requests.
type DBState struct{}

func (DBState) Bookmark(stream string) (*model.Bookmark, error) {
	return store.GetBookmark(stream)
}

func (DBState) SaveBookmark(stream string, bm model.Bookmark) error {
	return store.SaveBookmark(stream, bm)
}
