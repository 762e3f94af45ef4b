package store

import (
	"path/filepath"
	"testing"
	"time"

	"go-stream-extract/internal/model"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := InitDB(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { CloseDB() })
}

func TestBookmarkRoundTrip(t *testing.T) {
	openTestDB(t)

	bm, err := GetBookmark("orders")
	if err != nil {
		t.Fatalf("GetBookmark on empty store: %v", err)
	}
	if bm != nil {
		t.Fatalf("expected no bookmark, got %+v", bm)
	}

	want := model.Bookmark{
		ReplicationKey: "updated_at",
		Value:          time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Type:           model.TypeTimestamp,
	}
	if err := SaveBookmark("orders", want); err != nil {
		t.Fatalf("SaveBookmark: %v", err)
	}

	got, err := GetBookmark("orders")
	if err != nil || got == nil {
		t.Fatalf("GetBookmark: %v, %v", got, err)
	}
	if got.ReplicationKey != want.ReplicationKey || got.Type != want.Type {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !got.Value.(time.Time).Equal(want.Value.(time.Time)) {
		t.Errorf("value = %v, want %v", got.Value, want.Value)
	}
}

func TestSaveBookmarkUpserts(t *testing.T) {
	openTestDB(t)

	first := model.Bookmark{ReplicationKey: "id", Value: int64(5), Type: model.TypeInteger}
	second := model.Bookmark{ReplicationKey: "id", Value: int64(9), Type: model.TypeInteger}
	if err := SaveBookmark("orders", first); err != nil {
		t.Fatalf("SaveBookmark: %v", err)
	}
	if err := SaveBookmark("orders", second); err != nil {
		t.Fatalf("SaveBookmark upsert: %v", err)
	}

	got, err := GetBookmark("orders")
	if err != nil || got == nil {
		t.Fatalf("GetBookmark: %v, %v", got, err)
	}
	if got.Value != int64(9) {
		t.Errorf("value = %v, want 9", got.Value)
	}

	all, err := AllBookmarks()
	if err != nil {
		t.Fatalf("AllBookmarks: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d bookmarks, want 1", len(all))
	}
}

func TestRunLifecycle(t *testing.T) {
	openTestDB(t)

	cfg := &model.TapConfig{Streams: []model.StreamDef{{Name: "orders", URI: "x.csv"}}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := SaveRun("run-1", cfg); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := UpdateRunStatus("run-1", "running"); err != nil {
		t.Fatalf("UpdateRunStatus: %v", err)
	}

	run, err := GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run["status"] != "running" {
		t.Errorf("status = %v, want running", run["status"])
	}

	runs, err := ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs, want 1", len(runs))
	}
}

func TestStreamProgressAndErrors(t *testing.T) {
	openTestDB(t)

	started := time.Now().UTC()
	if err := SaveStreamProgress("run-1", "orders", "DECODING", 42, 1, &started, nil); err != nil {
		t.Fatalf("SaveStreamProgress: %v", err)
	}
	progress, err := GetStreamProgress("run-1")
	if err != nil {
		t.Fatalf("GetStreamProgress: %v", err)
	}
	if len(progress) != 1 {
		t.Fatalf("got %d progress rows, want 1", len(progress))
	}

	if err := SaveRunError("run-1", "orders", model.ErrNoMatch); err != nil {
		t.Fatalf("SaveRunError: %v", err)
	}
	errs, err := GetRunErrors("run-1")
	if err != nil {
		t.Fatalf("GetRunErrors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
}
