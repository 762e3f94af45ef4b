package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go-stream-extract/internal/model"
	"go-stream-extract/internal/source"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func fileResolver() *Resolver {
	return New(source.NewRegistry(source.NewFileProvider()))
}

func paths(locators []model.SourceLocator) []string {
	out := make([]string, len(locators))
	for i, l := range locators {
		out[i] = l.Path
	}
	return out
}

func TestResolveExplicitURIsKeepOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.csv", "a.csv")

	stream := &model.StreamDef{
		Name: "test",
		URIs: []string{filepath.Join(dir, "b.csv"), filepath.Join(dir, "a.csv")},
	}
	locators, err := fileResolver().Resolve(context.Background(), stream)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := paths(locators)
	if len(got) != 2 || filepath.Base(got[0]) != "b.csv" || filepath.Base(got[1]) != "a.csv" {
		t.Fatalf("declaration order not preserved: %v", got)
	}
}

func TestResolveGlobSorted(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "c.csv", "a.csv", "b.csv", "skip.txt")

	stream := &model.StreamDef{Name: "test", URI: filepath.Join(dir, "*.csv")}
	locators, err := fileResolver().Resolve(context.Background(), stream)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := paths(locators)
	if len(got) != 3 {
		t.Fatalf("got %d locators, want 3: %v", len(got), got)
	}
	for i, want := range []string{"a.csv", "b.csv", "c.csv"} {
		if filepath.Base(got[i]) != want {
			t.Fatalf("glob expansion not sorted: %v", got)
		}
	}
}

func TestResolveDoublestarRecursion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "2024/01/x.jsonl", "2024/02/y.jsonl", "top.jsonl")

	stream := &model.StreamDef{Name: "test", URI: filepath.Join(dir, "**", "*.jsonl")}
	locators, err := fileResolver().Resolve(context.Background(), stream)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(locators) != 3 {
		t.Fatalf("got %d locators, want 3: %v", len(locators), paths(locators))
	}
}

func TestResolveNameFilter(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "orders_2024.csv", "orders_2023.csv", "refunds_2024.csv")

	stream := &model.StreamDef{
		Name:    "test",
		URI:     filepath.Join(dir, "*.csv"),
		Pattern: `^orders_`,
	}
	locators, err := fileResolver().Resolve(context.Background(), stream)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(locators) != 2 {
		t.Fatalf("got %d locators, want 2: %v", len(locators), paths(locators))
	}
}

func TestResolveNoMatch(t *testing.T) {
	dir := t.TempDir()
	stream := &model.StreamDef{Name: "test", URI: filepath.Join(dir, "*.csv")}
	_, err := fileResolver().Resolve(context.Background(), stream)
	if !errors.Is(err, model.ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestResolveBadPattern(t *testing.T) {
	stream := &model.StreamDef{Name: "test", URI: "x.csv", Pattern: `([`}
	_, err := fileResolver().Resolve(context.Background(), stream)
	if !errors.Is(err, model.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestResolveUnsupportedScheme(t *testing.T) {
	stream := &model.StreamDef{Name: "test", URI: "gopher://host/thing"}
	_, err := fileResolver().Resolve(context.Background(), stream)
	if !errors.Is(err, model.ErrUnsupportedProtocol) {
		t.Fatalf("err = %v, want ErrUnsupportedProtocol", err)
	}
}

func TestResolveNonGlobPassesThrough(t *testing.T) {
	// a literal path resolves even when the file does not exist yet;
	// the failure surfaces at open time
	stream := &model.StreamDef{Name: "test", URI: "/does/not/exist.csv"}
	locators, err := fileResolver().Resolve(context.Background(), stream)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(locators) != 1 || locators[0].Path != "/does/not/exist.csv" {
		t.Fatalf("locators = %v", locators)
	}
}

func TestSplitURI(t *testing.T) {
	cases := []struct {
		uri    string
		scheme string
		path   string
	}{
		{"s3://bucket/key.csv", "s3", "bucket/key.csv"},
		{"file:///tmp/x.csv", "file", "/tmp/x.csv"},
		{"/tmp/x.csv", "file", "/tmp/x.csv"},
		{"relative/x.csv", "file", "relative/x.csv"},
	}
	for _, tc := range cases {
		scheme, p, err := splitURI(tc.uri)
		if err != nil {
			t.Errorf("splitURI(%q): %v", tc.uri, err)
			continue
		}
		if scheme != tc.scheme || p != tc.path {
			t.Errorf("splitURI(%q) = %q, %q; want %q, %q", tc.uri, scheme, p, tc.scheme, tc.path)
		}
	}
}

func TestStaticPrefix(t *testing.T) {
	cases := map[string]string{
		"/data/2024/*.csv":    "/data/2024",
		"/data/**/part-*.json": "/data",
		"*.csv":               ".",
		"/data/exact.csv":     "/data/exact.csv",
	}
	for pattern, want := range cases {
		if got := staticPrefix(pattern); got != want {
			t.Errorf("staticPrefix(%q) = %q, want %q", pattern, got, want)
		}
	}
}
