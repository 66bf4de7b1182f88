package store

import (
	"errors"
	"testing"

	"github.com/franz/media-vault/internal/schemacache"
	"github.com/franz/media-vault/internal/util"
)

func TestMissingColumnParsing(t *testing.T) {
	tests := []struct {
		err  string
		col  string
		want bool
	}{
		{"table assets has no column named width", "width", true},
		{"SQL logic error: no such column: origin", "origin", true},
		{"SQL logic error: no such column: e.origin", "origin", true},
		{"UNIQUE constraint failed: assets.hash", "", false},
		{"disk I/O error", "", false},
	}

	for _, tt := range tests {
		col, ok := missingColumn(errors.New(tt.err))
		if ok != tt.want || col != tt.col {
			t.Errorf("missingColumn(%q) = (%q, %v), want (%q, %v)",
				tt.err, col, ok, tt.col, tt.want)
		}
	}
}

func TestInsertAdaptiveDropsOptionalColumns(t *testing.T) {
	// Schema v1 lacks width and height; a write carrying them must
	// succeed with both dropped
	s := openTestStore(t, &OpenOptions{MaxSchemaVersion: 1})

	a := &Asset{Hash: "h1", URL: "/vault/h1", SizeBytes: 1, Width: 800, Height: 600}
	if err := s.CreateAsset(a); err != nil {
		t.Fatalf("expected degraded write to succeed, got: %v", err)
	}

	got, err := s.FindAssetByHash("h1")
	if err != nil {
		t.Fatalf("failed to find asset: %v", err)
	}
	if got == nil {
		t.Fatal("expected asset row to exist")
	}
	if got.Width != 0 || got.Height != 0 {
		t.Errorf("expected dropped dimensions, got %dx%d", got.Width, got.Height)
	}

	// Both columns are now cached Absent
	for _, col := range []string{"width", "height"} {
		if state := s.SchemaCache().Get("assets", col); state != schemacache.Absent {
			t.Errorf("expected assets.%s cached Absent, got %v", col, state)
		}
	}
}

func TestInsertAdaptiveSkipsKnownAbsentColumns(t *testing.T) {
	s := openTestStore(t, &OpenOptions{MaxSchemaVersion: 1})

	// First write learns the deployed schema
	first := &Asset{Hash: "h1", URL: "/vault/h1", SizeBytes: 1, Width: 10, Height: 10}
	if err := s.CreateAsset(first); err != nil {
		t.Fatalf("failed first write: %v", err)
	}

	// Second write must not pay the probe again; it still succeeds and
	// still drops the cached-absent columns
	second := &Asset{Hash: "h2", URL: "/vault/h2", SizeBytes: 1, Width: 20, Height: 20}
	if err := s.CreateAsset(second); err != nil {
		t.Fatalf("failed second write: %v", err)
	}

	count, err := s.CountAssets()
	if err != nil {
		t.Fatalf("failed to count assets: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 assets, got %d", count)
	}
}

func TestInsertAdaptiveMarksPresentOnSuccess(t *testing.T) {
	s := openTestStore(t, nil)

	a := &Asset{Hash: "h1", URL: "/vault/h1", SizeBytes: 1, Width: 100, Height: 100}
	if err := s.CreateAsset(a); err != nil {
		t.Fatalf("failed to create asset: %v", err)
	}

	if state := s.SchemaCache().Get("assets", "width"); state != schemacache.Present {
		t.Errorf("expected assets.width cached Present after success, got %v", state)
	}
}

func TestInsertAdaptiveRequiredColumnMissing(t *testing.T) {
	s := openTestStore(t, nil)

	// A required field naming a column no schema version has cannot be
	// absorbed; the write degrades
	_, err := s.InsertAdaptive("assets", []Field{
		{Name: "hash", Value: "h1"},
		{Name: "url", Value: "/vault/h1"},
		{Name: "nonexistent", Value: 1},
	})
	if !errors.Is(err, util.ErrWriteDegraded) {
		t.Errorf("expected ErrWriteDegraded, got %v", err)
	}
}

func TestInsertAdaptivePropagatesOtherErrors(t *testing.T) {
	s := openTestStore(t, nil)

	// A NOT NULL violation is not a schema-drift signal
	_, err := s.InsertAdaptive("assets", []Field{
		{Name: "url", Value: "/vault/x"},
	})
	if err == nil {
		t.Fatal("expected NOT NULL violation")
	}
	if errors.Is(err, util.ErrWriteDegraded) {
		t.Errorf("NOT NULL violation misclassified as degraded write: %v", err)
	}
}

func TestUpdateAdaptiveDegeneratesToNoOp(t *testing.T) {
	s := openTestStore(t, &OpenOptions{MaxSchemaVersion: 1})

	a := mustCreateAsset(t, s, "h1", 0)
	s.SchemaCache().MarkAbsent("assets", "width")

	// Every field drops before the first attempt; nothing to write
	err := s.UpdateAdaptive("assets", a.ID, []Field{
		{Name: "width", Value: 42, Optional: true},
	})
	if err != nil {
		t.Errorf("expected no-op update to succeed, got: %v", err)
	}
}

func TestAbsentHookFiresOncePerColumn(t *testing.T) {
	s := openTestStore(t, &OpenOptions{MaxSchemaVersion: 1})

	fired := make(map[string]int)
	s.SetAbsentHook(func(table, field string) {
		fired[table+"."+field]++
	})

	for i, hash := range []string{"h1", "h2", "h3"} {
		a := &Asset{Hash: hash, URL: "/vault/" + hash, SizeBytes: 1, Width: i + 1, Height: i + 1}
		if err := s.CreateAsset(a); err != nil {
			t.Fatalf("failed to create asset: %v", err)
		}
	}

	if fired["assets.width"] != 1 {
		t.Errorf("expected one drift event for assets.width, got %d", fired["assets.width"])
	}
	if fired["assets.height"] != 1 {
		t.Errorf("expected one drift event for assets.height, got %d", fired["assets.height"])
	}
}
