package store

import (
	"testing"
)

func mustCreateAsset(t *testing.T, s *Store, hash string, parentID int64) *Asset {
	t.Helper()

	a := &Asset{Hash: hash, URL: "/vault/" + hash, SizeBytes: 1, ParentID: parentID}
	if err := s.CreateAsset(a); err != nil {
		t.Fatalf("failed to create asset %s: %v", hash, err)
	}
	return a
}

func mustRegister(t *testing.T, s *Store, assetID int64, subject string, ctx Context) {
	t.Helper()

	edge := &UsageEdge{AssetID: assetID, SubjectID: subject, Context: ctx}
	if err := s.RegisterUsage(edge); err != nil {
		t.Fatalf("failed to register usage: %v", err)
	}
}

func TestRegisterAndIsReferenced(t *testing.T) {
	s := openTestStore(t, nil)
	a := mustCreateAsset(t, s, "h1", 0)

	referenced, err := s.IsReferenced(a.ID)
	if err != nil {
		t.Fatalf("failed to check references: %v", err)
	}
	if referenced {
		t.Error("expected fresh asset to be unreferenced")
	}

	mustRegister(t, s, a.ID, "u1", ContextPost)

	referenced, err = s.IsReferenced(a.ID)
	if err != nil {
		t.Fatalf("failed to check references: %v", err)
	}
	if !referenced {
		t.Error("expected asset to be referenced after registration")
	}
}

func TestRegisterIsAppendOnly(t *testing.T) {
	s := openTestStore(t, nil)
	a := mustCreateAsset(t, s, "h1", 0)

	// The same (asset, subject, context) registered twice is two
	// independent references
	mustRegister(t, s, a.ID, "u1", ContextPost)
	mustRegister(t, s, a.ID, "u1", ContextPost)

	count, err := s.CountEdges()
	if err != nil {
		t.Fatalf("failed to count edges: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 edges, got %d", count)
	}
}

func TestLibraryHidesDerivatives(t *testing.T) {
	s := openTestStore(t, nil)

	original := mustCreateAsset(t, s, "orig", 0)
	crop := mustCreateAsset(t, s, "crop", original.ID)

	mustRegister(t, s, original.ID, "u1", ContextRaw)
	mustRegister(t, s, crop.ID, "u1", ContextPost)

	entries, err := s.ListLibrary("u1")
	if err != nil {
		t.Fatalf("failed to list library: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 library entry, got %d", len(entries))
	}
	if entries[0].Asset.ID != original.ID {
		t.Errorf("expected only the original in the library, got asset %d", entries[0].Asset.ID)
	}
}

func TestLibraryEclipsesAutomatedContexts(t *testing.T) {
	s := openTestStore(t, nil)

	// Avatar-only asset: visible
	avatarOnly := mustCreateAsset(t, s, "avatar-only", 0)
	mustRegister(t, s, avatarOnly.ID, "u1", ContextAvatar)

	// Asset with both an avatar edge and a post edge: the avatar edge is
	// eclipsed, the post edge shows
	both := mustCreateAsset(t, s, "both", 0)
	mustRegister(t, s, both.ID, "u1", ContextAvatar)
	mustRegister(t, s, both.ID, "u1", ContextPost)

	entries, err := s.ListLibrary("u1")
	if err != nil {
		t.Fatalf("failed to list library: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 library entries, got %d", len(entries))
	}

	for _, e := range entries {
		switch e.Asset.ID {
		case avatarOnly.ID:
			if e.Edge.Context != ContextAvatar {
				t.Errorf("avatar-only asset surfaced via %s edge", e.Edge.Context)
			}
		case both.ID:
			if e.Edge.Context != ContextPost {
				t.Errorf("expected eclipsed asset to surface via post edge, got %s", e.Edge.Context)
			}
		default:
			t.Errorf("unexpected asset %d in library", e.Asset.ID)
		}
	}
}

func TestLibraryEclipseIsPerSubject(t *testing.T) {
	s := openTestStore(t, nil)

	a := mustCreateAsset(t, s, "shared", 0)
	mustRegister(t, s, a.ID, "u1", ContextAvatar)
	mustRegister(t, s, a.ID, "u2", ContextPost)

	// u2's post edge must not eclipse u1's avatar edge
	entries, err := s.ListLibrary("u1")
	if err != nil {
		t.Fatalf("failed to list library: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected u1's avatar edge to survive, got %d entries", len(entries))
	}
}

func TestLibraryDeduplicatesHashes(t *testing.T) {
	s := openTestStore(t, nil)

	a := mustCreateAsset(t, s, "h1", 0)
	mustRegister(t, s, a.ID, "u1", ContextPost)
	mustRegister(t, s, a.ID, "u1", ContextChat)

	entries, err := s.ListLibrary("u1")
	if err != nil {
		t.Fatalf("failed to list library: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected the same content to appear once, got %d entries", len(entries))
	}
}

func TestLibraryNewestFirst(t *testing.T) {
	s := openTestStore(t, nil)

	first := mustCreateAsset(t, s, "first", 0)
	second := mustCreateAsset(t, s, "second", 0)
	mustRegister(t, s, first.ID, "u1", ContextPost)
	mustRegister(t, s, second.ID, "u1", ContextPost)

	entries, err := s.ListLibrary("u1")
	if err != nil {
		t.Fatalf("failed to list library: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Asset.ID != second.ID {
		t.Errorf("expected newest registration first, got asset %d", entries[0].Asset.ID)
	}
}

func TestLibraryScopedToSubject(t *testing.T) {
	s := openTestStore(t, nil)

	a := mustCreateAsset(t, s, "h1", 0)
	b := mustCreateAsset(t, s, "h2", 0)
	mustRegister(t, s, a.ID, "u1", ContextPost)
	mustRegister(t, s, b.ID, "u2", ContextPost)

	entries, err := s.ListLibrary("u1")
	if err != nil {
		t.Fatalf("failed to list library: %v", err)
	}
	if len(entries) != 1 || entries[0].Asset.ID != a.ID {
		t.Errorf("expected only u1's asset, got %d entries", len(entries))
	}
}

func TestLibraryOnLaggingDeployment(t *testing.T) {
	// usage_edges has no origin column at schema v1; both the write and
	// the library read must adapt
	s := openTestStore(t, &OpenOptions{MaxSchemaVersion: 1})

	a := mustCreateAsset(t, s, "h1", 0)
	edge := &UsageEdge{AssetID: a.ID, SubjectID: "u1", Context: ContextPost, Origin: "cli"}
	if err := s.RegisterUsage(edge); err != nil {
		t.Fatalf("failed to register usage on v1 schema: %v", err)
	}

	entries, err := s.ListLibrary("u1")
	if err != nil {
		t.Fatalf("failed to list library on v1 schema: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Edge.Origin != "" {
		t.Errorf("expected origin to be dropped on v1 schema, got %q", entries[0].Edge.Origin)
	}
}
