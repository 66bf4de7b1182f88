package reclaim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/media-vault/internal/blob"
	"github.com/franz/media-vault/internal/store"
)

func newTestEnv(t *testing.T) (*store.Store, *blob.Store) {
	t.Helper()

	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "catalogue.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	vault, err := blob.New(filepath.Join(dir, "vault"), nil)
	if err != nil {
		t.Fatalf("failed to open vault: %v", err)
	}

	return db, vault
}

func createAsset(t *testing.T, db *store.Store, hash string, parentID int64) *store.Asset {
	t.Helper()

	a := &store.Asset{Hash: hash, URL: "/vault/" + hash, SizeBytes: 100, ParentID: parentID}
	if err := db.CreateAsset(a); err != nil {
		t.Fatalf("failed to create asset %s: %v", hash, err)
	}
	return a
}

func registerUsage(t *testing.T, db *store.Store, assetID int64) {
	t.Helper()

	edge := &store.UsageEdge{AssetID: assetID, SubjectID: "u1", Context: store.ContextPost}
	if err := db.RegisterUsage(edge); err != nil {
		t.Fatalf("failed to register usage: %v", err)
	}
}

func TestSweepReclaimsOrphans(t *testing.T) {
	db, _ := newTestEnv(t)

	orphan := createAsset(t, db, "orphan", 0)
	kept := createAsset(t, db, "kept", 0)
	registerUsage(t, db, kept.ID)

	r := New(&Config{Store: db, GracePeriod: -1})
	rep, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if rep.Examined != 2 {
		t.Errorf("expected 2 examined, got %d", rep.Examined)
	}
	if rep.Reclaimed != 1 {
		t.Errorf("expected 1 reclaimed, got %d", rep.Reclaimed)
	}
	if rep.Retained != 1 {
		t.Errorf("expected 1 retained, got %d", rep.Retained)
	}
	if rep.BytesReclaimed != 100 {
		t.Errorf("expected 100 bytes reclaimed, got %d", rep.BytesReclaimed)
	}

	gone, err := db.GetAssetByID(orphan.ID)
	if err != nil {
		t.Fatalf("failed to look up orphan: %v", err)
	}
	if gone != nil {
		t.Error("expected orphan row deleted")
	}

	still, err := db.GetAssetByID(kept.ID)
	if err != nil {
		t.Fatalf("failed to look up kept asset: %v", err)
	}
	if still == nil {
		t.Error("expected referenced asset to survive the sweep")
	}
}

func TestSweepProtectsParentsOfDerivatives(t *testing.T) {
	db, _ := newTestEnv(t)

	// The parent has zero edges; only its crop is referenced
	parent := createAsset(t, db, "parent", 0)
	crop := createAsset(t, db, "crop", parent.ID)
	registerUsage(t, db, crop.ID)

	r := New(&Config{Store: db, GracePeriod: -1})
	rep, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if rep.Reclaimed != 0 {
		t.Errorf("expected nothing reclaimed, got %d", rep.Reclaimed)
	}
	if rep.Protected != 1 {
		t.Errorf("expected 1 protected, got %d", rep.Protected)
	}

	still, err := db.GetAssetByID(parent.ID)
	if err != nil {
		t.Fatalf("failed to look up parent: %v", err)
	}
	if still == nil {
		t.Error("expected derivative's parent to survive the sweep")
	}
}

func TestSweepHonorsGracePeriod(t *testing.T) {
	db, _ := newTestEnv(t)

	createAsset(t, db, "fresh-orphan", 0)

	r := New(&Config{Store: db, GracePeriod: time.Hour})
	rep, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if rep.Reclaimed != 0 {
		t.Errorf("expected fresh orphan protected by grace period, got %d reclaimed", rep.Reclaimed)
	}
	if rep.Protected != 1 {
		t.Errorf("expected 1 protected, got %d", rep.Protected)
	}
}

func TestSweepDryRun(t *testing.T) {
	db, _ := newTestEnv(t)

	orphan := createAsset(t, db, "orphan", 0)

	r := New(&Config{Store: db, GracePeriod: -1, DryRun: true})
	rep, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if rep.Reclaimed != 1 {
		t.Errorf("expected dry-run to count 1 reclaimable, got %d", rep.Reclaimed)
	}

	still, err := db.GetAssetByID(orphan.ID)
	if err != nil {
		t.Fatalf("failed to look up orphan: %v", err)
	}
	if still == nil {
		t.Error("expected dry-run to leave the row in place")
	}
}

func TestSweepPurgesBytes(t *testing.T) {
	db, vault := newTestEnv(t)
	ctx := context.Background()

	orphanURL, err := vault.Put(ctx, "u1/post/orphan.bin", []byte("orphaned bytes"))
	if err != nil {
		t.Fatalf("failed to store orphan bytes: %v", err)
	}
	keptURL, err := vault.Put(ctx, "u1/post/kept.bin", []byte("kept bytes"))
	if err != nil {
		t.Fatalf("failed to store kept bytes: %v", err)
	}

	orphan := &store.Asset{Hash: "orphan", URL: orphanURL, SizeBytes: 14}
	if err := db.CreateAsset(orphan); err != nil {
		t.Fatalf("failed to create orphan: %v", err)
	}
	kept := &store.Asset{Hash: "kept", URL: keptURL, SizeBytes: 10}
	if err := db.CreateAsset(kept); err != nil {
		t.Fatalf("failed to create kept asset: %v", err)
	}
	registerUsage(t, db, kept.ID)

	r := New(&Config{Store: db, Blobs: vault, GracePeriod: -1, Purge: true})
	rep, err := r.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if rep.PurgedObjects != 1 {
		t.Errorf("expected 1 purged object, got %d", rep.PurgedObjects)
	}
	if _, err := os.Stat(orphanURL); !os.IsNotExist(err) {
		t.Error("expected orphaned bytes removed from the vault")
	}
	if _, err := os.Stat(keptURL); err != nil {
		t.Errorf("expected kept bytes untouched: %v", err)
	}
}

func TestSweepWithoutPurgeLeavesBytes(t *testing.T) {
	db, vault := newTestEnv(t)
	ctx := context.Background()

	url, err := vault.Put(ctx, "u1/post/orphan.bin", []byte("orphaned bytes"))
	if err != nil {
		t.Fatalf("failed to store bytes: %v", err)
	}
	orphan := &store.Asset{Hash: "orphan", URL: url, SizeBytes: 14}
	if err := db.CreateAsset(orphan); err != nil {
		t.Fatalf("failed to create orphan: %v", err)
	}

	r := New(&Config{Store: db, Blobs: vault, GracePeriod: -1})
	rep, err := r.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if rep.Reclaimed != 1 {
		t.Errorf("expected 1 reclaimed, got %d", rep.Reclaimed)
	}
	if _, err := os.Stat(url); err != nil {
		t.Errorf("expected bytes left in place without --purge: %v", err)
	}
}

func TestSweepEmptyCatalogue(t *testing.T) {
	db, _ := newTestEnv(t)

	r := New(&Config{Store: db})
	rep, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if rep.Examined != 0 || rep.Reclaimed != 0 {
		t.Errorf("expected empty report, got %+v", rep)
	}
}
