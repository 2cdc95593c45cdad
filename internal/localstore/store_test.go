package localstore

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "filenet_test_localstore_db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetManifest(t *testing.T) {
	store := openTestStore(t)

	rec := NewFileManifestRecord("video.mp4", 3_145_728, "deadbeef", []string{"a1", "a2", "a3"}, time.Unix(1700000000, 0))
	if err := store.PutManifest(rec); err != nil {
		t.Fatalf("failed to put manifest: %v", err)
	}

	got, err := store.GetManifest("video.mp4")
	if err != nil {
		t.Fatalf("failed to get manifest: %v", err)
	}
	if got.FileName != rec.FileName || got.FileSize != rec.FileSize || got.WholeChecksum != rec.WholeChecksum {
		t.Errorf("retrieved manifest does not match: got %+v, want %+v", got, rec)
	}
	if len(got.ChunkChecksums) != 3 {
		t.Errorf("expected 3 chunk checksums, got %d", len(got.ChunkChecksums))
	}
}

func TestGetManifestMissing(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.GetManifest("nope.bin"); err == nil {
		t.Fatal("expected an error for a missing manifest")
	}
}

func TestDeleteManifest(t *testing.T) {
	store := openTestStore(t)

	rec := NewFileManifestRecord("notes.txt", 100, "cafebabe", []string{"a1"}, time.Unix(1700000000, 0))
	if err := store.PutManifest(rec); err != nil {
		t.Fatalf("failed to put manifest: %v", err)
	}
	if err := store.DeleteManifest("notes.txt"); err != nil {
		t.Fatalf("failed to delete manifest: %v", err)
	}
	if _, err := store.GetManifest("notes.txt"); err == nil {
		t.Fatal("expected manifest to be gone after delete")
	}
	if err := store.DeleteManifest("notes.txt"); err != nil {
		t.Fatalf("deleting an already-missing manifest should not error: %v", err)
	}
}

func TestListManifests(t *testing.T) {
	store := openTestStore(t)

	names := []string{"a.bin", "b.bin", "c.bin"}
	for _, n := range names {
		rec := NewFileManifestRecord(n, 10, "sum-"+n, []string{"x"}, time.Unix(1700000000, 0))
		if err := store.PutManifest(rec); err != nil {
			t.Fatalf("failed to put manifest for %q: %v", n, err)
		}
	}

	recs, err := store.ListManifests()
	if err != nil {
		t.Fatalf("failed to list manifests: %v", err)
	}
	if len(recs) != len(names) {
		t.Fatalf("expected %d manifests, got %d", len(names), len(recs))
	}
}

func TestVerifyChunkChecksums(t *testing.T) {
	rec := NewFileManifestRecord("f.bin", 10, "sum", []string{"a1", "a2"}, time.Unix(1700000000, 0))

	if err := rec.VerifyChunkChecksums([]string{"a1", "a2"}); err != nil {
		t.Errorf("expected matching checksums to verify, got %v", err)
	}
	if err := rec.VerifyChunkChecksums([]string{"a1", "WRONG"}); err == nil {
		t.Error("expected mismatched checksum to fail verification")
	}
	if err := rec.VerifyChunkChecksums([]string{"a1"}); err == nil {
		t.Error("expected chunk count mismatch to fail verification")
	}
}
