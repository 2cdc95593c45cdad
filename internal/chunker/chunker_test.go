package chunker

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/nodeswarm/filenet/internal/storage"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open dir store: %v", err)
	}
	return store
}

func TestSplitAssembleRoundTrip(t *testing.T) {
	store := newTestStore(t)

	data := make([]byte, ChunkSize*3+777)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("failed to generate random data: %v", err)
	}
	if err := store.Write("payload.bin", data); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	descriptors, err := Split(store, "payload.bin")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if len(descriptors) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(descriptors))
	}
	for i, d := range descriptors {
		if d.Index != i {
			t.Errorf("descriptor %d has index %d", i, d.Index)
		}
		if !store.Exists(d.ChunkName) {
			t.Errorf("chunk sidecar %q was not written", d.ChunkName)
		}
	}

	wantChecksum, err := ChecksumOfFile(store, "payload.bin")
	if err != nil {
		t.Fatalf("checksum of original failed: %v", err)
	}

	if err := Assemble(store, "payload.bin"); err != nil {
		t.Fatalf("assemble failed: %v", err)
	}

	gotChecksum, err := ChecksumOfFile(store, "payload.bin")
	if err != nil {
		t.Fatalf("checksum of reassembled file failed: %v", err)
	}
	if gotChecksum != wantChecksum {
		t.Errorf("checksum mismatch after assemble: got %s, want %s", gotChecksum, wantChecksum)
	}

	r, err := store.Open("payload.bin")
	if err != nil {
		t.Fatalf("failed to open reassembled file: %v", err)
	}
	defer r.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read reassembled file: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Errorf("reassembled bytes do not match original payload")
	}
}

func TestSplitMissingFile(t *testing.T) {
	store := newTestStore(t)

	_, err := Split(store, "nope.bin")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestChecksumOfFileMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := ChecksumOfFile(store, "ghost.bin")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestChecksumOfChunkStable(t *testing.T) {
	store := newTestStore(t)

	data := make([]byte, ChunkSize/2)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("failed to generate random data: %v", err)
	}
	if err := store.Write("small.txt", data); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	descriptors, err := Split(store, "small.txt")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(descriptors))
	}

	sum, err := ChecksumOfChunk(store, descriptors[0].ChunkName)
	if err != nil {
		t.Fatalf("checksum of chunk failed: %v", err)
	}
	if sum != descriptors[0].Checksum {
		t.Errorf("chunk checksum mismatch: got %s, want %s", sum, descriptors[0].Checksum)
	}
}

func TestAssembleNoChunksFails(t *testing.T) {
	store := newTestStore(t)

	if err := Assemble(store, "never-split.bin"); err == nil {
		t.Fatal("expected assemble of a file with no chunks to fail")
	}
}
