// Package localstore is a peer's private record of what it has shared: a
// whole-file checksum and the per-chunk checksums it produced at Share
// time, so a later Assemble can be checked for integrity without asking
// the tracker or any other peer.
package localstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// FileManifestRecord is what Share persists for one file.
type FileManifestRecord struct {
	FileName       string   `json:"file_name"`
	FileSize       int64    `json:"file_size"`
	WholeChecksum  string   `json:"whole_checksum"`
	ChunkChecksums []string `json:"chunk_checksums"` // index order
	SharedAtUnix   int64    `json:"shared_at_unix"`
}

// NewFileManifestRecord stamps SharedAtUnix with now.
func NewFileManifestRecord(fileName string, fileSize int64, wholeChecksum string, chunkChecksums []string, now time.Time) FileManifestRecord {
	return FileManifestRecord{
		FileName:       fileName,
		FileSize:       fileSize,
		WholeChecksum:  wholeChecksum,
		ChunkChecksums: chunkChecksums,
		SharedAtUnix:   now.Unix(),
	}
}

// Store wraps BadgerDB for manifest records, keyed by file name.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a BadgerDB at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("localstore: open %q: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func manifestKey(fileName string) []byte {
	return []byte("manifest:" + fileName)
}

// PutManifest stores or overwrites the manifest for rec.FileName.
func (s *Store) PutManifest(rec FileManifestRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("localstore: marshal manifest for %q: %w", rec.FileName, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(rec.FileName), val)
	})
}

// ErrNotFound is returned by GetManifest when fileName has no record.
var ErrNotFound = badger.ErrKeyNotFound

// GetManifest retrieves the manifest for fileName.
func (s *Store) GetManifest(fileName string) (FileManifestRecord, error) {
	var rec FileManifestRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(fileName))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return FileManifestRecord{}, fmt.Errorf("localstore: get manifest for %q: %w", fileName, err)
	}
	return rec, nil
}

// DeleteManifest removes fileName's manifest. Missing is not an error.
func (s *Store) DeleteManifest(fileName string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(manifestKey(fileName))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// ListManifests returns every manifest this peer currently holds.
func (s *Store) ListManifests() ([]FileManifestRecord, error) {
	var recs []FileManifestRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("manifest:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec FileManifestRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				recs = append(recs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("localstore: list manifests: %w", err)
	}
	return recs, nil
}

// VerifyChunkChecksums reports whether gotChecksums (index order, as read
// back off disk) matches what was recorded at Share time.
func (rec FileManifestRecord) VerifyChunkChecksums(gotChecksums []string) error {
	if len(gotChecksums) != len(rec.ChunkChecksums) {
		return fmt.Errorf("localstore: %q has %d chunks recorded, got %d", rec.FileName, len(rec.ChunkChecksums), len(gotChecksums))
	}
	for i, want := range rec.ChunkChecksums {
		if gotChecksums[i] != want {
			return fmt.Errorf("localstore: %q chunk %d checksum mismatch: recorded %s, got %s", rec.FileName, i, want, gotChecksums[i])
		}
	}
	return nil
}
