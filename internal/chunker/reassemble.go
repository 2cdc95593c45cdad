package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/nodeswarm/filenet/internal/storage"
)

// Assemble reconstructs fileName from its "{fileName}.chunk{i}" sidecars,
// reading indices in order starting at 0 and stopping at the first missing
// index. Chunks are streamed straight to "{fileName}.assembled" one at a
// time rather than held in memory, which is then renamed (with a
// copy+remove fallback) over fileName.
func Assemble(store storage.Store, fileName string) error {
	assembledName := fileName + ".assembled"

	out, err := store.Create(assembledName)
	if err != nil {
		return fmt.Errorf("chunker: assemble %q: create intermediate: %w", fileName, err)
	}

	count := 0
	index := 0
	for {
		chunkName := fmt.Sprintf("%s.chunk%d", fileName, index)
		if !store.Exists(chunkName) {
			break
		}
		data, err := ReadChunk(store, chunkName)
		if err != nil {
			out.Close()
			return fmt.Errorf("chunker: assemble %q: %w", fileName, err)
		}
		if _, err := out.Write(data); err != nil {
			out.Close()
			return fmt.Errorf("chunker: assemble %q: write intermediate: %w", fileName, err)
		}
		count++
		index++
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("chunker: assemble %q: close intermediate: %w", fileName, err)
	}

	if count == 0 {
		store.Remove(assembledName)
		return fmt.Errorf("chunker: assemble %q: no chunks found", fileName)
	}

	if err := store.Rename(assembledName, fileName); err != nil {
		return fmt.Errorf("chunker: assemble %q: rename over original: %w", fileName, err)
	}

	return nil
}

// CalculateWholeFileChecksum hashes fileName's full contents in one pass.
// It is the §9 fix for the source's missing whole-file integrity check:
// Share records this alongside the per-chunk hashes, and the peer agent's
// Get compares the reassembled file against it when a prior record exists.
func CalculateWholeFileChecksum(store storage.Store, fileName string) (string, error) {
	return ChecksumOfFile(store, fileName)
}

// ChecksumBytes is a small helper the transport client uses to verify a
// freshly-downloaded chunk body against its expected checksum without
// writing it to disk first.
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
