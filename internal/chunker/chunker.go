// Package chunker splits a file into fixed-size, content-addressed chunks
// and reassembles them, matching the on-disk naming and hashing rules the
// rest of the swarm relies on to address chunks by name alone.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nodeswarm/filenet/internal/compressor"
	"github.com/nodeswarm/filenet/internal/storage"
)

// ChunkSize is the fixed window used to split every file, per the wire spec.
const ChunkSize = 1 << 20 // 1 MiB

// ErrFileNotFound replaces the legacy empty-string sentinel: a caller must
// not be able to mistake "file missing" for the (valid) hash of an empty
// file.
var ErrFileNotFound = errors.New("chunker: file not found")

// Descriptor is one chunk produced by Split, in on-disk-name order.
type Descriptor struct {
	Index     int
	ChunkName string
	Checksum  string // hex SHA-256 of the original, uncompressed bytes
	Size      int64  // size of the original, uncompressed bytes
}

// Split reads fileName from store in 1 MiB windows and writes each window
// to a sidecar "{fileName}.chunk{i}", returning descriptors in index order.
// Sidecars are stored LZ4-compressed on disk when the source extension
// isn't already compressed media (see internal/compressor); the checksum
// recorded here is always over the original uncompressed bytes, so the
// on-disk compression never leaks into the wire protocol.
func Split(store storage.Store, fileName string) ([]Descriptor, error) {
	f, err := store.Open(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("chunker: split %q: %w", fileName, ErrFileNotFound)
		}
		return nil, fmt.Errorf("chunker: open %q: %w", fileName, err)
	}
	defer f.Close()

	skipCompression := compressor.ShouldSkipCompression(fileName)

	var descriptors []Descriptor
	buf := make([]byte, ChunkSize)
	index := 0
	for {
		n, readErr := io.ReadFull(f, buf)
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("chunker: read %q chunk %d: %w", fileName, index, readErr)
		}
		if n == 0 {
			break
		}

		original := make([]byte, n)
		copy(original, buf[:n])

		sum := sha256.Sum256(original)
		checksum := hex.EncodeToString(sum[:])
		chunkName := fmt.Sprintf("%s.chunk%d", fileName, index)

		onDisk := original
		if !skipCompression {
			compressed, cerr := compressor.CompressChunk(original)
			if cerr != nil {
				return nil, fmt.Errorf("chunker: compress %q: %w", chunkName, cerr)
			}
			onDisk = compressed
		}

		if err := store.Write(chunkName, onDisk); err != nil {
			return nil, fmt.Errorf("chunker: write %q: %w", chunkName, err)
		}

		descriptors = append(descriptors, Descriptor{
			Index:     index,
			ChunkName: chunkName,
			Checksum:  checksum,
			Size:      int64(n),
		})
		index++

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
	}

	return descriptors, nil
}

// ReadChunk returns the original, uncompressed bytes of a chunk sidecar,
// transparently reversing the on-disk compression Split applied.
func ReadChunk(store storage.Store, chunkName string) ([]byte, error) {
	r, err := store.Open(chunkName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("chunker: read %q: %w", chunkName, ErrFileNotFound)
		}
		return nil, fmt.Errorf("chunker: open %q: %w", chunkName, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("chunker: read %q: %w", chunkName, err)
	}

	if compressor.ShouldSkipCompression(chunkName) {
		return raw, nil
	}
	decompressed, err := compressor.DecompressData(raw)
	if err != nil {
		// Older or foreign chunk sidecars may have been written
		// uncompressed; fall back to the raw bytes rather than fail.
		return raw, nil
	}
	return decompressed, nil
}

// ChecksumOfChunk hashes the original bytes of a stored chunk sidecar.
func ChecksumOfChunk(store storage.Store, chunkName string) (string, error) {
	data, err := ReadChunk(store, chunkName)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ChecksumOfFile streams fileName through SHA-256 in 1 MiB windows. A
// missing file is reported as ErrFileNotFound rather than the legacy
// empty-string sentinel, so callers never confuse "absent" with "the hash
// of zero bytes".
func ChecksumOfFile(store storage.Store, fileName string) (string, error) {
	f, err := store.Open(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("chunker: checksum %q: %w", fileName, ErrFileNotFound)
		}
		return "", fmt.Errorf("chunker: open %q: %w", fileName, err)
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", fmt.Errorf("chunker: hash %q: %w", fileName, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
