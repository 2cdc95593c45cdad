// Package compressor applies transparent LZ4 compression to chunk
// sidecars before they hit disk. The compression never reaches the wire:
// chunker.Split hashes and sizes chunks before calling CompressChunk, so
// two peers holding the same logical chunk can disagree on its on-disk
// bytes (compressed vs not, or compressed with a different library
// version) without ever disagreeing on its checksum.
package compressor

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// alreadyCompressedExtensions lists formats where LZ4 would spend CPU for
// little or no space saving — their own codecs already do the work.
var alreadyCompressedExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".heic": true,
	".zip": true, ".rar": true, ".7z": true, ".gz": true, ".bz2": true, ".xz": true,
	".mp3": true, ".flac": true, ".aac": true,
	".apk": true, ".iso": true,
}

// ShouldSkipCompression reports whether chunkOrFileName's extension
// belongs to a format that's already compressed, so chunker.Split should
// write the chunk's sidecar as-is instead of running it through LZ4. For a
// chunk sidecar name ("{file}.chunk{i}") the original file's extension is
// the one checked.
func ShouldSkipCompression(chunkOrFileName string) bool {
	name := chunkOrFileName
	if i := strings.LastIndex(name, ".chunk"); i >= 0 {
		if _, err := strconv.Atoi(name[i+len(".chunk"):]); err == nil {
			name = name[:i]
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	return alreadyCompressedExtensions[ext]
}

// CompressChunk returns the LZ4-compressed form of one chunk's bytes, for
// writing to its on-disk sidecar.
func CompressChunk(chunkData []byte) ([]byte, error) {
	var out bytes.Buffer
	writer := lz4.NewWriter(&out)
	if _, err := writer.Write(chunkData); err != nil {
		return nil, fmt.Errorf("compressor: compress chunk: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("compressor: flush lz4 writer: %w", err)
	}
	return out.Bytes(), nil
}

// DecompressData reverses CompressChunk, for reading a chunk sidecar back
// off disk.
func DecompressData(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))
	var decompressed bytes.Buffer
	if _, err := io.Copy(&decompressed, reader); err != nil {
		return nil, fmt.Errorf("compressor: decompress chunk: %w", err)
	}
	return decompressed.Bytes(), nil
}
