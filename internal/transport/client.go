package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nodeswarm/filenet/internal/chunker"
)

// ErrChecksumMismatch is returned by FetchChunk when the downloaded bytes
// don't hash to the checksum the caller expected.
type ErrChecksumMismatch struct {
	ChunkName string
	Want      string
	Got       string
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("transport: chunk %q checksum mismatch: want %s, got %s", e.ChunkName, e.Want, e.Got)
}

// Client fetches chunks from remote peers over plain HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a Client whose fetches time out after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// FetchChunk downloads chunkName from peerAddress and verifies it against
// expectedChecksum before returning it.
func (c *Client) FetchChunk(ctx context.Context, peerAddress, chunkName, expectedChecksum string) ([]byte, error) {
	u := fmt.Sprintf("http://%s/get_chunk?name=%s", peerAddress, url.QueryEscape(chunkName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build request for %q: %w", chunkName, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: fetch %q from %s: %w", chunkName, peerAddress, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: fetch %q from %s: status %d", chunkName, peerAddress, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read %q from %s: %w", chunkName, peerAddress, err)
	}

	got := chunker.ChecksumBytes(data)
	if got != expectedChecksum {
		return nil, &ErrChecksumMismatch{ChunkName: chunkName, Want: expectedChecksum, Got: got}
	}

	return data, nil
}
