// Package trackerclient is the typed HTTP client a peer agent uses to talk
// to the tracker's API. It shares the wire types with internal/tracker
// rather than redeclaring them.
package trackerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nodeswarm/filenet/internal/tracker"
)

// Client talks to one tracker over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client pointed at trackerAddr (host:port, no scheme).
func New(trackerAddr string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    "http://" + trackerAddr,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("trackerclient: marshal request for %s: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("trackerclient: build request for %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trackerclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trackerclient: %s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Register registers name at address with the tracker.
func (c *Client) Register(ctx context.Context, name, address string) error {
	return c.doJSON(ctx, http.MethodPost, "/register", map[string]string{"name": name, "address": address}, nil)
}

// Heartbeat refreshes this peer's liveness.
func (c *Client) Heartbeat(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/heartbeat", name, nil)
}

// RegisterChunk announces rec to the tracker.
func (c *Client) RegisterChunk(ctx context.Context, rec tracker.ChunkRecord) error {
	return c.doJSON(ctx, http.MethodPost, "/register_chunk", rec, nil)
}

// GetFileChunks returns every peer's claim to hold a chunk of fileName.
func (c *Client) GetFileChunks(ctx context.Context, fileName string) ([]tracker.ChunkRecord, error) {
	var claims []tracker.ChunkRecord
	path := "/get_file_chunks?file=" + url.QueryEscape(fileName)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// GetPeerChunks returns the chunk names the tracker believes peerName holds.
func (c *Client) GetPeerChunks(ctx context.Context, peerName string) ([]string, error) {
	var chunks []string
	path := "/get_peer_chunks?peer=" + url.QueryEscape(peerName)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// List returns every peer the tracker currently knows about.
func (c *Client) List(ctx context.Context) ([]tracker.PeerInfo, error) {
	var peers []tracker.PeerInfo
	if err := c.doJSON(ctx, http.MethodGet, "/list", nil, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// UnregisterFile removes fileName (and its chunk claims) from peer.
func (c *Client) UnregisterFile(ctx context.Context, peer, fileName string) error {
	return c.doJSON(ctx, http.MethodPost, "/unregister_file", map[string]string{"peer": peer, "file": fileName}, nil)
}

// UnregisterChunk removes a single chunk claim.
func (c *Client) UnregisterChunk(ctx context.Context, peer, chunkName string) error {
	return c.doJSON(ctx, http.MethodPost, "/unregister_chunk", map[string]string{"peer": peer, "chunk": chunkName}, nil)
}

// UnregisterPeer removes peer entirely from the tracker.
func (c *Client) UnregisterPeer(ctx context.Context, peer string) error {
	return c.doJSON(ctx, http.MethodPost, "/unregister_peer", map[string]string{"peer": peer}, nil)
}
