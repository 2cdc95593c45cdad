package trackerclient

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/internal/tracker"
)

func newTestTracker(t *testing.T) string {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := tracker.NewServer(60*time.Second, log)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts.Listener.Addr().String()
}

func TestClientRegisterHeartbeatList(t *testing.T) {
	addr := newTestTracker(t)
	client := New(addr, 2*time.Second)
	ctx := context.Background()

	if err := client.Register(ctx, "alice", "127.0.0.1:8001"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := client.Heartbeat(ctx, "alice"); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	peers, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(peers) != 1 || peers[0].Name != "alice" {
		t.Fatalf("expected alice in the peer list, got %+v", peers)
	}
}

func TestClientRegisterChunkAndGetFileChunks(t *testing.T) {
	addr := newTestTracker(t)
	client := New(addr, 2*time.Second)
	ctx := context.Background()

	if err := client.Register(ctx, "alice", "127.0.0.1:8001"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	rec := tracker.ChunkRecord{Peer: "alice", PeerAddress: "127.0.0.1:8001", FileName: "movie.mp4", ChunkName: "movie.mp4.chunk0", Checksum: "sum0"}
	if err := client.RegisterChunk(ctx, rec); err != nil {
		t.Fatalf("register chunk failed: %v", err)
	}

	claims, err := client.GetFileChunks(ctx, "movie.mp4")
	if err != nil {
		t.Fatalf("get file chunks failed: %v", err)
	}
	if len(claims) != 1 || claims[0].ChunkName != "movie.mp4.chunk0" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	chunks, err := client.GetPeerChunks(ctx, "alice")
	if err != nil {
		t.Fatalf("get peer chunks failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "movie.mp4.chunk0" {
		t.Fatalf("unexpected peer chunks: %v", chunks)
	}
}

func TestClientUnregisterFlow(t *testing.T) {
	addr := newTestTracker(t)
	client := New(addr, 2*time.Second)
	ctx := context.Background()

	client.Register(ctx, "alice", "127.0.0.1:8001")
	rec := tracker.ChunkRecord{Peer: "alice", PeerAddress: "127.0.0.1:8001", FileName: "movie.mp4", ChunkName: "movie.mp4.chunk0", Checksum: "sum0"}
	client.RegisterChunk(ctx, rec)

	if err := client.UnregisterChunk(ctx, "alice", "movie.mp4.chunk0"); err != nil {
		t.Fatalf("unregister chunk failed: %v", err)
	}
	claims, _ := client.GetFileChunks(ctx, "movie.mp4")
	if len(claims) != 0 {
		t.Fatalf("expected no claims after unregistering, got %+v", claims)
	}

	if err := client.UnregisterPeer(ctx, "alice"); err != nil {
		t.Fatalf("unregister peer failed: %v", err)
	}
	peers, _ := client.List(ctx)
	if len(peers) != 0 {
		t.Fatalf("expected no peers after unregistering, got %+v", peers)
	}
}

func TestClientHeartbeatUnknownPeerFails(t *testing.T) {
	addr := newTestTracker(t)
	client := New(addr, 2*time.Second)

	if err := client.Heartbeat(context.Background(), "ghost"); err == nil {
		t.Fatal("expected an error heartbeating an unregistered peer")
	}
}
