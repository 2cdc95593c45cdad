package peer

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/internal/localstore"
	"github.com/nodeswarm/filenet/internal/storage"
	"github.com/nodeswarm/filenet/internal/tracker"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestTrackerServer(t *testing.T) string {
	t.Helper()
	srv := tracker.NewServer(60*time.Second, testLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts.Listener.Addr().String()
}

func newTestAgent(t *testing.T, trackerAddr, name, address string) *Agent {
	t.Helper()
	store, err := storage.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store: %v", err)
	}
	local, err := localstore.Open(filepath.Join(t.TempDir(), "badger"))
	if err != nil {
		t.Fatalf("open localstore: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	cfg := Config{
		TrackerAddr:       trackerAddr,
		Name:              name,
		Address:           address,
		HeartbeatPeriod:   time.Second,
		FetchTimeout:      2 * time.Second,
		RetryBackoff:      10 * time.Millisecond,
		MonitorFastPeriod: 50 * time.Millisecond,
		MonitorSlowPeriod: 50 * time.Millisecond,
	}
	return NewAgent(cfg, store, local, testLogger())
}

func writeTestFile(t *testing.T, store storage.Store, name string, contents []byte) {
	t.Helper()
	if err := store.Write(name, contents); err != nil {
		t.Fatalf("write %q: %v", name, err)
	}
}

func TestShareRegistersChunksAndManifest(t *testing.T) {
	trackerAddr := newTestTrackerServer(t)
	agent := newTestAgent(t, trackerAddr, "alice", "127.0.0.1:8001")
	ctx := context.Background()

	if err := agent.Register(ctx); err != nil {
		t.Fatalf("register: %v", err)
	}
	writeTestFile(t, agent.store, "notes.txt", []byte("hello swarm"))

	if err := agent.Share(ctx, "notes.txt"); err != nil {
		t.Fatalf("share: %v", err)
	}

	claims, err := agent.tracker.GetFileChunks(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("get file chunks: %v", err)
	}
	if len(claims) != 1 || claims[0].Peer != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := agent.local.GetManifest("notes.txt"); err != nil {
		t.Fatalf("expected a manifest after share, got error: %v", err)
	}
}

func TestGetDownloadsFromAnotherPeer(t *testing.T) {
	trackerAddr := newTestTrackerServer(t)

	seeder := newTestAgent(t, trackerAddr, "seeder", "127.0.0.1:8003")
	ctxSeed := context.Background()
	if err := seeder.Register(ctxSeed); err != nil {
		t.Fatalf("seeder register: %v", err)
	}
	writeTestFile(t, seeder.store, "report.txt", []byte("quarterly numbers"))
	if err := seeder.Share(ctxSeed, "report.txt"); err != nil {
		t.Fatalf("seeder share: %v", err)
	}

	seedServerAddr, errCh, err := seeder.Serve(ctxSeed, "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("seeder serve: %v", err)
	}
	defer func() {
		select {
		case <-errCh:
		default:
		}
	}()

	// Re-register seeder chunks with its actual bound address so the
	// downloader knows where to fetch them from.
	claims, err := seeder.tracker.GetFileChunks(ctxSeed, "report.txt")
	if err != nil {
		t.Fatalf("get seeder claims: %v", err)
	}
	for _, c := range claims {
		c.PeerAddress = seedServerAddr
		if err := seeder.tracker.RegisterChunk(ctxSeed, c); err != nil {
			t.Fatalf("re-register chunk: %v", err)
		}
	}

	downloader := newTestAgent(t, trackerAddr, "downloader", "127.0.0.1:8002")
	ctxDown := context.Background()
	if err := downloader.Register(ctxDown); err != nil {
		t.Fatalf("downloader register: %v", err)
	}

	result, err := downloader.Get(ctxDown, "report.txt", 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if result.FileName != "report.txt" {
		t.Fatalf("unexpected result: %+v", result)
	}

	data, err := downloader.store.Open("report.txt")
	if err != nil {
		t.Fatalf("open downloaded file: %v", err)
	}
	defer data.Close()
	got, _ := io.ReadAll(data)
	if string(got) != "quarterly numbers" {
		t.Fatalf("unexpected downloaded contents: %q", got)
	}
}

func TestAutoShareTextFilesSkipsAlreadyShared(t *testing.T) {
	trackerAddr := newTestTrackerServer(t)
	agent := newTestAgent(t, trackerAddr, "alice", "127.0.0.1:8001")
	ctx := context.Background()
	agent.Register(ctx)

	writeTestFile(t, agent.store, "readme.txt", []byte("auto shared"))
	agent.AutoShareTextFiles(ctx)

	manifest, err := agent.local.GetManifest("readme.txt")
	if err != nil {
		t.Fatalf("expected auto-shared manifest: %v", err)
	}
	firstSharedAt := manifest.SharedAtUnix

	agent.AutoShareTextFiles(ctx)
	manifest2, _ := agent.local.GetManifest("readme.txt")
	if manifest2.SharedAtUnix != firstSharedAt {
		t.Fatalf("expected auto-share to skip an already-shared file")
	}
}

func TestLocalChunkCountAndMaxConnections(t *testing.T) {
	trackerAddr := newTestTrackerServer(t)
	agent := newTestAgent(t, trackerAddr, "alice", "127.0.0.1:8001")
	ctx := context.Background()
	agent.Register(ctx)

	if agent.MaxConnections() != 1 {
		t.Fatalf("expected a fresh peer to cap fan-out at 1, got %d", agent.MaxConnections())
	}

	writeTestFile(t, agent.store, "notes.txt", []byte("hello swarm"))
	if err := agent.Share(ctx, "notes.txt"); err != nil {
		t.Fatalf("share: %v", err)
	}
	if agent.LocalChunkCount() != 1 {
		t.Fatalf("expected 1 local chunk, got %d", agent.LocalChunkCount())
	}
}
