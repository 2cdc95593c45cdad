package shell

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/internal/filepicker"
	"github.com/nodeswarm/filenet/internal/localstore"
	"github.com/nodeswarm/filenet/internal/peer"
	"github.com/nodeswarm/filenet/internal/storage"
	"github.com/nodeswarm/filenet/internal/tracker"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestAgent(t *testing.T) *peer.Agent {
	t.Helper()
	srv := tracker.NewServer(60*time.Second, testLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	store, err := storage.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store: %v", err)
	}
	local, err := localstore.Open(filepath.Join(t.TempDir(), "badger"))
	if err != nil {
		t.Fatalf("open localstore: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	agent := peer.NewAgent(peer.Config{
		TrackerAddr:  ts.Listener.Addr().String(),
		Name:         "alice",
		Address:      "127.0.0.1:8001",
		FetchTimeout: 2 * time.Second,
		RetryBackoff: 10 * time.Millisecond,
	}, store, local, testLogger())

	if err := agent.Register(context.Background()); err != nil {
		t.Fatalf("register: %v", err)
	}
	return agent
}

func TestShellExitUnregistersPeer(t *testing.T) {
	agent := newTestAgent(t)
	in := strings.NewReader("exit\n")
	out := &bytes.Buffer{}
	sh := New(agent, filepicker.NewStdinPicker(in, out), in, out, "alice")

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	peers, err := agent.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected peer to be unregistered, got %+v", peers)
	}
}

func TestShellListPrintsPeers(t *testing.T) {
	agent := newTestAgent(t)
	in := strings.NewReader("list\nexit\n")
	out := &bytes.Buffer{}
	sh := New(agent, filepicker.NewStdinPicker(in, out), in, out, "alice")

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "alice @ 127.0.0.1:8001") {
		t.Fatalf("expected peer listing in output, got %q", out.String())
	}
}

func TestShellUnrecognizedCommand(t *testing.T) {
	agent := newTestAgent(t)
	in := strings.NewReader("frobnicate\nexit\n")
	out := &bytes.Buffer{}
	sh := New(agent, filepicker.NewStdinPicker(in, out), in, out, "alice")

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "unrecognized command") {
		t.Fatalf("expected an unrecognized-command message, got %q", out.String())
	}
}
