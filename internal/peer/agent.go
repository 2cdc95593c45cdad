// Package peer implements the agent lifecycle: registering with the
// tracker, sharing and fetching files, and the background monitors that
// keep the tracker's index honest when the local filesystem changes out
// from under it.
package peer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/internal/chunker"
	"github.com/nodeswarm/filenet/internal/download"
	"github.com/nodeswarm/filenet/internal/localstore"
	"github.com/nodeswarm/filenet/internal/storage"
	"github.com/nodeswarm/filenet/internal/tracker"
	"github.com/nodeswarm/filenet/internal/trackerclient"
)

// Config is everything an Agent needs to start.
type Config struct {
	TrackerAddr       string
	Name              string
	Address           string
	StorageDir        string
	HeartbeatPeriod   time.Duration
	FetchTimeout      time.Duration
	RetryBackoff      time.Duration
	MonitorFastPeriod time.Duration
	MonitorSlowPeriod time.Duration
}

// Agent is one running peer: its local store, its tracker connection, and
// the download coordinator it uses to fetch files it doesn't yet hold.
type Agent struct {
	cfg         Config
	store       storage.Store
	local       *localstore.Store
	tracker     *trackerclient.Client
	coordinator *download.Coordinator
	log         *logrus.Logger
}

// NewAgent wires an Agent from cfg. store and local are opened by the
// caller (cmd/filenet) so they can be closed on shutdown.
func NewAgent(cfg Config, store storage.Store, local *localstore.Store, log *logrus.Logger) *Agent {
	trackerClient := trackerclient.New(cfg.TrackerAddr, cfg.FetchTimeout)
	return &Agent{
		cfg:         cfg,
		store:       store,
		local:       local,
		tracker:     trackerClient,
		coordinator: download.NewCoordinator(store, log, download.WithFetchTimeout(cfg.FetchTimeout), download.WithRetryBackoff(cfg.RetryBackoff)),
		log:         log,
	}
}

// SetAddress records the address other peers should use to reach this
// agent's chunk/chat server. Called once Serve has bound a listener and
// the actual port is known, before Register announces it to the tracker.
func (a *Agent) SetAddress(address string) {
	a.cfg.Address = address
}

// Register registers this agent with the tracker. A name collision is
// fatal: the caller should exit rather than run unregistered.
func (a *Agent) Register(ctx context.Context) error {
	if err := a.tracker.Register(ctx, a.cfg.Name, a.cfg.Address); err != nil {
		return fmt.Errorf("peer: register %q with tracker: %w", a.cfg.Name, err)
	}
	a.log.WithFields(logrus.Fields{"peer": a.cfg.Name, "address": a.cfg.Address}).Info("registered with tracker")
	return nil
}

// Unregister tells the tracker this peer is leaving. Called on a clean exit.
func (a *Agent) Unregister(ctx context.Context) error {
	if err := a.tracker.UnregisterPeer(ctx, a.cfg.Name); err != nil {
		return fmt.Errorf("peer: unregister %q from tracker: %w", a.cfg.Name, err)
	}
	return nil
}

// RunHeartbeat sends a heartbeat every HeartbeatPeriod until ctx is done.
func (a *Agent) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.HeartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := a.tracker.Heartbeat(ctx, a.cfg.Name); err != nil {
				a.log.WithField("error", err).Warn("heartbeat failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// copyIntoStore copies sourcePath into the storage directory under its
// base name if it isn't already there, returning the name Split should
// use. If the base name already exists in the store, the copy is skipped.
// If sourcePath itself doesn't exist on disk, that's a no-op rather than
// an error — the caller is presumably re-sharing a file that's already
// sitting in the store under its base name.
func (a *Agent) copyIntoStore(sourcePath string) (string, error) {
	baseName := filepath.Base(sourcePath)

	if a.store.Exists(baseName) {
		return baseName, nil
	}

	if _, err := os.Stat(sourcePath); err != nil {
		return baseName, nil
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source %q: %w", sourcePath, err)
	}
	defer src.Close()

	dst, err := a.store.Create(baseName)
	if err != nil {
		return "", fmt.Errorf("create %q in storage dir: %w", baseName, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy %q into storage dir: %w", sourcePath, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %q after copy: %w", baseName, err)
	}

	return baseName, nil
}

// Share copies sourcePath into the storage directory if it isn't already
// there (a missing source is a no-op, not an error — the caller may be
// re-sharing a file that already lives in the store under its base name),
// then splits it into chunks, registers every chunk with the tracker, and
// records a local manifest for later integrity checks. A file the tracker's
// /list already attributes to this peer is skipped.
func (a *Agent) Share(ctx context.Context, sourcePath string) error {
	fileName, err := a.copyIntoStore(sourcePath)
	if err != nil {
		return fmt.Errorf("peer: share %q: %w", sourcePath, err)
	}

	peers, err := a.tracker.List(ctx)
	if err != nil {
		return fmt.Errorf("peer: share %q: list tracker: %w", fileName, err)
	}
	for _, p := range peers {
		for _, f := range p.Files {
			if p.Name == a.cfg.Name && f == fileName {
				a.log.WithField("file", fileName).Info("file already shared, skipping")
				return nil
			}
		}
	}

	descriptors, err := chunker.Split(a.store, fileName)
	if err != nil {
		return fmt.Errorf("peer: share %q: %w", fileName, err)
	}

	checksums := make([]string, len(descriptors))
	for i, d := range descriptors {
		checksums[i] = d.Checksum
		rec := tracker.ChunkRecord{
			Peer:        a.cfg.Name,
			PeerAddress: a.cfg.Address,
			FileName:    fileName,
			ChunkName:   d.ChunkName,
			Checksum:    d.Checksum,
		}
		if err := a.tracker.RegisterChunk(ctx, rec); err != nil {
			return fmt.Errorf("peer: register chunk %q: %w", d.ChunkName, err)
		}
	}

	wholeChecksum, err := chunker.CalculateWholeFileChecksum(a.store, fileName)
	if err != nil {
		return fmt.Errorf("peer: whole-file checksum for %q: %w", fileName, err)
	}
	info, err := os.Stat(a.store.Path(fileName))
	var size int64
	if err == nil {
		size = info.Size()
	}
	manifest := localstore.NewFileManifestRecord(fileName, size, wholeChecksum, checksums, time.Now())
	if err := a.local.PutManifest(manifest); err != nil {
		return fmt.Errorf("peer: save manifest for %q: %w", fileName, err)
	}

	a.log.WithFields(logrus.Fields{"file": fileName, "chunks": len(descriptors)}).Info("shared file")
	return nil
}

// Get downloads fileName, asking the tracker who has it and handing the
// claims to the download coordinator.
func (a *Agent) Get(ctx context.Context, fileName string, maxConnections int) (download.Result, error) {
	claims, err := a.tracker.GetFileChunks(ctx, fileName)
	if err != nil {
		return download.Result{}, fmt.Errorf("peer: look up chunks for %q: %w", fileName, err)
	}
	if len(claims) == 0 {
		return download.Result{}, fmt.Errorf("peer: no peer has any chunk of %q", fileName)
	}

	result, err := a.coordinator.Download(ctx, fileName, a.cfg.Address, claims, maxConnections)
	if err != nil {
		return download.Result{}, err
	}

	if rec, verr := a.local.GetManifest(fileName); verr == nil {
		gotChecksum, cerr := chunker.CalculateWholeFileChecksum(a.store, fileName)
		if cerr == nil && gotChecksum != rec.WholeChecksum {
			return result, fmt.Errorf("peer: reassembled %q failed whole-file integrity check: expected %s, got %s", fileName, rec.WholeChecksum, gotChecksum)
		}
	}

	if err := a.Share(ctx, fileName); err != nil {
		a.log.WithFields(logrus.Fields{"file": fileName, "error": err}).Warn("failed to auto-register downloaded file")
	}

	return result, nil
}

// List returns every peer and file the tracker currently knows about.
func (a *Agent) List(ctx context.Context) ([]tracker.PeerInfo, error) {
	return a.tracker.List(ctx)
}

// LocalChunkCount counts ".chunk" sidecars in the storage directory, used
// to size this peer's download fan-out.
func (a *Agent) LocalChunkCount() int {
	names, err := a.store.List("")
	if err != nil {
		return 0
	}
	count := 0
	for _, n := range names {
		if strings.Contains(n, ".chunk") {
			count++
		}
	}
	return count
}

// MaxConnections returns the fan-out this peer is currently allowed.
func (a *Agent) MaxConnections() int {
	return download.DetermineMaxConnections(a.LocalChunkCount())
}

// AutoShareTextFiles shares every .txt file already sitting in the
// storage directory that hasn't been shared yet.
func (a *Agent) AutoShareTextFiles(ctx context.Context) {
	names, err := a.store.List("")
	if err != nil {
		a.log.WithField("error", err).Warn("failed to list storage directory for auto-share")
		return
	}
	for _, name := range names {
		if filepath.Ext(name) != ".txt" {
			continue
		}
		if _, err := a.local.GetManifest(name); err == nil {
			continue
		}
		a.log.WithField("file", name).Info("auto-sharing text file found at startup")
		if err := a.Share(ctx, name); err != nil {
			a.log.WithFields(logrus.Fields{"file": name, "error": err}).Warn("auto-share failed")
		}
	}
}
