package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodeswarm/filenet/internal/filepicker"
	"github.com/nodeswarm/filenet/internal/localstore"
	"github.com/nodeswarm/filenet/internal/peer"
	"github.com/nodeswarm/filenet/internal/shell"
	"github.com/nodeswarm/filenet/internal/storage"
	"github.com/nodeswarm/filenet/pkg/env"
	"github.com/nodeswarm/filenet/pkg/logging"
)

var (
	peerName       string
	peerTracker    string
	peerStorageDir string
	peerBind       string
	peerUseDialog  bool
)

func init() {
	peerCmd.Flags().StringVar(&peerName, "name", "", "this peer's name (overrides config; must be unique on the tracker)")
	peerCmd.Flags().StringVar(&peerTracker, "tracker", "", "tracker address (overrides config)")
	peerCmd.Flags().StringVar(&peerStorageDir, "storage-dir", "", "directory to hold shared files and chunks (overrides config)")
	peerCmd.Flags().StringVar(&peerBind, "bind", "127.0.0.1:0", "address to bind the peer's chunk/chat server on")
	peerCmd.Flags().BoolVar(&peerUseDialog, "dialog", false, "use a native file-chooser dialog for the share command instead of stdin")
}

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run a peer agent: share files, download files, and chat with other peers",
	RunE:  runPeer,
}

func runPeer(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logging.InitLogger(cfg, false)

	name := cfg.PeerName
	if peerName != "" {
		name = peerName
	}
	if name == "" {
		name = env.GetEnv("FILENET_PEER_NAME", "")
	}
	if name == "" {
		return fmt.Errorf("peer: a name is required, pass --name, set peer_name in config, or set FILENET_PEER_NAME")
	}

	trackerAddr := cfg.TrackerAddr
	if peerTracker != "" {
		trackerAddr = peerTracker
	}

	storageDir := cfg.StorageDir
	if peerStorageDir != "" {
		storageDir = peerStorageDir
	}

	store, err := storage.NewDirStore(storageDir)
	if err != nil {
		return fmt.Errorf("peer: open storage dir %q: %w", storageDir, err)
	}
	local, err := localstore.Open(filepath.Join(storageDir, ".filenet-manifests"))
	if err != nil {
		return fmt.Errorf("peer: open local manifest store: %w", err)
	}
	defer local.Close()

	agentCfg := peer.Config{
		TrackerAddr:       trackerAddr,
		Name:              name,
		StorageDir:        storageDir,
		HeartbeatPeriod:   time.Duration(cfg.HeartbeatSeconds) * time.Second,
		FetchTimeout:      time.Duration(cfg.FetchTimeoutSec) * time.Second,
		RetryBackoff:      time.Duration(cfg.RetryBackoffSec) * time.Second,
		MonitorFastPeriod: time.Duration(cfg.MonitorFastPeriod) * time.Second,
		MonitorSlowPeriod: time.Duration(cfg.MonitorSlowPeriod) * time.Second,
	}
	agent := peer.NewAgent(agentCfg, store, local, logging.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boundAddr, errCh, err := agent.Serve(ctx, peerBind, nil)
	if err != nil {
		return fmt.Errorf("peer: start server: %w", err)
	}
	agent.SetAddress(boundAddr)

	if err := agent.Register(ctx); err != nil {
		return fmt.Errorf("peer: %w", err)
	}

	go agent.RunHeartbeat(ctx)
	go agent.RunDeletedFileMonitor(ctx)
	go agent.RunMissingFileMonitor(ctx)
	go agent.RunLostChunkMonitor(ctx)

	agent.AutoShareTextFiles(ctx)

	var picker filepicker.Picker = filepicker.NewStdinPicker(os.Stdin, os.Stdout)
	if peerUseDialog {
		picker = filepicker.DialogPicker{}
	}
	sh := shell.New(agent, picker, os.Stdin, os.Stdout, name)

	go func() {
		if err := <-errCh; err != nil {
			logging.Log.WithField("error", err).Warn("peer server stopped")
		}
	}()

	return sh.Run(ctx)
}
