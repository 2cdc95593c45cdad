package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodeswarm/filenet/internal/tracker"
	"github.com/nodeswarm/filenet/pkg/logging"
)

var trackerAddr string

func init() {
	trackerCmd.Flags().StringVar(&trackerAddr, "addr", "", "address to listen on (overrides config)")
}

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Run the tracker that indexes which peer holds which chunk",
	RunE:  runTracker,
}

func runTracker(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logging.InitLogger(cfg, false)

	addr := cfg.TrackerAddr
	if trackerAddr != "" {
		addr = trackerAddr
	}
	heartbeatPeriod := time.Duration(cfg.HeartbeatSeconds) * time.Second

	srv := tracker.NewServer(heartbeatPeriod, logging.Log)
	go srv.StartLivenessSweep()
	defer srv.Stop()

	logging.Log.WithField("addr", addr).Info("tracker listening")
	return http.ListenAndServe(addr, srv.Router())
}
