// Package logging builds the shared logrus logger both CLI subcommands
// use, announcing the config that shapes the rest of the run.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/config"
)

// Log is the process-wide logger, set by InitLogger before anything else
// runs.
var Log *logrus.Logger

// InitLogger builds Log from cfg: debug mode gets a human-readable text
// formatter with full timestamps for interactive runs, otherwise JSON for
// production log aggregation. It immediately logs the tracker address and
// storage directory cfg resolved to, so a support engineer reading a log
// file can tell which swarm and which peer it came from without cross
// referencing the config file that launched it.
func InitLogger(cfg *config.AppConfig, debug bool) {
	Log = logrus.New()
	Log.Out = os.Stdout

	if debug {
		Log.SetLevel(logrus.DebugLevel)
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		Log.SetLevel(logrus.InfoLevel)
		Log.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg != nil {
		Log.WithFields(logrus.Fields{
			"tracker_addr": cfg.TrackerAddr,
			"storage_dir":  cfg.StorageDir,
		}).Info("logger initialized")
	}
}
