package peer

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// RunDeletedFileMonitor watches for files this peer has shared whose
// base file has vanished from the storage directory (the user deleted it
// outside the agent) and unregisters the whole file from the tracker so
// other peers stop treating this agent as a source.
func (a *Agent) RunDeletedFileMonitor(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.MonitorFastPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.sweepDeletedFiles(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) sweepDeletedFiles(ctx context.Context) {
	manifests, err := a.local.ListManifests()
	if err != nil {
		a.log.WithField("error", err).Warn("deleted-file monitor: list manifests")
		return
	}
	for _, rec := range manifests {
		if a.store.Exists(rec.FileName) {
			continue
		}
		a.log.WithField("file", rec.FileName).Info("deleted-file monitor: base file gone, unregistering")
		if err := a.tracker.UnregisterFile(ctx, a.cfg.Name, rec.FileName); err != nil {
			a.log.WithFields(logrus.Fields{"file": rec.FileName, "error": err}).Warn("deleted-file monitor: unregister failed")
			continue
		}
		if err := a.local.DeleteManifest(rec.FileName); err != nil {
			a.log.WithFields(logrus.Fields{"file": rec.FileName, "error": err}).Warn("deleted-file monitor: delete manifest failed")
		}
	}
}

// RunMissingFileMonitor is the slower-to-fire backstop for
// RunDeletedFileMonitor: it only unregisters a file once neither the base
// file nor any of its chunk sidecars remain, so a file that's merely mid
// reassembly (base file briefly absent while its chunks still exist)
// doesn't get unregistered out from under a download in progress.
func (a *Agent) RunMissingFileMonitor(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.MonitorFastPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.sweepMissingChunks(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) sweepMissingChunks(ctx context.Context) {
	manifests, err := a.local.ListManifests()
	if err != nil {
		a.log.WithField("error", err).Warn("missing-file monitor: list manifests")
		return
	}
	for _, rec := range manifests {
		if a.store.Exists(rec.FileName) {
			continue
		}
		anyChunkPresent := false
		for i := range rec.ChunkChecksums {
			if a.store.Exists(chunkNameFor(rec.FileName, i)) {
				anyChunkPresent = true
				break
			}
		}
		if anyChunkPresent {
			continue
		}

		a.log.WithField("file", rec.FileName).Info("missing-file monitor: file and all chunks gone, unregistering")
		if err := a.tracker.UnregisterFile(ctx, a.cfg.Name, rec.FileName); err != nil {
			a.log.WithFields(logrus.Fields{"file": rec.FileName, "error": err}).Warn("missing-file monitor: unregister failed")
			continue
		}
		if err := a.local.DeleteManifest(rec.FileName); err != nil {
			a.log.WithFields(logrus.Fields{"file": rec.FileName, "error": err}).Warn("missing-file monitor: delete manifest failed")
		}
	}
}

// RunLostChunkMonitor periodically cross-checks what the tracker believes
// this peer holds against what actually sits on disk, and unregisters any
// claim the tracker still carries for a chunk this peer no longer has.
// It runs on MonitorSlowPeriod because it talks to the tracker, unlike the
// two filesystem-only monitors above.
func (a *Agent) RunLostChunkMonitor(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.MonitorSlowPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.sweepLostChunks(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) sweepLostChunks(ctx context.Context) {
	claimed, err := a.tracker.GetPeerChunks(ctx, a.cfg.Name)
	if err != nil {
		a.log.WithField("error", err).Warn("lost-chunk monitor: get peer chunks")
		return
	}
	for _, chunkName := range claimed {
		if a.store.Exists(chunkName) {
			continue
		}
		a.log.WithField("chunk", chunkName).Info("lost-chunk monitor: tracker claim without local chunk, unregistering")
		if err := a.tracker.UnregisterChunk(ctx, a.cfg.Name, chunkName); err != nil {
			a.log.WithFields(logrus.Fields{"chunk": chunkName, "error": err}).Warn("lost-chunk monitor: unregister failed")
		}
	}
}

func chunkNameFor(fileName string, index int) string {
	return fileName + ".chunk" + strconv.Itoa(index)
}
