// Package download implements the Download Coordinator: given a file's
// candidate chunk owners from the tracker, it fetches every missing chunk
// in capped-fan-out rounds, retrying failed chunks against a different
// owner until the file is complete or no round makes progress.
package download

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/internal/chunker"
	"github.com/nodeswarm/filenet/internal/storage"
	"github.com/nodeswarm/filenet/internal/tracker"
	"github.com/nodeswarm/filenet/internal/transport"
)

// MaxRoundsWithoutProgress is how many consecutive rounds may complete
// zero chunks before the download is declared a failure.
const MaxRoundsWithoutProgress = 3

// RetryBackoff is how long the coordinator waits between rounds that left
// chunks outstanding.
const RetryBackoff = 3 * time.Second

// FetchTimeout bounds a single chunk fetch.
const FetchTimeout = 5 * time.Second

// ErrInsufficientSources is returned when MaxRoundsWithoutProgress rounds
// pass without completing a single additional chunk.
var ErrInsufficientSources = fmt.Errorf("download: insufficient sources after %d rounds without progress", MaxRoundsWithoutProgress)

// DetermineMaxConnections maps how many chunks this peer already holds
// locally to how many parallel fetches it's allowed to run, per the
// fan-out table: more local chunks (so more to seed back to the swarm)
// earns more concurrent downloads, capped at 4.
func DetermineMaxConnections(localChunkCount int) int {
	switch {
	case localChunkCount <= 4:
		return 1
	case localChunkCount <= 9:
		return 2
	case localChunkCount <= 14:
		return 3
	default:
		return 4
	}
}

// Result summarizes a completed download.
type Result struct {
	FileName         string
	TotalBytes       int64
	Duration         time.Duration
	ThroughputKBPerS float64
}

// Coordinator runs one download at a time for its caller; build a new one
// per download (or reuse across downloads — it holds no file-specific
// state between calls).
type Coordinator struct {
	store        storage.Store
	client       *transport.Client
	log          *logrus.Logger
	fetchTimeout time.Duration
	retryBackoff time.Duration
	rand         *rand.Rand
}

// Option configures a Coordinator's timing knobs away from their spec
// defaults, mainly for tests.
type Option func(*Coordinator)

// WithFetchTimeout overrides FetchTimeout.
func WithFetchTimeout(d time.Duration) Option { return func(c *Coordinator) { c.fetchTimeout = d } }

// WithRetryBackoff overrides RetryBackoff.
func WithRetryBackoff(d time.Duration) Option { return func(c *Coordinator) { c.retryBackoff = d } }

// NewCoordinator returns a Coordinator that writes fetched chunks to store.
func NewCoordinator(store storage.Store, log *logrus.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		client:       transport.NewClient(FetchTimeout),
		log:          log,
		fetchTimeout: FetchTimeout,
		retryBackoff: RetryBackoff,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = transport.NewClient(c.fetchTimeout)
	return c
}

// candidateSet tracks the remaining owners for one chunk, across rounds.
// allOwners is the full owner list the tracker reported at the start of
// the download; owners is drained as peers are tried, and refilled from
// allOwners when it runs dry so a chunk keeps getting retried against its
// whole owner set until the round budget itself is exhausted.
type candidateSet struct {
	chunkName string
	checksum  string
	owners    []tracker.ChunkRecord
	allOwners []tracker.ChunkRecord
}

// Download fetches every chunk in claims that this peer (selfAddress)
// doesn't already hold, then assembles fileName. claims is the tracker's
// full get_file_chunks response; self-owned claims are excluded so a peer
// never "downloads" its own shared copy.
func (c *Coordinator) Download(ctx context.Context, fileName, selfAddress string, claims []tracker.ChunkRecord, maxConnections int) (Result, error) {
	sessionID := uuid.New().String()
	log := c.log.WithFields(logrus.Fields{"session": sessionID, "file": fileName})

	if maxConnections < 1 {
		maxConnections = 1
	}
	if maxConnections > 4 {
		maxConnections = 4
	}

	candidates := groupByChunk(claims, selfAddress)
	for name := range candidates {
		if c.store.Exists(name) {
			delete(candidates, name)
		}
	}

	if len(candidates) == 0 {
		log.Info("no missing chunks, nothing to download")
		if err := chunker.Assemble(c.store, fileName); err != nil {
			return Result{}, fmt.Errorf("download: assemble %q: %w", fileName, err)
		}
		return c.finish(fileName, sessionID, 0, time.Now())
	}

	start := time.Now()
	var totalBytes int64
	roundsWithoutProgress := 0

	for len(candidates) > 0 {
		if roundsWithoutProgress >= MaxRoundsWithoutProgress {
			return Result{}, ErrInsufficientSources
		}

		names := make([]string, 0, len(candidates))
		for name := range candidates {
			names = append(names, name)
		}
		if len(names) > maxConnections {
			names = names[:maxConnections]
		}

		type fetchOutcome struct {
			name       string
			bytes      []byte
			failedPeer string
			err        error
		}
		results := make(chan fetchOutcome, len(names))

		for _, name := range names {
			cand := candidates[name]
			if len(cand.owners) == 0 {
				cand.owners = append([]tracker.ChunkRecord(nil), cand.allOwners...)
			}
			c.rand.Shuffle(len(cand.owners), func(i, j int) { cand.owners[i], cand.owners[j] = cand.owners[j], cand.owners[i] })
			owner := cand.owners[len(cand.owners)-1]
			cand.owners = cand.owners[:len(cand.owners)-1]
			candidates[name] = cand

			go func(name string, owner tracker.ChunkRecord, checksum string) {
				fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
				defer cancel()
				data, err := c.client.FetchChunk(fetchCtx, owner.PeerAddress, name, checksum)
				if err != nil {
					results <- fetchOutcome{name: name, failedPeer: owner.PeerAddress, err: err}
					return
				}
				results <- fetchOutcome{name: name, bytes: data}
			}(name, owner, cand.checksum)
		}

		progressed := 0
		for i := 0; i < len(names); i++ {
			outcome := <-results
			if outcome.err != nil {
				log.WithFields(logrus.Fields{"chunk": outcome.name, "peer": outcome.failedPeer, "error": outcome.err}).Warn("chunk fetch failed, will retry against another peer")
				continue
			}
			if err := c.store.Write(outcome.name, outcome.bytes); err != nil {
				log.WithFields(logrus.Fields{"chunk": outcome.name, "error": err}).Error("failed to persist downloaded chunk")
				continue
			}
			totalBytes += int64(len(outcome.bytes))
			delete(candidates, outcome.name)
			progressed++
		}

		if progressed == 0 {
			roundsWithoutProgress++
		} else {
			roundsWithoutProgress = 0
		}

		if len(candidates) > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(c.retryBackoff):
			}
		}
	}

	if err := chunker.Assemble(c.store, fileName); err != nil {
		return Result{}, fmt.Errorf("download: assemble %q: %w", fileName, err)
	}

	return c.finish(fileName, sessionID, totalBytes, start)
}

func (c *Coordinator) finish(fileName, sessionID string, totalBytes int64, start time.Time) (Result, error) {
	duration := time.Since(start)
	var throughput float64
	if duration.Seconds() > 0 {
		throughput = (float64(totalBytes) / 1024.0) / duration.Seconds()
	}
	c.log.WithFields(logrus.Fields{
		"session":        sessionID,
		"file":           fileName,
		"bytes":          totalBytes,
		"duration":       duration,
		"throughput_kbs": throughput,
	}).Info("download complete")
	return Result{FileName: fileName, TotalBytes: totalBytes, Duration: duration, ThroughputKBPerS: throughput}, nil
}

// groupByChunk collects claims by chunk name, dropping any claim whose
// owner is selfAddress so the coordinator never fetches from itself.
func groupByChunk(claims []tracker.ChunkRecord, selfAddress string) map[string]candidateSet {
	out := make(map[string]candidateSet)
	for _, claim := range claims {
		if claim.PeerAddress == selfAddress {
			continue
		}
		cand, exists := out[claim.ChunkName]
		if !exists {
			cand = candidateSet{chunkName: claim.ChunkName, checksum: claim.Checksum}
		}
		cand.owners = append(cand.owners, claim)
		cand.allOwners = append(cand.allOwners, claim)
		out[claim.ChunkName] = cand
	}
	return out
}
