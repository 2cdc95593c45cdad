// Package tracker implements the centralized membership and content index:
// which peers are alive, which files and chunks they claim to hold, and the
// liveness sweep that evicts peers who stop sending heartbeats.
package tracker

import (
	"errors"
	"sync"
	"time"
)

// ErrPeerNameTaken is returned by RegisterPeer when name already belongs
// to a peer the registry still considers alive.
var ErrPeerNameTaken = errors.New("tracker: peer name already registered")

// ErrPeerNotFound is returned by operations that reference a peer name
// the registry has no record of.
var ErrPeerNotFound = errors.New("tracker: peer not found")

// PeerRecord is the registry's view of one peer.
type PeerRecord struct {
	Name     string
	Address  string
	Files    []string
	LastSeen time.Time
}

// PeerInfo is the read-only shape handed back by List.
type PeerInfo struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Files   []string `json:"files"`
}

// ChunkRecord is one peer's claim to hold a named chunk of a named file.
type ChunkRecord struct {
	Peer        string `json:"peer"`
	PeerAddress string `json:"peer_address"`
	FileName    string `json:"file_name"`
	ChunkName   string `json:"chunk_name"`
	Checksum    string `json:"checksum"`
}

// Registry holds peer membership and the chunk index behind two
// independent mutexes, matching how the lookups are actually used: peer
// liveness is checked far more often than the chunk index is mutated, and
// keeping them apart avoids serializing heartbeats behind chunk writes.
type Registry struct {
	peersMu sync.RWMutex
	peers   map[string]*PeerRecord

	chunksMu     sync.RWMutex
	chunksByFile map[string][]ChunkRecord    // file name -> claims from any peer
	chunksByPeer map[string]map[string]bool  // peer name -> set of chunk names
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		peers:        make(map[string]*PeerRecord),
		chunksByFile: make(map[string][]ChunkRecord),
		chunksByPeer: make(map[string]map[string]bool),
	}
}

// RegisterPeer adds a new peer. A name already held by a live peer is
// rejected; a name that belonged to an evicted peer is reused cleanly.
func (r *Registry) RegisterPeer(name, address string, now time.Time) error {
	r.peersMu.Lock()
	defer r.peersMu.Unlock()

	if _, exists := r.peers[name]; exists {
		return ErrPeerNameTaken
	}
	r.peers[name] = &PeerRecord{
		Name:     name,
		Address:  address,
		Files:    []string{},
		LastSeen: now,
	}
	return nil
}

// Heartbeat refreshes a peer's LastSeen timestamp.
func (r *Registry) Heartbeat(name string, now time.Time) error {
	r.peersMu.Lock()
	defer r.peersMu.Unlock()

	peer, exists := r.peers[name]
	if !exists {
		return ErrPeerNotFound
	}
	peer.LastSeen = now
	return nil
}

// RegisterChunk records a peer's claim to hold rec.ChunkName. It is
// idempotent: registering the same (peer, chunk_name) again just refreshes
// the checksum and address in place. The owning file is added to the
// peer's Files list on first sight.
func (r *Registry) RegisterChunk(rec ChunkRecord) error {
	r.peersMu.Lock()
	peer, exists := r.peers[rec.Peer]
	if !exists {
		r.peersMu.Unlock()
		return ErrPeerNotFound
	}
	hasFile := false
	for _, f := range peer.Files {
		if f == rec.FileName {
			hasFile = true
			break
		}
	}
	if !hasFile {
		peer.Files = append(peer.Files, rec.FileName)
	}
	peer.Address = rec.PeerAddress
	r.peersMu.Unlock()

	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()

	claims := r.chunksByFile[rec.FileName]
	replaced := false
	for i, c := range claims {
		if c.Peer == rec.Peer && c.ChunkName == rec.ChunkName {
			claims[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		claims = append(claims, rec)
	}
	r.chunksByFile[rec.FileName] = claims

	if r.chunksByPeer[rec.Peer] == nil {
		r.chunksByPeer[rec.Peer] = make(map[string]bool)
	}
	r.chunksByPeer[rec.Peer][rec.ChunkName] = true

	return nil
}

// GetFileChunks returns every peer's claim to hold a chunk of fileName.
func (r *Registry) GetFileChunks(fileName string) []ChunkRecord {
	r.chunksMu.RLock()
	defer r.chunksMu.RUnlock()

	claims := r.chunksByFile[fileName]
	out := make([]ChunkRecord, len(claims))
	copy(out, claims)
	return out
}

// GetPeerChunks returns the chunk names the registry believes peerName
// currently holds.
func (r *Registry) GetPeerChunks(peerName string) []string {
	r.chunksMu.RLock()
	defer r.chunksMu.RUnlock()

	set := r.chunksByPeer[peerName]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out
}

// ListPeers returns every known peer, live or not yet swept.
func (r *Registry) ListPeers() []PeerInfo {
	r.peersMu.RLock()
	defer r.peersMu.RUnlock()

	out := make([]PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		files := make([]string, len(p.Files))
		copy(files, p.Files)
		out = append(out, PeerInfo{Name: p.Name, Address: p.Address, Files: files})
	}
	return out
}

// UnregisterFile removes fileName from peer's file list and drops every
// chunk claim peer made for it.
func (r *Registry) UnregisterFile(peer, fileName string) error {
	r.peersMu.Lock()
	p, exists := r.peers[peer]
	if !exists {
		r.peersMu.Unlock()
		return ErrPeerNotFound
	}
	filtered := p.Files[:0:0]
	for _, f := range p.Files {
		if f != fileName {
			filtered = append(filtered, f)
		}
	}
	p.Files = filtered
	r.peersMu.Unlock()

	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()

	claims := r.chunksByFile[fileName]
	remaining := claims[:0:0]
	for _, c := range claims {
		if c.Peer == peer {
			if r.chunksByPeer[peer] != nil {
				delete(r.chunksByPeer[peer], c.ChunkName)
			}
			continue
		}
		remaining = append(remaining, c)
	}
	if len(remaining) == 0 {
		delete(r.chunksByFile, fileName)
	} else {
		r.chunksByFile[fileName] = remaining
	}
	return nil
}

// UnregisterChunk drops a single chunk claim made by peer.
func (r *Registry) UnregisterChunk(peer, chunkName string) error {
	r.peersMu.RLock()
	_, exists := r.peers[peer]
	r.peersMu.RUnlock()
	if !exists {
		return ErrPeerNotFound
	}

	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()

	if r.chunksByPeer[peer] != nil {
		delete(r.chunksByPeer[peer], chunkName)
	}
	for fileName, claims := range r.chunksByFile {
		remaining := claims[:0:0]
		for _, c := range claims {
			if c.Peer == peer && c.ChunkName == chunkName {
				continue
			}
			remaining = append(remaining, c)
		}
		if len(remaining) == 0 {
			delete(r.chunksByFile, fileName)
		} else {
			r.chunksByFile[fileName] = remaining
		}
	}
	return nil
}

// UnregisterPeer removes peer entirely: its membership record and every
// chunk claim it ever made.
func (r *Registry) UnregisterPeer(peer string) error {
	r.peersMu.Lock()
	_, exists := r.peers[peer]
	delete(r.peers, peer)
	r.peersMu.Unlock()
	if !exists {
		return ErrPeerNotFound
	}

	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()

	delete(r.chunksByPeer, peer)
	for fileName, claims := range r.chunksByFile {
		remaining := claims[:0:0]
		for _, c := range claims {
			if c.Peer != peer {
				remaining = append(remaining, c)
			}
		}
		if len(remaining) == 0 {
			delete(r.chunksByFile, fileName)
		} else {
			r.chunksByFile[fileName] = remaining
		}
	}
	return nil
}

// EvictStale removes every peer whose LastSeen is older than now-maxAge
// and returns their names, so the caller can log what was swept.
func (r *Registry) EvictStale(now time.Time, maxAge time.Duration) []string {
	r.peersMu.Lock()
	var stale []string
	for name, p := range r.peers {
		if now.Sub(p.LastSeen) > maxAge {
			stale = append(stale, name)
			delete(r.peers, name)
		}
	}
	r.peersMu.Unlock()

	if len(stale) == 0 {
		return nil
	}

	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()
	staleSet := make(map[string]bool, len(stale))
	for _, name := range stale {
		staleSet[name] = true
		delete(r.chunksByPeer, name)
	}
	for fileName, claims := range r.chunksByFile {
		remaining := claims[:0:0]
		for _, c := range claims {
			if !staleSet[c.Peer] {
				remaining = append(remaining, c)
			}
		}
		if len(remaining) == 0 {
			delete(r.chunksByFile, fileName)
		} else {
			r.chunksByFile[fileName] = remaining
		}
	}
	return stale
}
