package tracker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/internal/httpx"
)

// LivenessMultiple is how many heartbeat periods of silence a peer is
// allowed before the sweep evicts it.
const LivenessMultiple = 3

// Server wires a Registry to the tracker's HTTP API.
type Server struct {
	registry        *Registry
	log             *logrus.Logger
	heartbeatPeriod time.Duration
	stop            chan struct{}
}

// NewServer returns a Server backed by a fresh Registry.
func NewServer(heartbeatPeriod time.Duration, log *logrus.Logger) *Server {
	return &Server{
		registry:        NewRegistry(),
		log:             log,
		heartbeatPeriod: heartbeatPeriod,
		stop:            make(chan struct{}),
	}
}

// Router builds the chi router serving the tracker's HTTP API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", s.handleRegister)
	r.Post("/heartbeat", s.handleHeartbeat)
	r.Post("/register_chunk", s.handleRegisterChunk)
	r.Get("/get_file_chunks", s.handleGetFileChunks)
	r.Get("/get_peer_chunks", s.handleGetPeerChunks)
	r.Get("/list", s.handleList)
	r.Post("/unregister_file", s.handleUnregisterFile)
	r.Post("/unregister_chunk", s.handleUnregisterChunk)
	r.Post("/unregister_peer", s.handleUnregisterPeer)
	return r
}

// StartLivenessSweep runs in the background, evicting peers that have
// gone LivenessMultiple heartbeat periods without checking in. Call Stop
// to end it.
func (s *Server) StartLivenessSweep() {
	interval := s.heartbeatPeriod
	maxAge := s.heartbeatPeriod * LivenessMultiple
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				evicted := s.registry.EvictStale(time.Now(), maxAge)
				for _, name := range evicted {
					s.log.WithField("peer", name).Warn("evicted peer after missed heartbeats")
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the liveness sweep goroutine.
func (s *Server) Stop() {
	close(s.stop)
}

type registerRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Address == "" {
		httpx.WriteError(w, http.StatusBadRequest, "name and address are required")
		return
	}

	if err := s.registry.RegisterPeer(req.Name, req.Address, time.Now()); err != nil {
		s.log.WithFields(logrus.Fields{"peer": req.Name, "error": err}).Info("register rejected")
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.WithFields(logrus.Fields{"peer": req.Name, "address": req.Address}).Info("peer registered")
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := json.NewDecoder(r.Body).Decode(&name); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.registry.Heartbeat(name, time.Now()); err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegisterChunk(w http.ResponseWriter, r *http.Request) {
	var rec ChunkRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if rec.Peer == "" || rec.FileName == "" || rec.ChunkName == "" || rec.Checksum == "" {
		httpx.WriteError(w, http.StatusBadRequest, "peer, file_name, chunk_name, and checksum are required")
		return
	}

	if err := s.registry.RegisterChunk(rec); err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

func (s *Server) handleGetFileChunks(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("file")
	if fileName == "" {
		httpx.WriteError(w, http.StatusBadRequest, "file query parameter is required")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.registry.GetFileChunks(fileName))
}

func (s *Server) handleGetPeerChunks(w http.ResponseWriter, r *http.Request) {
	peer := r.URL.Query().Get("peer")
	if peer == "" {
		httpx.WriteError(w, http.StatusBadRequest, "peer query parameter is required")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.registry.GetPeerChunks(peer))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.registry.ListPeers())
}

type peerFileRequest struct {
	Peer string `json:"peer"`
	File string `json:"file"`
}

func (s *Server) handleUnregisterFile(w http.ResponseWriter, r *http.Request) {
	var req peerFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.registry.UnregisterFile(req.Peer, req.File); err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.WithFields(logrus.Fields{"peer": req.Peer, "file": req.File}).Info("file unregistered")
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}

type peerChunkRequest struct {
	Peer  string `json:"peer"`
	Chunk string `json:"chunk"`
}

func (s *Server) handleUnregisterChunk(w http.ResponseWriter, r *http.Request) {
	var req peerChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.registry.UnregisterChunk(req.Peer, req.Chunk); err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}

type peerOnlyRequest struct {
	Peer string `json:"peer"`
}

func (s *Server) handleUnregisterPeer(w http.ResponseWriter, r *http.Request) {
	var req peerOnlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.registry.UnregisterPeer(req.Peer); err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.WithField("peer", req.Peer).Info("peer unregistered")
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}
