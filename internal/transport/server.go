// Package transport serves a peer's local chunks over HTTP and fetches
// chunks from remote peers, verifying each download against its expected
// checksum before accepting it.
package transport

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/internal/chunker"
	"github.com/nodeswarm/filenet/internal/httpx"
	"github.com/nodeswarm/filenet/internal/storage"
)

// Server answers GET /get_chunk?name=... with the original, uncompressed
// bytes of a chunk sidecar this peer holds.
type Server struct {
	store storage.Store
	log   *logrus.Logger
}

// NewServer returns a Server reading chunk sidecars from store.
func NewServer(store storage.Store, log *logrus.Logger) *Server {
	return &Server{store: store, log: log}
}

// Mount registers the transport routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/get_chunk", s.handleGetChunk)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	data, err := chunker.ReadChunk(s.store, name)
	if err != nil {
		if errors.Is(err, chunker.ErrFileNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "chunk not found")
			return
		}
		s.log.WithFields(logrus.Fields{"chunk": name, "error": err}).Warn("failed to read chunk for a peer request")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to read chunk")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.WithFields(logrus.Fields{"chunk": name, "error": err}).Warn("failed to write chunk response")
	}
}
