package peer

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nodeswarm/filenet/internal/chat"
	"github.com/nodeswarm/filenet/internal/transport"
)

// Serve binds a listener on bindAddr (e.g. "127.0.0.1:0" to let the kernel
// pick any free port; the port is not restricted to a particular range)
// and serves /get_chunk and /chat until ctx is cancelled. Serving starts
// before Serve returns; the returned bound address is what the caller
// registers with the tracker.
func (a *Agent) Serve(ctx context.Context, bindAddr string, onChatReceived func(chat.Message)) (string, <-chan error, error) {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return "", nil, fmt.Errorf("peer: listen on %q: %w", bindAddr, err)
	}

	router := chi.NewRouter()
	transport.NewServer(a.store, a.log).Mount(router)
	chat.NewHandler(a.log, onChatReceived).Mount(router)

	srv := &http.Server{Handler: router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return listener.Addr().String(), errCh, nil
}
