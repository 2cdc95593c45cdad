// Package chat implements the direct peer-to-peer text messages a user
// can send from the interactive shell: a small HTTP POST to the
// recipient's /chat endpoint, no tracker involvement.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/nodeswarm/filenet/internal/httpx"
)

// Message is one chat line sent between peers.
type Message struct {
	Sender    string `json:"sender"`
	Body      string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage stamps Timestamp with now.
func NewMessage(sender, body string, now time.Time) Message {
	return Message{Sender: sender, Body: body, Timestamp: now.Unix()}
}

// Handler receives chat messages addressed to this peer. Received is
// called once per message; Mount wires it to POST /chat.
type Handler struct {
	log      *logrus.Logger
	Received func(Message)
}

// NewHandler returns a Handler that logs every delivery and forwards it
// to onReceived, if set.
func NewHandler(log *logrus.Logger, onReceived func(Message)) *Handler {
	return &Handler{log: log, Received: onReceived}
}

// Mount registers the chat route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/chat", h.handleReceive)
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.log.WithFields(logrus.Fields{"from": msg.Sender}).Info("chat message received")
	if h.Received != nil {
		h.Received(msg)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

// Send posts msg to recipientAddress's /chat endpoint.
func Send(ctx context.Context, recipientAddress string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://%s/chat", recipientAddress), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("chat: send to %s: %w", recipientAddress, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat: send to %s: status %d", recipientAddress, resp.StatusCode)
	}
	return nil
}
