// Package gateway exposes live strategy status and generated signals to
// WebSocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-enginev1/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans engine output out to connected WebSocket clients. Slow clients
// drop messages rather than stalling the rest.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]json.RawMessage // symbol -> last status envelope

	// OnDrop is an optional metrics hook invoked per message dropped on a
	// full client queue.
	OnDrop func()
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*Client]bool),
		latest:  make(map[string]json.RawMessage),
	}
}

// RunStatus drains a status subscription into the hub. Blocks until ctx is
// cancelled or the channel is closed.
func (h *Hub) RunStatus(ctx context.Context, statusCh <-chan model.StrategyStatus) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-statusCh:
			if !ok {
				return
			}
			h.BroadcastStatus(st)
		}
	}
}

// BroadcastStatus sends a strategy status envelope to every client and
// records it as the symbol's latest snapshot for new connections.
func (h *Hub) BroadcastStatus(st model.StrategyStatus) {
	envelope, err := json.Marshal(map[string]any{
		"type": "strategy_update",
		"data": json.RawMessage(st.JSON()),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	h.latest[st.Symbol] = envelope
	h.mu.Unlock()

	h.broadcast(envelope)
}

// BroadcastSignal sends a generated signal envelope to every client.
func (h *Hub) BroadcastSignal(sig model.GeneratedSignal) {
	envelope, err := json.Marshal(map[string]any{
		"type": "signal",
		"data": json.RawMessage(sig.JSON()),
	})
	if err != nil {
		return
	}
	h.broadcast(envelope)
}

// Publish implements model.SignalSink so the hub can sit behind MultiSink.
func (h *Hub) Publish(_ context.Context, sig model.GeneratedSignal) error {
	h.BroadcastSignal(sig)
	return nil
}

func (h *Hub) broadcast(envelope []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
}

// HandleWS upgrades the HTTP connection, registers the client, and replays
// the latest status per symbol so the client starts with a full picture.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	for _, envelope := range h.latest {
		select {
		case client.send <- envelope:
		default:
		}
	}
	h.mu.Unlock()

	h.log.Info("ws client connected", "remote", r.RemoteAddr, "total", count)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs an HTTP server exposing the WebSocket endpoint at /ws until
// ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	h.log.Info("gateway listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
