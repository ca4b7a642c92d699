// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "lumen/internal/log"
	"lumen/internal/state"
)

// WebSocket broadcasts snapshots as JSON to every connected client on
// /audio. Sends are rate limited so a fast pump cannot flood slow clients.
type WebSocket struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	upgrader  websocket.Upgrader
	server    *http.Server

	lastSend        time.Time
	minSendInterval time.Duration
}

var _ Transport = (*WebSocket)(nil)

// NewWebSocket starts an HTTP server on addr serving websocket upgrades
// at /audio. The server runs in its own goroutine until Close.
func NewWebSocket(addr string, minSendInterval time.Duration) *WebSocket {
	t := &WebSocket{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		minSendInterval: minSendInterval,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/audio", t.handleUpgrade)
	t.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		applog.Infof("Transport: websocket server listening on %s", addr)
		if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
			applog.Errorf("Transport: websocket server error: %v", err)
		}
	}()

	return t
}

// handleUpgrade registers a new client and watches for its disconnect.
func (t *WebSocket) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("Transport: websocket upgrade failed: %v", err)
		return
	}

	t.clientsMu.Lock()
	t.clients[conn] = true
	t.clientsMu.Unlock()
	applog.Debugf("Transport: websocket client connected (%s)", conn.RemoteAddr())

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.clientsMu.Lock()
				delete(t.clients, conn)
				t.clientsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Send broadcasts the snapshot to all clients, dropping the frame when it
// arrives inside the rate-limit window. Disconnected clients are pruned.
func (t *WebSocket) Send(snap *state.Snapshot) error {
	now := time.Now()
	if now.Sub(t.lastSend) < t.minSendInterval {
		return nil
	}
	t.lastSend = now

	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	t.clientsMu.Lock()
	for client := range t.clients {
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			client.Close()
			delete(t.clients, client)
		}
	}
	t.clientsMu.Unlock()
	return nil
}

// Close disconnects all clients and shuts down the server. Idempotent.
func (t *WebSocket) Close() error {
	t.clientsMu.Lock()
	for client := range t.clients {
		client.Close()
		delete(t.clients, client)
	}
	t.clientsMu.Unlock()
	return t.server.Close()
}
