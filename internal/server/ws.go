package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/reticle/internal/monitor"
)

const (
	boxesInterval = 16 * time.Millisecond
	writeTimeout  = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// BoxesHandler pushes each new screen-space snapshot to overlay clients
// over WebSocket.
type BoxesHandler struct {
	hub     *monitor.Hub
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

// NewBoxesHandler creates a BoxesHandler and starts its broadcaster.
func NewBoxesHandler(hub *monitor.Hub) *BoxesHandler {
	h := &BoxesHandler{
		hub:     hub,
		clients: make(map[*websocket.Conn]bool),
		stop:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *BoxesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected overlay clients.
func (h *BoxesHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster.
func (h *BoxesHandler) Close() {
	h.once.Do(func() { close(h.stop) })
}

func (h *BoxesHandler) broadcast() {
	ticker := time.NewTicker(boxesInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		snap := h.hub.Snapshot()
		if snap.Seq == 0 || snap.Seq == last {
			continue
		}
		last = snap.Seq

		msg, err := json.Marshal(snap)
		if err != nil {
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Msg("overlay client write failed")
			}
		}
		h.mu.RUnlock()
	}
}
