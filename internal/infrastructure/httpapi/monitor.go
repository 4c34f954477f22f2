package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"network-monitor/internal/domain"
)

// MonitorHub fans notifications out to websocket clients and in-process
// listeners. It implements usecase.Notifier.
type MonitorHub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]string // conn -> session filter, "" for all
	upgrader websocket.Upgrader
	wmu      sync.Mutex
	// listeners are in-process subscribers
	lmu       sync.RWMutex
	listeners map[chan domain.Notification]struct{}
}

func NewMonitorHub() *MonitorHub {
	return &MonitorHub{
		clients:   make(map[*websocket.Conn]string),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		listeners: make(map[chan domain.Notification]struct{}),
	}
}

// HandleWS upgrades the connection. ?session=ID limits the stream to one
// session; session-wide notifications ("*") are always delivered.
func (h *MonitorHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[c] = r.URL.Query().Get("session")
	h.mu.Unlock()
	_ = c.SetReadDeadline(time.Time{})
	for {
		// keepalive reads to detect client close
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.Close()
}

func (h *MonitorHub) Broadcast(n domain.Notification) {
	data, _ := json.Marshal(n)
	// snapshot clients to avoid holding read lock during writes
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c, session := range h.clients {
		if session == "" || session == n.Session || n.Session == "*" {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	h.lmu.RLock()
	subs := make([]chan domain.Notification, 0, len(h.listeners))
	for ch := range h.listeners {
		subs = append(subs, ch)
	}
	h.lmu.RUnlock()
	// serialize writes to prevent concurrent writes to same conn
	h.wmu.Lock()
	for _, c := range clients {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = c.WriteMessage(websocket.TextMessage, data)
	}
	h.wmu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- n:
		default: // drop if slow
		}
	}
}

// Clients returns the number of connected websocket clients.
func (h *MonitorHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribe returns a channel receiving notifications. Caller must Unsubscribe.
func (h *MonitorHub) Subscribe() chan domain.Notification {
	ch := make(chan domain.Notification, 256)
	h.lmu.Lock()
	h.listeners[ch] = struct{}{}
	h.lmu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel.
func (h *MonitorHub) Unsubscribe(ch chan domain.Notification) {
	h.lmu.Lock()
	if _, ok := h.listeners[ch]; ok {
		delete(h.listeners, ch)
		close(ch)
	}
	h.lmu.Unlock()
}
