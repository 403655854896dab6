// Package wsnotifier implements notifier.Notifier with a websocket hub: a
// map of per-connection send channels, a writePump goroutine per
// connection, and a best-effort non-blocking send that drops on a full
// buffer. The payload is an opaque "table updated" signal; clients fetch
// actual state through the snapshot and event APIs.
package wsnotifier

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out a "table updated" signal to every connection currently
// subscribed to a tableId.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*conn]struct{}
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
}

// NewHub builds an empty subscriber hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*conn]struct{})}
}

// HandleWebSocket upgrades the request and subscribes the connection to
// tableID's updates until it disconnects.
func (h *Hub) HandleWebSocket(tableID string, w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[wsnotifier %s] upgrade error: %v", tableID, err)
		return
	}
	c := &conn{ws: ws, send: make(chan []byte, 8)}
	h.subscribe(tableID, c)

	go c.writePump()
	c.readPump(func() { h.unsubscribe(tableID, c) })
}

func (h *Hub) subscribe(tableID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[tableID] == nil {
		h.subs[tableID] = make(map[*conn]struct{})
	}
	h.subs[tableID][c] = struct{}{}
}

func (h *Hub) unsubscribe(tableID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[tableID], c)
	close(c.send)
	c.ws.Close()
}

// Publish implements notifier.Notifier: a non-blocking, best-effort
// broadcast of an opaque update signal to every subscriber of tableID.
func (h *Hub) Publish(tableID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[tableID] {
		select {
		case c.send <- []byte("table_updated"):
		default:
			// Drop if the connection's buffer is full; the client will
			// catch up via eventsDelta on its next poll.
			log.Printf("[wsnotifier %s] subscriber buffer full, update dropped", tableID)
		}
	}
}

func (c *conn) readPump(onClose func()) {
	defer onClose()
	c.ws.SetReadLimit(4096)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
