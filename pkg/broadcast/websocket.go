package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ipfocuser/pkg/indi"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	EventsPath = "/indi/events"

	sendBuffer = 64
	writeWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	addr string
	send chan []byte
}

// Hub streams registry events to websocket clients. A client that does not
// keep up with the stream is dropped.
type Hub struct {
	reg    *indi.Registry
	logger log.FieldLogger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(reg *indi.Registry, logger log.FieldLogger) *Hub {
	return &Hub{
		reg:     reg,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Publish queues ev for every client. It never blocks.
func (h *Hub) Publish(ev indi.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("Failed to encode %s event for %s: %v", ev.Kind, ev.Name, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warnf("Dropping slow client %s", c.addr)
			h.remove(c)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request, sends a def event for every announced
// property and then streams events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("Websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, addr: conn.RemoteAddr().String(), send: make(chan []byte, sendBuffer)}

	// Events published from here on are queued behind the snapshot. Since each
	// event carries the whole property, replaying them leaves the client with
	// the current state.
	h.add(c)
	h.logger.Debugf("Event client %s connected", c.addr)

	if err := h.writeSnapshot(conn); err != nil {
		h.logger.Debugf("Failed to send snapshot to %s: %v", c.addr, err)
		h.unregister(c)
		conn.Close()
		return
	}

	go h.readLoop(c)
	h.writeLoop(c)
}

func (h *Hub) writeSnapshot(conn *websocket.Conn) error {
	for _, p := range h.reg.Properties() {
		ev := indi.Event{
			Kind:      indi.EventDefine,
			Device:    h.reg.Device(),
			Name:      p.Header().Name,
			Property:  p,
			Timestamp: time.Now(),
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			return err
		}
	}
	return nil
}

// readLoop discards client messages and unregisters the client once the
// connection is closed.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debugf("Write to %s failed: %v", c.addr, err)
			h.unregister(c)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	h.logger.Debugf("Event client %s disconnected", c.addr)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}
