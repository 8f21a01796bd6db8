package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client wraps one upgraded socket with a buffered outbound channel so a
// slow reader never blocks the broadcaster; writePump is the only goroutine
// allowed to call conn.WriteMessage, per gorilla/websocket's concurrency
// contract.
type client struct {
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger
}

func newClient(conn *websocket.Conn, log *zap.Logger) *client {
	return &client{conn: conn, send: make(chan []byte, 16), log: log}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump(onClose func()) {
	defer func() {
		onClose()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// registry is the in-process room registry: a two-taxonomy map
// (restaurant_{id}, user_{id}) of connected clients, collapsed from the
// host's four bespoke registry types into one generic implementation.
type registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
	log   *zap.Logger
}

func newRegistry(log *zap.Logger) *registry {
	return &registry{rooms: make(map[string]map[*client]struct{}), log: log}
}

func (r *registry) join(room string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*client]struct{})
	}
	r.rooms[room][c] = struct{}{}
}

func (r *registry) leave(room string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conns, ok := r.rooms[room]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(r.rooms, room)
		}
	}
}

func (r *registry) leaveAll(rooms []string, c *client) {
	for _, room := range rooms {
		r.leave(room, c)
	}
	close(c.send)
}

// broadcast delivers event to every live connection in room; a connection
// whose send buffer is full misses this event (it stays connected) instead
// of blocking the publisher — spec §4.7's "at-most-once with no durable
// queue" delivery semantics.
func (r *registry) broadcast(room string, event Event) {
	encoded, err := json.Marshal(event)
	if err != nil {
		r.log.Error("realtime: encode event", zap.Error(err), zap.String("room", room))
		return
	}

	r.mu.RLock()
	conns := r.rooms[room]
	targets := make([]*client, 0, len(conns))
	for c := range conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- encoded:
		default:
			r.log.Warn("realtime: dropping event for slow connection", zap.String("room", room))
		}
	}
}
