package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-stdvis/internal/log"
)

// Hub fans the frames of one camera out to its websocket viewers. All
// viewer bookkeeping happens on the Run goroutine; the mutex only guards
// ClientCount readers.
type Hub struct {
	name   string
	logger *slog.Logger

	viewers map[*Client]struct{}
	mu      sync.RWMutex

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	quit     chan struct{} // closed by Stop
	stopOnce sync.Once

	running atomic.Bool
	dropped atomic.Uint64
}

// New creates the hub for one camera. name labels its log lines.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.With("component", "hub", "hub", name),
		viewers:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run serves viewers until Stop is called. On return every viewer's send
// channel is closed, which ends its connection.
func (h *Hub) Run() {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-h.quit:
			h.disconnectAll()
			return
		case c := <-h.register:
			h.logger.Info("viewer joined", "viewers", h.attach(c))
		case c := <-h.unregister:
			h.logger.Info("viewer left", "viewers", h.detach(c))
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) attach(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewers[c] = struct{}{}
	return len(h.viewers)
}

func (h *Hub) detach(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[c]; ok {
		delete(h.viewers, c)
		close(c.send)
	}
	return len(h.viewers)
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.viewers {
		close(c.send)
	}
	clear(h.viewers)
}

// deliver hands msg to every viewer with room in its backlog. A viewer that
// is behind misses this message and stays connected.
func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.viewers {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Stop ends Run and disconnects every viewer. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast queues msg for every viewer. When the queue is full the message
// is counted as dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast queue full, frame dropped")
	}
}

// BroadcastJSON marshals v and queues it as a text message.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastFrame queues one JPEG frame.
func (h *Hub) BroadcastFrame(jpeg []byte) {
	h.Broadcast(NewFrameMessage(jpeg))
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Dropped returns how many deliveries were skipped.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
