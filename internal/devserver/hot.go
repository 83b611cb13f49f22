package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpack/internal/bundler"
	apphttp "github.com/wolfeidau/assetpack/internal/http"
)

// Hot update actions pushed to clients.
const (
	ActionBuilding = "building"
	ActionBuilt    = "built"
	ActionSync     = "sync"
)

const (
	writeWait        = 10 * time.Second
	sendBuffer       = 16
	defaultHeartbeat = 10 * time.Second
)

// Event is one hot update message.
type Event struct {
	Action   string   `json:"action"`
	Hash     string   `json:"hash,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// HotMiddleware streams build events to browsers over a websocket.
type HotMiddleware struct {
	log       zerolog.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*hotClient
	latest  *Event
	closed  bool
}

type hotClient struct {
	id   string
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func (c *hotClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func NewHotMiddleware(log zerolog.Logger, heartbeat time.Duration) *HotMiddleware {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &HotMiddleware{
		log:       log,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: map[string]*hotClient{},
	}
}

func (h *HotMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("Hot client upgrade failed")
		return
	}

	client := &hotClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}

	if !h.register(client) {
		client.close()
		return
	}

	log := h.log.With().Str("client", client.id).Str("addr", apphttp.ClientIPFromContext(r.Context())).Logger()
	log.Debug().Msg("Hot client connected")

	go h.writeLoop(client, log)
	h.readLoop(client)

	h.unregister(client)
	log.Debug().Msg("Hot client disconnected")
}

func (h *HotMiddleware) register(c *hotClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c.id] = c
	if h.latest != nil {
		event := *h.latest
		event.Action = ActionSync
		c.send <- event
	}
	return true
}

func (h *HotMiddleware) unregister(c *hotClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *HotMiddleware) readLoop(c *hotClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *HotMiddleware) writeLoop(c *hotClient, log zerolog.Logger) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Msg("Failed to send hot update")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Msg("Hot client heartbeat failed")
				return
			}
		}
	}
}

// Building tells every client a rebuild started.
func (h *HotMiddleware) Building() {
	h.broadcast(Event{Action: ActionBuilding}, false)
}

// Built tells every client a rebuild finished and remembers the result for
// clients connecting later.
func (h *HotMiddleware) Built(stats *bundler.Stats) {
	event := Event{Action: ActionBuilt}
	if stats != nil {
		event.Hash = stats.Hash
		event.Errors = stats.ErrorTexts()
		event.Warnings = stats.WarningTexts()
	}
	h.broadcast(event, true)
}

func (h *HotMiddleware) broadcast(event Event, remember bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if remember {
		h.latest = &event
	}

	for id, c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.log.Warn().Str("client", id).Msg("Hot client too slow, disconnecting")
			delete(h.clients, id)
			c.close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *HotMiddleware) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *HotMiddleware) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}
