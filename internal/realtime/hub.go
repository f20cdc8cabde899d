package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/geo"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 4096
	locationTimeout = 5 * time.Second

	defaultSendBuffer = 64
)

// LocationHandler receives driver positions sent over a socket.
type LocationHandler func(ctx context.Context, driverID string, p geo.Point) error

type Options struct {
	SendBuffer     int
	AllowedOrigins []string
	OnLocation     LocationHandler
	Logger         *zap.Logger
}

// Hub fans events out to named rooms. A client whose send buffer is full
// is disconnected rather than slowing the broadcaster down.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	sendBuffer int
	onLocation LocationHandler
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	now        func() time.Time
}

func NewHub(opts Options) *Hub {
	h := &Hub{
		rooms:      map[string]map[*Client]struct{}{},
		clients:    map[*Client]struct{}{},
		sendBuffer: opts.SendBuffer,
		onLocation: opts.OnLocation,
		logger:     opts.Logger,
		now:        time.Now,
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// SetLocationHandler wires the handler after construction, since dispatch
// itself broadcasts through the hub.
func (h *Hub) SetLocationHandler(fn LocationHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLocation = fn
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP upgrades the request and serves the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := h.register(conn)
	h.logger.Debug("socket connected", zap.String("remote", r.RemoteAddr))

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(conn *websocket.Conn) *Client {
	c := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, h.sendBuffer),
		rooms: map[string]struct{}{},
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = map[*Client]struct{}{}
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// unregister removes c from every room and closes its send channel. It is
// safe to call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
	close(c.send)
}

// Broadcast sends event to everyone in room.
func (h *Hub) Broadcast(room, event string, data any) {
	msg, err := h.encode(Frame{Event: event, Room: room, Data: data})
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow socket client", zap.String("room", room))
			h.unregisterLocked(c)
		}
	}
}

// sendTo queues a frame for a single client.
func (h *Hub) sendTo(c *Client, f Frame) {
	msg, err := h.encode(f)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", f.Event), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.unregisterLocked(c)
	}
}

func (h *Hub) encode(f Frame) ([]byte, error) {
	f.SentAt = h.now().UTC()
	return json.Marshal(f)
}

// RoomSize reports how many clients are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.unregisterLocked(c)
	}
}

func (h *Hub) locationHandler() LocationHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onLocation
}
