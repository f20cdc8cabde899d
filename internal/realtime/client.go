package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/geo"
)

// Frame is the wire format in both directions.
type Frame struct {
	Event  string    `json:"event"`
	Room   string    `json:"room,omitempty"`
	Data   any       `json:"data,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

type inbound struct {
	Event string          `json:"event"`
	Room  string          `json:"room"`
	Data  json.RawMessage `json:"data"`
}

type locationPayload struct {
	DriverID string   `json:"driverId"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

const (
	clientJoin       = "join"
	clientLeave      = "leave"
	replyJoined      = "joined"
	replyLeft        = "left"
	replyError       = "error"
	replyLocationAck = "location:ack"
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	// rooms is guarded by hub.mu.
	rooms map[string]struct{}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("socket read", zap.Error(err))
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(Frame{Event: replyError, Data: errorData("malformed frame")})
		return
	}

	switch msg.Event {
	case clientJoin:
		if msg.Room == "" {
			c.reply(Frame{Event: replyError, Data: errorData("room is required")})
			return
		}
		if c.hub.join(c, msg.Room) {
			c.reply(Frame{Event: replyJoined, Room: msg.Room})
		}
	case clientLeave:
		c.hub.leave(c, msg.Room)
		c.reply(Frame{Event: replyLeft, Room: msg.Room})
	case EventDriverLocation:
		if err := c.handleLocation(msg.Data); err != nil {
			c.reply(Frame{Event: replyError, Data: errorData(err.Error())})
			return
		}
		c.reply(Frame{Event: replyLocationAck})
	default:
		c.reply(Frame{Event: replyError, Data: errorData(fmt.Sprintf("unknown event %q", msg.Event))})
	}
}

func (c *Client) handleLocation(data json.RawMessage) error {
	var p locationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.New("malformed location")
	}
	if p.DriverID == "" || p.Lat == nil || p.Lng == nil {
		return errors.New("driverId, lat and lng are required")
	}
	fn := c.hub.locationHandler()
	if fn == nil {
		return errors.New("location updates are not accepted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), locationTimeout)
	defer cancel()
	return fn(ctx, p.DriverID, geo.Point{Lat: *p.Lat, Lng: *p.Lng})
}

func (c *Client) reply(f Frame) {
	c.hub.sendTo(c, f)
}

func errorData(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
