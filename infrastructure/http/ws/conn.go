package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Clients only send control frames; anything larger is a protocol abuse.
	maxMessageSize = 512

	MessageTypeConnected       = "connected"
	MessageTypeComplaintChange = "complaint.changed"
)

// Message is the JSON text frame written to clients
type Message struct {
	Type         string              `json:"type"`
	SubscriberID string              `json:"subscriber_id,omitempty"`
	Event        *domain.ChangeEvent `json:"event,omitempty"`
}

// NewUpgrader builds an upgrader that accepts the configured CORS origins.
// An empty list or "*" accepts every origin.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// Conn is a WebSocket sink for one client. Send and Heartbeat must be called
// from a single goroutine (the gateway's Run loop); ReadPump runs in another.
type Conn struct {
	conn         *websocket.Conn
	pingInterval time.Duration
	pongWait     time.Duration
	lastPing     time.Time
}

// NewConn wraps an upgraded connection. The peer must answer a ping within
// twice pingInterval or the read pump gives up.
func NewConn(conn *websocket.Conn, pingInterval time.Duration) *Conn {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Conn{
		conn:         conn,
		pingInterval: pingInterval,
		pongWait:     2 * pingInterval,
		lastPing:     time.Now(),
	}
}

// ReadPump consumes client frames until the connection fails, keeping the
// read deadline alive on every pong. It returns when the peer is gone.
func (c *Conn) ReadPump() error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				return err
			}
			return nil
		}
	}
}

// Connected announces the subscription to the client
func (c *Conn) Connected(subscriberID string) error {
	return c.writeJSON(Message{Type: MessageTypeConnected, SubscriberID: subscriberID})
}

// Send implements gateway.Sink. A busy stream never goes idle, so Send
// also pings once the interval has elapsed to keep the peer's pongs coming.
func (c *Conn) Send(ctx context.Context, evt domain.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.writeJSON(Message{Type: MessageTypeComplaintChange, Event: &evt}); err != nil {
		return err
	}
	if time.Since(c.lastPing) >= c.pingInterval {
		return c.ping()
	}
	return nil
}

// Heartbeat implements gateway.Heartbeater with a ping control frame
func (c *Conn) Heartbeat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.ping()
}

func (c *Conn) ping() error {
	c.lastPing = time.Now()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a close frame and releases the connection
func (c *Conn) Close() error {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return c.conn.Close()
}

func (c *Conn) writeJSON(msg Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}
