package websocket

import (
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	WriteWait      = 10 * time.Second // max time to write a frame to the peer
	MaxMessageSize = 64 * 1024        // largest inbound frame accepted
	SendBufferSize = 64               // outbound frames buffered per connection
)

// Client is one dashboard socket. topic and villageKey are only touched by ReadPump.
type Client struct {
	ID          string
	ConnectedAt time.Time

	topic      string
	villageKey string

	conn    *websocket.Conn
	send    chan []byte
	broker  *Broker
	limiter *rate.Limiter
}

func NewClient(id string, conn *websocket.Conn, broker *Broker) *Client {
	return &Client{
		ID:          id,
		ConnectedAt: time.Now().UTC(),
		conn:        conn,
		send:        make(chan []byte, SendBufferSize),
		broker:      broker,
		limiter:     rate.NewLimiter(rate.Limit(10), 20), // 10 frames/sec, burst 20
	}
}

// ReadPump owns the connection state machine until the socket closes or goes idle.
func (c *Client) ReadPump() {
	logger := c.broker.logger
	defer func() {
		c.broker.hub.Unregister(c)
		close(c.send)
		c.conn.Close()
		logger.Info("client_disconnected", "client_id", c.ID, "topic", c.topic)
	}()

	idle := c.broker.idleTimeout
	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(idle))
	c.conn.SetPingHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(idle))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(WriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return err
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				logger.Info("client_idle_timeout", "client_id", c.ID, "idle", idle.String())
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				logger.Warn("client_read_error", "client_id", c.ID, "error", err.Error())
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(idle))
		c.handleFrame(data)
	}
}

// WritePump is the only writer of data frames on the socket.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.broker.logger.Warn("client_write_error", "client_id", c.ID, "error", err.Error())
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// handleFrame answers PING ahead of the rate limiter; every other frame, malformed ones
// included, spends a token.
func (c *Client) handleFrame(data []byte) {
	frame, perr := ParseFrame(data)
	if perr == nil && frame.Type == TypePing {
		c.sendFrame(NewFrame(TypePong, nil))
		return
	}
	if !c.limiter.Allow() {
		c.sendError(ReasonRateLimited, "too many frames, slow down")
		return
	}
	if perr != nil {
		c.sendError(perr.Reason, perr.Message)
		return
	}

	switch frame.Type {
	case TypeSubscribeAdmin:
		c.handleSubscribe(frame.Data)
	case TypeAdminNotification:
		c.handleRelay(frame.Data)
	default:
		if isServerFrame(frame.Type) {
			c.sendFrame(NewFrame(TypeEcho, map[string]any{"type": frame.Type, "data": frame.Data}))
			return
		}
		c.sendError(ReasonUnknownType, "unknown frame type "+string(frame.Type))
	}
}

func (c *Client) handleSubscribe(raw json.RawMessage) {
	var req SubscribeAdminData
	if len(raw) == 0 || json.Unmarshal(raw, &req) != nil || req.VillageKey == "" {
		c.sendError(ReasonMissingFields, "SUBSCRIBE_ADMIN requires data.villageKey")
		return
	}

	topic, err := AdminTopic(req.VillageKey)
	if err != nil {
		c.sendError(ReasonInvalidVillageKey, "village key has no usable characters")
		return
	}

	hub := c.broker.hub
	if c.topic != "" && c.topic != topic {
		hub.Unsubscribe(c.topic, c)
		c.broker.logger.Info("client_unsubscribed", "client_id", c.ID, "topic", c.topic)
	}
	hub.Subscribe(topic, c)
	c.topic = topic
	c.villageKey = CanonicalVillageKey(req.VillageKey)

	c.broker.logger.Info("client_subscribed", "client_id", c.ID, "topic", topic)
	c.sendFrame(NewFrame(TypeSubscribedAdmin, SubscribedAdminData{VillageKey: c.villageKey, Topic: topic}))
}

// handleRelay republishes a dashboard-originated ADMIN_NOTIFICATION to its village topic.
func (c *Client) handleRelay(raw json.RawMessage) {
	data, villageKey, perr := ParseAdminNotification(raw)
	if perr != nil {
		c.sendError(perr.Reason, perr.Message)
		return
	}
	if _, err := c.broker.PublishData(villageKey, data, false); err != nil {
		if errors.Is(err, ErrInvalidTenantKey) {
			c.sendError(ReasonInvalidVillageKey, "village key has no usable characters")
			return
		}
		c.sendError(ReasonPublishFailed, err.Error())
	}
}

func (c *Client) sendError(reason, message string) {
	c.sendFrame(NewFrame(TypeError, ErrorData{Reason: reason, Message: message}))
}

func (c *Client) sendFrame(f *Frame) {
	data, err := f.ToJSON()
	if err != nil {
		return
	}
	if !c.trySend(data) {
		c.broker.logger.Warn("client_send_buffer_full", "client_id", c.ID, "type", f.Type)
	}
}

// trySend queues data without blocking; a full buffer drops the frame for this client only.
func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close tears down the socket; ReadPump notices and cleans up.
func (c *Client) Close() error {
	return c.conn.Close()
}
