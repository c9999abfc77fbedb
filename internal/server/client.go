package server

import (
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before it is
	// considered dead.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait so pings keep the deadline
	// fresh.
	pingPeriod = 54 * time.Second

	sendBufferSize = 256
)

// Client is one live WebSocket connection. Its id is the opaque connection
// identifier the core tracks; everything user-related (name, room) lives in
// the chat state, not here.
type Client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	relay *Server
	addr  string
	log   *zap.SugaredLogger

	// closed is guarded by the hub mutex.
	closed bool

	limiter        *rateLimiter
	maxMessageSize int64
}

func newClient(id string, conn *websocket.Conn, relay *Server, addr string) *Client {
	cfg := relay.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		relay:          relay,
		addr:           addr,
		log:            relay.log.With("conn_id", id),
		limiter:        newRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefillInterval),
		maxMessageSize: cfg.MaxMessageSize,
	}
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warnw("error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warnw("error refreshing read deadline", "error", err)
		}
		return nil
	})
}

// logReadError classifies a read failure; every read error terminates the
// pump, this only decides how loudly to report it.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warnw("frame exceeded maximum size", "max_bytes", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debugw("client disconnected", "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debugw("connection closed", "error", err)
	default:
		c.log.Warnw("websocket read error", "error", err)
	}
}

// readPump consumes inbound frames until the connection dies, then runs the
// disconnect transition so the rest of the room learns about it.
func (c *Client) readPump() {
	defer func() {
		c.relay.hub.Dispatch(c.relay.coordinator.Disconnect(c.id))
		c.relay.hub.Unregister(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warnw("error closing connection after read pump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.allow() {
			c.log.Warnw("rate limit exceeded; discarding frame",
				"burst", c.relay.cfg.RateLimitBurst,
				"interval", c.relay.cfg.RateLimitRefillInterval)
			continue
		}
		c.relay.handleFrame(c, raw)
	}
}

// writePump drains the send buffer onto the wire, one frame per WebSocket
// message, and keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warnw("error closing connection after write pump", "error", err)
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warnw("error setting write deadline", "error", err)
				return
			}
			if !ok {
				// Hub closed the buffer; say goodbye.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					c.log.Debugw("error writing close message", "error", err)
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Warnw("error writing frame", "error", err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warnw("error setting ping deadline", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Debugw("error writing ping", "error", err)
				}
				return
			}
		}
	}
}

// handleFrame decodes one inbound frame and routes it to the core. Invalid
// payloads never reach the core; rejected messages are dropped without a
// reply.
func (s *Server) handleFrame(c *Client, raw []byte) {
	f, err := decodeFrame(raw)
	if err != nil {
		c.log.Debugw("discarding malformed frame", "error", err)
		return
	}

	switch f.Event {
	case eventJoinRoom:
		var data joinRoomData
		if err := decodePayload(s.validate, f.Data, &data); err != nil {
			c.log.Debugw("discarding invalid join_room payload", "error", err)
			return
		}
		s.hub.Dispatch(s.coordinator.Join(c.id, data.Username, data.Room))

	case eventLeaveRoom:
		// The payload names a room and username, but the binding is
		// authoritative; only the connection id matters.
		s.hub.Dispatch(s.coordinator.Leave(c.id))

	case eventSendMessage:
		var data sendMessageData
		if err := decodePayload(s.validate, f.Data, &data); err != nil {
			c.log.Debugw("discarding invalid send_message payload", "error", err)
			return
		}
		_, envelopes, err := s.router.Send(c.id, data.Room, data.Message)
		if err != nil {
			// Already logged by the router; no rejection event goes back.
			return
		}
		s.hub.Dispatch(envelopes)

	case eventTyping:
		s.hub.Dispatch(s.router.Typing(c.id, true))

	case eventStopTyping:
		s.hub.Dispatch(s.router.Typing(c.id, false))

	default:
		c.log.Debugw("ignoring unknown event", "event", f.Event)
	}
}
