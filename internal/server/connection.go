package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/voterps/internal/auth"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Time allowed for the identity provider to answer
	authTimeout = 2 * time.Second

	sendBufferSize = 256
)

var (
	ErrConnectionClosed = errors.New("server: connection closed")
	ErrSendBufferFull   = errors.New("server: send buffer full")

	errMissingData = errors.New("missing data")
)

// Submitter accepts events for the engine loop.
type Submitter interface {
	Submit(ctx context.Context, ev Event) error
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan *Message
	engine    Submitter
	validator auth.Validator
	clock     quartz.Clock
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded websocket.
func NewConnection(id string, conn *websocket.Conn, engine Submitter, validator auth.Validator, clock quartz.Clock, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		id:        id,
		conn:      conn,
		send:      make(chan *Message, sendBufferSize),
		engine:    engine,
		validator: validator,
		clock:     clock,
		logger:    logger.WithPrefix("conn").With("conn", id),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Connection) ID() string { return c.id }

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client without blocking. A client
// that cannot keep up is disconnected.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrSendBufferFull
	}
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() {
		_ = c.Close()
		if err := c.engine.Submit(context.Background(), DisconnectEvent{ConnID: c.id}); err != nil {
			c.logger.Debug("Disconnect not delivered", "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.sendError(ErrorCodeInvalidMessage, "Failed to parse message")
			continue
		}

		if err := c.handleMessage(&msg); err != nil {
			c.logger.Debug("Engine unavailable", "error", err)
			return
		}
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := c.clock.NewTicker(pingPeriod, "conn", "ping")
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage turns a client message into an engine event. It returns an
// error only when the engine can no longer accept events.
func (c *Connection) handleMessage(msg *Message) error {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case MessageTypeJoin:
		var data JoinData
		if err := decodeData(msg.Data, &data); err != nil {
			c.sendError(ErrorCodeInvalidMessage, "Failed to parse join data")
			return nil
		}
		return c.handleJoin(data)

	case MessageTypeReady:
		return c.submit(ReadyEvent{ConnID: c.id})

	case MessageTypeProposeBet:
		var data ProposeBetData
		if err := decodeData(msg.Data, &data); err != nil || data.Credits == nil {
			c.sendError(ErrorCodeInvalidMessage, "Failed to parse propose-bet data")
			return nil
		}
		return c.submit(ProposeBetEvent{ConnID: c.id, Credits: *data.Credits})

	case MessageTypeRetire:
		return c.submit(RetireEvent{ConnID: c.id})

	case MessageTypePickCard:
		idx, ok := c.cardIndex(msg)
		if !ok {
			return nil
		}
		return c.submit(PickCardEvent{ConnID: c.id, CardIndex: idx})

	case MessageTypeVote:
		idx, ok := c.cardIndex(msg)
		if !ok {
			return nil
		}
		return c.submit(VoteEvent{ConnID: c.id, CardIndex: idx})

	default:
		c.sendError(ErrorCodeUnknownType, "Unknown message type: "+msg.Type.String())
		return nil
	}
}

// handleJoin verifies the token on the read goroutine, then hands the
// verified identity to the engine.
func (c *Connection) handleJoin(data JoinData) error {
	code := strings.TrimSpace(data.Code)
	if code == "" {
		c.sendError(ErrorCodeInvalidMessage, "Session code required")
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, authTimeout)
	identity, err := c.validator.Validate(ctx, data.Token)
	cancel()

	switch {
	case errors.Is(err, auth.ErrUnavailable):
		c.logger.Warn("Identity provider unavailable", "error", err)
		c.sendError(ErrorCodeAuthUnavailable, "Identity provider unavailable")
		return nil
	case err != nil || identity == nil:
		c.logger.Info("Rejected join", "code", code, "error", err)
		c.sendError(ErrorCodeUnauthorized, "Invalid token")
		return nil
	}

	c.logger.Debug("Join request", "code", code, "name", identity.Name)
	return c.submit(JoinEvent{ConnID: c.id, Code: code, Name: identity.Name})
}

// cardIndex decodes the index of a pick-card or vote message. A malformed
// payload is answered with an error; a fractional or huge index is dropped
// silently.
func (c *Connection) cardIndex(msg *Message) (int, bool) {
	var data CardIndexData
	if err := decodeData(msg.Data, &data); err != nil || data.CardIndex == nil {
		c.sendError(ErrorCodeInvalidMessage, "Failed to parse "+msg.Type.String()+" data")
		return 0, false
	}
	v := *data.CardIndex
	if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		c.logger.Debug("Ignored card index", "type", msg.Type, "index", v)
		return 0, false
	}
	return int(v), true
}

func (c *Connection) submit(ev Event) error {
	return c.engine.Submit(c.ctx, ev)
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg)
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errMissingData
	}
	return json.Unmarshal(data, v)
}
