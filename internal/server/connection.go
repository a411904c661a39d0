package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/doko-game/doko/internal/event"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Connection represents a websocket connection to one client session. The
// server pushes every notification kind the session subscribes to as an
// event message; clients refetch state over the HTTP API in response.
type Connection struct {
	conn    *websocket.Conn
	send    chan *Message
	session string
	bus     *event.Bus
	logger  *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	onClose   func(*Connection)

	mu    sync.RWMutex
	kinds []event.Kind
}

// NewConnection creates a connection wrapper subscribed to all event kinds.
func NewConnection(conn *websocket.Conn, session string, bus *event.Bus, logger *log.Logger, onClose func(*Connection)) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 64),
		session: session,
		bus:     bus,
		logger:  logger.WithPrefix("conn"),
		ctx:     ctx,
		cancel:  cancel,
		onClose: onClose,
		kinds:   event.Kinds(),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
	go c.forwardEvents()
}

// Close tears the connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

// Kinds returns the event kinds the connection currently subscribes to.
func (c *Connection) Kinds() []event.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := make([]event.Kind, len(c.kinds))
	copy(kinds, c.kinds)
	return kinds
}

func (c *Connection) setKinds(kinds []event.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = kinds
}

// sendMessage queues a message for the write pump. A client too slow to
// drain its buffer is dropped rather than allowed to stall the server.
func (c *Connection) sendMessage(msg *Message) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("send buffer full, dropping connection", "session", c.session)
		_ = c.Close()
	}
}

// forwardEvents relays fired signals for the session to the client, one
// message per consumed signal.
func (c *Connection) forwardEvents() {
	for {
		kind, err := c.bus.AwaitAny(c.ctx, c.session, c.Kinds()...)
		if err != nil {
			return
		}
		msg, err := NewMessage(TypeEvent, EventData{Kind: string(kind)})
		if err != nil {
			c.logger.Error("failed to encode event", "error", err)
			continue
		}
		c.sendMessage(msg)
	}
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) handleMessage(msg *Message) {
	switch msg.Type {
	case TypeSubscribe:
		var data SubscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid subscribe payload")
			return
		}
		kinds := make([]event.Kind, 0, len(data.Kinds))
		for _, name := range data.Kinds {
			kind, ok := event.ParseKind(name)
			if !ok {
				c.sendError("unknown event kind: " + name)
				return
			}
			kinds = append(kinds, kind)
		}
		if len(kinds) == 0 {
			kinds = event.Kinds()
		}
		c.setKinds(kinds)
	default:
		c.sendError("unknown message type: " + string(msg.Type))
	}
}

func (c *Connection) sendError(reason string) {
	if msg, err := NewMessage(TypeError, ErrorData{Error: reason}); err == nil {
		c.sendMessage(msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
