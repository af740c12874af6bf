package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
)

// Connection constants.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 1 << 20
	sendBufferSize   = 256
	commandQueueSize = 64
	closeGracePeriod = time.Second
)

var (
	errClientClosed = errors.New("client closed")
	errSlowClient   = errors.New("client send buffer full")
)

// client is one connected page.
type client struct {
	id   string
	conn *websocket.Conn
	srv  *Server

	ctx    context.Context //nolint:containedctx // connection lifetime
	cancel context.CancelFunc

	send     chan []byte
	commands chan func()

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(ctx context.Context, id string, conn *websocket.Conn, srv *Server) *client {
	ctx, cancel := context.WithCancel(ctx)
	return &client{
		id:       id,
		conn:     conn,
		srv:      srv,
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, sendBufferSize),
		commands: make(chan func(), commandQueueSize),
		done:     make(chan struct{}),
	}
}

// ID implements frameSink.
func (c *client) ID() string { return c.id }

// SendFrame implements frameSink. It never blocks: a page that cannot keep
// up is disconnected.
func (c *client) SendFrame(typ string, data any) error {
	msg, err := encodeFrame(typ, data)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}

func (c *client) enqueue(msg []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		logger.WarnContext(c.ctx, "Bridge client too slow, disconnecting")
		c.close()
		return errSlowClient
	}
}

// run drives the connection until it closes.
func (c *client) run() {
	go c.writePump()
	go c.commandLoop()
	c.readPump()
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WarnContext(c.ctx, "Bridge read failed", "error", err)
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Type == "" {
			_ = c.SendFrame(FrameError, RequestError{Message: "malformed frame"})
			continue
		}
		c.srv.dispatch(c, f)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.DebugContext(c.ctx, "Bridge write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeGracePeriod))
			return
		}
	}
}

// flush writes frames queued before close.
func (c *client) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// commandLoop runs ordered commands one at a time.
func (c *client) commandLoop() {
	for {
		select {
		case fn := <-c.commands:
			fn()
		case <-c.done:
			return
		}
	}
}

// queue schedules fn after every command queued before it.
func (c *client) queue(request string, fn func()) {
	select {
	case c.commands <- fn:
	case <-c.done:
	default:
		_ = c.SendFrame(FrameError, RequestError{Request: request, Message: "too many pending requests"})
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		// The write pump sends the close frame; closing the socket after a
		// grace period unblocks the read pump.
		time.AfterFunc(closeGracePeriod, func() { _ = c.conn.Close() })
		c.srv.unregister(c)
	})
}
