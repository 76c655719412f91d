package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	DefaultSendBuffer = 16
)

// Client is one live duplex connection: a single browser tab or device.
// It is created after a successful handshake and owned by the Registry until
// the transport layer reports a disconnect.
type Client struct {
	// ID exists only for log correlation; it never leaves the process.
	ID         uuid.UUID
	UserID     int64
	ProviderID int64 // 0 when the user does not act as a provider

	connection *websocket.Conn
	clock      clockwork.Clock
	sendCh     chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewClient wraps an upgraded connection and starts its writer goroutine.
// All writes go through the writer so the connection is never written
// concurrently.
func NewClient(conn *websocket.Conn, userID, providerID int64, clock clockwork.Clock, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	c := &Client{
		ID:         uuid.New(),
		UserID:     userID,
		ProviderID: providerID,
		connection: conn,
		clock:      clock,
		sendCh:     make(chan []byte, bufferSize),
		done:       make(chan struct{}),
	}
	c.configurePongHandler()
	c.wg.Add(1)
	go c.run()
	return c
}

// Send queues a frame for delivery. It never blocks: false means the client
// is stopped or its buffer is full, both of which the caller treats as a
// failed write.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.sendCh <- data:
		return true
	default:
		return false
	}
}

func (c *Client) run() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Ping failed - client likely disconnected
				return
			}
		case <-c.done:
			return
		}
	}
}

// stop terminates the writer and closes the connection. Safe to call more
// than once; the read pump and the registry may both reach it.
func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.connection.Close()
	})
	c.wg.Wait()
}

func (c *Client) configurePongHandler() {
	c.updateReadDeadline()
	c.connection.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *Client) updateWriteDeadline() {
	_ = c.connection.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *Client) updateReadDeadline() {
	_ = c.connection.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
