// Package events streams completed-settlement events to websocket
// subscribers. Delivery is best effort: the feed is an observation surface,
// not part of the settlement transaction.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/paydefi-inc/settlement-api/internal/types"
)

const (
	writeWait      = 10 * time.Second
	clientBacklog  = 32
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Broadcaster fans settlement events out to connected websocket clients.
// Slow clients are dropped rather than allowed to block publishers.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan types.SettlementEvent
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]struct{}),
	}
}

// Publish sends the event to every connected subscriber without blocking.
// A client whose backlog is full is dropped; its channel is closed exactly
// once, under the lock, so no later publish can race the close.
func (b *Broadcaster) Publish(event types.SettlementEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		select {
		case c.send <- event:
		default:
			delete(b.clients, c)
			close(c.send)
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) add(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c] = struct{}{}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
	}
	b.mu.Unlock()
	_ = c.conn.Close()
}

// StreamHandler upgrades the request to a websocket and streams settlement
// events until the client disconnects.
func (b *Broadcaster) StreamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Str("service", "events").Msg("websocket upgrade failed")
			return
		}

		cl := &client{
			conn: conn,
			send: make(chan types.SettlementEvent, clientBacklog),
		}
		b.add(cl)
		log.Info().Str("service", "events").Msg("events subscriber connected")

		go cl.writeLoop(b)
		cl.readLoop(b)
	}
}

func (c *client) writeLoop(b *Broadcaster) {
	for event := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(event); err != nil {
			b.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscriber too slow"),
		time.Now().Add(writeWait))
	_ = c.conn.Close()
}

func (c *client) readLoop(b *Broadcaster) {
	defer b.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
