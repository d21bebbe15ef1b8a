// internal/events/hub.go
//
// Websocket fan-out for session events.
// Responsibilities:
//   - Track which subscribers watch which session.
//   - Encode each event once and hand the bytes to every subscriber.
//   - Drop subscribers whose outbound buffer is full instead of blocking.
//
// Client wraps a gorilla/websocket connection with a buffered writer
// goroutine; the read side lives in the HTTP transport.

package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/arena/internal/game"
)

// Subscriber accepts encoded events. Deliver reports false when the
// subscriber can no longer keep up and should be removed.
type Subscriber interface {
	Deliver(msg []byte) bool
}

// Hub is a Publisher that broadcasts to per-session subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[Subscriber]struct{}
}

var _ Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[Subscriber]struct{})}
}

// Subscribe adds sub to sessionID's audience.
func (h *Hub) Subscribe(sessionID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[Subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	log.Debug().Str("sessionId", sessionID).Int("subscribers", len(set)).Msg("subscriber added")
}

// Unsubscribe removes sub from sessionID's audience.
func (h *Hub) Unsubscribe(sessionID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sessionID, sub)
}

// UnsubscribeAll removes sub from every session it watches.
func (h *Hub) UnsubscribeAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.subs {
		h.remove(id, sub)
	}
}

func (h *Hub) remove(sessionID string, sub Subscriber) {
	set := h.subs[sessionID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
}

// Subscribers returns how many subscribers watch sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Publish sends e to everyone watching e.SessionID.
func (h *Hub) Publish(e Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("sessionId", e.SessionID).Str("type", string(e.Type)).Msg("encode event")
		return
	}

	h.mu.Lock()
	targets := make([]Subscriber, 0, len(h.subs[e.SessionID]))
	for sub := range h.subs[e.SessionID] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		if !sub.Deliver(msg) {
			log.Warn().Str("sessionId", e.SessionID).Msg("dropping slow subscriber")
			h.UnsubscribeAll(sub)
		}
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Client is one websocket connection owned by an authenticated account.
type Client struct {
	Account game.AccountID

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn. Call WritePump in its own goroutine.
func NewClient(conn *websocket.Conn, acc game.AccountID) *Client {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Client{
		Account: acc,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Deliver queues msg without blocking.
func (c *Client) Deliver(msg []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- msg:
		return true
	default:
		c.Close()
		return false
	}
}

// Send encodes e and queues it for this client only.
func (c *Client) Send(e Event) bool {
	msg, err := json.Marshal(e)
	if err != nil {
		return false
	}
	return c.Deliver(msg)
}

// Read returns the payload of the next inbound data frame. Errors are
// connection errors; decoding the payload is up to the caller.
func (c *Client) Read() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

// Close stops the writer and closes the connection. Safe to call twice.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// WritePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("account", string(c.Account)).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
