// Package push relays status events to websocket subscribers.
package push

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/eventbus"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPongWait     = 90 * time.Second
	defaultBufferSize   = 256
)

// Message is the frame sent to subscribers for every relayed event
type Message struct {
	Topic       eventbus.Topic `json:"topic"`
	Key         string         `json:"key"`
	Payload     any            `json:"payload"`
	PublishedAt time.Time      `json:"publishedAt"`
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan Message

	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Hub fans status events out to connected subscribers. A subscriber that
// cannot keep up or stops answering pings is dropped.
type Hub struct {
	logger       *zap.SugaredLogger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pongWait     time.Duration
	bufferSize   int

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	wg          sync.WaitGroup
}

// Option configures a Hub
type Option func(*Hub)

// WithWriteTimeout bounds every frame write
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.writeTimeout = d
	}
}

// WithPongWait sets how long a subscriber may stay silent before it is dropped
func WithPongWait(d time.Duration) Option {
	return func(h *Hub) {
		h.pongWait = d
	}
}

// WithBufferSize sets how many frames may queue per subscriber
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		h.bufferSize = n
	}
}

// NewHub creates an empty hub
func NewHub(logger *zap.SugaredLogger, opts ...Option) *Hub {
	h := &Hub{
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		pongWait:     defaultPongWait,
		bufferSize:   defaultBufferSize,
		subscribers:  make(map[string]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the ops listener is not exposed to browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe relays every status topic of the bus. The returned function
// removes the bus subscriptions.
func (h *Hub) Subscribe(bus *eventbus.Bus) func() {
	cancels := make([]func(), 0, len(eventbus.StatusTopics))
	for _, topic := range eventbus.StatusTopics {
		cancels = append(cancels, bus.Subscribe(topic, "push", func(_ context.Context, ev eventbus.Event) error {
			h.Broadcast(ev)
			return nil
		}))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Broadcast queues an event for every subscriber without blocking
func (h *Hub) Broadcast(ev eventbus.Event) {
	msg := Message{Topic: ev.Topic, Key: ev.Key, Payload: ev.Payload, PublishedAt: ev.PublishedAt}

	h.mu.RLock()
	var slow []*subscriber
	for _, s := range h.subscribers {
		select {
		case s.send <- msg:
		case <-s.done:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.logger.Warnw("Dropping slow push subscriber", "subscriber", s.id)
		h.remove(s)
	}
}

// ServeHTTP upgrades the request and serves the subscriber until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debugw("Websocket upgrade failed", "error", err)
		return
	}

	s := &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, h.bufferSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subscribers[s.id] = s
	h.mu.Unlock()
	h.logger.Infow("Push subscriber connected", "subscriber", s.id, "remote", r.RemoteAddr)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writeLoop(s)
	}()

	h.readLoop(s)
	h.remove(s)
	h.logger.Infow("Push subscriber disconnected", "subscriber", s.id)
}

// readLoop discards inbound frames; it ends when the peer goes away
func (h *Hub) readLoop(s *subscriber) {
	_ = s.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := s.conn.WriteJSON(msg); err != nil {
				h.logger.Debugw("Push write failed", "subscriber", s.id, "error", err)
				h.remove(s)
				return
			}
		case <-s.done:
			return
		}
	}
}

// Ping sends a ping to every subscriber and drops those that cannot be
// written to. It returns the number of dropped subscribers.
func (h *Hub) Ping(ctx context.Context) int {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, s := range subs {
		if ctx.Err() != nil {
			break
		}
		deadline := time.Now().Add(h.writeTimeout)
		if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			h.logger.Debugw("Push subscriber did not accept ping", "subscriber", s.id, "error", err)
			h.remove(s)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of connected subscribers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[string]*subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.writeTimeout))
		s.close()
	}
	h.wg.Wait()
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if h.subscribers[s.id] == s {
		delete(h.subscribers, s.id)
	}
	h.mu.Unlock()
	s.close()
}
