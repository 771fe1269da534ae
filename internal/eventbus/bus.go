// Package eventbus implements the in-process publish/subscribe bus of the engine.
//
// Every subscription keeps one mailbox per event key. Events sharing a key are
// handled one after another in publish order, while events with different keys
// are handled concurrently. Publish never blocks on a handler.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/telemetry"
)

// ErrClosed is returned when publishing on a closed bus
var ErrClosed = errors.New("event bus closed")

// Event is a single message delivered to subscribers
type Event struct {
	Topic       Topic
	Key         string
	Payload     any
	PublishedAt time.Time
}

// Handler processes one event. A returned error is logged and does not affect
// other subscribers or later events.
type Handler func(ctx context.Context, ev Event) error

// Publisher is the write side of the bus
//
//go:generate mockgen -destination=mocks/mock_publisher.go -package=mocks github.com/integrio/status-engine/internal/eventbus Publisher
type Publisher interface {
	Publish(ctx context.Context, topic Topic, key string, payload any) error
}

// Option configures a Bus
type Option func(*Bus)

// WithMetrics records publish and delivery counters
func WithMetrics(m *telemetry.BusMetrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithClock overrides the clock used to stamp events
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		b.now = now
	}
}

// Bus dispatches events to subscribers
type Bus struct {
	logger  *zap.SugaredLogger
	metrics *telemetry.BusMetrics
	now     func() time.Time

	mu     sync.RWMutex
	subs   map[Topic][]*subscription
	nextID uint64
	closed bool

	// ctx is handed to handlers and cancelled once Close has drained
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bus
func New(logger *zap.SugaredLogger, opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger: logger,
		now:    time.Now,
		subs:   make(map[Topic][]*subscription),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type subscription struct {
	id      uint64
	name    string
	topic   Topic
	handler Handler
	bus     *Bus

	mu        sync.Mutex
	mailboxes map[string][]Event
	stopped   bool
}

// Subscribe registers a handler for a topic. The name identifies the subscriber
// in logs and metrics. The returned function removes the subscription; events
// already queued for it are still delivered.
func (b *Bus) Subscribe(topic Topic, name string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{
		id:        b.nextID,
		name:      name,
		topic:     topic,
		handler:   handler,
		bus:       b,
		mailboxes: make(map[string][]Event),
	}
	b.subs[topic] = append(b.subs[topic], sub)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(sub) })
	}
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	subs := b.subs[sub.topic]
	for i, s := range subs {
		if s.id == sub.id {
			b.subs[sub.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	sub.mu.Lock()
	sub.stopped = true
	sub.mu.Unlock()
}

// Publish queues the event for every current subscriber of the topic
func (b *Bus) Publish(ctx context.Context, topic Topic, key string, payload any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	ev := Event{Topic: topic, Key: key, Payload: payload, PublishedAt: b.now()}
	for _, sub := range b.subs[topic] {
		sub.enqueue(ev)
	}
	b.metrics.RecordPublished(ctx, string(topic))
	return nil
}

// enqueue appends to the key's mailbox and starts a drainer when none is running.
// The presence of a mailbox entry means a drainer owns that key.
func (s *subscription) enqueue(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	queue, running := s.mailboxes[ev.Key]
	s.mailboxes[ev.Key] = append(queue, ev)
	if running {
		return
	}

	s.bus.wg.Add(1)
	go s.drain(ev.Key)
}

func (s *subscription) drain(key string) {
	defer s.bus.wg.Done()

	for {
		s.mu.Lock()
		queue := s.mailboxes[key]
		if len(queue) == 0 {
			delete(s.mailboxes, key)
			s.mu.Unlock()
			return
		}
		ev := queue[0]
		queue[0] = Event{}
		s.mailboxes[key] = queue[1:]
		s.mu.Unlock()

		s.deliver(ev)
	}
}

func (s *subscription) deliver(ev Event) {
	b := s.bus
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return s.handler(b.ctx, ev)
	}()

	b.metrics.RecordDelivered(b.ctx, string(ev.Topic), s.name, err == nil)
	if err != nil {
		b.logger.Errorw("Event handler failed",
			"topic", ev.Topic,
			"key", ev.Key,
			"subscriber", s.name,
			"error", err,
		)
	}
}

// Close stops accepting events and waits for queued events to be handled or
// for ctx to end. Handler contexts are cancelled when Close returns.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	defer b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus did not drain: %w", ctx.Err())
	}
}
