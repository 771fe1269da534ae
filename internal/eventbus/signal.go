package eventbus

import (
	"context"
	"sync"
)

// Signal is a one-shot latch. Once fired it stays fired.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal creates an unfired signal
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Fire marks the signal; later calls are no-ops
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Done returns a channel closed when the signal fires
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Fired reports whether the signal fired
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal fires or ctx ends
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FireOn subscribes the signal to a topic; the first event fires it
func (s *Signal) FireOn(b *Bus, topic Topic) func() {
	return b.Subscribe(topic, "readiness", func(context.Context, Event) error {
		s.Fire()
		return nil
	})
}
