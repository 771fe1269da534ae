// Package breaker guards outbound calls to dev-mode containers. Every base URL
// gets its own circuit so one unresponsive container does not block the others.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrOpen is returned without calling the remote when the circuit is open
var ErrOpen = errors.New("circuit breaker open")

// Settings configures every circuit of a Registry
type Settings struct {
	// RequestVolume is the minimum number of calls in a window before the
	// failure ratio is evaluated
	RequestVolume uint32

	// FailureRatio opens the circuit once reached
	FailureRatio float64

	// Window is the rolling period after which closed-state counts reset
	Window time.Duration

	// Cooldown is how long the circuit stays open before probing again
	Cooldown time.Duration

	// HalfOpenRequests is the number of probe calls allowed while half-open
	HalfOpenRequests uint32
}

// DefaultSettings returns the settings used when none are configured
func DefaultSettings() Settings {
	return Settings{
		RequestVolume:    5,
		FailureRatio:     0.5,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Validate checks the settings
func (s Settings) Validate() error {
	if s.RequestVolume == 0 {
		return fmt.Errorf("requestVolume must be at least 1")
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		return fmt.Errorf("failureRatio must be in (0, 1], got %v", s.FailureRatio)
	}
	if s.Window < 0 || s.Cooldown <= 0 {
		return fmt.Errorf("window must not be negative and cooldown must be positive")
	}
	return nil
}

// State is the state of one circuit
type State string

// Circuit states
const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Registry holds one circuit per key
type Registry struct {
	settings Settings
	logger   *zap.SugaredLogger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewRegistry creates an empty registry
func NewRegistry(settings Settings, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		settings: settings,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

func (r *Registry) get(key string) *gobreaker.CircuitBreaker[[]byte] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	s := r.settings
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        key,
		MaxRequests: s.HalfOpenRequests,
		Interval:    s.Window,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.RequestVolume {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Infow("Circuit state changed", "target", name, "from", from.String(), "to", to.String())
		},
		// a cancelled caller says nothing about the health of the remote
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	r.breakers[key] = cb
	return cb
}

// Execute runs call through the circuit of key. While the circuit is open the
// call is skipped and the returned error wraps ErrOpen.
func (r *Registry) Execute(key string, call func() ([]byte, error)) ([]byte, error) {
	out, err := r.get(key).Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrOpen, key)
	}
	return out, err
}

// Remove drops the circuit of key. A later call starts from a closed circuit.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, key)
}

// Len returns the number of circuits held
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.breakers)
}

// State reports the state of the circuit of key. Unknown keys are closed.
func (r *Registry) State(key string) State {
	r.mu.Lock()
	cb, ok := r.breakers[key]
	r.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return fromGobreaker(cb.State())
}
