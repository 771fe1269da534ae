// Package scheduler runs the periodic maintenance tasks of the engine.
//
// Every task runs on its own ticker. A tick is skipped while the previous run
// of the same task is still in progress, and all ticks are skipped until the
// engine has stored its first full view of the backend.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/telemetry"
)

// Task is one periodic job
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type task struct {
	Task
	running atomic.Bool
}

// Scheduler runs tasks until stopped
type Scheduler struct {
	ready   *eventbus.Signal
	metrics *telemetry.SchedulerMetrics
	logger  *zap.SugaredLogger
	now     func() time.Time

	tasks []*task

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
	runs       sync.WaitGroup
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithMetrics records run durations and skipped ticks
func WithMetrics(m *telemetry.SchedulerMetrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithLogger sets the scheduler logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to time runs
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler gated by the readiness signal
func New(ready *eventbus.Signal, opts ...Option) *Scheduler {
	s := &Scheduler{
		ready:  ready,
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a task. Tasks must be added before Start.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" || t.Run == nil {
		return errors.New("task needs a name and a run function")
	}
	if t.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive, got %s", t.Name, t.Interval)
	}
	s.tasks = append(s.tasks, &task{Task: t})
	return nil
}

// Start runs every task loop and blocks until ctx is cancelled or Stop is called.
// Runs still in progress are waited for before it returns.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()
	defer close(s.done)

	s.logger.Infow("Starting scheduler", "tasks", len(s.tasks))

	var loops sync.WaitGroup
	for _, t := range s.tasks {
		loops.Add(1)
		go func() {
			defer loops.Done()
			s.loop(ctx, t)
		}()
	}

	loops.Wait()
	s.runs.Wait()
	s.logger.Info("Scheduler stopped")
	return nil
}

// Stop cancels the task loops and waits for Start to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancelFunc
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-s.done
	}
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// tick starts one run of t unless the engine is not ready yet or the previous
// run has not finished. It reports whether a run was started.
func (s *Scheduler) tick(ctx context.Context, t *task) bool {
	if !s.ready.Fired() {
		return false
	}
	if !t.running.CompareAndSwap(false, true) {
		s.metrics.RecordSkip(ctx, t.Name)
		s.logger.Debugw("Skipping tick, previous run in progress", "task", t.Name)
		return false
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer t.running.Store(false)
		s.run(ctx, t)
	}()
	return true
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	start := s.now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
		}()
		return t.Run(ctx)
	}()
	duration := s.now().Sub(start)

	s.metrics.RecordRun(ctx, t.Name, duration, err == nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warnw("Scheduled task failed", "task", t.Name, "duration", duration, "error", err)
	}
}
