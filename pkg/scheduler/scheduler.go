// Copyright 2025 Certen Protocol
//
// Scheduler runs named, independent background tasks on their own fixed
// cadence. Each task owns a goroutine running "run body; log outcome;
// sleep period" until Stop is called; no two tasks share state, and a
// task's own next run never starts until its current run returns.

package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/certen/gateway-validator/pkg/metrics"
)

// TaskFunc is one scheduled task's body. A returned error is logged but
// never stops the scheduler; the task simply runs again after its period.
type TaskFunc func(ctx context.Context) error

type task struct {
	name   string
	period time.Duration
	body   TaskFunc
	stopCh chan struct{}
	doneCh chan struct{}
}

// State is the scheduler's lifecycle state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Scheduler owns a set of named periodic tasks.
type Scheduler struct {
	mu     sync.Mutex
	tasks  []*task
	state  State
	logger *log.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New constructs a stopped Scheduler with no registered tasks.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		state:  StateStopped,
		logger: log.New(log.Writer(), "[scheduler] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a named task running on period. Register must be called
// before Start; registering after Start has no effect on the already
// running set.
func (s *Scheduler) Register(name string, period time.Duration, body TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &task{name: name, period: period, body: body})
}

// Start launches one goroutine per registered task. Starting an
// already-running Scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return
	}
	s.state = StateRunning

	for _, t := range s.tasks {
		t.stopCh = make(chan struct{})
		t.doneCh = make(chan struct{})
		go s.run(ctx, t)
	}
	s.logger.Printf("scheduler started with %d tasks", len(s.tasks))
}

// Stop signals every task to exit and waits for each to finish its
// current run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	var tasks []*task
	for _, t := range s.tasks {
		if t.stopCh != nil { // registered after Start: never launched
			tasks = append(tasks, t)
		}
	}
	s.mu.Unlock()

	for _, t := range tasks {
		close(t.stopCh)
	}
	for _, t := range tasks {
		<-t.doneCh
	}
	s.logger.Println("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	defer close(t.doneCh)

	// The first run starts immediately; each later run follows a full period.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-timer.C:
			s.runOnce(ctx, t)
			timer.Reset(t.period)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t *task) {
	result := "ok"
	if err := t.body(ctx); err != nil {
		s.logger.Printf("task %s failed: %v", t.name, err)
		result = "error"
	}
	metrics.SchedulerTaskRuns.WithLabelValues(t.name, result).Inc()
	metrics.SchedulerTaskLastRunSeconds.WithLabelValues(t.name).SetToCurrentTime()
}
