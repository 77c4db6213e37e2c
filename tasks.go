package accounts

import (
	"context"
	"sync"
	"time"
)

// Task is a deferred side effect scheduled after a repository commit.
type Task func(ctx context.Context) error

type scheduledTask struct {
	name string
	fn   Task
}

// Scheduler executes deferred side effects, relationship grants and search
// index writes, off the request path. Tasks run in insertion order on a
// single worker. A failed task is logged and dropped: failures are never
// surfaced to the caller that scheduled them, and no retry is attempted.
type Scheduler struct {
	mu          sync.Mutex
	queue       chan scheduledTask
	pending     sync.WaitGroup
	producers   sync.WaitGroup
	taskTimeout time.Duration
	logger      Logger
	closed      bool
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(logger Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTaskTimeout bounds each task's execution. External engine calls get a
// context that expires after the timeout.
func WithTaskTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.taskTimeout = d
		}
	}
}

// NewScheduler creates a Scheduler and starts its worker.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		queue:       make(chan scheduledTask, 64),
		taskTimeout: 30 * time.Second,
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	go s.work()

	return s
}

// Enqueue schedules a task. The name only shows up in failure logs. Work
// scheduled after Close is dropped. The send happens outside the lock so a
// full queue stalls only the producers, not Close or each other's admission.
func (s *Scheduler) Enqueue(name string, fn Task) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Error("scheduler closed, dropping task %s", name)
		return
	}
	s.pending.Add(1)
	s.producers.Add(1)
	s.mu.Unlock()

	defer s.producers.Done()
	s.queue <- scheduledTask{name: name, fn: fn}
}

// Wait blocks until every task enqueued so far has finished. Tests and
// shutdown paths use it to observe deferred work directly instead of polling
// the external systems.
func (s *Scheduler) Wait() {
	s.pending.Wait()
}

// Close stops accepting work; the worker drains what was already accepted
// and exits. Call Wait first if pending tasks must complete.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// producers admitted before the flag flipped finish their sends first
	s.producers.Wait()
	close(s.queue)
}

func (s *Scheduler) work() {
	for t := range s.queue {
		s.run(t)
	}
}

func (s *Scheduler) run(t scheduledTask) {
	defer s.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("deferred task %s panicked: %v", t.name, r)
		}
	}()

	if err := t.fn(ctx); err != nil {
		s.logger.Error("deferred task %s failed: %s", t.name, err)
	}
}
