// Package effects runs best-effort side effects (audit writes, live pushes)
// after the primary operation has committed. Callers never wait on them and
// failures are only logged.
package effects

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultTimeout = 5 * time.Second

// Failure describes a side effect that returned an error.
type Failure struct {
	Task string
	Err  error
}

// FailureObserver is notified about every failed task, e.g. to count it.
type FailureObserver func(task string)

// Runner dispatches fire-and-forget tasks on detached contexts.
type Runner struct {
	logger   *slog.Logger
	timeout  time.Duration
	observe  FailureObserver
	failures chan Failure
	wg       sync.WaitGroup
	drained  chan struct{}
	mu       sync.RWMutex
	closed   bool
}

// NewRunner constructs a Runner. A zero timeout uses five seconds.
func NewRunner(logger *slog.Logger, timeout time.Duration, observe FailureObserver) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	r := &Runner{
		logger:   logger,
		timeout:  timeout,
		observe:  observe,
		failures: make(chan Failure, 64),
		drained:  make(chan struct{}),
	}
	go r.drain()
	return r
}

// Go schedules fn. The context passed to fn keeps the values of ctx but is
// not cancelled when ctx is.
func (r *Runner) Go(ctx context.Context, task string, fn func(context.Context) error) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("effect dropped after shutdown", slog.String("task", task))
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.failures <- Failure{Task: task, Err: fmt.Errorf("panic: %v", p)}
			}
		}()
		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		if err := fn(taskCtx); err != nil {
			r.failures <- Failure{Task: task, Err: err}
		}
	}()
}

// Wait blocks until every scheduled task has finished.
func (r *Runner) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// Close waits for in-flight tasks and stops the failure logger.
func (r *Runner) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
	close(r.failures)
	<-r.drained
}

func (r *Runner) drain() {
	defer close(r.drained)
	for f := range r.failures {
		r.logger.Warn("best-effort task failed", slog.String("task", f.Task), slog.Any("error", f.Err))
		if r.observe != nil {
			r.observe(f.Task)
		}
	}
}
