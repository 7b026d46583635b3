// Package pool runs a queue of independent tasks with a fixed number of
// workers. A failing task never stops its siblings; every task is attempted
// exactly once.
package pool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultWidth is used when a non-positive width is requested.
const DefaultWidth = 5

// Failure records one task that returned an error or panicked.
type Failure[T any] struct {
	Task T
	Err  error
}

// Result aggregates a run. Succeeded is in completion order.
type Result[T, R any] struct {
	Succeeded []R
	Failed    int
	Failures  []Failure[T]
}

// PanicError wraps a value recovered from a worker panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

type settings[T any] struct {
	onFailure func(T, error)
	onSuccess func(T)
	active    *atomic.Int64
}

// Option configures a run.
type Option[T any] func(*settings[T])

// OnFailure registers a hook called, from the worker goroutine, for every failed task.
func OnFailure[T any](fn func(task T, err error)) Option[T] {
	return func(s *settings[T]) { s.onFailure = fn }
}

// OnSuccess registers a hook called, from the worker goroutine, for every successful task.
func OnSuccess[T any](fn func(task T)) Option[T] {
	return func(s *settings[T]) { s.onSuccess = fn }
}

// TrackActive makes the run maintain the number of tasks currently executing in n.
func TrackActive[T any](n *atomic.Int64) Option[T] {
	return func(s *settings[T]) { s.active = n }
}

// Width returns min(requested, tasks), falling back to DefaultWidth for a
// non-positive request. It is zero only when there are no tasks.
func Width(requested, tasks int) int {
	if requested < 1 {
		requested = DefaultWidth
	}
	if tasks < requested {
		return tasks
	}
	return requested
}

type outcome[T, R any] struct {
	task  T
	value R
	err   error
}

// Run executes worker for each task with at most width running at once.
// Tasks are taken from the queue in order; completion order is not.
// ctx is handed to each worker and is not used to stop the run: once Run
// starts, every task is attempted.
func Run[T, R any](ctx context.Context, tasks []T, width int, worker func(context.Context, T) (R, error), opts ...Option[T]) Result[T, R] {
	var s settings[T]
	for _, opt := range opts {
		opt(&s)
	}

	var res Result[T, R]
	n := Width(width, len(tasks))
	if n == 0 {
		return res
	}

	queue := make(chan T, len(tasks))
	for _, t := range tasks {
		queue <- t
	}
	close(queue)

	outcomes := make(chan outcome[T, R], n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if s.active != nil {
					s.active.Add(1)
				}
				v, err := call(ctx, worker, task)
				if s.active != nil {
					s.active.Add(-1)
				}

				if err != nil {
					if s.onFailure != nil {
						s.onFailure(task, err)
					}
				} else if s.onSuccess != nil {
					s.onSuccess(task)
				}
				outcomes <- outcome[T, R]{task: task, value: v, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Only this goroutine touches res.
	for o := range outcomes {
		if o.err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure[T]{Task: o.task, Err: o.err})
			continue
		}
		res.Succeeded = append(res.Succeeded, o.value)
	}
	return res
}

func call[T, R any](ctx context.Context, worker func(context.Context, T) (R, error), task T) (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return worker(ctx, task)
}
