package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"
)

var ErrPanic = errors.New("job panicked")

type Status int32

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusDone
	StatusException
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusException:
		return "exception"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusException
}

// Event is the outcome of a job, either Result or Exception.
type Event interface {
	isEvent()
}

type Result struct {
	Value any
}

func (Result) isEvent() {}

// Exception wraps the failure of a job.
type Exception struct {
	Err error
}

func (Exception) isEvent() {}

func (e Exception) Error() string {
	return "job exception: " + e.Err.Error()
}

func (e Exception) Unwrap() error {
	return e.Err
}

type Func func(ctx context.Context) (any, error)

// Callback receives the outcome of j. It runs on the worker goroutine after
// the job status became terminal.
type Callback func(j *Job, ev Event)

type Job struct {
	id        string
	fn        Func
	cb        Callback
	status    atomic.Int32
	submitted atomic.Bool
	event     Event // set before done is closed
	done      chan struct{}
}

func New(fn Func, cb Callback) *Job {
	if fn == nil {
		panic("job func is nil")
	}
	return &Job{
		id:   uuid.NewString(),
		fn:   fn,
		cb:   cb,
		done: make(chan struct{}),
	}
}

func (j *Job) ID() string {
	return j.id
}

func (j *Job) Status() Status {
	return Status(j.status.Load())
}

// Done is closed after the callback returned.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Event returns the outcome or nil if the job has not finished yet.
func (j *Job) Event() Event {
	select {
	case <-j.done:
		return j.event
	default:
		return nil
	}
}

// Wait blocks until the job finished or ctx is done.
func (j *Job) Wait(ctx context.Context) (Event, error) {
	select {
	case <-j.done:
		return j.event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *Job) start() bool {
	return j.status.CompareAndSwap(int32(StatusNotStarted), int32(StatusRunning))
}

func (j *Job) execute(ctx context.Context) (ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "job panicked", "panic", r, "stack", string(debug.Stack()))
			ev = Exception{Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()

	v, err := j.fn(ctx)
	if err != nil {
		return Exception{Err: err}
	}
	return Result{Value: v}
}

func (j *Job) finish(ctx context.Context, ev Event) {
	status := StatusDone
	if _, ok := ev.(Exception); ok {
		status = StatusException
	}
	j.event = ev
	j.status.Store(int32(status))
	defer close(j.done)

	if j.cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "job callback panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	j.cb(j, ev)
}
