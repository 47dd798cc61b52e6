package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/CZERTAINLY/Opener/internal/log"
)

var (
	ErrPoolClosed   = errors.New("pool closed")
	ErrJobSubmitted = errors.New("job already submitted")
)

// Stats counts the jobs added to a Pool by their status.
type Stats struct {
	Submitted  int
	NotStarted int
	Running    int
	Done       int
	Exception  int
}

// Pending is the number of jobs which have not finished yet.
func (s Stats) Pending() int {
	return s.NotStarted + s.Running
}

type Pool struct {
	ctx     context.Context
	workers int
	queue   *queue
	wg      sync.WaitGroup

	mx        sync.Mutex
	closed    bool
	live      map[string]*Job // finished jobs are only counted
	submitted int
	done      int
	failed    int
}

// NewPool starts workers goroutines. ctx is passed to every job, canceling
// it does not stop the pool, use Close.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		ctx:     ctx,
		workers: workers,
		queue:   newQueue(),
		live:    make(map[string]*Job),
	}
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	slog.DebugContext(ctx, "pool started", "workers", workers)
	return p
}

func (p *Pool) Workers() int {
	return p.workers
}

// Add queues j for execution and returns immediately.
func (p *Pool) Add(j *Job) error {
	if !j.submitted.CompareAndSwap(false, true) {
		return ErrJobSubmitted
	}

	p.mx.Lock()
	defer p.mx.Unlock()
	if p.closed {
		j.submitted.Store(false)
		return ErrPoolClosed
	}
	p.live[j.id] = j
	p.submitted++
	// pushed under p.mx, so no job can be queued behind the shutdown items
	p.queue.push(item{job: j})
	return nil
}

// Close tells every worker to exit once the jobs queued so far are taken.
// It does not wait, use Wait. Calling Close more than once is a no-op.
func (p *Pool) Close() {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for range p.workers {
		p.queue.push(item{shutdown: true})
	}
}

// Wait blocks until all workers exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Stats() Stats {
	p.mx.Lock()
	defer p.mx.Unlock()
	s := Stats{
		Submitted: p.submitted,
		Done:      p.done,
		Exception: p.failed,
	}
	for _, j := range p.live {
		switch j.Status() {
		case StatusNotStarted:
			s.NotStarted++
		case StatusRunning:
			s.Running++
		case StatusDone:
			s.Done++
		case StatusException:
			s.Exception++
		}
	}
	return s
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	ctx := log.ContextAttrs(p.ctx, slog.Int("worker", id))
	for {
		it := p.queue.pop()
		if it.shutdown {
			slog.DebugContext(ctx, "worker closed")
			return
		}
		p.run(ctx, it.job)
	}
}

func (p *Pool) run(ctx context.Context, j *Job) {
	ctx = log.ContextAttrs(ctx, slog.String("job_id", j.id))
	if !j.start() {
		slog.WarnContext(ctx, "job already started: ignoring", "status", j.Status())
		return
	}
	slog.DebugContext(ctx, "job started")

	ev := j.execute(ctx)
	j.finish(ctx, ev)

	p.mx.Lock()
	defer p.mx.Unlock()
	delete(p.live, j.id)
	if _, ok := ev.(Exception); ok {
		p.failed++
		slog.DebugContext(ctx, "job failed", "error", ev)
	} else {
		p.done++
		slog.DebugContext(ctx, "job done")
	}
}
