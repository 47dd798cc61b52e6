package jobs

import "sync"

// item is either a job or the shutdown signal for one worker.
type item struct {
	job      *Job
	shutdown bool
}

// queue is an unbounded FIFO, push never blocks and pop waits for an item.
type queue struct {
	mx    sync.Mutex
	cond  *sync.Cond
	items []item
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mx)
	return q
}

func (q *queue) push(it item) {
	q.mx.Lock()
	q.items = append(q.items, it)
	q.mx.Unlock()
	q.cond.Signal()
}

func (q *queue) pop() item {
	q.mx.Lock()
	defer q.mx.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	it := q.items[0]
	q.items[0] = item{}
	q.items = q.items[1:]
	return it
}
