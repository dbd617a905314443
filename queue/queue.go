package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/adapsys/enclave/logging"
)

// DefaultPriority is used by EnqueueFunc. Lower values run sooner.
const DefaultPriority = 10

// Task is a unit of deferred work.
type Task func()

type item struct {
	task     Task
	priority int
	seq      uint64 // FIFO tiebreaker within a priority
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)        { *h = append(*h, x.(*item)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue executes tasks on a fixed pool of workers, highest priority (lowest
// value) first, FIFO within a priority. A panicking task is recovered and
// logged; it never kills a worker.
type Queue struct {
	logger logging.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	items  itemHeap
	seq    uint64
	closed bool

	workers sync.WaitGroup
}

// Options configure a Queue.
type Options struct {
	// Workers sets the pool size. Defaults to 2.
	Workers int
	// Logger receives reports about panicking tasks. Defaults to NoOpLogger.
	Logger logging.Logger
}

// New constructs a Queue and starts its workers.
func New(optFns ...func(o *Options)) *Queue {
	opts := Options{Workers: 2, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	q := &Queue{logger: opts.Logger}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < opts.Workers; i++ {
		q.workers.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue schedules a task with the given priority. Lower values run sooner.
// Enqueueing after Shutdown returns an error.
func (q *Queue) Enqueue(task Task, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue is shut down")
	}

	q.seq++
	heap.Push(&q.items, &item{task: task, priority: priority, seq: q.seq})
	q.cond.Signal()
	return nil
}

// EnqueueFunc schedules a task at DefaultPriority.
func (q *Queue) EnqueueFunc(task Task) error {
	return q.Enqueue(task, DefaultPriority)
}

// Pending returns the number of tasks waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Shutdown stops accepting new tasks, lets the workers drain what is already
// queued, and waits for them to exit or for ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue shutdown: %w", ctx.Err())
	}
}

func (q *Queue) worker() {
	defer q.workers.Done()

	for {
		q.mu.Lock()
		for q.items.Len() == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.items.Len() == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		it := heap.Pop(&q.items).(*item)
		q.mu.Unlock()

		q.run(it.task)
	}
}

func (q *Queue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queued task panicked", "panic", r)
		}
	}()
	task()
}
