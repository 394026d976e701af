package engine

import "sync"

// readyQueue is a thread-safe FIFO of tasks whose dependencies are all
// satisfied.
//
// Workers enqueue dependents as they become ready; the scheduling loop in
// Compute dequeues and launches them. The queue is unbounded so a worker
// finishing never blocks on a busy scheduler.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the scheduling loop. Close marks the run finished and wakes the loop
// for good.
type readyQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	closed bool
	signal chan struct{} // signals availability (buffered, size 1)
}

func newReadyQueue(capacity int) *readyQueue {
	return &readyQueue{
		tasks:  make([]*Task, 0, capacity),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the back of the queue.
// Returns false if the queue is closed.
func (q *readyQueue) Enqueue(t *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)

	// Non-blocking: a buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front task without blocking.
func (q *readyQueue) TryDequeue() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Wait returns a channel that signals when tasks may be available or the
// queue has been closed.
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // TryDequeue
//	}
func (q *readyQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *readyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Closed reports whether Close has been called.
func (q *readyQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more tasks will be enqueued and wakes all waiters.
func (q *readyQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
