// Package demoqueue is a tiny in-memory reference Queue, the way
// raft-recovery ships both the WorkerPool abstraction and a concrete
// goroutine pool to run against. It exists so cmd/queuectl and the test
// suite can exercise a full consumer without a real broker — production
// use would swap this for an SQS/Kafka/Redis-backed Queue.
package demoqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Get once the queue has been closed and
// drained. Real queue transports (SQS, Kafka) block forever instead;
// Close exists only so demo runs and tests can terminate deterministically.
var ErrClosed = errors.New("demoqueue: closed")

// Queue is an in-memory consumer.Queue[M] and consumer.CleanupQueue[M].
// Get blocks until at least one item is available (or the queue is
// closed), then returns up to maxBatch of them.
type Queue[M any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []M
	closed   bool
	maxBatch int

	ackedMu sync.Mutex
	acked   []M
}

// New constructs a Queue. maxBatch caps how many items a single Get call
// returns; 0 means unlimited (return everything currently buffered).
func New[M any](maxBatch int) *Queue[M] {
	q := &Queue[M]{maxBatch: maxBatch}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues items and wakes any blocked Get.
func (q *Queue[M]) Push(items ...M) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Get implements consumer.Queue[M].
func (q *Queue[M]) Get(ctx context.Context) ([]M, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return nil, ErrClosed
	}

	n := len(q.items)
	if q.maxBatch > 0 && n > q.maxBatch {
		n = q.maxBatch
	}
	batch := append([]M(nil), q.items[:n]...)
	q.items = q.items[n:]
	return batch, nil
}

// Cleanup implements consumer.CleanupQueue[M]: it just records acked
// messages so tests can inspect them through Acked.
func (q *Queue[M]) Cleanup(successful []M) {
	if len(successful) == 0 {
		return
	}
	q.ackedMu.Lock()
	q.acked = append(q.acked, successful...)
	q.ackedMu.Unlock()
}

// Acked returns a snapshot of every message Cleanup has seen so far.
func (q *Queue[M]) Acked() []M {
	q.ackedMu.Lock()
	defer q.ackedMu.Unlock()
	out := make([]M, len(q.acked))
	copy(out, q.acked)
	return out
}

// Close marks the queue closed; a subsequent Get on an empty queue
// returns ErrClosed instead of blocking forever.
func (q *Queue[M]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Pending returns the number of items currently buffered.
func (q *Queue[M]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
