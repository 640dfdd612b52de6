package boundedpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/coldforge/queue-consumer/internal/consumer"
)

// task implements consumer.Task[M] for the goroutine-backed Pool. It
// satisfies Running/Result/Err/AddDoneCallback and adds the context
// plumbing Release needs to ask a handler to stop.
type task[M any] struct {
	cursor *consumer.Cursor[M]

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool
	done    chan struct{}

	mu        sync.Mutex
	err       error
	callbacks []func(consumer.Task[M])
}

var _ consumer.Task[struct{}] = (*task[struct{}])(nil)

func newTask[M any](cursor *consumer.Cursor[M]) *task[M] {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task[M]{
		cursor: cursor,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.running.Store(true)
	return t
}

func (t *task[M]) Running() bool {
	return t.running.Load()
}

func (t *task[M]) Result() *consumer.Cursor[M] {
	return t.cursor
}

func (t *task[M]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// AddDoneCallback registers cb to run once the task finishes. If the task
// has already finished, cb runs immediately on the calling goroutine.
func (t *task[M]) AddDoneCallback(cb func(consumer.Task[M])) {
	t.mu.Lock()
	select {
	case <-t.done:
		t.mu.Unlock()
		cb(t)
		return
	default:
	}
	t.callbacks = append(t.callbacks, cb)
	t.mu.Unlock()
}

// finish marks the task complete, runs registered callbacks, and signals
// done. Called exactly once by the worker goroutine that ran fn.
func (t *task[M]) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.running.Store(false)
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb(t)
	}
}
