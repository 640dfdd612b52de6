// Package boundedpool is a reference implementation of consumer.Pool: a
// goroutine-backed bounded execution engine. Admission is a buffered
// channel used as a semaphore, and shutdown choreography waits on a
// sync.WaitGroup for in-flight tasks to drain — the same two idioms
// eliastor-proletarian's worker pool uses, adapted here to the
// generic Cursor-based handler signature consumer.Pool expects.
package boundedpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coldforge/queue-consumer/internal/consumer"
)

// releaseGrace bounds how long Release waits for a cancelled task to
// actually exit before giving up and reporting failure. Go has no
// primitive to kill a goroutine that ignores ctx.Done(), so this is the
// honest limit of "best-effort": a handler that doesn't check its context
// within this window is reported as still occupying its slot.
const releaseGrace = 5 * time.Millisecond

// Config configures a Pool.
type Config struct {
	// MaxHandlers is the hard concurrency cap. Values below 1 are
	// normalized to 1.
	MaxHandlers int

	// Initializer runs once, the first time the pool schedules a task,
	// mirroring the thread-pool variant of the source's pool_initializer
	// hook (§4.2). Optional.
	Initializer func()
}

// Pool is a goroutine-backed consumer.Pool[M].
type Pool[M any] struct {
	sem chan struct{}

	initOnce    sync.Once
	initializer func()

	wg sync.WaitGroup
}

// New constructs a Pool. Schedule blocks once MaxHandlers tasks are
// in flight.
func New[M any](cfg Config) *Pool[M] {
	max := cfg.MaxHandlers
	if max < 1 {
		max = 1
	}
	return &Pool[M]{
		sem:         make(chan struct{}, max),
		initializer: cfg.Initializer,
	}
}

var _ consumer.Pool[struct{}] = (*Pool[struct{}])(nil)

// Schedule submits fn for execution against cursor, blocking until a slot
// is free.
func (p *Pool[M]) Schedule(fn func(ctx context.Context, cursor *consumer.Cursor[M]) error, cursor *consumer.Cursor[M]) consumer.Task[M] {
	p.sem <- struct{}{}

	if p.initializer != nil {
		p.initOnce.Do(p.initializer)
	}

	t := newTask[M](cursor)
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()

		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("boundedpool: task panicked: %v", r)
				}
			}()
			err = fn(t.ctx, cursor)
		}()
		t.finish(err)
	}()

	return t
}

// Release asks the pool to end task's execution early by cancelling its
// context, then waits up to releaseGrace for it to actually exit. It
// returns true only if the task finished within that window — i.e. the
// slot was genuinely freed — matching consumer.Pool's contract that a
// false return means the supervisor should retry on its next tick rather
// than count this as released.
func (p *Pool[M]) Release(t consumer.Task[M]) bool {
	bt, ok := t.(*task[M])
	if !ok || !bt.Running() {
		return false
	}

	bt.cancel()

	select {
	case <-bt.done:
		return true
	case <-time.After(releaseGrace):
		return false
	}
}

// Wait blocks until every scheduled task has finished. Useful for a clean
// process shutdown after the consumer's own Shutdown returns.
func (p *Pool[M]) Wait() {
	p.wg.Wait()
}
