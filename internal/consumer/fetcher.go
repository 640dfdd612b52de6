package consumer

import (
	"context"
	"time"

	"github.com/coldforge/queue-consumer/internal/support"
)

// fetcher is the Fetcher Worker (§4.5): a long-lived poller that pulls a
// batch, chunks it, submits each chunk to the pool, registers the task for
// supervisor stuck-detection, and wires a done-callback running Completion
// Accounting. Any uncaught error (or panic) in the loop is logged and
// terminates this goroutine; the supervisor revives it on its next tick.
type fetcher[M any] struct {
	id       int
	queue    Queue[M]
	pool     Pool[M]
	handler  func(ctx context.Context, cursor *Cursor[M]) error
	registry *registry[M]
	account  *account[M]
	sup      *support.Support

	bulkSize    int
	pollingTime time.Duration

	shutdown chan struct{}
	done     chan struct{}
}

func newFetcher[M any](id int, queue Queue[M], pool Pool[M], handler func(context.Context, *Cursor[M]) error, registry *registry[M], account *account[M], sup *support.Support, bulkSize int, pollingTime time.Duration) *fetcher[M] {
	return &fetcher[M]{
		id:          id,
		queue:       queue,
		pool:        pool,
		handler:     handler,
		registry:    registry,
		account:     account,
		sup:         sup,
		bulkSize:    bulkSize,
		pollingTime: pollingTime,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// requestShutdown asks the fetcher to stop after its current poll cycle.
// Idempotent; safe to call more than once.
func (f *fetcher[M]) requestShutdown() {
	select {
	case <-f.shutdown:
	default:
		close(f.shutdown)
	}
}

func (f *fetcher[M]) shuttingDown() bool {
	select {
	case <-f.shutdown:
		return true
	default:
		return false
	}
}

// alive reports the fetcher's liveness as the supervisor's revival check
// sees it: false once the run loop has returned, for any reason.
func (f *fetcher[M]) alive() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

// run is the fetcher's thread-of-control. It returns (closing f.done) on
// any fetch/submit error, on a recovered panic, or once the shutdown flag
// is observed at the top of an iteration.
func (f *fetcher[M]) run() {
	defer close(f.done)
	defer func() {
		if r := recover(); r != nil {
			if f.sup != nil && f.sup.Logger != nil {
				f.sup.Logger.Error("consumer: fetcher panicked, exiting for revival",
					"fetcher_id", f.id, "recovered", r)
			}
		}
	}()

	for {
		if f.shuttingDown() {
			return
		}

		if f.sup != nil && f.sup.Metrics != nil {
			f.sup.Metrics.IncRequestMessages()
		}

		// Queue.Get is intentionally given a context the consumer never
		// cancels mid-call: the source's blocking pull is not cancellable
		// mid-call either, and a fetcher only observes shutdown at the
		// top of the next iteration.
		batch, err := f.queue.Get(context.Background())
		if err != nil {
			if f.sup != nil && f.sup.Logger != nil {
				f.sup.Logger.Error("consumer: fetcher Queue.Get failed, exiting for revival",
					"fetcher_id", f.id, "error", err)
			}
			return
		}

		if f.sup != nil && f.sup.Metrics != nil {
			f.sup.Metrics.AddReceivedMessages(len(batch))
		}

		for chunk := range Chunk(batch, f.bulkSize) {
			chunk := chunk
			cursor := NewCursor(chunk)
			task := f.pool.Schedule(f.handler, cursor)
			f.registry.register(task, time.Now())

			task.AddDoneCallback(func(t Task[M]) {
				f.registry.unregister(t)
				residue := 0
				if result := t.Result(); result != nil {
					residue = result.Residue()
				}
				f.account.settle(chunk, residue, t.Err())
			})

			if f.sup != nil && f.sup.Metrics != nil {
				f.sup.Metrics.AddStartedMessages(len(chunk))
			}
		}

		if f.shuttingDown() {
			return
		}

		if f.pollingTime > 0 {
			time.Sleep(f.pollingTime)
		}
	}
}
