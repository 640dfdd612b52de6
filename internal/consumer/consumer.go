// Package consumer implements a generic concurrent queue consumer: a
// fleet of fetcher workers drains a user-supplied Queue, dispatches
// chunked batches to a user-supplied handler under a bounded-pool
// concurrency cap, accounts for per-message success/failure, and stays
// alive across worker crashes and stuck handler invocations via a
// supervisor loop.
package consumer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldforge/queue-consumer/internal/support"
)

// Config constructs a Consumer. Queue and Pool are required external
// collaborators; Handler is required unless Queue also implements
// HandlerSource, in which case the queue's handler supersedes it.
type Config[M any] struct {
	Queue Queue[M]
	Pool  Pool[M]

	// Handler processes a chunk. Superseded by Queue's own Handler() if
	// Queue implements HandlerSource.
	Handler HandlerFunc[M]

	// MaxWorkers is the number of fetcher workers. Default: runtime.NumCPU().
	MaxWorkers int

	// MaxHandlers documents the concurrency cap enforced by Pool; it is
	// not itself enforced here (that's Pool's job) but is used as the
	// default SuperviseOptions.StuckLimit. Default: runtime.NumCPU().
	MaxHandlers int

	// MessagesBulkSize is the chunk size. Default: 1.
	MessagesBulkSize int

	// WorkerPollingTime is the fetcher's post-cycle sleep. Default: 0.
	WorkerPollingTime time.Duration

	// Support injects the logger and metrics sink. Default:
	// support.NewDefault().
	Support *support.Support
}

// Consumer is the Consumer Facade (§4.7): it owns the fetcher roster, the
// handlers registry, the stuck set, and completion accounting, and exposes
// the three lifecycle operations the spec names — Start, Supervise, and
// Shutdown.
type Consumer[M any] struct {
	queue   Queue[M]
	pool    Pool[M]
	handler func(ctx context.Context, cursor *Cursor[M]) error

	maxWorkers  int
	maxHandlers int

	bulkSize    int
	pollingTime time.Duration

	sup      *support.Support
	registry *registry[M]
	stuck    *stuckSet[M]
	account  *account[M]

	mu       sync.Mutex
	fetchers []*fetcher[M]
	nextID   int

	started          atomic.Bool
	shuttingDown     atomic.Bool
	supervisorExited chan struct{}
}

// New validates cfg and constructs a Consumer. It initializes the support
// dependency's metric counters at construction time (NewCollector/NewDefault
// registers every series at zero) so sinks see them before any traffic,
// per §4.7.
func New[M any](cfg Config[M]) (*Consumer[M], error) {
	handler := cfg.Handler
	if hs, ok := cfg.Queue.(HandlerSource[M]); ok {
		if qh := hs.Handler(); qh != nil {
			handler = qh
		}
	}
	if handler == nil {
		return nil, ErrMissingHandler
	}

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	maxHandlers := cfg.MaxHandlers
	if maxHandlers <= 0 {
		maxHandlers = runtime.NumCPU()
	}
	bulkSize := cfg.MessagesBulkSize
	if bulkSize <= 0 {
		bulkSize = 1
	}

	sup := cfg.Support
	if sup == nil {
		sup = support.NewDefault()
	}

	c := &Consumer[M]{
		queue:            cfg.Queue,
		pool:             cfg.Pool,
		handler:          wrapHandler(handler),
		maxWorkers:       maxWorkers,
		maxHandlers:      maxHandlers,
		bulkSize:         bulkSize,
		pollingTime:      cfg.WorkerPollingTime,
		sup:              sup,
		registry:         newRegistry[M](),
		stuck:            newStuckSet[M](),
		supervisorExited: make(chan struct{}),
	}
	c.account = newAccount[M](sup, cfg.Queue)

	return c, nil
}

// Start launches MaxWorkers fetcher goroutines. Idempotent only on the
// first call; calling Start again after Shutdown is undefined, matching
// §4.7.
func (c *Consumer[M]) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < c.maxWorkers; i++ {
		c.spawnFetcherLocked()
	}
}

// spawnFetcherLocked creates and starts a new fetcher, appending it to the
// roster. Caller must hold c.mu.
func (c *Consumer[M]) spawnFetcherLocked() *fetcher[M] {
	f := c.newFetcherLocked()
	c.fetchers = append(c.fetchers, f)
	go f.run()
	return f
}

func (c *Consumer[M]) newFetcherLocked() *fetcher[M] {
	id := c.nextID
	c.nextID++
	return newFetcher[M](id, c.queue, c.pool, c.handler, c.registry, c.account, c.sup, c.bulkSize, c.pollingTime)
}

// Shutdown sets the shutdown flag, waits for the supervisor to exit (see
// Supervise), then asks each fetcher to stop and waits for them to return.
// This ordering is load-bearing: the supervisor stops reviving dead
// fetchers before any fetcher is told to shut down, so there is no race
// where a fetcher's clean exit gets mistaken for a crash and revived.
// A fetcher blocked inside Queue.Get is not interrupted, so Shutdown also
// waits for that Get call to return.
//
// Shutdown assumes a Supervise call is running (blocking or detached); if
// none ever was, this call blocks forever waiting on the supervisor-exited
// event, matching the facade contract in §4.7.
func (c *Consumer[M]) Shutdown() {
	if !c.shuttingDown.CompareAndSwap(false, true) {
		return
	}

	<-c.supervisorExited

	c.mu.Lock()
	fetchers := make([]*fetcher[M], len(c.fetchers))
	copy(fetchers, c.fetchers)
	c.mu.Unlock()

	for _, f := range fetchers {
		f.requestShutdown()
	}
	for _, f := range fetchers {
		<-f.done
	}
}
