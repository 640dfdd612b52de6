package consumer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/queue-consumer/internal/boundedpool"
	"github.com/coldforge/queue-consumer/internal/consumer"
	"github.com/coldforge/queue-consumer/internal/demoqueue"
	"github.com/coldforge/queue-consumer/internal/metrics"
	"github.com/coldforge/queue-consumer/internal/support"
)

func testSupport() *support.Support {
	return support.New(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewTestCollector())
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition was not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHappyPathBulkOne(t *testing.T) {
	queue := demoqueue.New[string](0)
	pool := boundedpool.New[string](boundedpool.Config{MaxHandlers: 4})
	sup := testSupport()

	c, err := consumer.New(consumer.Config[string]{
		Queue:            queue,
		Pool:             pool,
		MaxWorkers:       2,
		MessagesBulkSize: 1,
		Support:          sup,
		Handler: func(ctx context.Context, cur *consumer.Cursor[string]) error {
			for {
				if _, ok := cur.Next(); !ok {
					return nil
				}
			}
		},
	})
	require.NoError(t, err)

	c.Start()
	require.NoError(t, c.Supervise(consumer.SuperviseOptions{Blocking: false, PollingTime: 10 * time.Millisecond}))

	queue.Push("a", "b", "c")

	eventually(t, time.Second, func() bool { return len(queue.Acked()) == 3 })
	eventually(t, time.Second, func() bool {
		s := sup.Metrics.Snapshot()
		return s.ReceivedMessages == 3 && s.StartedMessages == 3 && s.SuccessfulMessages == 3 && s.FailedMessages == 0
	})

	assert.ElementsMatch(t, []string{"a", "b", "c"}, queue.Acked())
}

func TestHappyPathBulkTwo(t *testing.T) {
	queue := demoqueue.New[string](0)
	pool := boundedpool.New[string](boundedpool.Config{MaxHandlers: 4})
	sup := testSupport()

	var mu sync.Mutex
	var cleanedSizes []int
	cleanupQueue := &sizeTrackingQueue{Queue: queue, onCleanup: func(n int) {
		mu.Lock()
		cleanedSizes = append(cleanedSizes, n)
		mu.Unlock()
	}}

	c, err := consumer.New(consumer.Config[string]{
		Queue:            cleanupQueue,
		Pool:             pool,
		MaxWorkers:       1,
		MessagesBulkSize: 2,
		Support:          sup,
		Handler: func(ctx context.Context, cur *consumer.Cursor[string]) error {
			for {
				if _, ok := cur.Next(); !ok {
					return nil
				}
			}
		},
	})
	require.NoError(t, err)

	c.Start()
	require.NoError(t, c.Supervise(consumer.SuperviseOptions{PollingTime: 10 * time.Millisecond}))

	queue.Push("a", "b", "c", "d", "e")

	eventually(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(cleanedSizes) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{2, 2, 1}, cleanedSizes)
}

// sizeTrackingQueue wraps demoqueue.Queue to observe each Cleanup call's
// size without changing its acking behavior.
type sizeTrackingQueue struct {
	*demoqueue.Queue[string]
	onCleanup func(n int)
}

func (s *sizeTrackingQueue) Cleanup(successful []string) {
	s.onCleanup(len(successful))
	s.Queue.Cleanup(successful)
}

func TestHandlerFailsMidChunk(t *testing.T) {
	queue := demoqueue.New[string](0)
	pool := boundedpool.New[string](boundedpool.Config{MaxHandlers: 1})
	sup := testSupport()

	c, err := consumer.New(consumer.Config[string]{
		Queue:            queue,
		Pool:             pool,
		MaxWorkers:       1,
		MessagesBulkSize: 3,
		Support:          sup,
		Handler: func(ctx context.Context, cur *consumer.Cursor[string]) error {
			a, _ := cur.Next()
			b, _ := cur.Next()
			c, _ := cur.Next()
			if a == "a" && b == "b" && c == "c" {
				return errors.New("boom on c")
			}
			return nil
		},
	})
	require.NoError(t, err)

	c.Start()
	require.NoError(t, c.Supervise(consumer.SuperviseOptions{PollingTime: 10 * time.Millisecond}))

	queue.Push("a", "b", "c")

	eventually(t, time.Second, func() bool { return len(queue.Acked()) == 2 })
	eventually(t, time.Second, func() bool { return sup.Metrics.Snapshot().FailedMessages == 1 })

	assert.ElementsMatch(t, []string{"a", "b"}, queue.Acked())
}

func TestHandlerFailsBeforeConsumingAnything(t *testing.T) {
	queue := demoqueue.New[string](0)
	pool := boundedpool.New[string](boundedpool.Config{MaxHandlers: 1})
	sup := testSupport()

	c, err := consumer.New(consumer.Config[string]{
		Queue:            queue,
		Pool:             pool,
		MaxWorkers:       1,
		MessagesBulkSize: 3,
		Support:          sup,
		Handler: func(ctx context.Context, cur *consumer.Cursor[string]) error {
			return errors.New("immediate failure")
		},
	})
	require.NoError(t, err)

	c.Start()
	require.NoError(t, c.Supervise(consumer.SuperviseOptions{PollingTime: 10 * time.Millisecond}))

	queue.Push("a", "b", "c")

	eventually(t, time.Second, func() bool { return sup.Metrics.Snapshot().FailedMessages == 3 })
	assert.Empty(t, queue.Acked())
}

// flakyQueue panics on its first Get call to simulate a fetcher-level
// crash (an uncaught invariant violation in the poll loop itself, not a
// handler error), then behaves normally afterward.
type flakyQueue struct {
	*demoqueue.Queue[string]
	calls atomic.Int32
}

func (f *flakyQueue) Get(ctx context.Context) ([]string, error) {
	if f.calls.Add(1) == 1 {
		panic("simulated fetcher crash")
	}
	return f.Queue.Get(ctx)
}

func TestFetcherCrashIsRevived(t *testing.T) {
	queue := &flakyQueue{Queue: demoqueue.New[string](0)}
	pool := boundedpool.New[string](boundedpool.Config{MaxHandlers: 4})
	sup := testSupport()

	c, err := consumer.New(consumer.Config[string]{
		Queue:            queue,
		Pool:             pool,
		MaxWorkers:       1,
		MessagesBulkSize: 1,
		Support:          sup,
		Handler: func(ctx context.Context, cur *consumer.Cursor[string]) error {
			for {
				if _, ok := cur.Next(); !ok {
					return nil
				}
			}
		},
	})
	require.NoError(t, err)

	c.Start()
	pollingTime := 10 * time.Millisecond
	require.NoError(t, c.Supervise(consumer.SuperviseOptions{PollingTime: pollingTime}))

	eventually(t, time.Second, func() bool { return sup.Metrics.Snapshot().RevivedWorkers >= 1 })

	queue.Push("a")
	eventually(t, time.Second, func() bool { return len(queue.Acked()) >= 1 })

	assert.Contains(t, queue.Acked(), "a")
}

func TestStuckHandlerIsReleasedAndCounted(t *testing.T) {
	queue := demoqueue.New[string](0)
	pool := boundedpool.New[string](boundedpool.Config{MaxHandlers: 2})
	sup := testSupport()

	c, err := consumer.New(consumer.Config[string]{
		Queue:            queue,
		Pool:             pool,
		MaxWorkers:       1,
		MaxHandlers:      2,
		MessagesBulkSize: 1,
		Support:          sup,
		Handler: func(ctx context.Context, cur *consumer.Cursor[string]) error {
			cur.Next()
			<-ctx.Done()
			return ctx.Err()
		},
	})
	require.NoError(t, err)

	c.Start()
	require.NoError(t, c.Supervise(consumer.SuperviseOptions{
		PollingTime: 5 * time.Millisecond,
		StuckTime:   20 * time.Millisecond,
		StuckLimit:  5,
	}))

	queue.Push("stuck-one")

	eventually(t, time.Second, func() bool { return sup.Metrics.Snapshot().StuckHandlers >= 1 })
}
