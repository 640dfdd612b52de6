package consumer

import "context"

// HandlerFunc processes one chunk via its Cursor. The handler must call
// cursor.Next() to advance before acting on each item — that ordering is
// what lets Completion Accounting recover how far the handler got when it
// returns an error.
type HandlerFunc[M any] func(ctx context.Context, cursor *Cursor[M]) error

// Queue is the message source a Consumer drains. Implementations are
// expected to block in Get until a batch is available; Get is not
// cancelled mid-call by the consumer (see fetcher.run).
type Queue[M any] interface {
	// Get blocks for the next batch of messages. An empty, non-nil slice
	// is a valid (if unusual) response.
	Get(ctx context.Context) ([]M, error)
}

// HandlerSource lets a Queue supply its own handler, which supersedes the
// handler passed to Config.
type HandlerSource[M any] interface {
	Handler() HandlerFunc[M]
}

// CleanupQueue is the optional ack path. Cleanup is called with the
// successful subset of a completed chunk; the core skips calling it when
// that subset is empty. Cleanup may be invoked concurrently for distinct
// message sets and must tolerate that.
type CleanupQueue[M any] interface {
	Cleanup(successful []M)
}
