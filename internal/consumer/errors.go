package consumer

import "errors"

// ErrMissingHandler is returned by New when neither the queue nor the
// Config exposes a handler function.
var ErrMissingHandler = errors.New("consumer: queue exposes no handler and none was supplied")

// ErrStuckCeiling is the fatal error Supervise returns when the number of
// forcibly released handler tasks exceeds stuck_limit. The consumer does
// not auto-recover from this; the caller must shut down.
var ErrStuckCeiling = errors.New("consumer: stuck handler count exceeded stuck_limit")

// ErrAlreadyShuttingDown describes a repeated shutdown request. Shutdown
// itself returns no error: a second call returns immediately without
// re-running the sequence.
var ErrAlreadyShuttingDown = errors.New("consumer: shutdown already in progress")
