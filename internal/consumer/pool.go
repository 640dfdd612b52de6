package consumer

import "context"

// Task is the handle a Pool returns from Schedule. It is consulted by the
// fetcher's done-callback wiring and by the supervisor's stuck-handler
// scan — never by user code directly.
type Task[M any] interface {
	// Running reports whether the task is still pending or executing.
	Running() bool

	// Result returns the cursor the handler was given, in whatever state
	// it was left in. Valid once the task has finished, whether it
	// succeeded or failed — on failure the cursor is attached to the
	// error via HandlerError, but Result still exposes it directly for
	// convenience.
	Result() *Cursor[M]

	// Err returns the error the handler returned, or nil on success.
	Err() error

	// AddDoneCallback registers cb to run exactly once, after the task
	// finishes, with this Task as its argument. If the task has already
	// finished, cb runs (or is scheduled to run) immediately.
	AddDoneCallback(cb func(Task[M]))
}

// Pool runs handler invocations under a hard concurrency cap. It is an
// external collaborator — this package ships a reference implementation in
// the sibling boundedpool package, but any Pool satisfying this contract
// works.
type Pool[M any] interface {
	// Schedule submits fn for execution against cursor. It blocks
	// (backpressure) rather than exceed the pool's concurrency cap.
	Schedule(fn func(ctx context.Context, cursor *Cursor[M]) error, cursor *Cursor[M]) Task[M]

	// Release attempts to forcibly end task's execution and free its
	// slot. It returns true only if the slot was actually freed; the
	// caller must not assume cancellation succeeded otherwise — Go has
	// no primitive to kill a goroutine that ignores its context, so a
	// handler that never observes ctx.Done() makes this best-effort, not
	// guaranteed.
	Release(task Task[M]) bool
}

// HandlerError wraps a handler's returned error together with the cursor
// it was processing, so Completion Accounting can recover the residue
// without the pool needing to know anything about chunks or messages.
type HandlerError[M any] struct {
	Cursor *Cursor[M]
	Err    error
}

func (e *HandlerError[M]) Error() string {
	return e.Err.Error()
}

func (e *HandlerError[M]) Unwrap() error {
	return e.Err
}
