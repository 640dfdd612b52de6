package consumer

import (
	"context"
	"fmt"
)

// wrapHandler adapts a user HandlerFunc into the fn signature Pool.Schedule
// expects, implementing the handler wrapper's partial-progress protocol: on
// failure the cursor is attached to the returned error as a *HandlerError,
// so the residue can be recovered from the error alone. The fetcher's
// done-callback reads the residue from Task.Result.
//
// A panic inside the handler is recovered and converted into an error —
// the Go-idiom surface for what the distilled-from run loop's error capture
// does, since an unrecovered panic would otherwise crash the whole process
// rather than just failing this one task.
func wrapHandler[M any](handler HandlerFunc[M]) func(ctx context.Context, cursor *Cursor[M]) (err error) {
	return func(ctx context.Context, cursor *Cursor[M]) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("consumer: handler panicked: %v", r)
			}
			if err != nil {
				err = &HandlerError[M]{Cursor: cursor, Err: err}
			}
		}()
		return handler(ctx, cursor)
	}
}
