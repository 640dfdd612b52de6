package consumer

import (
	"log/slog"

	"github.com/coldforge/queue-consumer/internal/support"
)

// account implements Completion Accounting (§4.4): given the original
// chunk and a finished task's outcome, it derives the successful/failed
// partition and runs the side effects — cleanup and metric increments.
//
// It never lets a panic escape, matching the requirement that accounting
// "must not throw out of the callback" — a buggy Queue.Cleanup must not
// take a fetcher down with it.
type account[M any] struct {
	sup   *support.Support
	queue Queue[M]
}

func newAccount[M any](sup *support.Support, queue Queue[M]) *account[M] {
	return &account[M]{sup: sup, queue: queue}
}

// settle runs accounting for one completed task. chunk is the original,
// ordered slice submitted to the pool; residue is the number of items the
// handler left unconsumed in its cursor; taskErr is the error the task
// finished with, if any (settle only checks whether it is nil and logs it).
func (a *account[M]) settle(chunk []M, residue int, taskErr error) {
	defer func() {
		if r := recover(); r != nil {
			if a.sup != nil && a.sup.Logger != nil {
				a.sup.Logger.Error("consumer: panic during completion accounting", "recovered", r)
			}
		}
	}()

	successful, failed := partition(chunk, residue, taskErr != nil)

	if len(failed) > 0 {
		if a.sup != nil && a.sup.Metrics != nil {
			a.sup.Metrics.AddFailedMessages(len(failed))
		}
		logFailed(a.sup, failed, taskErr)
	}

	if len(successful) > 0 {
		if cleanup, ok := a.queue.(CleanupQueue[M]); ok {
			cleanup.Cleanup(successful)
		}
		if a.sup != nil && a.sup.Metrics != nil {
			a.sup.Metrics.AddSuccessfulMessages(len(successful))
		}
	}
}

// partition derives the successful/failed split from a chunk, its
// recovered iterator residue R, and whether the task failed.
//
// On success, R is defined to be 0: successful = chunk, failed = nil.
// On failure, the in-flight message — the one being processed when the
// handler errored — is also counted as failed, so failed is the last
// (R+1) messages of chunk. That slice length is clamped to len(chunk):
// when R == len(chunk) (the handler errored before consuming anything),
// R+1 would over-slice by one without the clamp.
func partition[M any](chunk []M, residue int, failed bool) (successful, failedMsgs []M) {
	if !failed {
		return chunk, nil
	}

	failedCount := residue + 1
	if failedCount > len(chunk) {
		failedCount = len(chunk)
	}
	splitAt := len(chunk) - failedCount
	return chunk[:splitAt], chunk[splitAt:]
}

func logFailed[M any](sup *support.Support, failed []M, taskErr error) {
	if sup == nil || sup.Logger == nil {
		return
	}
	sup.Logger.Error("consumer: handler failed",
		slog.Int("failed_count", len(failed)),
		slog.Any("payload", failed),
		slog.Any("error", taskErr),
	)
}
