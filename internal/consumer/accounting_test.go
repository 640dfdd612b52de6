package consumer

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coldforge/queue-consumer/internal/metrics"
	"github.com/coldforge/queue-consumer/internal/support"
)

func TestPartitionSuccessIsFullChunk(t *testing.T) {
	chunk := []string{"a", "b", "c"}
	successful, failed := partition(chunk, 0, false)

	assert.Equal(t, chunk, successful)
	assert.Empty(t, failed)
}

func TestPartitionFailureMidChunk(t *testing.T) {
	// Handler consumed a and b, raised on c: residue is 0 (c itself was
	// in-flight, not left in the cursor).
	chunk := []string{"a", "b", "c"}
	successful, failed := partition(chunk, 0, true)

	assert.Equal(t, []string{"a", "b"}, successful)
	assert.Equal(t, []string{"c"}, failed)
}

func TestPartitionFailureBeforeConsumingAnything(t *testing.T) {
	chunk := []string{"a", "b", "c"}
	successful, failed := partition(chunk, 3, true)

	assert.Empty(t, successful)
	assert.Equal(t, chunk, failed)
}

func TestPartitionFailureClampsOverslice(t *testing.T) {
	// Residue equal to chunk length would naively over-slice by one
	// (residue+1 > len(chunk)) without the clamp documented in §9.
	chunk := []string{"a"}
	successful, failed := partition(chunk, 1, true)

	assert.Empty(t, successful)
	assert.Equal(t, chunk, failed)
}

func TestPartitionFailedIsContiguousSuffix(t *testing.T) {
	chunk := []int{1, 2, 3, 4, 5}
	successful, failed := partition(chunk, 1, true)

	assert.Equal(t, []int{1, 2, 3}, successful)
	assert.Equal(t, []int{4, 5}, failed)
	assert.Equal(t, chunk, append(append([]int{}, successful...), failed...))
}

type fakeCleanupQueue struct {
	cleaned [][]string
}

func (f *fakeCleanupQueue) Get(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeCleanupQueue) Cleanup(successful []string) {
	f.cleaned = append(f.cleaned, successful)
}

func newTestSupport() *support.Support {
	return support.New(slog.New(slog.NewTextHandler(nopWriter{}, nil)), metrics.NewTestCollector())
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSettleCallsCleanupOnlyWhenSuccessfulNonEmpty(t *testing.T) {
	queue := &fakeCleanupQueue{}
	acc := newAccount[string](newTestSupport(), queue)

	acc.settle([]string{"a", "b"}, 0, nil)
	assert.Equal(t, [][]string{{"a", "b"}}, queue.cleaned)

	acc.settle([]string{"x"}, 1, errors.New("boom"))
	assert.Equal(t, [][]string{{"a", "b"}}, queue.cleaned, "cleanup must not run when successful subset is empty")
}

func TestSettleNeverPanicsWhenCleanupPanics(t *testing.T) {
	queue := &panickingCleanupQueue{}
	acc := newAccount[string](newTestSupport(), queue)

	assert.NotPanics(t, func() {
		acc.settle([]string{"a"}, 0, nil)
	})
}

type panickingCleanupQueue struct{}

func (panickingCleanupQueue) Get(ctx context.Context) ([]string, error) { return nil, nil }
func (panickingCleanupQueue) Cleanup(successful []string)               { panic("cleanup exploded") }
