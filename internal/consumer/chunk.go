package consumer

import "iter"

// Chunk splits batch into contiguous, order-preserving chunks of at most n
// items each. The last chunk may be shorter than n. If batch is empty, the
// sequence yields nothing; it never yields an empty chunk otherwise. For
// n == 1 every chunk is a singleton. n <= 0 is treated as 1.
//
// Chunk is lazy: nothing is sliced until the consumer pulls the next value,
// mirroring the generator the source language uses for the same purpose.
func Chunk[M any](batch []M, n int) iter.Seq[[]M] {
	if n < 1 {
		n = 1
	}
	return func(yield func([]M) bool) {
		for start := 0; start < len(batch); start += n {
			end := start + n
			if end > len(batch) {
				end = len(batch)
			}
			if !yield(batch[start:end]) {
				return
			}
		}
	}
}
