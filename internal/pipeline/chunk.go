package pipeline

import "context"

// ChunkSource produces the next chunk of up to n items, returning fewer
// than n (or zero) when exhausted. It lets a stage iterate a large source
// without holding the whole thing in memory when pressure is elevated.
type ChunkSource[T any] func(ctx context.Context, n int) ([]T, error)

// ChunkIterator pulls from a ChunkSource with a requested chunk size that
// the caller can shrink or grow between calls via Resize, e.g. once
// StrategyFor(Assess(ctx)) returns StrategyChunkedProcessing. The
// orchestrator itself does not use a ChunkIterator.
type ChunkIterator[T any] struct {
	next        ChunkSource[T]
	chunkSize   int
	minChunk    int
	maxChunk    int
	exhausted   bool
}

// NewChunkIterator wraps src with a starting chunk size, clamped between
// min and max on every Resize call.
func NewChunkIterator[T any](src ChunkSource[T], chunkSize, minChunk, maxChunk int) *ChunkIterator[T] {
	return &ChunkIterator[T]{next: src, chunkSize: chunkSize, minChunk: minChunk, maxChunk: maxChunk}
}

// Resize clamps and applies a new requested chunk size, taking effect on
// the next call to Next. Shrinking under memory pressure bounds the peak
// working set; growing back once pressure subsides keeps throughput up.
func (it *ChunkIterator[T]) Resize(n int) {
	if n < it.minChunk {
		n = it.minChunk
	}
	if n > it.maxChunk {
		n = it.maxChunk
	}
	it.chunkSize = n
}

// Next returns the next chunk, or a nil/empty slice once the source is
// exhausted. Safe to call again after exhaustion; it keeps returning empty.
func (it *ChunkIterator[T]) Next(ctx context.Context) ([]T, error) {
	if it.exhausted {
		return nil, nil
	}
	chunk, err := it.next(ctx, it.chunkSize)
	if err != nil {
		return nil, err
	}
	if len(chunk) < it.chunkSize {
		it.exhausted = true
	}
	return chunk, nil
}

// Drain pulls every remaining chunk and concatenates them, applying a
// pressure callback between chunks so a long-running drain can shrink its
// own chunk size mid-flight rather than only at the start.
func Drain[T any](ctx context.Context, it *ChunkIterator[T], onChunk func(assessed Assessment)) ([]T, error) {
	var all []T
	for {
		chunk, err := it.Next(ctx)
		if err != nil {
			return all, err
		}
		if len(chunk) == 0 {
			return all, nil
		}
		all = append(all, chunk...)
		if onChunk != nil {
			if a, aerr := Assess(ctx); aerr == nil {
				onChunk(a)
			}
		}
	}
}
