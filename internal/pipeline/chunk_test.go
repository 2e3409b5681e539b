package pipeline

import (
	"context"
	"testing"
)

func sliceSource(items []int) ChunkSource[int] {
	pos := 0
	return func(ctx context.Context, n int) ([]int, error) {
		if pos >= len(items) {
			return nil, nil
		}
		end := pos + n
		if end > len(items) {
			end = len(items)
		}
		chunk := items[pos:end]
		pos = end
		return chunk, nil
	}
}

func TestChunkIteratorNextExhausts(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	it := NewChunkIterator(sliceSource(items), 3, 1, 10)

	var got []int
	for {
		chunk, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if len(chunk) == 0 {
			break
		}
		got = append(got, chunk...)
	}

	if len(got) != len(items) {
		t.Fatalf("expected %d items total, got %d: %v", len(items), len(got), got)
	}
	for i, v := range got {
		if v != items[i] {
			t.Fatalf("expected item %d to be %d, got %d", i, items[i], v)
		}
	}
}

func TestChunkIteratorResizeClamps(t *testing.T) {
	it := NewChunkIterator(sliceSource(nil), 5, 2, 8)

	it.Resize(1)
	if it.chunkSize != 2 {
		t.Fatalf("expected Resize to clamp to min 2, got %d", it.chunkSize)
	}

	it.Resize(100)
	if it.chunkSize != 8 {
		t.Fatalf("expected Resize to clamp to max 8, got %d", it.chunkSize)
	}

	it.Resize(5)
	if it.chunkSize != 5 {
		t.Fatalf("expected in-range Resize to apply as-is, got %d", it.chunkSize)
	}
}

func TestDrainConcatenatesAllChunksWithoutPressureCallback(t *testing.T) {
	items := []int{10, 20, 30, 40, 50}
	it := NewChunkIterator(sliceSource(items), 2, 1, 4)

	got, err := Drain(context.Background(), it, nil)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("expected %d items, got %d", len(items), len(got))
	}
}

func TestChunkIteratorNextStaysExhaustedAfterShortChunk(t *testing.T) {
	items := []int{1, 2, 3}
	it := NewChunkIterator(sliceSource(items), 10, 1, 10)

	chunk, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(chunk) != 3 {
		t.Fatalf("expected the only chunk to contain all 3 items, got %d", len(chunk))
	}

	chunk, err = it.Next(context.Background())
	if err != nil {
		t.Fatalf("Next after exhaustion: %v", err)
	}
	if len(chunk) != 0 {
		t.Fatalf("expected empty chunk once exhausted, got %v", chunk)
	}
}
