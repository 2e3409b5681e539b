package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// IngestGate bounds how many source ingestions run concurrently, so a
// proxy with dozens of upstream sources doesn't open dozens of simultaneous
// HTTP downloads and SQLite transactions at once.
type IngestGate struct {
	sem *semaphore.Weighted
}

// NewIngestGate creates a gate allowing up to maxConcurrent ingestions at
// a time.
func NewIngestGate(maxConcurrent int64) *IngestGate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &IngestGate{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Run blocks until a slot is free (or ctx is done), then runs fn while
// holding that slot.
func (g *IngestGate) Run(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn()
}

// RunAll runs one fn per task under the gate's concurrency cap, waiting
// for all of them and returning the first error encountered (others are
// still allowed to finish so partial ingestion state stays consistent per
// source).
func RunAll(ctx context.Context, gate *IngestGate, tasks []func() error) error {
	errs := make(chan error, len(tasks))
	for _, task := range tasks {
		task := task
		go func() {
			errs <- gate.Run(ctx, task)
		}()
	}
	var first error
	for range tasks {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}
