package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestIngestGateLimitsConcurrency(t *testing.T) {
	gate := NewIngestGate(2)
	var current, max int32

	tasks := make([]func() error, 6)
	for i := range tasks {
		tasks[i] = func() error {
			n := atomic.AddInt32(&current, 1)
			for {
				m := atomic.LoadInt32(&max)
				if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		}
	}

	if err := RunAll(context.Background(), gate, tasks); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if max > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, observed %d", max)
	}
}

func TestRunAllReturnsFirstError(t *testing.T) {
	gate := NewIngestGate(4)
	boom := errors.New("boom")

	tasks := []func() error{
		func() error { return nil },
		func() error { return boom },
		func() error { return nil },
	}
	err := RunAll(context.Background(), gate, tasks)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the injected error, got %v", err)
	}
}

func TestIngestGateRunRespectsContextCancellation(t *testing.T) {
	gate := NewIngestGate(1)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = gate.Run(context.Background(), func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gate.Run(ctx, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled while the single slot is held, got %v", err)
	}
}
