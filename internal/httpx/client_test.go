package httpx

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConnectWithRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	err := ConnectWithRetry(context.Background(), RetryPolicy{MaxRetries: 3, Base: time.Millisecond, MaxDelay: 5 * time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestConnectWithRetryExhausts(t *testing.T) {
	attempts := 0
	failing := errors.New("always down")
	err := ConnectWithRetry(context.Background(), RetryPolicy{MaxRetries: 2, Base: time.Millisecond, MaxDelay: 5 * time.Millisecond}, func() error {
		attempts++
		return failing
	})
	if !errors.Is(err, failing) {
		t.Fatalf("expected the last error to surface, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected MaxRetries+1=3 attempts, got %d", attempts)
	}
}

func TestConnectWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ConnectWithRetry(ctx, RetryPolicy{MaxRetries: 5, Base: 10 * time.Millisecond}, func() error {
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled once ctx is done before a retry sleep, got %v", err)
	}
}

func TestHostLimiterWaitIsPerHost(t *testing.T) {
	hl := NewHostLimiter(1000, 10)
	ctx := context.Background()
	if err := hl.Wait(ctx, "http://a.example/x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := hl.Wait(ctx, "http://b.example/y"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHostLimiterDisabledWhenRPSNonPositive(t *testing.T) {
	hl := NewHostLimiter(0, 1)
	if err := hl.Wait(context.Background(), "http://a.example/x"); err != nil {
		t.Fatalf("expected disabled limiter to never block, got %v", err)
	}
}

func TestNewClientDefaultsTimeout(t *testing.T) {
	c := NewClient(0)
	if c.Transport == nil {
		t.Fatal("expected a configured transport")
	}
}
