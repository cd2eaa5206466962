package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	wrapped := errors.New("persistent")
	calls := 0
	err := Retry(context.Background(), 3, func() error {
		calls++
		return wrapped
	})
	if err == nil {
		t.Fatal("Retry() error = nil, want exhaustion error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, wrapped) {
		t.Errorf("Retry() error = %v, want wrapped %v", err, wrapped)
	}
	if !strings.Contains(err.Error(), "all 3 attempts failed") {
		t.Errorf("Retry() error = %q, want attempt count in message", err)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, 3, func() error {
		calls++
		return errors.New("should not run")
	})
	if err == nil {
		t.Fatal("Retry() error = nil, want cancellation error")
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	for attempt := range 6 {
		d := backoffDelay(attempt)
		if d < baseDelay/2 {
			t.Errorf("backoffDelay(%d) = %v, want >= %v", attempt, d, baseDelay/2)
		}
		if d >= maxDelay {
			t.Errorf("backoffDelay(%d) = %v, want < %v", attempt, d, maxDelay)
		}
	}
}

func TestBackoffDelayGrows(t *testing.T) {
	// Lower bounds (delay/2 before jitter) must grow with the attempt index
	// until the cap.
	first := baseDelay / 2
	second := baseDelay
	for range 50 {
		if d := backoffDelay(0); d < first || d >= 2*first {
			t.Fatalf("backoffDelay(0) = %v, want in [%v, %v)", d, first, 2*first)
		}
		if d := backoffDelay(1); d < second || d >= 2*second {
			t.Fatalf("backoffDelay(1) = %v, want in [%v, %v)", d, second, 2*second)
		}
	}
}
