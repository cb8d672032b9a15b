package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return wantErr
	})
	if err == nil {
		t.Fatal("Do() should fail after max attempts")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("Error should wrap the last failure, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("Do() should return an error after cancellation")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation stop, got %d", calls)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	config := &Config{
		InitialDelay: time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
	}
	if got := backoffDelay(config, 1); got != time.Second {
		t.Errorf("attempt 1 delay = %v, want 1s", got)
	}
	if got := backoffDelay(config, 2); got != 2*time.Second {
		t.Errorf("attempt 2 delay = %v, want 2s", got)
	}
	if got := backoffDelay(config, 5); got != 3*time.Second {
		t.Errorf("attempt 5 delay = %v, want cap 3s", got)
	}
}
