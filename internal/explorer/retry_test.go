package explorer

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testBackoff = BackoffConfig{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Millisecond,
	MaxDelay:    10 * time.Millisecond,
}

func TestCallWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := callWithBackoff(context.Background(), testBackoff, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestCallWithBackoff_RecoversAfterFailure(t *testing.T) {
	calls := 0
	err := callWithBackoff(context.Background(), testBackoff, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestCallWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("down")
	err := callWithBackoff(context.Background(), testBackoff, func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected wrapped %v, got %v", wantErr, err)
	}
	if calls != testBackoff.MaxAttempts {
		t.Errorf("Expected %d calls, got %d", testBackoff.MaxAttempts, calls)
	}
}

func TestCallWithBackoff_ContextCancelCutsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := BackoffConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Hour, // would block without cancellation
		MaxDelay:    2 * time.Hour,
	}

	done := make(chan error, 1)
	go func() {
		done <- callWithBackoff(ctx, cfg, func(ctx context.Context) error {
			return errors.New("transient")
		})
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callWithBackoff did not return after cancellation")
	}
}

func TestJitteredBackoff_Bounds(t *testing.T) {
	cfg := BackoffConfig{
		BaseDelay: 1 * time.Second,
		MaxDelay:  1 * time.Hour,
	}

	for attempt := 0; attempt < 4; attempt++ {
		base := cfg.BaseDelay << attempt
		for i := 0; i < 100; i++ {
			d := jitteredBackoff(attempt, cfg)
			if d < base || d >= base+base/2 {
				t.Fatalf("attempt %d: delay %v outside [%v, %v)", attempt, d, base, base+base/2)
			}
		}
	}
}

func TestJitteredBackoff_CappedAtMaxDelay(t *testing.T) {
	cfg := BackoffConfig{
		BaseDelay: 1 * time.Second,
		MaxDelay:  5 * time.Second,
	}
	for i := 0; i < 50; i++ {
		if d := jitteredBackoff(10, cfg); d > cfg.MaxDelay {
			t.Fatalf("delay %v exceeds max %v", d, cfg.MaxDelay)
		}
	}
}
