package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"slackscribe/internal/retry"
	"slackscribe/internal/services"
)

func recordingPolicy(delays *[]time.Duration) retry.Policy {
	return retry.Default().WithSleeper(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestDoRetriesTransportErrorsUpToBound(t *testing.T) {
	var delays []time.Duration
	calls := 0
	transient := services.Wrap(services.ErrTransport, "download", "get", "connection reset", nil)

	err := recordingPolicy(&delays).Do(context.Background(), func(context.Context) error {
		calls++
		return transient
	})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error after exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %s, want %s", i, delays[i], want[i])
		}
	}
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := recordingPolicy(&delays).Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return services.Wrap(services.ErrTransport, "download", "", "timeout", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestDoNeverRetriesAuthOrNotFound(t *testing.T) {
	for _, marker := range []error{services.ErrAuth, services.ErrNotFound, services.ErrTranscription} {
		var delays []time.Duration
		calls := 0
		err := recordingPolicy(&delays).Do(context.Background(), func(context.Context) error {
			calls++
			return services.Wrap(marker, "download", "", "", nil)
		})
		if !errors.Is(err, marker) {
			t.Fatalf("expected %v, got %v", marker, err)
		}
		if calls != 1 || len(delays) != 0 {
			t.Fatalf("expected single attempt for %v, got calls=%d delays=%v", marker, calls, delays)
		}
	}
}

func TestDoStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := retry.Default()
	policy.BaseDelay = time.Hour
	policy.MaxDelay = time.Hour

	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(context.Context) error {
			calls++
			cancel()
			return services.Wrap(services.ErrTransport, "download", "", "", nil)
		})
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	policy := retry.Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	cases := map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 3 * time.Second, 8: 3 * time.Second}
	for attempt, want := range cases {
		if got := policy.Delay(attempt); got != want {
			t.Fatalf("Delay(%d) = %s, want %s", attempt, got, want)
		}
	}
	if (retry.Policy{}).Delay(2) != 0 {
		t.Fatal("zero base delay should not wait")
	}
}

func TestOnRetryObservesAttempts(t *testing.T) {
	var seen []int
	policy := retry.Default().WithSleeper(func(context.Context, time.Duration) error { return nil })
	policy.OnRetry = func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) }
	_ = policy.Do(context.Background(), func(context.Context) error {
		return services.Wrap(services.ErrTransport, "", "", "", nil)
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("unexpected retry observations %v", seen)
	}
}
