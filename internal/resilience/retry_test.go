package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestRetry_SuccessFirstAttempt(t *testing.T) {
	var calls int
	v, err := Retry(context.Background(), "test", fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 || calls != 1 {
		t.Errorf("got v=%d calls=%d, want 42 and 1", v, calls)
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	var calls int
	v, err := Retry(context.Background(), "test", fastPolicy(), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), 503)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" || calls != 3 {
		t.Errorf("got v=%q calls=%d, want ok and 3", v, calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	var calls int
	err := Do(context.Background(), "test", fastPolicy(), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("down"), 502)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_PermanentNotRetried(t *testing.T) {
	var calls int
	err := Do(context.Background(), "test", fastPolicy(), func(_ context.Context) error {
		calls++
		return errors.New("listing removed")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_AttemptTimeoutIsRetried(t *testing.T) {
	p := fastPolicy()
	p.Timeout = 5 * time.Millisecond

	var calls int
	_, err := Retry(context.Background(), "test", p, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, "test", Policy{Attempts: 5, Backoff: time.Hour}, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("busy"), 429)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("x"), 429), true},
		{"wrapped", fmt.Errorf("scrape: %w", NewTransientError(errors.New("x"), 0)), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"reset text", errors.New("read tcp: connection reset by peer"), true},
		{"permanent", errors.New("404 not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(nil); got != "" {
		t.Errorf("Classify(nil) = %q", got)
	}
	if got := Classify(ErrCircuitOpen); got != "circuit_open" {
		t.Errorf("Classify(open) = %q", got)
	}
	if got := Classify(NewTransientError(errors.New("x"), 503)); got != "transient" {
		t.Errorf("Classify(transient) = %q", got)
	}
	if got := Classify(errors.New("bad")); got != "permanent" {
		t.Errorf("Classify(permanent) = %q", got)
	}
}

func TestBackoff_Capped(t *testing.T) {
	p := Policy{Backoff: time.Second, MaxBackoff: 3 * time.Second}
	if got := backoff(p, 1); got != time.Second {
		t.Errorf("attempt 1: got %v", got)
	}
	if got := backoff(p, 2); got != 2*time.Second {
		t.Errorf("attempt 2: got %v", got)
	}
	if got := backoff(p, 5); got != 3*time.Second {
		t.Errorf("attempt 5: got %v", got)
	}
}
