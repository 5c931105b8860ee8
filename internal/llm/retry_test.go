package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedGateway fails with the queued errors, then succeeds.
type scriptedGateway struct {
	errs  []error
	calls int
}

func (s *scriptedGateway) Complete(ctx context.Context, msgs []Message) (string, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return "done", nil
}

func newTestRetrier(gw Gateway, attempts int) (*Retrier, *[]time.Duration) {
	slept := &[]time.Duration{}
	r := NewRetrier(gw).WithPolicy(attempts, 10*time.Millisecond)
	r.sleepFunc = func(d time.Duration) { *slept = append(*slept, d) }
	return r, slept
}

func TestRetrier_RetriesRateLimitThenSucceeds(t *testing.T) {
	gw := &scriptedGateway{errs: []error{
		&RateLimitError{Err: errors.New("throttled")},
		&RateLimitError{Err: errors.New("throttled")},
	}}
	r, slept := newTestRetrier(gw, 5)

	got, err := r.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "done" || gw.calls != 3 {
		t.Errorf("got %q after %d calls", got, gw.calls)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("delays = %v, want %v", *slept, want)
	}
}

func TestRetrier_ExhaustionSurfacesTerminalError(t *testing.T) {
	gw := &scriptedGateway{errs: []error{
		&RateLimitError{Err: errors.New("t1")},
		&RateLimitError{Err: errors.New("t2")},
		&RateLimitError{Err: errors.New("t3")},
	}}
	r, _ := newTestRetrier(gw, 3)

	_, err := r.Complete(context.Background(), nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if gw.calls != 3 {
		t.Errorf("calls = %d, want 3", gw.calls)
	}
}

func TestRetrier_NonRateLimitErrorPassesThrough(t *testing.T) {
	up := &UpstreamError{Status: 500, Err: errors.New("boom")}
	gw := &scriptedGateway{errs: []error{up}}
	r, slept := newTestRetrier(gw, 5)

	_, err := r.Complete(context.Background(), nil)
	var got *UpstreamError
	if !errors.As(err, &got) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if gw.calls != 1 || len(*slept) != 0 {
		t.Errorf("should not retry: calls=%d slept=%v", gw.calls, *slept)
	}
}

func TestRetrier_AuthErrorPassesThrough(t *testing.T) {
	gw := &scriptedGateway{errs: []error{ErrNoCredentials}}
	r, _ := newTestRetrier(gw, 5)

	_, err := r.Complete(context.Background(), nil)
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
	if gw.calls != 1 {
		t.Errorf("calls = %d, want 1", gw.calls)
	}
}

func TestRetrier_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := &scriptedGateway{}
	r, _ := newTestRetrier(gw, 5)

	_, err := r.Complete(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("gateway called despite cancelled context")
	}
}
