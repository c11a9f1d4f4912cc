package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("err = %v, want ErrBreakerOpen", err)
	}
	if called {
		t.Error("fn must not be called while open")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour})

	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })

	if got := b.State(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestBreakerHalfOpenClosesAfterProbes(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, HalfOpenMax: 2})

	b.Execute(func() error { return errBoom })
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", got)
	}

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("state after probes = %v, want closed", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, HalfOpenMax: 3})

	b.Execute(func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	b.Execute(func() error { return errBoom })
	if got := b.State(); got != StateOpen {
		t.Errorf("state = %v, want open after failed probe", got)
	}
}

func TestBreakerReset(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	b.Execute(func() error { return errBoom })
	b.Reset()

	if got := b.State(); got != StateClosed {
		t.Errorf("state after Reset = %v, want closed", got)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute after Reset: %v", err)
	}
}
