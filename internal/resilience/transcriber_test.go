package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/voxtype/pkg/provider/stt"
	sttmock "github.com/MrWong99/voxtype/pkg/provider/stt/mock"
)

func TestChainUsesPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Default: sttmock.Result{Text: "primary"}}
	fallback := &sttmock.Transcriber{Default: sttmock.Result{Text: "fallback"}}

	chain := NewTranscriberChain("primary", primary, BreakerConfig{})
	chain.AddFallback("fallback", fallback)

	tr, err := chain.Transcribe(context.Background(), make([]int16, 160))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "primary" {
		t.Errorf("Text = %q, want %q", tr.Text, "primary")
	}
	if fallback.CallCount() != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.CallCount())
	}
}

func TestChainFailsOverOnError(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Default: sttmock.Result{Err: errBoom}}
	fallback := &sttmock.Transcriber{Default: sttmock.Result{Text: "fallback"}}

	chain := NewTranscriberChain("primary", primary, BreakerConfig{})
	chain.AddFallback("fallback", fallback)

	tr, err := chain.Transcribe(context.Background(), make([]int16, 160))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "fallback" {
		t.Errorf("Text = %q, want %q", tr.Text, "fallback")
	}
}

func TestChainSkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Default: sttmock.Result{Err: errBoom}}
	fallback := &sttmock.Transcriber{Default: sttmock.Result{Text: "fallback"}}

	chain := NewTranscriberChain("primary", primary, BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	chain.AddFallback("fallback", fallback)

	ctx := context.Background()
	samples := make([]int16, 160)
	for i := 0; i < 4; i++ {
		if _, err := chain.Transcribe(ctx, samples); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	// Breaker opened after 2 failures; the last 2 calls must not have
	// reached the primary.
	if got := primary.CallCount(); got != 2 {
		t.Errorf("primary called %d times, want 2", got)
	}
	if got := fallback.CallCount(); got != 4 {
		t.Errorf("fallback called %d times, want 4", got)
	}
}

func TestChainAllBackendsFailed(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Default: sttmock.Result{Err: errBoom}}
	chain := NewTranscriberChain("primary", primary, BreakerConfig{})

	_, err := chain.Transcribe(context.Background(), make([]int16, 160))
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Errorf("err = %v, want ErrAllBackendsFailed", err)
	}
	var terr *stt.TranscriptionError
	if !errors.As(err, &terr) {
		t.Errorf("err = %v, should wrap *stt.TranscriptionError", err)
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Default: sttmock.Result{Delay: time.Second}}
	fallback := &sttmock.Transcriber{Default: sttmock.Result{Text: "fallback"}}

	chain := NewTranscriberChain("primary", primary, BreakerConfig{})
	chain.AddFallback("fallback", fallback)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := chain.Transcribe(ctx, make([]int16, 160)); err == nil {
		t.Fatal("Transcribe should fail on cancelled context")
	}
	if fallback.CallCount() != 0 {
		t.Error("cancellation must not trigger failover")
	}
}
