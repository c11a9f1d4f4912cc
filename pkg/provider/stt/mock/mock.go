// Package mock provides a scripted in-memory implementation of
// stt.Transcriber for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/voxtype/pkg/provider/stt"
)

// Ensure Transcriber implements the stt.Transcriber interface.
var _ stt.Transcriber = (*Transcriber)(nil)

// Result scripts the outcome of a single Transcribe call.
type Result struct {
	Text string
	// Delay is slept before returning, which lets tests force
	// out-of-order completion of concurrent calls.
	Delay time.Duration
	Err   error
}

// Call records the samples passed to one Transcribe invocation.
type Call struct {
	Samples []int16
}

// Transcriber is a scripted stt.Transcriber. Each Transcribe call consumes
// the next Result from Script; when the script is exhausted, Default is
// returned. Safe for concurrent use.
type Transcriber struct {
	mu      sync.Mutex
	pos     int
	calls   []Call
	Script  []Result
	Default Result
}

// Transcribe returns the next scripted result. It honors ctx cancellation
// while sleeping a scripted Delay.
func (t *Transcriber) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	t.mu.Lock()
	cp := make([]int16, len(samples))
	copy(cp, samples)
	t.calls = append(t.calls, Call{Samples: cp})

	res := t.Default
	if t.pos < len(t.Script) {
		res = t.Script[t.pos]
		t.pos++
	}
	t.mu.Unlock()

	if res.Delay > 0 {
		select {
		case <-time.After(res.Delay):
		case <-ctx.Done():
			return stt.Transcript{}, &stt.TranscriptionError{Backend: "mock", Err: ctx.Err()}
		}
	}

	if res.Err != nil {
		return stt.Transcript{}, &stt.TranscriptionError{Backend: "mock", Err: res.Err}
	}
	return stt.Transcript{
		Text:          res.Text,
		AudioDuration: time.Duration(len(samples)) * time.Second / 16000,
		Elapsed:       res.Delay,
	}, nil
}

// Calls returns a snapshot of all recorded invocations.
func (t *Transcriber) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// CallCount returns the number of Transcribe invocations so far.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// Reset clears recorded calls and rewinds the script.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
	t.pos = 0
}
