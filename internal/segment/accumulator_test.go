package segment_test

import (
	"testing"
	"time"

	"github.com/MrWong99/voxtype/internal/segment"
	"github.com/MrWong99/voxtype/pkg/audio"
	"github.com/MrWong99/voxtype/pkg/provider/vad"
)

const (
	testSampleRate   = 16000
	testFrameSamples = 480 // 30 ms
	testFrameMs      = 30
)

func testConfig() segment.Config {
	return segment.Config{
		SampleRate:      testSampleRate,
		MinWindowMs:     300,
		OverlapMs:       60,
		AbsoluteFloorMs: 90,
		MaxUtteranceMs:  1200,
		PreRollMs:       90,
	}
}

// frame builds a test frame whose samples all carry the given marker value,
// which lets assertions identify where window content came from.
func frame(t *testing.T, index int, marker int16) audio.Frame {
	t.Helper()
	samples := make([]int16, testFrameSamples)
	for i := range samples {
		samples[i] = marker
	}
	return audio.Frame{
		Samples:   samples,
		Timestamp: time.Duration(index) * testFrameMs * time.Millisecond,
	}
}

func newAccumulator(t *testing.T, cfg segment.Config) *segment.Accumulator {
	t.Helper()
	acc, err := segment.NewAccumulator(cfg)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}
	return acc
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*segment.Config)
	}{
		{"zero sample rate", func(c *segment.Config) { c.SampleRate = 0 }},
		{"zero min window", func(c *segment.Config) { c.MinWindowMs = 0 }},
		{"overlap at min window", func(c *segment.Config) { c.OverlapMs = c.MinWindowMs }},
		{"floor above min window", func(c *segment.Config) { c.AbsoluteFloorMs = c.MinWindowMs + 1 }},
		{"max utterance too small", func(c *segment.Config) { c.MaxUtteranceMs = c.MinWindowMs }},
		{"negative pre-roll", func(c *segment.Config) { c.PreRollMs = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate should fail")
			}
		})
	}

	if err := testConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestCadenceWindowWithOverlap(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.PreRollMs = 0
	acc := newAccumulator(t, cfg)

	var windows []segment.Window
	// 10 speech frames = 300 ms reaches MinWindowMs at frame 10, then
	// 10 more reach it again.
	for i := 0; i < 20; i++ {
		ev := vad.Event{Type: vad.SpeechContinue}
		if i == 0 {
			ev.Type = vad.SpeechStart
		}
		windows = append(windows, acc.Observe(frame(t, i, int16(i+1)), ev)...)
	}

	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}

	first, second := windows[0], windows[1]
	if first.Seq >= second.Seq {
		t.Errorf("sequence numbers not increasing: %d then %d", first.Seq, second.Seq)
	}
	if first.Final || second.Final {
		t.Error("cadence windows must not be final")
	}
	if got := first.Duration(testSampleRate); got != 300*time.Millisecond {
		t.Errorf("first window duration = %v, want 300ms", got)
	}
	// Second window re-sends the 60 ms overlap tail of the first.
	if got := second.Duration(testSampleRate); got != 360*time.Millisecond {
		t.Errorf("second window duration = %v, want 360ms", got)
	}
	// The overlap region carries the markers of frames 9 and 10
	// (frame index 8 and 9, markers 9 and 10).
	if second.Samples[0] != 9 {
		t.Errorf("overlap start marker = %d, want 9", second.Samples[0])
	}
	if second.Start != first.Start+240*time.Millisecond {
		t.Errorf("second window start = %v, want %v", second.Start, first.Start+240*time.Millisecond)
	}
}

func TestFinalWindowOnSpeechEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.PreRollMs = 0
	acc := newAccumulator(t, cfg)

	var windows []segment.Window
	// 10 frames emit a cadence window, 5 more (150 ms unsent, above the
	// 90 ms floor) end with SpeechEnd.
	for i := 0; i < 15; i++ {
		ev := vad.Event{Type: vad.SpeechContinue}
		switch i {
		case 0:
			ev.Type = vad.SpeechStart
		case 14:
			ev.Type = vad.SpeechEnd
		}
		windows = append(windows, acc.Observe(frame(t, i, 1), ev)...)
	}

	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	final := windows[1]
	if !final.Final {
		t.Error("last window should be final")
	}
	// 150 ms unsent plus 60 ms overlap.
	if got := final.Duration(testSampleRate); got != 210*time.Millisecond {
		t.Errorf("final window duration = %v, want 210ms", got)
	}
	if acc.Active() {
		t.Error("accumulator should be inactive after SpeechEnd")
	}
}

func TestRemainderBelowFloorIsDropped(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.PreRollMs = 0
	acc := newAccumulator(t, cfg)

	// 2 frames = 60 ms, below the 90 ms floor.
	var windows []segment.Window
	windows = append(windows, acc.Observe(frame(t, 0, 1), vad.Event{Type: vad.SpeechStart})...)
	windows = append(windows, acc.Observe(frame(t, 1, 1), vad.Event{Type: vad.SpeechEnd})...)

	if len(windows) != 0 {
		t.Fatalf("got %d windows, want 0", len(windows))
	}
	if acc.Active() {
		t.Error("accumulator should be inactive")
	}
}

func TestPreRollPrependedToUtterance(t *testing.T) {
	t.Parallel()

	acc := newAccumulator(t, testConfig())

	// 5 silent frames fill the 90 ms (3 frame) pre-roll ring; only the
	// last 3 survive.
	for i := 0; i < 5; i++ {
		if got := acc.Observe(frame(t, i, int16(i+1)), vad.Event{Type: vad.Silence}); got != nil {
			t.Fatalf("silence produced windows: %v", got)
		}
	}
	acc.Observe(frame(t, 5, 100), vad.Event{Type: vad.SpeechStart})
	var windows []segment.Window
	for i := 6; i < 20 && len(windows) == 0; i++ {
		windows = acc.Observe(frame(t, i, 100), vad.Event{Type: vad.SpeechContinue})
	}
	if len(windows) != 1 {
		t.Fatalf("expected one cadence window, got %d", len(windows))
	}

	w := windows[0]
	// The window starts with the retained pre-roll: markers 3, 4, 5.
	if w.Samples[0] != 3 {
		t.Errorf("window start marker = %d, want 3 (oldest retained pre-roll frame)", w.Samples[0])
	}
	if w.Samples[2*testFrameSamples] != 5 {
		t.Errorf("third pre-roll frame marker = %d, want 5", w.Samples[2*testFrameSamples])
	}
	if w.Samples[3*testFrameSamples] != 100 {
		t.Errorf("first speech frame marker = %d, want 100", w.Samples[3*testFrameSamples])
	}
	// Pre-roll ring held frames 2..4, so the window starts at frame 2.
	if w.Start != 2*testFrameMs*time.Millisecond {
		t.Errorf("window start = %v, want %v", w.Start, 2*testFrameMs*time.Millisecond)
	}
}

func TestMaxUtteranceForcesFlush(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.PreRollMs = 0
	acc := newAccumulator(t, cfg)

	maxSamples := testSampleRate * cfg.MaxUtteranceMs / 1000

	var finals int
	var utterances = map[uint64]bool{}
	// 3 continuous utterances worth of speech.
	for i := 0; i < 3*cfg.MaxUtteranceMs/testFrameMs; i++ {
		ev := vad.Event{Type: vad.SpeechContinue}
		if i == 0 {
			ev.Type = vad.SpeechStart
		}
		for _, w := range acc.Observe(frame(t, i, 1), ev) {
			utterances[w.Utterance] = true
			if len(w.Samples) > maxSamples {
				t.Fatalf("window of %d samples exceeds cap %d", len(w.Samples), maxSamples)
			}
			if w.Final {
				finals++
			}
		}
	}

	if finals < 2 {
		t.Errorf("got %d forced finals, want at least 2", finals)
	}
	if len(utterances) < 3 {
		t.Errorf("speech spanned %d utterances, want at least 3", len(utterances))
	}
	if !acc.Active() {
		t.Error("accumulator should still be active after forced flushes")
	}
}

func TestFlushEndsActiveUtterance(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.PreRollMs = 0
	acc := newAccumulator(t, cfg)

	if _, ok := acc.Flush(); ok {
		t.Error("Flush on inactive accumulator should report ok=false")
	}

	acc.Observe(frame(t, 0, 1), vad.Event{Type: vad.SpeechStart})
	for i := 1; i < 5; i++ {
		acc.Observe(frame(t, i, 1), vad.Event{Type: vad.SpeechContinue})
	}

	w, ok := acc.Flush()
	if !ok {
		t.Fatal("Flush should emit the remainder")
	}
	if !w.Final {
		t.Error("flushed window should be final")
	}
	if got := w.Duration(testSampleRate); got != 150*time.Millisecond {
		t.Errorf("flushed window duration = %v, want 150ms", got)
	}
	if acc.Active() {
		t.Error("accumulator should be inactive after Flush")
	}
}

func TestSpeechContinueWithoutStartBeginsUtterance(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.PreRollMs = 0
	acc := newAccumulator(t, cfg)

	acc.Observe(frame(t, 0, 1), vad.Event{Type: vad.SpeechContinue})
	if !acc.Active() {
		t.Error("SpeechContinue without an active utterance should begin one")
	}
}
