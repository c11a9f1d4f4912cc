// Package segment buffers speech audio into utterances and cuts them into
// overlapping windows for batch transcription.
//
// The transcription backends are accuracy-optimized for batch invocation;
// windows of tens of milliseconds degrade accuracy sharply. The accumulator
// therefore emits windows of several hundred milliseconds, each overlapping
// its predecessor so that a word spanning a window boundary is never lost.
// The word-level duplication this causes is resolved downstream by the
// reconciler.
package segment

import (
	"fmt"
	"time"

	"github.com/MrWong99/voxtype/pkg/audio"
	"github.com/MrWong99/voxtype/pkg/provider/vad"
)

// Config holds the windowing parameters for an Accumulator.
type Config struct {
	// SampleRate is the sample rate in Hz of incoming frames.
	SampleRate int
	// MinWindowMs is the minimum unsent audio duration that triggers a
	// mid-utterance window emission.
	MinWindowMs int
	// OverlapMs is the trailing duration each window shares with its
	// predecessor.
	OverlapMs int
	// AbsoluteFloorMs is the minimum duration for the final window of an
	// utterance. Shorter remainders are discarded as non-speech noise.
	AbsoluteFloorMs int
	// MaxUtteranceMs bounds the utterance buffer. Reaching it forces a
	// final flush and starts a fresh utterance.
	MaxUtteranceMs int
	// PreRollMs is the duration of pre-speech audio retained while silent
	// and prepended to a new utterance, so that the first word is not
	// clipped by detection latency.
	PreRollMs int
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("segment: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.MinWindowMs <= 0 {
		return fmt.Errorf("segment: min window must be positive, got %d ms", c.MinWindowMs)
	}
	if c.OverlapMs < 0 || c.OverlapMs >= c.MinWindowMs {
		return fmt.Errorf("segment: overlap must be in [0, min window), got %d ms", c.OverlapMs)
	}
	if c.AbsoluteFloorMs < 0 || c.AbsoluteFloorMs > c.MinWindowMs {
		return fmt.Errorf("segment: absolute floor must be in [0, min window], got %d ms", c.AbsoluteFloorMs)
	}
	if c.MaxUtteranceMs < 2*c.MinWindowMs {
		return fmt.Errorf("segment: max utterance must be at least twice the min window, got %d ms", c.MaxUtteranceMs)
	}
	if c.PreRollMs < 0 {
		return fmt.Errorf("segment: pre-roll must not be negative, got %d ms", c.PreRollMs)
	}
	return nil
}

// Window is a contiguous slice of an utterance submitted for transcription.
type Window struct {
	// Seq is the submission sequence number, monotonically increasing
	// across the accumulator's lifetime. Transcription results must be
	// applied in Seq order.
	Seq uint64
	// Utterance identifies which utterance the window belongs to. A new
	// utterance starts on speech onset and on a forced flush.
	Utterance uint64
	// Samples is mono 16-bit PCM. The slice is owned by the caller.
	Samples []int16
	// Start is the stream timestamp of the first sample.
	Start time.Duration
	// Final marks the last window of its utterance.
	Final bool
}

// Duration returns the audio duration of the window at the given sample rate.
func (w Window) Duration(sampleRate int) time.Duration {
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(sampleRate)
}

// Accumulator owns the buffer for the active utterance. It is not safe for
// concurrent use; the pipeline drives it from a single goroutine.
type Accumulator struct {
	cfg Config

	minWindowSamples int
	overlapSamples   int
	floorSamples     int
	maxSamples       int
	preRollSamples   int

	// preRoll holds the most recent silent audio, bounded to preRollSamples.
	preRoll   []int16
	preRollTs time.Duration

	// buf is the active utterance. sent is the index up to which audio has
	// already been submitted in a window.
	buf     []int16
	bufTs   time.Duration
	sent    int
	active  bool
	seq     uint64
	utterID uint64
}

// NewAccumulator creates an Accumulator with the given windowing parameters.
func NewAccumulator(cfg Config) (*Accumulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	toSamples := func(ms int) int { return cfg.SampleRate * ms / 1000 }
	return &Accumulator{
		cfg:              cfg,
		minWindowSamples: toSamples(cfg.MinWindowMs),
		overlapSamples:   toSamples(cfg.OverlapMs),
		floorSamples:     toSamples(cfg.AbsoluteFloorMs),
		maxSamples:       toSamples(cfg.MaxUtteranceMs),
		preRollSamples:   toSamples(cfg.PreRollMs),
	}, nil
}

// Active reports whether an utterance is currently being buffered.
func (a *Accumulator) Active() bool { return a.active }

// Observe feeds one frame together with its voice-activity event and returns
// the windows (if any) that became due. At most two windows are returned per
// call (a forced final plus nothing else, or one cadence window).
func (a *Accumulator) Observe(frame audio.Frame, ev vad.Event) []Window {
	switch ev.Type {
	case vad.SpeechStart:
		a.begin(frame)
		return a.append(frame)
	case vad.SpeechContinue:
		if !a.active {
			// Detector and accumulator disagree, e.g. after a forced
			// flush. Restart the utterance rather than drop audio.
			a.begin(frame)
		}
		return a.append(frame)
	case vad.SpeechEnd:
		windows := a.append(frame)
		if w, ok := a.finish(); ok {
			windows = append(windows, w)
		}
		return windows
	default:
		a.bufferPreRoll(frame)
		return nil
	}
}

// Flush ends the active utterance as if speech had ended, returning the final
// window when the unsent remainder clears the floor. It returns ok=false when
// no utterance is active or the remainder is too short.
func (a *Accumulator) Flush() (Window, bool) {
	if !a.active {
		return Window{}, false
	}
	return a.finish()
}

// Reset discards all buffered audio, including the pre-roll. Sequence and
// utterance counters keep advancing so stale windows stay distinguishable.
func (a *Accumulator) Reset() {
	a.buf = nil
	a.sent = 0
	a.active = false
	a.preRoll = nil
}

func (a *Accumulator) begin(frame audio.Frame) {
	a.utterID++
	a.sent = 0
	a.buf = a.buf[:0]
	if len(a.preRoll) > 0 {
		a.buf = append(a.buf, a.preRoll...)
		a.bufTs = a.preRollTs
		a.preRoll = a.preRoll[:0]
	} else {
		a.bufTs = frame.Timestamp
	}
	a.active = true
}

func (a *Accumulator) append(frame audio.Frame) []Window {
	a.buf = append(a.buf, frame.Samples...)

	if len(a.buf) >= a.maxSamples {
		// Buffer bound reached: force a final flush and start over so
		// memory stays capped on pathologically long speech.
		var windows []Window
		if w, ok := a.finish(); ok {
			windows = append(windows, w)
		}
		a.utterID++
		a.buf = a.buf[:0]
		a.sent = 0
		a.bufTs = frame.Timestamp + frame.Duration(a.cfg.SampleRate)
		a.active = true
		return windows
	}

	if len(a.buf)-a.sent >= a.minWindowSamples {
		start := a.sent - a.overlapSamples
		if start < 0 {
			start = 0
		}
		w := a.window(start, len(a.buf), false)
		a.sent = len(a.buf)
		return []Window{w}
	}
	return nil
}

// finish emits the final window of the active utterance and releases its
// buffer. The remainder below the absolute floor is dropped as noise.
func (a *Accumulator) finish() (Window, bool) {
	defer func() {
		a.buf = nil
		a.sent = 0
		a.active = false
	}()

	unsent := len(a.buf) - a.sent
	if unsent < a.floorSamples || unsent == 0 {
		return Window{}, false
	}
	start := a.sent - a.overlapSamples
	if start < 0 {
		start = 0
	}
	return a.window(start, len(a.buf), true), true
}

func (a *Accumulator) window(start, end int, final bool) Window {
	samples := make([]int16, end-start)
	copy(samples, a.buf[start:end])
	a.seq++
	return Window{
		Seq:       a.seq,
		Utterance: a.utterID,
		Samples:   samples,
		Start:     a.bufTs + time.Duration(start)*time.Second/time.Duration(a.cfg.SampleRate),
		Final:     final,
	}
}

// bufferPreRoll retains the most recent silent audio, trimming the front to
// keep at most preRollSamples.
func (a *Accumulator) bufferPreRoll(frame audio.Frame) {
	if a.preRollSamples == 0 {
		return
	}
	if len(a.preRoll) == 0 {
		a.preRollTs = frame.Timestamp
	}
	a.preRoll = append(a.preRoll, frame.Samples...)
	if excess := len(a.preRoll) - a.preRollSamples; excess > 0 {
		a.preRoll = a.preRoll[excess:]
		a.preRollTs += time.Duration(excess) * time.Second / time.Duration(a.cfg.SampleRate)
	}
}
