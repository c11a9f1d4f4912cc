// Package vad defines the frame-classification interfaces for Voice Activity
// Detection backends and the hysteresis [Detector] that turns per-frame
// speech probabilities into discrete utterance transitions.
//
// The split mirrors how VAD models actually work: a [Classifier] is a
// low-level, per-frame speech/non-speech scorer (an energy model, WebRTC
// VAD, or a Silero-style neural model) with no notion of utterances.
// The [Detector] layers run-length hysteresis on top so that a single noisy
// frame does not flip the speaking state — starting speech requires a short
// run of speech frames, ending it requires a longer run of silence frames.
//
// VAD is synchronous by design: classification returns immediately, making
// it suitable for the low-latency pipeline stage that gates transcription
// input. A Classifier or Detector must not be shared across goroutines;
// create one per audio stream.
package vad

import "fmt"

// Config holds the parameters for a VAD classifier and detector pair.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to Classify. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameMs is the duration of each audio frame in milliseconds. Frame
	// classifiers operate on fixed frame sizes (10, 20, 30 ms classic modes,
	// or 32 ms for Silero-style models at 8/16 kHz).
	FrameMs int

	// Aggressiveness tunes how readily the classifier scores a frame as
	// speech, 0 (permissive) to 3 (strict). Higher values reduce false
	// positives at the cost of clipping quiet speech onsets.
	Aggressiveness int

	// SpeechProbability is the classifier probability above which a frame
	// counts as speech. Range: [0.0, 1.0]. Typical: 0.5.
	SpeechProbability float64

	// SpeechFrames is the number of consecutive speech frames required to
	// enter the speaking state. Typical: 2–3.
	SpeechFrames int

	// SilenceFrames is the number of consecutive silence frames required to
	// leave the speaking state. Deliberately larger than SpeechFrames so
	// that brief pauses inside a sentence do not end the utterance.
	// Typical: 8–10.
	SilenceFrames int
}

// Validate reports whether cfg is a coherent set of values.
func (cfg Config) Validate() error {
	if cfg.Aggressiveness < 0 || cfg.Aggressiveness > 3 {
		return fmt.Errorf("vad: aggressiveness %d out of range [0,3]", cfg.Aggressiveness)
	}
	if cfg.SpeechProbability < 0 || cfg.SpeechProbability > 1 {
		return fmt.Errorf("vad: speech probability %.2f out of range [0,1]", cfg.SpeechProbability)
	}
	if cfg.SpeechFrames < 1 {
		return fmt.Errorf("vad: speech frames must be >= 1, got %d", cfg.SpeechFrames)
	}
	if cfg.SilenceFrames < 1 {
		return fmt.Errorf("vad: silence frames must be >= 1, got %d", cfg.SilenceFrames)
	}
	return nil
}

// Classifier scores a single fixed-size audio frame. Implementations may
// keep internal smoothing state (noise floor estimates, model hidden state);
// Reset clears that state at session boundaries.
//
// A Classifier is not safe for concurrent use.
type Classifier interface {
	// Classify returns the speech probability (0.0–1.0) for one frame of
	// mono 16-bit PCM samples. The frame must carry exactly the sample
	// count implied by the Config the classifier was created with; an error
	// is returned otherwise.
	Classify(samples []int16) (float64, error)

	// Reset clears accumulated scoring state without closing the classifier.
	Reset()
}

// Engine is the factory for frame classifiers. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewClassifier simultaneously to create independent classifiers.
type Engine interface {
	// NewClassifier creates a classifier for the given configuration.
	// Returns an error if the configuration is invalid (unsupported sample
	// rate, frame size, or threshold out of range).
	NewClassifier(cfg Config) (Classifier, error)
}
