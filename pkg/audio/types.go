// Package audio provides the PCM primitives shared by the voxtype pipeline:
// the fixed-size Frame model, the Normalizer that reshapes arbitrary capture
// chunks into classifier-sized frames, and WAV/PCM conversion helpers.
//
// All audio in the pipeline is signed 16-bit little-endian PCM, mono. The
// capture collaborator may deliver chunks of any length; the [Normalizer]
// is the only component that deals with chunk boundaries. Everything
// downstream sees exact-size frames only.
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Frame is a fixed-duration block of mono 16-bit PCM samples — the atomic
// unit of voice-activity classification. Frames produced by a [Normalizer]
// always carry exactly the configured sample count; consumers may rely on
// len(Samples) without re-checking.
type Frame struct {
	// Samples is the PCM payload. Length is fixed per Normalizer config.
	Samples []int16

	// Timestamp marks the frame's start relative to session start.
	Timestamp time.Duration
}

// Duration returns the frame's play time at the given sample rate.
func (f Frame) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(sampleRate)
}

// FrameSizeError reports a frame duration that no supported classifier mode
// accepts for the given sample rate.
type FrameSizeError struct {
	FrameMs    int
	SampleRate int
}

// Error implements the error interface.
func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("audio: unsupported frame size %d ms at %d Hz (supported: 10, 20, 30 ms; 32 ms at 8/16 kHz)", e.FrameMs, e.SampleRate)
}

// supportedRates lists the sample rates frame classifiers operate on.
var supportedRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

// FrameSamples returns the per-frame sample count for the given rate and
// frame duration. Supported durations are the classic classifier modes
// (10, 20, 30 ms at 8/16/32/48 kHz) plus the 32 ms mode used by
// Silero-style models at 8 and 16 kHz (256 and 512 samples).
// Returns a *FrameSizeError for any other combination.
func FrameSamples(sampleRate, frameMs int) (int, error) {
	if !supportedRates[sampleRate] {
		return 0, &FrameSizeError{FrameMs: frameMs, SampleRate: sampleRate}
	}
	switch frameMs {
	case 10, 20, 30:
		return sampleRate * frameMs / 1000, nil
	case 32:
		if sampleRate == 8000 || sampleRate == 16000 {
			return sampleRate * frameMs / 1000, nil
		}
	}
	return 0, &FrameSizeError{FrameMs: frameMs, SampleRate: sampleRate}
}
