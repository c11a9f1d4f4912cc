// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// voxtype treats transcription as a batch capability: a Transcriber receives
// a finite audio window and returns the full text for that window. No
// streaming support is assumed — the pipeline's windowing layer exists
// precisely because accuracy-optimised backends (whisper.cpp, hosted Whisper
// APIs) degrade sharply on very short inputs and do not accept incremental
// audio. A backend call may take hundreds of milliseconds and may fail; the
// caller is responsible for keeping such calls off the audio ingestion path.
//
// Implementations must be safe for concurrent use: the pipeline may have
// several window transcriptions in flight at once.
package stt

import (
	"context"
	"fmt"
	"time"
)

// Transcript represents a transcription result for one audio window.
type Transcript struct {
	// Text is the transcribed content of the whole window.
	Text string

	// AudioDuration is the play time of the transcribed window.
	AudioDuration time.Duration

	// Elapsed is the wall-clock time the backend took.
	Elapsed time.Duration
}

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe returns the full text for the given window of mono 16-bit
	// PCM samples at the backend's configured sample rate. An empty Text
	// with a nil error means the backend heard no speech.
	//
	// Implementations must respect ctx cancellation and deadlines; callers
	// use them to abandon windows whose results are no longer wanted.
	Transcribe(ctx context.Context, samples []int16) (Transcript, error)
}

// TranscriptionError wraps a backend failure with the backend's name so
// callers can log and count failures per backend without string matching.
type TranscriptionError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("stt: %s: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TranscriptionError) Unwrap() error { return e.Err }
