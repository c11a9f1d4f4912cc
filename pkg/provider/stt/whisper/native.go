// This file contains the Native transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/voxtype/pkg/audio"
	"github.com/MrWong99/voxtype/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that Native implements stt.Transcriber.
var _ stt.Transcriber = (*Native)(nil)

// Native implements stt.Transcriber using the whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely. The model is loaded once and shared;
// each Transcribe call creates its own whisper context, so concurrent calls
// do not interfere.
type Native struct {
	model      whisperlib.Model
	language   string
	sampleRate int
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithNativeSampleRate sets the sample rate in Hz of the PCM windows passed
// to Transcribe. Defaults to 16000.
func WithNativeSampleRate(rate int) NativeOption {
	return func(n *Native) { n.sampleRate = rate }
}

// NewNative creates a Native transcriber that loads the whisper.cpp model
// from the given file path. The caller must call Close when the transcriber
// is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:      model,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the whisper model. Must be called when the transcriber is no
// longer needed.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over the given mono PCM window and
// returns the concatenated segment text.
func (n *Native) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, n.fail(err)
	}

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := n.model.NewContext()
	if err != nil {
		return stt.Transcript{}, n.fail(fmt.Errorf("create context: %w", err))
	}

	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "error", err)
	}

	if err := wctx.Process(audio.SamplesToFloat32(samples), nil, nil, nil); err != nil {
		return stt.Transcript{}, n.fail(fmt.Errorf("process audio: %w", err))
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, n.fail(fmt.Errorf("read segment: %w", err))
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return stt.Transcript{
		Text:          strings.Join(parts, " "),
		AudioDuration: time.Duration(len(samples)) * time.Second / time.Duration(n.sampleRate),
		Elapsed:       time.Since(start),
	}, nil
}

func (n *Native) fail(err error) error {
	return &stt.TranscriptionError{Backend: "whisper-native", Err: err}
}
