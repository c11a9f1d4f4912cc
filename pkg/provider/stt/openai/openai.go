// Package openai provides a batch transcriber backed by the OpenAI audio
// transcription API. With a custom base URL it also works against
// OpenAI-compatible endpoints such as Groq.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voxtype/pkg/audio"
	"github.com/MrWong99/voxtype/pkg/provider/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = "whisper-1"

const defaultSampleRate = 16000

// Ensure Transcriber implements the stt.Transcriber interface.
var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber implements stt.Transcriber using the OpenAI audio API.
// Safe for concurrent use.
type Transcriber struct {
	client     oai.Client
	model      string
	language   string
	sampleRate int
}

// config holds optional configuration for the transcriber.
type config struct {
	baseURL    string
	language   string
	sampleRate int
	timeout    time.Duration
}

// Option is a functional option for Transcriber.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to point
// the transcriber at an OpenAI-compatible service (e.g., Groq).
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithLanguage sets the ISO-639-1 language hint sent with each request.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithSampleRate sets the sample rate in Hz of the PCM windows passed to
// Transcribe. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(c *config) {
		c.sampleRate = rate
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI Transcriber.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{sampleRate: defaultSampleRate}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Transcriber{
		client:     oai.NewClient(reqOpts...),
		model:      model,
		language:   cfg.language,
		sampleRate: cfg.sampleRate,
	}, nil
}

// Transcribe encodes samples as WAV and submits them to the audio
// transcriptions endpoint. Failures are returned as *stt.TranscriptionError.
func (t *Transcriber) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	start := time.Now()

	wav := audio.EncodeWAV(samples, t.sampleRate)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, &stt.TranscriptionError{
			Backend: "openai",
			Err:     fmt.Errorf("transcribe: %w", err),
		}
	}

	return stt.Transcript{
		Text:          strings.TrimSpace(resp.Text),
		AudioDuration: time.Duration(len(samples)) * time.Second / time.Duration(t.sampleRate),
		Elapsed:       time.Since(start),
	}, nil
}
