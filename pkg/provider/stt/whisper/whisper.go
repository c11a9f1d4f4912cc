// Package whisper provides whisper.cpp-backed implementations of
// [stt.Transcriber].
//
// Two backends are available:
//
//   - [Client] talks to a running whisper-server binary over its REST API
//     (POST /inference with a multipart WAV upload). No CGO required.
//   - [Native] (native.go) loads a ggml model in-process through the
//     whisper.cpp Go bindings, eliminating HTTP overhead. Requires
//     libwhisper.a and whisper.h at link time.
//
// Both accept mono 16-bit PCM windows and return the full window text.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voxtype/pkg/audio"
	"github.com/MrWong99/voxtype/pkg/provider/stt"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second
)

// Compile-time assertion that Client implements stt.Transcriber.
var _ stt.Transcriber = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the whisper-server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLanguage sets the BCP-47 language code sent to the server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithSampleRate sets the sample rate in Hz of the PCM windows passed to
// Transcribe. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(c *Client) { c.sampleRate = rate }
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
// Useful in tests and for custom transport configuration.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client implements stt.Transcriber against a whisper-server REST endpoint.
// Safe for concurrent use.
type Client struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// New creates a Client for the whisper-server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Transcribe encodes samples as WAV and POSTs them to the /inference
// endpoint as multipart/form-data. Failures are returned as
// *stt.TranscriptionError.
func (c *Client) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	start := time.Now()

	wav := audio.EncodeWAV(samples, c.sampleRate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return stt.Transcript{}, c.fail(fmt.Errorf("create form file: %w", err))
	}
	if _, err := fw.Write(wav); err != nil {
		return stt.Transcript{}, c.fail(fmt.Errorf("write wav data: %w", err))
	}
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return stt.Transcript{}, c.fail(fmt.Errorf("write language field: %w", err))
		}
	}
	if c.model != "" {
		if err := mw.WriteField("model", c.model); err != nil {
			return stt.Transcript{}, c.fail(fmt.Errorf("write model field: %w", err))
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, c.fail(fmt.Errorf("close multipart writer: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", &body)
	if err != nil {
		return stt.Transcript{}, c.fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, c.fail(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, c.fail(fmt.Errorf("server returned HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcript{}, c.fail(fmt.Errorf("read response body: %w", err))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return stt.Transcript{}, c.fail(fmt.Errorf("parse JSON response: %w", err))
	}

	return stt.Transcript{
		Text:          strings.TrimSpace(result.Text),
		AudioDuration: time.Duration(len(samples)) * time.Second / time.Duration(c.sampleRate),
		Elapsed:       time.Since(start),
	}, nil
}

func (c *Client) fail(err error) error {
	return &stt.TranscriptionError{Backend: "whisper-server", Err: err}
}
