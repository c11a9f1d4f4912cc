// Package polish restores punctuation and capitalisation on dictated text
// with an LLM pass.
//
// Batch ASR output for short windows is frequently lowercase and unpunctuated.
// The polisher runs once per completed utterance, after reconciliation, so the
// real-time word stream is never delayed by LLM latency.
package polish

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

const systemPrompt = `You restore punctuation and capitalisation in dictated text.
Return the corrected text and nothing else.
Do not add, remove, or reorder words. Do not answer questions in the text.`

// Polisher produces a cleaned-up rendition of one utterance's text.
type Polisher interface {
	// Polish returns text with punctuation and capitalisation restored.
	Polish(ctx context.Context, text string) (string, error)
}

// LLM implements [Polisher] by wrapping github.com/mozilla-ai/any-llm-go.
// Safe for concurrent use.
type LLM struct {
	backend     anyllmlib.Provider
	model       string
	temperature float64
	maxTokens   int
}

// Compile-time check that LLM satisfies Polisher.
var _ Polisher = (*LLM)(nil)

// New creates an LLM polisher backed by the given provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral", "groq". opts are any-llm-go configuration options (e.g.,
// anyllmlib.WithAPIKey, anyllmlib.WithBaseURL); without an API key option the
// backend falls back to its environment variable.
func New(providerName, model string, opts ...anyllmlib.Option) (*LLM, error) {
	if providerName == "" {
		return nil, fmt.Errorf("polish: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("polish: model must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("polish: create %q backend: %w", providerName, err)
	}
	return &LLM{
		backend:     backend,
		model:       model,
		temperature: 0.1,
		maxTokens:   512,
	}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral, groq", providerName)
	}
}

// Polish implements [Polisher]. On any backend failure the caller should fall
// back to the raw text; Polish never fabricates content on error.
func (l *LLM) Polish(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	temp := l.temperature
	maxTokens := l.maxTokens
	params := anyllmlib.CompletionParams{
		Model: l.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: text},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}

	resp, err := l.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("polish: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("polish: empty choices in response")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	if out == "" {
		return text, nil
	}
	return out, nil
}
