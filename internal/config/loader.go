package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":    {"whisper", "whisper-native", "openai"},
	"vad":    {"energy"},
	"polish": {"openai", "anthropic", "gemini", "ollama", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Pipeline coherence, checked on the fully defaulted form so a partial
	// section cannot pass here and fail at session start.
	if err := cfg.Pipeline.SessionConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}

	// Provider name validation, warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	for _, fb := range cfg.Providers.STTFallbacks {
		validateProviderName("stt", fb.Name)
	}
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("polish", cfg.Providers.Polish.Name)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required; dictation cannot run without a transcription backend"))
	}
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
	}
	if cfg.Providers.Polish.Name != "" && cfg.Providers.Polish.Model == "" {
		errs = append(errs, errors.New("providers.polish.model is required when a polish provider is configured"))
	}

	// History availability
	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; utterance history will not survive restarts")
	}
	if cfg.History.RecentLimit < 0 {
		errs = append(errs, fmt.Errorf("history.recent_limit must not be negative, got %d", cfg.History.RecentLimit))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
