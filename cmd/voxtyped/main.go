// Command voxtyped is the voxtype dictation daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxtype/internal/config"
	"github.com/MrWong99/voxtype/internal/control"
	"github.com/MrWong99/voxtype/internal/health"
	"github.com/MrWong99/voxtype/internal/history"
	historypg "github.com/MrWong99/voxtype/internal/history/postgres"
	"github.com/MrWong99/voxtype/internal/observe"
	"github.com/MrWong99/voxtype/internal/polish"
	"github.com/MrWong99/voxtype/internal/resilience"
	"github.com/MrWong99/voxtype/internal/session"
	"github.com/MrWong99/voxtype/internal/vocab"
	"github.com/MrWong99/voxtype/pkg/provider/stt"
	sttopenai "github.com/MrWong99/voxtype/pkg/provider/stt/openai"
	"github.com/MrWong99/voxtype/pkg/provider/stt/whisper"
	"github.com/MrWong99/voxtype/pkg/provider/vad"
	"github.com/MrWong99/voxtype/pkg/provider/vad/energy"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "voxtype.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxtyped: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxtyped: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := &slog.LevelVar{}
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("voxtyped starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxtype",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Transcription backend chain ───────────────────────────────────────────
	transcriber, err := buildTranscriberChain(cfg, reg)
	if err != nil {
		slog.Error("failed to build transcription backends", "err", err)
		return 1
	}

	// ── Voice activity engine ─────────────────────────────────────────────────
	var vadEngine vad.Engine
	if cfg.Providers.VAD.Name != "" {
		vadEngine, err = reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			slog.Error("failed to create vad provider", "name", cfg.Providers.VAD.Name, "err", err)
			return 1
		}
	} else {
		vadEngine = energy.New()
	}

	// ── History store ─────────────────────────────────────────────────────────
	var closers []func()
	var store history.Store
	var guard *history.Guard
	if dsn := cfg.History.PostgresDSN; dsn != "" {
		pgStore, err := historypg.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect history store", "err", err)
			return 1
		}
		closers = append(closers, pgStore.Close)
		guard = history.NewGuard(pgStore)
		store = guard
		slog.Info("history store connected", "backend", "postgres")
	} else {
		store = history.NewMemoryStore()
		slog.Info("history store in memory only")
	}

	// ── Coordinator ───────────────────────────────────────────────────────────
	coordOpts := []session.Option{
		session.WithMetrics(metrics),
		session.WithHistory(store),
	}
	if len(cfg.Vocabulary) > 0 {
		coordOpts = append(coordOpts, session.WithVocabulary(vocab.New(cfg.Vocabulary)))
		slog.Info("custom vocabulary loaded", "terms", len(cfg.Vocabulary))
	}
	if name := cfg.Providers.Polish.Name; name != "" {
		polisher, err := reg.CreatePolish(cfg.Providers.Polish)
		if err != nil {
			slog.Error("failed to create polish provider", "name", name, "err", err)
			return 1
		}
		coordOpts = append(coordOpts, session.WithPolisher(polisher))
		slog.Info("utterance polishing enabled", "provider", name, "model", cfg.Providers.Polish.Model)
	}

	coord, err := session.New(cfg.Pipeline.SessionConfig(), vadEngine, transcriber, coordOpts...)
	if err != nil {
		slog.Error("failed to create session coordinator", "err", err)
		return 1
	}

	// ── Control server ────────────────────────────────────────────────────────
	checkers := []health.Checker{
		{Name: "history", Optional: true, Check: func(ctx context.Context) error {
			if guard != nil && guard.IsDegraded() {
				return errors.New("history store degraded")
			}
			_, err := store.Recent(ctx, 1)
			return err
		}},
	}
	server := control.NewServer(cfg.Server, coord, metrics, checkers,
		control.WithHistoryStore(store, cfg.History.RecentLimit))

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(config.Diff(old, new), new, reg, coord, logLevel)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	if err := coord.Close(); err != nil {
		slog.Warn("coordinator close error", "err", err)
	}
	for _, closeFn := range closers {
		closeFn()
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if rate := optInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, whisper.WithSampleRate(rate))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		model := entry.Model
		if model == "" {
			model = sttopenai.DefaultModel
		}
		return sttopenai.New(entry.APIKey, model, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(config.ProviderEntry) (vad.Engine, error) {
		return energy.New(), nil
	})

	// ── Polish ────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, mistral, groq share the same pattern:
	// optional APIKey + optional BaseURL. ollama is a local server and uses
	// BaseURL only.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini", "mistral", "groq", "ollama",
	} {
		reg.RegisterPolish(providerName, func(entry config.ProviderEntry) (polish.Polisher, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return polish.New(providerName, entry.Model, opts...)
		})
	}
}

// buildTranscriberChain creates the primary transcription backend and its
// fallbacks, each behind a circuit breaker.
func buildTranscriberChain(cfg *config.Config, reg *config.Registry) (*resilience.TranscriberChain, error) {
	primary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	chain := resilience.NewTranscriberChain(cfg.Providers.STT.Name, primary, resilience.BreakerConfig{})
	for _, entry := range cfg.Providers.STTFallbacks {
		fb, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
		}
		chain.AddFallback(entry.Name, fb)
		slog.Info("provider created", "kind", "stt-fallback", "name", entry.Name)
	}
	return chain, nil
}

// applyConfigChange applies the hot-reloadable parts of a config change. A
// transcription backend swap deliberately leaves the running session's word
// stream intact.
func applyConfigChange(d config.ConfigDiff, cfg *config.Config, reg *config.Registry, coord *session.Coordinator, logLevel *slog.LevelVar) {
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.STTChanged {
		chain, err := buildTranscriberChain(cfg, reg)
		if err != nil {
			slog.Warn("reloaded stt config is unusable, keeping current backends", "err", err)
		} else {
			coord.SwapTranscriber(chain)
		}
	}
	if d.PolishChanged {
		slog.Warn("polish provider changed; restart to apply")
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         voxtype — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	for _, fb := range cfg.Providers.STTFallbacks {
		printProvider("STT fallback", fb.Name, fb.Model)
	}
	vadName := cfg.Providers.VAD.Name
	if vadName == "" {
		vadName = "energy"
	}
	printProvider("VAD", vadName, "")
	printProvider("Polish", cfg.Providers.Polish.Name, cfg.Providers.Polish.Model)
	if cfg.History.PostgresDSN != "" {
		fmt.Printf("║  History         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  History         : %-19s ║\n", "in-memory")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an int value from a provider Options map[string]any. YAML
// decodes integers as int, so a single type assertion suffices.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	v, ok := opts[key]
	if !ok {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		return 0
	}
	return n
}
