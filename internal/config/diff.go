package config

import "fmt"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; in particular a
// transcription backend change is applied to the running session without
// resetting its word stream.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// STTChanged is set when the primary backend or the fallback chain
	// changed.
	STTChanged bool

	// PolishChanged is set when the polish provider entry changed.
	PolishChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !entryEqual(old.Providers.STT, new.Providers.STT) ||
		!entriesEqual(old.Providers.STTFallbacks, new.Providers.STTFallbacks) {
		d.STTChanged = true
	}

	if !entryEqual(old.Providers.Polish, new.Providers.Polish) {
		d.PolishChanged = true
	}

	return d
}

// entryEqual compares provider entries field by field. Options maps are
// compared shallowly by string form of their values.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, av := range a.Options {
		bv, ok := b.Options[k]
		if !ok || fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}

func entriesEqual(a, b []ProviderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !entryEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
