package polish

import "testing"

func TestNewRejectsInvalidArguments(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("empty provider name should be rejected")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("empty model should be rejected")
	}
	if _, err := New("carrier-pigeon", "gpt-4o-mini"); err == nil {
		t.Error("unknown provider name should be rejected")
	}
}

func TestNewSupportedProviders(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"ollama", "Ollama"} {
		if _, err := New(name, "llama3.2"); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
}
