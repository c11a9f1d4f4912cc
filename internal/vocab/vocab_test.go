package vocab_test

import (
	"reflect"
	"testing"

	"github.com/MrWong99/voxtype/internal/vocab"
)

func TestCorrectPhoneticMisrecognition(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Kubernetes", "Grafana", "voxtype"})

	// "kubernetties" is the kind of mangling batch ASR produces for
	// out-of-vocabulary product names.
	corrected, conf, matched := c.Correct("kubernetties")
	if !matched {
		t.Fatalf("Correct(%q): matched=false, want true", "kubernetties")
	}
	if corrected != "Kubernetes" {
		t.Errorf("Correct(%q) = %q, want %q", "kubernetties", corrected, "Kubernetes")
	}
	if conf < 0.7 {
		t.Errorf("Correct(%q): confidence=%f, want >= 0.7", "kubernetties", conf)
	}
}

func TestCorrectExactHitReturnsCanonicalSpelling(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Grafana"})

	corrected, conf, matched := c.Correct("grafana")
	if !matched {
		t.Fatalf("Correct(%q): matched=false, want true", "grafana")
	}
	if corrected != "Grafana" {
		t.Errorf("Correct(%q) = %q, want canonical %q", "grafana", corrected, "Grafana")
	}
	if conf != 1 {
		t.Errorf("Correct(%q): confidence=%f, want 1", "grafana", conf)
	}
}

func TestCorrectLeavesOrdinaryWordsAlone(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Kubernetes", "Grafana"})

	corrected, conf, matched := c.Correct("hello")
	if matched {
		t.Fatalf("Correct(%q): matched=true, want false", "hello")
	}
	if corrected != "hello" {
		t.Errorf("Correct(%q) = %q, want unchanged", "hello", corrected)
	}
	if conf != 0 {
		t.Errorf("Correct(%q): confidence=%f, want 0", "hello", conf)
	}
}

func TestCorrectMultiWordTerm(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"pull request", "Kubernetes"})

	corrected, _, matched := c.Correct("pool request")
	if !matched {
		t.Fatalf("Correct(%q): matched=false, want true", "pool request")
	}
	if corrected != "pull request" {
		t.Errorf("Correct(%q) = %q, want %q", "pool request", corrected, "pull request")
	}
}

func TestThresholdFiltering(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Kubernetes"},
		vocab.WithPhoneticThreshold(0.99),
		vocab.WithFuzzyThreshold(0.99),
	)

	if _, _, matched := c.Correct("kubernetties"); matched {
		t.Fatal("thresholds of 0.99 should reject near-matches")
	}
}

func TestCorrectAll(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"Kubernetes"})

	in := []string{"deploy", "to", "cooper netties", "today"}
	got := c.CorrectAll(in)
	want := []string{"deploy", "to", "Kubernetes", "today"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CorrectAll(%v) = %v, want %v", in, got, want)
	}
	if in[2] != "cooper netties" {
		t.Error("CorrectAll modified its input slice")
	}
}

func TestEmptyCorrector(t *testing.T) {
	t.Parallel()

	c := vocab.New(nil)
	if !c.Empty() {
		t.Error("Empty() = false for a corrector with no terms")
	}

	corrected, conf, matched := c.Correct("anything")
	if matched || corrected != "anything" || conf != 0 {
		t.Errorf("Correct on empty corrector = (%q, %f, %t), want unchanged", corrected, conf, matched)
	}

	words := []string{"a", "b"}
	if got := c.CorrectAll(words); !reflect.DeepEqual(got, words) {
		t.Errorf("CorrectAll on empty corrector = %v, want input", got)
	}

	if !vocab.New([]string{"", "   "}).Empty() {
		t.Error("whitespace-only terms should be discarded")
	}
}
