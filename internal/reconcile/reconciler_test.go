package reconcile_test

import (
	"reflect"
	"testing"

	"github.com/MrWong99/voxtype/internal/reconcile"
)

func newReconciler(t *testing.T) *reconcile.Reconciler {
	t.Helper()
	r, err := reconcile.New(reconcile.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := (reconcile.Config{Tolerance: 1.5}).Validate(); err == nil {
		t.Error("tolerance above 1 should be rejected")
	}
	if err := (reconcile.Config{Tolerance: -0.1}).Validate(); err == nil {
		t.Error("negative tolerance should be rejected")
	}
	if err := (reconcile.Config{Tolerance: 0.9}).Validate(); err != nil {
		t.Errorf("valid tolerance rejected: %v", err)
	}
}

func TestFirstTranscriptEmitsEverything(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	res := r.Reconcile("the quick brown")
	if want := []string{"the", "quick", "brown"}; !reflect.DeepEqual(res.Words, want) {
		t.Errorf("Words = %v, want %v", res.Words, want)
	}
	if res.Divergence {
		t.Error("first transcript must not flag divergence")
	}
}

func TestGrowingTranscriptEmitsOnlySuffix(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	r.Reconcile("the quick brown")

	res := r.Reconcile("the quick brown fox")
	if want := []string{"fox"}; !reflect.DeepEqual(res.Words, want) {
		t.Errorf("Words = %v, want %v", res.Words, want)
	}
	if res.Divergence {
		t.Error("growing transcript must not flag divergence")
	}
	if want := []string{"the", "quick", "brown", "fox"}; !reflect.DeepEqual(r.Emitted(), want) {
		t.Errorf("Emitted = %v, want %v", r.Emitted(), want)
	}
}

func TestOverlapRegionNotReEmitted(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	first := r.Reconcile("looking real")
	second := r.Reconcile("looking real time")

	if want := []string{"looking", "real"}; !reflect.DeepEqual(first.Words, want) {
		t.Errorf("first Words = %v, want %v", first.Words, want)
	}
	if want := []string{"time"}; !reflect.DeepEqual(second.Words, want) {
		t.Errorf("second Words = %v, want %v", second.Words, want)
	}
}

func TestOverlappingWindowsReconcile(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	r.Reconcile("hello world how")
	r.Reconcile("world how are you")

	want := []string{"hello", "world", "how", "are", "you"}
	if !reflect.DeepEqual(r.Emitted(), want) {
		t.Errorf("Emitted = %v, want %v", r.Emitted(), want)
	}
}

func TestMatchingIgnoresCaseAndPunctuation(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	r.Reconcile("Hello, world.")

	res := r.Reconcile("hello world again")
	if want := []string{"again"}; !reflect.DeepEqual(res.Words, want) {
		t.Errorf("Words = %v, want %v", res.Words, want)
	}
}

func TestFuzzyBoundaryRewording(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	r.Reconcile("turn on the lights")

	// The overlap region got re-transcribed with a near-identical word.
	res := r.Reconcile("the light please")
	if res.Divergence {
		t.Error("near-identical overlap words should match, not diverge")
	}
	if want := []string{"please"}; !reflect.DeepEqual(res.Words, want) {
		t.Errorf("Words = %v, want %v", res.Words, want)
	}
}

func TestDivergenceEmitsFullTranscript(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	r.Reconcile("alpha bravo")

	res := r.Reconcile("completely different words")
	if !res.Divergence {
		t.Error("unmatched transcript should flag divergence")
	}
	if want := []string{"completely", "different", "words"}; !reflect.DeepEqual(res.Words, want) {
		t.Errorf("Words = %v, want %v", res.Words, want)
	}
}

func TestEmptyTranscriptEmitsNothing(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	r.Reconcile("hello")

	res := r.Reconcile("   ")
	if len(res.Words) != 0 || res.Divergence {
		t.Errorf("blank transcript produced %v (divergence %v)", res.Words, res.Divergence)
	}
}

func TestIdenticalTranscriptEmitsNothing(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	r.Reconcile("hello world")

	res := r.Reconcile("hello world")
	if len(res.Words) != 0 {
		t.Errorf("repeat transcript re-emitted %v", res.Words)
	}
}

func TestResetClearsState(t *testing.T) {
	t.Parallel()

	r := newReconciler(t)
	r.Reconcile("hello world")
	r.Reset()

	if got := r.Emitted(); len(got) != 0 {
		t.Fatalf("Emitted after Reset = %v, want empty", got)
	}
	res := r.Reconcile("hello world")
	if want := []string{"hello", "world"}; !reflect.DeepEqual(res.Words, want) {
		t.Errorf("Words after Reset = %v, want %v", res.Words, want)
	}
	if res.Divergence {
		t.Error("first transcript after Reset must not flag divergence")
	}
}
