// Package reconcile deduplicates overlapping window transcripts into a stream
// of net-new words.
//
// Each transcription window overlaps its predecessor, so every transcript
// repeats words already emitted from the overlap region. The reconciler keeps
// the ordered sequence of words emitted for the current utterance and, for
// each new transcript, emits only the suffix past the longest match between
// the emitted tail and the transcript's head. Word comparison is
// case-insensitive, punctuation-normalized, and tolerates minor boundary
// re-wording via Jaro-Winkler similarity, since ASR output is not stable
// under growing audio context.
package reconcile

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// DefaultTolerance is the Jaro-Winkler similarity above which two normalized
// words are considered the same during prefix matching.
const DefaultTolerance = 0.84

// Config holds reconciler parameters.
type Config struct {
	// Tolerance is the minimum Jaro-Winkler similarity for two words to
	// match. Zero selects DefaultTolerance.
	Tolerance float64
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Tolerance < 0 || c.Tolerance > 1 {
		return fmt.Errorf("reconcile: tolerance must be in [0, 1], got %g", c.Tolerance)
	}
	return nil
}

// Result is the outcome of reconciling one window transcript.
type Result struct {
	// Words are the genuinely new words to push downstream, in order.
	Words []string
	// Divergence is set when no prefix overlap with the emitted tail was
	// found and the full transcript was emitted as a fallback.
	Divergence bool
}

// Reconciler computes the net-new word suffix of each window transcript.
// State is scoped to one utterance and cleared only by an explicit Reset;
// in particular, configuration changes elsewhere in the system must never
// clear it. Not safe for concurrent use.
type Reconciler struct {
	tolerance float64

	// emitted holds the words pushed downstream so far, with their
	// normalized forms kept in lockstep for matching.
	emitted    []string
	normalized []string
}

// New creates a Reconciler.
func New(cfg Config) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tol := cfg.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	return &Reconciler{tolerance: tol}, nil
}

// Reconcile consumes one window transcript and returns the words to emit.
// An empty or all-whitespace transcript emits nothing.
func (r *Reconciler) Reconcile(transcript string) Result {
	tokens := strings.Fields(transcript)
	if len(tokens) == 0 {
		return Result{}
	}

	norms := make([]string, len(tokens))
	for i, tok := range tokens {
		norms[i] = normalizeWord(tok)
	}

	overlap := r.longestOverlap(tokens, norms)

	res := Result{Words: tokens[overlap:]}
	if overlap == 0 && len(r.emitted) > 0 {
		res.Divergence = true
	}

	r.emitted = append(r.emitted, tokens[overlap:]...)
	r.normalized = append(r.normalized, norms[overlap:]...)
	return res
}

// Emitted returns a snapshot of all words emitted for the current utterance.
func (r *Reconciler) Emitted() []string {
	out := make([]string, len(r.emitted))
	copy(out, r.emitted)
	return out
}

// Reset clears the emitted-word state. Called exactly once per utterance or
// session boundary, never implicitly.
func (r *Reconciler) Reset() {
	r.emitted = nil
	r.normalized = nil
}

// longestOverlap finds the largest k for which the last k emitted words match
// the first k new tokens word-for-word.
func (r *Reconciler) longestOverlap(tokens, norms []string) int {
	max := len(r.emitted)
	if len(tokens) < max {
		max = len(tokens)
	}
	for k := max; k > 0; k-- {
		if r.tailMatches(norms[:k]) {
			return k
		}
	}
	return 0
}

func (r *Reconciler) tailMatches(head []string) bool {
	tail := r.normalized[len(r.normalized)-len(head):]
	for i := range head {
		if !r.wordsEqual(tail[i], head[i]) {
			return false
		}
	}
	return true
}

func (r *Reconciler) wordsEqual(a, b string) bool {
	if a == b {
		return a != ""
	}
	if a == "" || b == "" {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= r.tolerance
}

// normalizeWord lowercases a token and strips everything that is not a letter
// or digit, so "Hello," and "hello" compare equal.
func normalizeWord(tok string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(tok) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
