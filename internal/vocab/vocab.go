// Package vocab corrects misrecognized words against a user-defined
// vocabulary using Double Metaphone phonetic encoding combined with
// Jaro-Winkler string similarity for ranked candidate selection.
//
// Transcription backends reliably mangle names and domain jargon the model
// never saw ("eldrinax" comes back as "elder nacks"). A Corrector holds the
// user's custom terms and rewrites an emitted word to the closest term when
// the two are phonetically compatible and sufficiently similar.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the word and for each term. If any code overlaps, the term becomes a
//     phonetic candidate.
//
//  2. Jaro-Winkler ranking: Among phonetic candidates, the term with the
//     highest Jaro-Winkler similarity (computed on the original strings,
//     case-insensitive) is selected, provided its score exceeds the
//     configurable phonetic threshold. When no phonetic candidate is found,
//     a secondary pass tests pure Jaro-Winkler similarity against all terms
//     using a higher fuzzy threshold (default 0.85).
//
// Multi-word terms (e.g., "pull request") are supported: the corrector
// computes phonetic codes for each word and considers the best pairwise score
// across all word pairs when ranking candidates.
package vocab

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the corrector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// term is one vocabulary entry with its precomputed matching material.
type term struct {
	canonical string
	lower     string
	tokens    []string
	codes     map[string]struct{}
}

// Corrector rewrites misrecognized words to user-defined vocabulary terms.
// All methods are safe for concurrent use; the Corrector is read-only after
// construction.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	terms             []term
}

// New returns a [Corrector] for the given vocabulary terms. Empty and
// whitespace-only terms are ignored. Default thresholds are 0.70 for phonetic
// matches and 0.85 for fuzzy fallback matches.
func New(terms []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	for _, t := range terms {
		canonical := strings.TrimSpace(t)
		if canonical == "" {
			continue
		}
		lower := strings.ToLower(canonical)
		tokens := strings.Fields(lower)
		c.terms = append(c.terms, term{
			canonical: canonical,
			lower:     lower,
			tokens:    tokens,
			codes:     codesForTokens(tokens),
		})
	}
	return c
}

// Empty reports whether the corrector holds no terms.
func (c *Corrector) Empty() bool { return len(c.terms) == 0 }

// Correct attempts to find the vocabulary term most phonetically similar to
// word. When matched is false, corrected equals word unchanged and confidence
// is 0. An exact (case-insensitive) vocabulary hit is returned in its
// canonical spelling with confidence 1.
func (c *Corrector) Correct(word string) (corrected string, confidence float64, matched bool) {
	wordLower := strings.ToLower(strings.TrimSpace(word))
	if wordLower == "" || len(c.terms) == 0 {
		return word, 0, false
	}
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		term     string
		score    float64
		phonetic bool
	}

	var best candidate

	for _, t := range c.terms {
		if t.lower == wordLower {
			return t.canonical, 1, true
		}

		phoneticMatch := codesOverlap(inputCodes, t.codes)
		jwScore := bestJWScore(wordTokens, t.tokens, wordLower, t.lower)

		if phoneticMatch {
			if jwScore >= c.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{term: t.canonical, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= c.fuzzyThreshold && jwScore > best.score {
				best = candidate{term: t.canonical, score: jwScore, phonetic: false}
			}
		}
	}

	if best.term != "" {
		return best.term, best.score, true
	}
	return word, 0, false
}

// CorrectAll maps Correct over words, returning the corrected slice. The
// input slice is not modified.
func (c *Corrector) CorrectAll(words []string) []string {
	if len(c.terms) == 0 || len(words) == 0 {
		return words
	}
	out := make([]string, len(words))
	for i, w := range words {
		out[i], _, _ = c.Correct(w)
	}
	return out
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or
// contains no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set for efficiency.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the word
// and the term using three strategies:
//
//  1. Full-string comparison (e.g., "elder nacks" vs "eldrinax").
//  2. Space-stripped comparison (e.g., "eldernacks" vs "eldrinax").
//  3. Best pairwise token comparison, the maximum score between any word
//     token and any term token.
//
// longTolerance is passed as false to use standard Jaro-Winkler scoring.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(termTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(it, tt, false); s > score {
				score = s
			}
		}
	}

	return score
}
