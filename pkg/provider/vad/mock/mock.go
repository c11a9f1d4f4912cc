// Package mock provides test doubles for the vad package interfaces.
//
// Use [Classifier] to script per-frame probabilities and drive the detector
// deterministically in tests:
//
//	c := &mock.Classifier{Probabilities: []float64{0.9, 0.9, 0.9, 0.1}}
//	d := vad.NewDetector(c, 480, cfg)
package mock

import (
	"sync"

	"github.com/MrWong99/voxtype/pkg/provider/vad"
)

// Classifier is a scripted implementation of vad.Classifier. Each call to
// Classify consumes the next probability from Probabilities; when the script
// is exhausted, Default is returned. Thread-safe so tests can inspect calls
// from other goroutines.
type Classifier struct {
	mu sync.Mutex

	// Probabilities is the per-call script of speech probabilities.
	Probabilities []float64

	// Default is returned once Probabilities is exhausted.
	Default float64

	// Err, if non-nil, is returned by every Classify call.
	Err error

	// Calls counts Classify invocations.
	Calls int

	// Resets counts Reset invocations.
	Resets int

	pos int
}

// Compile-time assertion that Classifier implements vad.Classifier.
var _ vad.Classifier = (*Classifier)(nil)

// Classify returns the next scripted probability, or Default when the
// script has run out.
func (c *Classifier) Classify(_ []int16) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return 0, c.Err
	}
	if c.pos < len(c.Probabilities) {
		p := c.Probabilities[c.pos]
		c.pos++
		return p, nil
	}
	return c.Default, nil
}

// Reset records the call and rewinds the script.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resets++
	c.pos = 0
}

// Engine is a mock vad.Engine that hands out a fixed Classifier.
type Engine struct {
	// ClassifierToReturn is handed out by NewClassifier. If nil, a zero
	// Classifier is returned.
	ClassifierToReturn vad.Classifier

	// NewClassifierErr, if non-nil, is returned from NewClassifier.
	NewClassifierErr error
}

// Compile-time assertion that Engine implements vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// NewClassifier returns ClassifierToReturn, NewClassifierErr.
func (e *Engine) NewClassifier(_ vad.Config) (vad.Classifier, error) {
	if e.NewClassifierErr != nil {
		return nil, e.NewClassifierErr
	}
	if e.ClassifierToReturn != nil {
		return e.ClassifierToReturn, nil
	}
	return &Classifier{}, nil
}
