// Package energy implements the [vad.Engine] interface with an adaptive
// RMS-energy frame classifier. It needs no model file and no CGO, which
// makes it the default VAD backend and the one used in tests.
//
// The classifier keeps a running noise-floor estimate (fast to fall, slow to
// rise, so speech does not drag the floor upward) and scores each frame by
// its RMS energy relative to that floor. Aggressiveness widens the margin a
// frame must clear above the floor to score as speech.
//
// Energy VAD misclassifies keyboard clatter and other broadband noise that
// a neural classifier would reject; pair it with conservative detector
// thresholds, or swap in a model-backed [vad.Engine] for noisy rooms.
package energy

import (
	"fmt"

	"github.com/MrWong99/voxtype/pkg/audio"
	"github.com/MrWong99/voxtype/pkg/provider/vad"
)

const (
	// initialFloor is the starting noise-floor estimate in 16-bit PCM RMS
	// units; 300 corresponds to near-silence on typical microphones.
	initialFloor = 300.0

	// minFloor keeps the floor away from zero on digitally silent input.
	minFloor = 30.0

	// floorFall/floorRise are EMA coefficients for the noise floor. The
	// floor tracks downward quickly and upward very slowly.
	floorFall = 0.30
	floorRise = 0.005
)

// marginForAggressiveness maps vad.Config.Aggressiveness (0–3) to the
// multiple of the noise floor a frame's RMS must reach to score 0.5.
var marginForAggressiveness = [4]float64{1.5, 2.0, 2.5, 3.0}

// Engine implements [vad.Engine] using adaptive RMS energy scoring.
// Safe for concurrent use; each classifier it creates is independent.
type Engine struct{}

// Compile-time assertion that Engine implements vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// New returns a new energy Engine.
func New() *Engine { return &Engine{} }

// NewClassifier implements [vad.Engine]. Returns an error when the frame
// size is unsupported or the config is invalid.
func (e *Engine) NewClassifier(cfg vad.Config) (vad.Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	frameSamples, err := audio.FrameSamples(cfg.SampleRate, cfg.FrameMs)
	if err != nil {
		return nil, fmt.Errorf("energy: %w", err)
	}
	return &classifier{
		frameSamples: frameSamples,
		margin:       marginForAggressiveness[cfg.Aggressiveness],
		floor:        initialFloor,
	}, nil
}

// classifier is a single-stream adaptive energy scorer.
// Not safe for concurrent use.
type classifier struct {
	frameSamples int
	margin       float64
	floor        float64
}

// Compile-time assertion that classifier implements vad.Classifier.
var _ vad.Classifier = (*classifier)(nil)

// Classify implements [vad.Classifier]. The returned probability is a
// rational mapping of the frame's RMS relative to the adaptive floor:
// exactly at floor×margin the score is 0.5, rising asymptotically towards
// 1.0 for louder frames.
func (c *classifier) Classify(samples []int16) (float64, error) {
	if len(samples) != c.frameSamples {
		return 0, fmt.Errorf("energy: frame has %d samples, want %d", len(samples), c.frameSamples)
	}

	rms := audio.RMS(samples)
	c.updateFloor(rms)

	ref := c.floor * c.margin
	if ref < minFloor {
		ref = minFloor
	}
	ratio := rms / ref
	return ratio / (ratio + 1), nil
}

// Reset implements [vad.Classifier].
func (c *classifier) Reset() {
	c.floor = initialFloor
}

// updateFloor advances the noise-floor EMA: fast fall, slow rise.
func (c *classifier) updateFloor(rms float64) {
	if rms < c.floor {
		c.floor += floorFall * (rms - c.floor)
	} else {
		c.floor += floorRise * (rms - c.floor)
	}
	if c.floor < minFloor {
		c.floor = minFloor
	}
}
