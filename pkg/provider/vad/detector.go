package vad

import (
	"log/slog"
)

// Detector is the two-state hysteresis machine that converts per-frame
// classifier scores into utterance transitions. States are Silent and
// Speaking; the initial state is Silent and [Detector.Reset] returns to it.
//
// Two run-length counters drive the transitions. A speech-scored frame
// increments the speech run and zeroes the silence run; a silence-scored
// frame does the reverse — the counters are never both non-zero.
// [SpeechStart] fires when the speech run reaches Config.SpeechFrames while
// silent; [SpeechEnd] fires when the silence run reaches
// Config.SilenceFrames while speaking. No event other than [Silence] or
// [SpeechContinue] is produced when the state does not change.
//
// Malformed frames (wrong sample count) and classifier failures are treated
// as silence for that frame and logged at warn level — the detector fails
// open rather than crashing the pipeline.
//
// A Detector is not safe for concurrent use; confine it to the pipeline lane.
type Detector struct {
	classifier   Classifier
	cfg          Config
	frameSamples int

	speaking   bool
	speechRun  int
	silenceRun int
}

// NewDetector creates a Detector that scores frames with classifier.
// frameSamples is the exact sample count every frame must carry.
func NewDetector(classifier Classifier, frameSamples int, cfg Config) *Detector {
	return &Detector{
		classifier:   classifier,
		cfg:          cfg,
		frameSamples: frameSamples,
	}
}

// Speaking reports whether the detector is currently in the speaking state.
func (d *Detector) Speaking() bool { return d.speaking }

// Process classifies one frame and advances the state machine, returning
// the resulting event.
func (d *Detector) Process(samples []int16) Event {
	prob := 0.0
	if len(samples) != d.frameSamples {
		slog.Warn("vad: dropping malformed frame, treating as silence",
			"got_samples", len(samples),
			"want_samples", d.frameSamples,
		)
	} else {
		p, err := d.classifier.Classify(samples)
		if err != nil {
			slog.Warn("vad: classifier error, treating frame as silence", "error", err)
		} else {
			prob = p
		}
	}

	if prob >= d.cfg.SpeechProbability {
		d.speechRun++
		d.silenceRun = 0
		if !d.speaking && d.speechRun >= d.cfg.SpeechFrames {
			d.speaking = true
			return Event{Type: SpeechStart, Probability: prob}
		}
	} else {
		d.silenceRun++
		d.speechRun = 0
		if d.speaking && d.silenceRun >= d.cfg.SilenceFrames {
			d.speaking = false
			return Event{Type: SpeechEnd, Probability: prob}
		}
	}

	if d.speaking {
		return Event{Type: SpeechContinue, Probability: prob}
	}
	return Event{Type: Silence, Probability: prob}
}

// Reset returns the detector to the Silent state, zeroes both run counters,
// and resets the underlying classifier. Call at every session boundary.
func (d *Detector) Reset() {
	d.speaking = false
	d.speechRun = 0
	d.silenceRun = 0
	d.classifier.Reset()
}
