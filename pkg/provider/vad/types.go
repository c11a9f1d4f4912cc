package vad

// Event represents a voice activity detection result for a single audio frame.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Probability is the speech probability score (0.0–1.0) reported by the
	// frame classifier for this frame.
	Probability float64
}

// EventType enumerates VAD detection states.
type EventType int

const (
	// Silence indicates no speech detected.
	Silence EventType = iota

	// SpeechStart indicates speech has just begun. Emitted exactly once per
	// utterance, on the frame that satisfies the speech-run threshold.
	SpeechStart

	// SpeechContinue indicates ongoing speech.
	SpeechContinue

	// SpeechEnd indicates speech has just ended. Emitted exactly once per
	// utterance, on the frame that satisfies the silence-run threshold.
	SpeechEnd
)

// String returns the human-readable name of the event type.
func (t EventType) String() string {
	switch t {
	case Silence:
		return "silence"
	case SpeechStart:
		return "speech_start"
	case SpeechContinue:
		return "speech_continue"
	case SpeechEnd:
		return "speech_end"
	default:
		return "unknown"
	}
}
