package energy

import (
	"math"
	"testing"

	"github.com/MrWong99/voxtype/pkg/provider/vad"
)

func validConfig() vad.Config {
	return vad.Config{
		SampleRate:        16000,
		FrameMs:           30,
		Aggressiveness:    1,
		SpeechProbability: 0.5,
		SpeechFrames:      2,
		SilenceFrames:     5,
	}
}

// sine returns a frame of n samples of a sine wave with the given peak
// amplitude.
func sine(n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*float64(i)/64))
	}
	return out
}

func TestEngine_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	e := New()

	tests := []struct {
		name   string
		mutate func(*vad.Config)
	}{
		{"bad aggressiveness", func(c *vad.Config) { c.Aggressiveness = 4 }},
		{"bad probability", func(c *vad.Config) { c.SpeechProbability = 1.5 }},
		{"zero speech frames", func(c *vad.Config) { c.SpeechFrames = 0 }},
		{"zero silence frames", func(c *vad.Config) { c.SilenceFrames = 0 }},
		{"unsupported frame size", func(c *vad.Config) { c.FrameMs = 25 }},
		{"unsupported sample rate", func(c *vad.Config) { c.SampleRate = 44100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			if _, err := e.NewClassifier(cfg); err == nil {
				t.Error("expected config error")
			}
		})
	}
}

func TestClassifier_WrongFrameSize(t *testing.T) {
	t.Parallel()

	c, err := New().NewClassifier(validConfig())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	if _, err := c.Classify(make([]int16, 100)); err == nil {
		t.Error("expected error for wrong frame size")
	}
}

func TestClassifier_LoudVsQuiet(t *testing.T) {
	t.Parallel()

	c, err := New().NewClassifier(validConfig())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	quiet := make([]int16, 480) // digital silence
	loud := sine(480, 8000)

	// Settle the noise floor on silence first.
	var quietProb float64
	for range 20 {
		quietProb, err = c.Classify(quiet)
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
	}
	loudProb, err := c.Classify(loud)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if quietProb >= 0.5 {
		t.Errorf("silence scored %f, want < 0.5", quietProb)
	}
	if loudProb < 0.5 {
		t.Errorf("loud tone scored %f, want >= 0.5", loudProb)
	}
	if loudProb <= quietProb {
		t.Errorf("loud (%f) should outscore quiet (%f)", loudProb, quietProb)
	}
}

func TestClassifier_HigherAggressivenessScoresLower(t *testing.T) {
	t.Parallel()

	frame := sine(480, 2000)

	cfgLow := validConfig()
	cfgLow.Aggressiveness = 0
	cfgHigh := validConfig()
	cfgHigh.Aggressiveness = 3

	low, err := New().NewClassifier(cfgLow)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	high, err := New().NewClassifier(cfgHigh)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	pLow, _ := low.Classify(frame)
	pHigh, _ := high.Classify(frame)
	if pHigh >= pLow {
		t.Errorf("aggressiveness 3 scored %f, expected below aggressiveness 0 score %f", pHigh, pLow)
	}
}

func TestClassifier_ResetRestoresFloor(t *testing.T) {
	t.Parallel()

	c, err := New().NewClassifier(validConfig())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	// Drive the floor down with silence, then reset.
	quiet := make([]int16, 480)
	for range 50 {
		c.Classify(quiet)
	}
	before, _ := c.Classify(sine(480, 1500))
	c.Reset()
	after, _ := c.Classify(sine(480, 1500))

	// Against the restored (higher) initial floor the same frame scores lower.
	if after >= before {
		t.Errorf("post-reset score %f should be below adapted score %f", after, before)
	}
}
