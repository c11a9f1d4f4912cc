package audio

import (
	"errors"
	"testing"
	"time"
)

func TestFrameSamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sampleRate int
		frameMs    int
		want       int
		wantErr    bool
	}{
		{"30ms at 16k", 16000, 30, 480, false},
		{"10ms at 16k", 16000, 10, 160, false},
		{"20ms at 8k", 8000, 20, 160, false},
		{"32ms silero at 16k", 16000, 32, 512, false},
		{"32ms silero at 8k", 8000, 32, 256, false},
		{"32ms at 48k unsupported", 48000, 32, 0, true},
		{"25ms unsupported", 16000, 25, 0, true},
		{"unsupported rate", 44100, 30, 0, true},
		{"zero frame", 16000, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := FrameSamples(tt.sampleRate, tt.frameMs)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d samples", got)
				}
				var fse *FrameSizeError
				if !errors.As(err, &fse) {
					t.Errorf("expected *FrameSizeError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d samples, want %d", got, tt.want)
			}
		})
	}
}

func TestNormalizer_ExactFrames(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(16000, 30)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	frames := n.PushSamples(make([]int16, 960)) // exactly two frames
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	for i, f := range frames {
		if len(f.Samples) != 480 {
			t.Errorf("frame %d has %d samples, want 480", i, len(f.Samples))
		}
	}
	if frames[0].Timestamp != 0 {
		t.Errorf("first frame timestamp = %v, want 0", frames[0].Timestamp)
	}
	if frames[1].Timestamp != 30*time.Millisecond {
		t.Errorf("second frame timestamp = %v, want 30ms", frames[1].Timestamp)
	}
}

func TestNormalizer_PartialChunksAccumulate(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(16000, 30)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	if frames := n.PushSamples(make([]int16, 300)); frames != nil {
		t.Fatalf("expected no frames from partial chunk, got %d", len(frames))
	}
	frames := n.PushSamples(make([]int16, 300))
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	// 120 samples remain buffered.
	if f := n.Flush(); f == nil {
		t.Fatal("expected padded tail frame from Flush")
	} else if len(f.Samples) != 480 {
		t.Errorf("flushed frame has %d samples, want 480", len(f.Samples))
	}
	if f := n.Flush(); f != nil {
		t.Error("second Flush should return nil")
	}
}

func TestNormalizer_FlushPadsWithSilence(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(16000, 10)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	samples := []int16{100, -100, 200}
	n.PushSamples(samples)
	f := n.Flush()
	if f == nil {
		t.Fatal("expected a flushed frame")
	}
	for i, s := range f.Samples {
		if i < len(samples) {
			if s != samples[i] {
				t.Errorf("sample %d = %d, want %d", i, s, samples[i])
			}
			continue
		}
		if s != 0 {
			t.Fatalf("padding sample %d = %d, want 0", i, s)
		}
	}
}

func TestNormalizer_OddByteHeldAcrossChunks(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(16000, 10)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	// 160 samples = 320 bytes, delivered as 161 + 159 bytes.
	raw := SamplesToBytes(make([]int16, 160))
	if frames := n.Push(raw[:161]); frames != nil {
		t.Fatalf("expected no frames yet, got %d", len(frames))
	}
	frames := n.Push(raw[161:])
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
}

func TestNormalizer_FlushDiscardsLoneOddByte(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(16000, 10)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	// A single dangling byte is half a sample, not audio worth a frame.
	if frames := n.Push([]byte{0x7f}); frames != nil {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	if f := n.Flush(); f != nil {
		t.Errorf("Flush after lone odd byte = %v, want nil", f)
	}

	// The discarded byte must not bleed into the next chunk.
	raw := SamplesToBytes([]int16{100, -100})
	frames := n.Push(raw)
	if frames != nil {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	f := n.Flush()
	if f == nil {
		t.Fatal("expected a flushed frame")
	}
	if f.Samples[0] != 100 || f.Samples[1] != -100 {
		t.Errorf("leading samples = %d, %d, want 100, -100", f.Samples[0], f.Samples[1])
	}
}

func TestNormalizer_ResetRestartsTimestamps(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(16000, 30)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	n.PushSamples(make([]int16, 480))
	n.PushSamples(make([]int16, 100)) // leaves pending samples
	n.Reset()

	frames := n.PushSamples(make([]int16, 480))
	if len(frames) != 1 {
		t.Fatalf("got %d frames after reset, want 1", len(frames))
	}
	if frames[0].Timestamp != 0 {
		t.Errorf("timestamp after reset = %v, want 0", frames[0].Timestamp)
	}
}

func TestPCMRoundTrip(t *testing.T) {
	t.Parallel()

	in := []int16{0, 1, -1, 32767, -32768, 12345}
	out := BytesToSamples(SamplesToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	samples := make([]int16, 1600) // 100 ms @ 16 kHz
	wav := EncodeWAV(samples, 16000)

	if len(wav) != 44+3200 {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+3200)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if string(wav[36:40]) != "data" {
		t.Error("missing data sub-chunk marker")
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f, want 0", got)
	}
	if got := RMS([]int16{1000, -1000, 1000, -1000}); got != 1000 {
		t.Errorf("RMS of ±1000 square wave = %f, want 1000", got)
	}
}
