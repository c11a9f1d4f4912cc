package audio

import "time"

// Normalizer reshapes arbitrary-length raw PCM chunks, as delivered by a
// capture device, into a sequence of fixed-size [Frame] values. Partial
// input is buffered between calls; a frame is never emitted short.
//
// Tail policy: on [Normalizer.Flush] a pending partial frame is padded with
// silence up to the full frame size. Padding (rather than dropping) is the
// fixed policy because the tail of a session usually carries the final
// phonemes of the last word.
//
// A Normalizer is restartable per session via [Normalizer.Reset].
// Not safe for concurrent use; confine one Normalizer to the pipeline lane.
type Normalizer struct {
	sampleRate   int
	frameSamples int

	pending  []int16 // buffered samples short of a full frame
	oddByte  byte    // trailing byte when a chunk splits a 16-bit sample
	hasOdd   bool
	produced int64 // total frames emitted since Reset, drives timestamps
}

// NewNormalizer creates a Normalizer producing frames of frameMs duration at
// sampleRate. Returns a *FrameSizeError when the combination is not a
// supported classifier frame size.
func NewNormalizer(sampleRate, frameMs int) (*Normalizer, error) {
	n, err := FrameSamples(sampleRate, frameMs)
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		sampleRate:   sampleRate,
		frameSamples: n,
		pending:      make([]int16, 0, n),
	}, nil
}

// FrameSize returns the fixed per-frame sample count.
func (n *Normalizer) FrameSize() int { return n.frameSamples }

// SampleRate returns the configured sample rate in Hz.
func (n *Normalizer) SampleRate() int { return n.sampleRate }

// Push consumes a raw little-endian 16-bit PCM chunk of any byte length and
// returns all complete frames that became available. A trailing odd byte is
// held until the next chunk.
func (n *Normalizer) Push(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}
	if n.hasOdd {
		joined := make([]byte, 0, len(chunk)+1)
		joined = append(joined, n.oddByte)
		joined = append(joined, chunk...)
		chunk = joined
		n.hasOdd = false
	}
	if len(chunk)%2 != 0 {
		n.oddByte = chunk[len(chunk)-1]
		n.hasOdd = true
		chunk = chunk[:len(chunk)-1]
	}
	return n.PushSamples(BytesToSamples(chunk))
}

// PushSamples consumes decoded PCM samples and returns all complete frames
// that became available. The returned frames own their backing arrays; the
// caller may reuse samples.
func (n *Normalizer) PushSamples(samples []int16) []Frame {
	if len(samples) == 0 {
		return nil
	}
	n.pending = append(n.pending, samples...)

	var frames []Frame
	for len(n.pending) >= n.frameSamples {
		out := make([]int16, n.frameSamples)
		copy(out, n.pending[:n.frameSamples])
		n.pending = n.pending[n.frameSamples:]
		frames = append(frames, Frame{Samples: out, Timestamp: n.nextTimestamp()})
		n.produced++
	}
	// Re-base pending onto a fresh slice so consumed samples do not pin the
	// old backing array.
	if len(frames) > 0 {
		rest := make([]int16, len(n.pending), n.frameSamples)
		copy(rest, n.pending)
		n.pending = rest
	}
	return frames
}

// Flush pads any buffered partial frame with silence to the full frame size
// and returns it. Returns nil when nothing is pending; a dangling odd byte
// is half a sample and is discarded rather than padded into a frame. The
// Normalizer remains usable afterwards.
func (n *Normalizer) Flush() *Frame {
	n.hasOdd = false
	if len(n.pending) == 0 {
		return nil
	}
	out := make([]int16, n.frameSamples)
	copy(out, n.pending)
	f := &Frame{Samples: out, Timestamp: n.nextTimestamp()}
	n.produced++
	n.pending = n.pending[:0]
	return f
}

// Reset discards all buffered input and restarts timestamps at zero.
// Call at every session boundary.
func (n *Normalizer) Reset() {
	n.pending = n.pending[:0]
	n.hasOdd = false
	n.produced = 0
}

func (n *Normalizer) nextTimestamp() time.Duration {
	return time.Duration(n.produced*int64(n.frameSamples)) * time.Second / time.Duration(n.sampleRate)
}
