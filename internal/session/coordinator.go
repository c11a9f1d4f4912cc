// Package session wires the dictation pipeline together and owns its
// lifecycle.
//
// A [Coordinator] runs two logical lanes. The intake lane accepts raw audio
// chunks from the capture collaborator without blocking. The pipeline lane
// consumes those chunks from a single goroutine, running normalizer → voice
// activity detector → segment accumulator synchronously per frame; it owns
// all detector and reconciler state. Window transcription is the only slow
// operation and is dispatched to a worker pool; results re-enter the pipeline
// lane through a completion queue and are applied to the reconciler strictly
// in window submission order, because out-of-order application would corrupt
// the prefix matching. Stopping a session cancels in-flight transcriptions
// and discards late results from the ended epoch.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxtype/internal/history"
	"github.com/MrWong99/voxtype/internal/observe"
	"github.com/MrWong99/voxtype/internal/polish"
	"github.com/MrWong99/voxtype/internal/reconcile"
	"github.com/MrWong99/voxtype/internal/segment"
	"github.com/MrWong99/voxtype/internal/vocab"
	"github.com/MrWong99/voxtype/pkg/audio"
	"github.com/MrWong99/voxtype/pkg/provider/stt"
	"github.com/MrWong99/voxtype/pkg/provider/vad"
)

// Config holds all pipeline parameters for a [Coordinator]. Applied at
// session start; a running session is unaffected by later edits.
type Config struct {
	// SampleRate is the PCM sample rate in Hz of pushed audio.
	SampleRate int
	// FrameMs is the classifier frame duration in milliseconds.
	FrameMs int
	// VAD configures the hysteresis detector.
	VAD vad.Config
	// Segment configures utterance buffering and windowing.
	Segment segment.Config
	// Reconcile configures word deduplication.
	Reconcile reconcile.Config
	// Workers is the transcription worker pool size. Default: 2.
	Workers int
	// StopTimeout bounds how long Stop waits for in-flight windows before
	// cancelling them. Default: 5s.
	StopTimeout time.Duration
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if _, err := audio.FrameSamples(c.SampleRate, c.FrameMs); err != nil {
		return err
	}
	if err := c.VAD.Validate(); err != nil {
		return err
	}
	if err := c.Segment.Validate(); err != nil {
		return err
	}
	return c.Reconcile.Validate()
}

// Option configures optional Coordinator collaborators.
type Option func(*Coordinator)

// WithMetrics attaches metric instruments. Without it no metrics are
// recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithPolisher enables an LLM punctuation pass on completed utterances.
func WithPolisher(p polish.Polisher) Option {
	return func(c *Coordinator) { c.polisher = p }
}

// WithHistory persists completed utterances to the given store. Wrap the
// store in a [history.Guard] if database failures must not surface.
func WithHistory(s history.Store) Option {
	return func(c *Coordinator) { c.store = s }
}

// WithVocabulary rewrites emitted words against a user-defined vocabulary
// before they are published. Correction happens after deduplication, so the
// reconciler keeps matching against the backend's raw output.
func WithVocabulary(v *vocab.Corrector) Option {
	return func(c *Coordinator) {
		if v != nil && !v.Empty() {
			c.vocabulary = v
		}
	}
}

// Coordinator owns the session lifecycle and exposes the net-new-word event
// stream. Safe for concurrent use.
type Coordinator struct {
	cfg        Config
	engine     vad.Engine
	metrics    *observe.Metrics
	polisher   polish.Polisher
	store      history.Store
	vocabulary *vocab.Corrector
	events     *eventQueue

	trMu        sync.RWMutex
	transcriber stt.Transcriber

	mu     sync.Mutex
	active bool
	epoch  uint64
	run    *runState
}

// runState bundles the moving parts of one session epoch.
type runState struct {
	epoch       uint64
	cancel      context.CancelFunc
	audioCh     chan []byte
	windowCh    chan segment.Window
	resultCh    chan result
	stopCh      chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
	workersDone chan struct{}
	finalizers  sync.WaitGroup

	normalizer *audio.Normalizer
	detector   *vad.Detector
	acc        *segment.Accumulator
	rec        *reconcile.Reconciler
}

// errWindowDropped fills the result slot of a window that never reached a
// worker, so ordered application can advance past it.
var errWindowDropped = errors.New("session: transcription queue full, window dropped")

// result is the completion of one window transcription, re-entering the
// pipeline lane.
type result struct {
	seq       uint64
	utterance uint64
	final     bool
	text      string
	err       error
}

// New creates a Coordinator. The voice activity engine and transcriber are
// required; collaborators such as metrics, polisher, and history are optional.
func New(cfg Config, engine vad.Engine, transcriber stt.Transcriber, opts ...Option) (*Coordinator, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		cfg:         cfg,
		engine:      engine,
		transcriber: transcriber,
		events:      newEventQueue(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Events returns the coordinator's event stream. The channel is closed by
// [Coordinator.Close] after all buffered events have been delivered.
func (c *Coordinator) Events() <-chan Event {
	return c.events.out
}

// Active reports whether a session is currently running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SwapTranscriber replaces the transcription backend for subsequent windows.
// Detector and reconciler state are left untouched: a backend change is not a
// session boundary and must never reset the emitted-word sequence.
func (c *Coordinator) SwapTranscriber(t stt.Transcriber) {
	c.trMu.Lock()
	c.transcriber = t
	c.trMu.Unlock()
	slog.Info("transcription backend swapped")
}

func (c *Coordinator) currentTranscriber() stt.Transcriber {
	c.trMu.RLock()
	defer c.trMu.RUnlock()
	return c.transcriber
}

// Start begins a new dictation session, resetting detector and reconciler
// state. Returns a *SessionStateError if a session is already active. The
// session outlives ctx cancellation; use [Coordinator.Stop] to end it.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return &SessionStateError{Op: "start", Active: true}
	}

	frameSamples, err := audio.FrameSamples(c.cfg.SampleRate, c.cfg.FrameMs)
	if err != nil {
		return err
	}
	normalizer, err := audio.NewNormalizer(c.cfg.SampleRate, c.cfg.FrameMs)
	if err != nil {
		return err
	}
	classifier, err := c.engine.NewClassifier(c.cfg.VAD)
	if err != nil {
		return err
	}
	acc, err := segment.NewAccumulator(c.cfg.Segment)
	if err != nil {
		return err
	}
	rec, err := reconcile.New(c.cfg.Reconcile)
	if err != nil {
		return err
	}

	c.epoch++
	queueCap := c.cfg.Workers * 2
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &runState{
		epoch:    c.epoch,
		cancel:   cancel,
		audioCh:  make(chan []byte, 64),
		windowCh: make(chan segment.Window, queueCap),
		// Sized so workers can always deliver without blocking, even
		// when the pipeline lane has already exited.
		resultCh:    make(chan result, c.cfg.Workers+queueCap+1),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
		workersDone: make(chan struct{}),
		normalizer:  normalizer,
		detector:    vad.NewDetector(classifier, frameSamples, c.cfg.VAD),
		acc:         acc,
		rec:         rec,
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < c.cfg.Workers; i++ {
		g.Go(func() error {
			c.worker(gctx, run)
			return nil
		})
	}
	go func() {
		g.Wait()
		close(run.workersDone)
	}()
	go c.pipeline(runCtx, run)

	c.run = run
	c.active = true
	if c.metrics != nil {
		c.metrics.ActiveSessions.Add(runCtx, 1)
	}
	c.publish(Event{Kind: EventSessionStarted, Session: run.epoch})
	slog.Info("dictation session started", "session", run.epoch)
	return nil
}

// PushAudio queues a chunk of raw 16-bit little-endian mono PCM for the
// pipeline. Never blocks: when the intake queue is full the chunk is dropped
// with a warning rather than stalling the capture collaborator. Returns a
// *SessionStateError when no session is active.
func (c *Coordinator) PushAudio(chunk []byte) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return &SessionStateError{Op: "push audio"}
	}
	run := c.run
	c.mu.Unlock()

	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	select {
	case run.audioCh <- cp:
	default:
		slog.Warn("audio intake queue full, dropping chunk",
			"session", run.epoch,
			"bytes", len(chunk))
	}
	return nil
}

// Stop ends the active session. Buffered speech is flushed as a final window
// and its result applied before Stop returns, bounded by StopTimeout; past
// the bound, in-flight transcriptions are cancelled and their late results
// discarded. Returns a *SessionStateError when no session is active.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return &SessionStateError{Op: "stop"}
	}
	run := c.run
	c.active = false
	c.run = nil
	c.mu.Unlock()

	run.stopOnce.Do(func() { close(run.stopCh) })

	deadline := time.NewTimer(c.cfg.StopTimeout)
	defer deadline.Stop()
	select {
	case <-run.done:
	case <-deadline.C:
		slog.Warn("session stop timed out, cancelling in-flight transcriptions",
			"session", run.epoch)
		run.cancel()
		<-run.done
	case <-ctx.Done():
		run.cancel()
		<-run.done
	}
	run.cancel()
	<-run.workersDone
	waitTimeout(&run.finalizers, c.cfg.StopTimeout)

	if c.metrics != nil {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	c.publish(Event{Kind: EventSessionStopped, Session: run.epoch})
	slog.Info("dictation session stopped", "session", run.epoch)
	return nil
}

// Close stops any active session and closes the event stream.
func (c *Coordinator) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.StopTimeout)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		var serr *SessionStateError
		if !errors.As(err, &serr) {
			return err
		}
	}
	c.events.close()
	return nil
}

// pipeline is the single goroutine that owns detector, accumulator, and
// reconciler state.
func (c *Coordinator) pipeline(ctx context.Context, run *runState) {
	defer close(run.done)
	defer close(run.windowCh)

	pending := make(map[uint64]result)
	var (
		nextApply     uint64 = 1
		lastSubmitted uint64
		draining      bool
		utterWords    []string
		curUtter      uint64
	)
	// An utterance whose last remainder fell below the window floor never
	// gets a final result; settle whatever words it emitted when the lane
	// exits.
	defer func() {
		c.finishUtterance(run, curUtter, utterWords)
	}()

	submit := func(w segment.Window) {
		lastSubmitted = w.Seq
		if c.metrics != nil {
			c.metrics.WindowsSubmitted.Add(ctx, 1)
		}
		select {
		case run.windowCh <- w:
		default:
			// Worker pool saturated. Losing the window beats blocking
			// frame intake; its result slot still has to be filled so
			// ordering can advance past it.
			slog.Warn("transcription queue full, dropping window",
				"session", run.epoch,
				"seq", w.Seq)
			pending[w.Seq] = result{
				seq:       w.Seq,
				utterance: w.Utterance,
				final:     w.Final,
				err:       errWindowDropped,
			}
		}
	}

	applyReady := func() {
		for {
			res, ok := pending[nextApply]
			if !ok {
				return
			}
			delete(pending, nextApply)
			nextApply++
			c.apply(ctx, run, res, &utterWords, &curUtter)
		}
	}

	stopCh := run.stopCh
	for {
		select {
		case <-ctx.Done():
			return

		case chunk := <-run.audioCh:
			for _, f := range run.normalizer.Push(chunk) {
				for _, w := range c.processFrame(ctx, run, f) {
					submit(w)
				}
			}
			applyReady()

		case res := <-run.resultCh:
			pending[res.seq] = res
			applyReady()
			if draining && nextApply > lastSubmitted {
				return
			}

		case <-stopCh:
			stopCh = nil
			if f := run.normalizer.Flush(); f != nil {
				for _, w := range c.processFrame(ctx, run, *f) {
					submit(w)
				}
			}
			if w, ok := run.acc.Flush(); ok {
				submit(w)
			}
			applyReady()
			draining = true
			if nextApply > lastSubmitted {
				return
			}
		}
	}
}

// processFrame feeds one frame through the detector and accumulator.
func (c *Coordinator) processFrame(ctx context.Context, run *runState, f audio.Frame) []segment.Window {
	if c.metrics != nil {
		c.metrics.FramesProcessed.Add(ctx, 1)
	}
	ev := run.detector.Process(f.Samples)
	switch ev.Type {
	case vad.SpeechStart:
		if c.metrics != nil {
			c.metrics.RecordTransition(ctx, "start")
		}
		c.publish(Event{Kind: EventSpeechStarted, Session: run.epoch})
	case vad.SpeechEnd:
		if c.metrics != nil {
			c.metrics.RecordTransition(ctx, "end")
		}
		c.publish(Event{Kind: EventSpeechEnded, Session: run.epoch})
	}
	return run.acc.Observe(f, ev)
}

// apply consumes one in-order transcription result and updates the
// reconciler. Runs on the pipeline lane only.
func (c *Coordinator) apply(ctx context.Context, run *runState, res result, utterWords *[]string, curUtter *uint64) {
	if res.utterance != *curUtter {
		c.finishUtterance(run, *curUtter, *utterWords)
		*utterWords = nil
		run.rec.Reset()
		*curUtter = res.utterance
	}

	if res.err != nil {
		observe.Logger(ctx).Warn("window transcription failed, words lost",
			"session", run.epoch,
			"seq", res.seq,
			"error", res.err)
		c.publish(Event{
			Kind:      EventError,
			Session:   run.epoch,
			Utterance: res.utterance,
			Error:     res.err.Error(),
		})
	} else {
		out := run.rec.Reconcile(res.text)
		if out.Divergence {
			if c.metrics != nil {
				c.metrics.Divergences.Add(ctx, 1)
			}
			c.publish(Event{Kind: EventDivergence, Session: run.epoch, Utterance: res.utterance})
		}
		if len(out.Words) > 0 {
			words := out.Words
			if c.vocabulary != nil {
				words = c.vocabulary.CorrectAll(words)
			}
			if c.metrics != nil {
				c.metrics.WordsEmitted.Add(ctx, int64(len(words)))
			}
			*utterWords = append(*utterWords, words...)
			c.publish(Event{
				Kind:      EventWords,
				Session:   run.epoch,
				Utterance: res.utterance,
				Words:     words,
			})
		}
	}

	if res.final {
		c.finishUtterance(run, *curUtter, *utterWords)
		*utterWords = nil
		run.rec.Reset()
		*curUtter = 0
	}
}

// finishUtterance assembles, optionally polishes, persists, and publishes the
// completed utterance. The slow LLM pass runs off the pipeline lane.
func (c *Coordinator) finishUtterance(run *runState, utterance uint64, words []string) {
	if len(words) == 0 {
		return
	}
	text := strings.Join(words, " ")
	wordCount := len(words)

	run.finalizers.Add(1)
	go func() {
		defer run.finalizers.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		final := text
		if c.polisher != nil {
			start := time.Now()
			polished, err := c.polisher.Polish(ctx, text)
			if err != nil {
				slog.Warn("utterance polish failed, using raw text",
					"session", run.epoch,
					"utterance", utterance,
					"error", err)
			} else {
				final = polished
				if c.metrics != nil {
					c.metrics.PolishDuration.Record(ctx, time.Since(start).Seconds())
				}
			}
		}

		if c.store != nil {
			if err := c.store.SaveUtterance(ctx, history.Utterance{
				Session:   run.epoch,
				Sequence:  utterance,
				Text:      final,
				WordCount: wordCount,
				CreatedAt: time.Now(),
			}); err != nil {
				slog.Warn("utterance persist failed",
					"session", run.epoch,
					"utterance", utterance,
					"error", err)
			}
		}

		c.publish(Event{
			Kind:      EventUtterance,
			Session:   run.epoch,
			Utterance: utterance,
			Text:      final,
		})
	}()
}

// worker transcribes windows until the window channel closes. Results always
// fit in the buffered completion queue, so delivery never blocks.
func (c *Coordinator) worker(ctx context.Context, run *runState) {
	for w := range run.windowCh {
		tctx, span := observe.StartSpan(ctx, "transcribe-window")
		start := time.Now()
		tr, err := c.currentTranscriber().Transcribe(tctx, w.Samples)
		span.End()

		if c.metrics != nil {
			c.metrics.RecordTranscription(tctx, "stt", time.Since(start).Seconds(), err)
		}
		if ctx.Err() != nil {
			// Session already tore down; the result is stale.
			if c.metrics != nil {
				c.metrics.StaleResults.Add(context.Background(), 1)
			}
			continue
		}
		run.resultCh <- result{
			seq:       w.Seq,
			utterance: w.Utterance,
			final:     w.Final,
			text:      tr.Text,
			err:       err,
		}
	}
}

func (c *Coordinator) publish(ev Event) {
	ev.Time = time.Now()
	c.events.publish(ev)
}

// waitTimeout waits for wg up to d.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(d):
		slog.Warn("timed out waiting for utterance finalizers")
	}
}
