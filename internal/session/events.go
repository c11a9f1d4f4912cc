package session

import (
	"sync"
	"time"
)

// EventKind discriminates the events published on [Coordinator.Events].
type EventKind string

const (
	// EventSessionStarted is published when a dictation session begins.
	EventSessionStarted EventKind = "session_started"
	// EventSessionStopped is published after a session has fully shut down.
	EventSessionStopped EventKind = "session_stopped"
	// EventSpeechStarted marks a detected speech onset.
	EventSpeechStarted EventKind = "speech_started"
	// EventSpeechEnded marks a detected speech offset.
	EventSpeechEnded EventKind = "speech_ended"
	// EventWords carries net-new words for the typing collaborator.
	EventWords EventKind = "words"
	// EventDivergence signals that reconciliation fell back to emitting a
	// full window transcript.
	EventDivergence EventKind = "divergence"
	// EventUtterance carries the assembled (and, when configured,
	// polished) text of a completed utterance.
	EventUtterance EventKind = "utterance"
	// EventError reports a recoverable pipeline failure.
	EventError EventKind = "error"
)

// Event is the typed output unit of a [Coordinator]. Consumers receive events
// in the order they were produced; the queue between the pipeline and the
// consumer is elastic, so a slow consumer never blocks frame processing.
type Event struct {
	Kind EventKind `json:"kind"`
	// Session identifies which session epoch produced the event.
	Session uint64 `json:"session"`
	// Utterance numbers the utterance within the coordinator's lifetime.
	// Zero when the event is not tied to an utterance.
	Utterance uint64 `json:"utterance,omitempty"`
	// Words holds net-new words for EventWords.
	Words []string `json:"words,omitempty"`
	// Text holds the full utterance text for EventUtterance.
	Text string `json:"text,omitempty"`
	// Error holds a human-readable failure description for EventError.
	Error string `json:"error,omitempty"`
	// Time is when the event was produced.
	Time time.Time `json:"time"`
}

// eventQueue decouples the pipeline lane from event consumers with an
// unbounded in-memory buffer. Publishing never blocks; the output channel is
// closed after Close once all buffered events have been delivered.
type eventQueue struct {
	mu     sync.Mutex
	closed bool
	in     chan Event
	out    chan Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		in:  make(chan Event),
		out: make(chan Event),
	}
	go q.run()
	return q
}

func (q *eventQueue) run() {
	defer close(q.out)
	var buf []Event
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan Event
		var next Event
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}
		select {
		case ev, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, ev)
		case out <- next:
			buf = buf[1:]
		}
	}
}

// publish enqueues ev. Never blocks longer than the queue goroutine's next
// select iteration. Events published after close are discarded.
func (q *eventQueue) publish(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.in <- ev
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}
