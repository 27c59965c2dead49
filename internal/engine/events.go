package engine

import (
	"context"
	"sync"
)

// EventType tags the streamed-event union.
type EventType string

const (
	EventStep   EventType = "step"
	EventResult EventType = "result"
	EventError  EventType = "error"
)

// StepPhase marks the start or end of one pipeline stage.
type StepPhase string

const (
	PhaseStart StepPhase = "start"
	PhaseDone  StepPhase = "done"
)

// Step names one pipeline stage. Stages run in declaration order.
type Step string

const (
	StepMetadata    Step = "metadata"
	StepTranscript  Step = "transcript"
	StepTranslation Step = "translation"
	StepAnalysis    Step = "analysis"
)

// Event is one entry in the progress stream: a step marker or the single
// terminal result/error. Serialized as-is to the transport.
type Event struct {
	Type    EventType      `json:"type"`
	Step    Step           `json:"step,omitempty"`
	Phase   StepPhase      `json:"phase,omitempty"`
	Message string         `json:"message,omitempty"`
	Code    Code           `json:"code,omitempty"`
	Payload *InsightOutput `json:"payload,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool { return e.Type == EventResult || e.Type == EventError }

// Sink is the append-only channel between the orchestrator (producer) and
// the transport adapter (consumer). Events arrive in emission order; after
// one terminal event the sink accepts nothing further. Emission blocks on
// a backpressured consumer rather than skipping events; a canceled
// consumer context unblocks the producer and discards the event.
type Sink struct {
	ctx context.Context
	ch  chan Event

	mu       sync.Mutex
	terminal bool
	closed   bool
}

// NewSink creates a sink for one run. ctx is the consumer's context:
// when it is canceled the producer stops writing.
func NewSink(ctx context.Context, buffer int) *Sink {
	if buffer <= 0 {
		buffer = 16
	}
	return &Sink{ctx: ctx, ch: make(chan Event, buffer)}
}

// Events returns the consumer side of the stream. The channel is closed
// after the terminal event (or when the run aborts on cancellation).
func (s *Sink) Events() <-chan Event { return s.ch }

// Emit appends one event. Returns false when the event was discarded:
// the consumer is gone, the sink is closed, or a terminal event was
// already emitted.
func (s *Sink) Emit(ev Event) bool {
	s.mu.Lock()
	if s.closed || s.terminal {
		s.mu.Unlock()
		return false
	}
	if ev.Terminal() {
		s.terminal = true
	}
	s.mu.Unlock()

	select {
	case s.ch <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Close ends the stream. Safe to call more than once; the orchestrator
// defers it so the consumer's range loop always terminates.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// StepStart emits the start marker for one stage.
func (s *Sink) StepStart(step Step, message string) {
	s.Emit(Event{Type: EventStep, Step: step, Phase: PhaseStart, Message: message})
}

// StepDone emits the completion marker for one stage.
func (s *Sink) StepDone(step Step, message string) {
	s.Emit(Event{Type: EventStep, Step: step, Phase: PhaseDone, Message: message})
}

// Result emits the terminal success event.
func (s *Sink) Result(out *InsightOutput) {
	s.Emit(Event{Type: EventResult, Payload: out})
}

// Error emits the terminal error event.
func (s *Sink) Error(code Code, message string) {
	s.Emit(Event{Type: EventError, Code: code, Message: message})
}
