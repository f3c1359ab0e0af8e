package calculator

import (
	"context"
	"sync"
)

// Display receives the engine's outbound effects.
type Display interface {
	SetDisplay(text string)
	SetMemoryIndicator(text string)
}

// Step describes one applied transition. It is handed to observers after
// the effects have been delivered to the display.
type Step struct {
	Event   Event
	Before  State
	After   State
	Effects []Effect
}

// Evaluated reports the operator of a binary operation the step completed
// successfully, either through equals or through operator chaining.
func (s Step) Evaluated() (Operator, bool) {
	if s.Before.Operator.IsNone() || s.Before.Input == "" || s.Fault() != nil {
		return OperatorNone, false
	}
	switch s.Event.Kind {
	case EventEquals:
		return s.Before.Operator, true
	case EventOperator:
		if !s.Before.Phase.AwaitsSecond() {
			return s.Before.Operator, true
		}
	}
	return OperatorNone, false
}

// Fault returns the error raised by this step, or nil.
func (s Step) Fault() *Error {
	if s.After.Fault == nil || s.After.Fault == s.Before.Fault {
		return nil
	}
	return s.After.Fault
}

// Observer is notified after every applied event.
type Observer func(ctx context.Context, step Step)

// Engine owns one calculator state and forwards effects to a display.
// It is safe for concurrent use; events are applied one at a time.
type Engine struct {
	mu        sync.Mutex
	state     State
	display   Display
	observers []Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithDisplay sets the display collaborator.
func WithDisplay(d Display) Option {
	return func(e *Engine) {
		e.display = d
	}
}

// WithMemory seeds the memory register.
func WithMemory(v float64) Option {
	return func(e *Engine) {
		e.state.Memory = v
	}
}

// WithObserver registers an observer for applied events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// NewEngine creates an engine in the empty state.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{state: State{Phase: PhaseEmpty}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start emits the initial display and memory indicator and returns them.
func (e *Engine) Start() []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	effects := []Effect{
		SetDisplay(e.state.Display()),
		SetMemoryIndicator(e.state.MemoryIndicator()),
	}
	e.deliver(effects)
	return effects
}

// Dispatch applies a single event. Invalid events return an input error and
// leave the state untouched. Domain faults are not returned; they are shown
// on the display and recorded in State().Fault.
func (e *Engine) Dispatch(ctx context.Context, ev Event) ([]Effect, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	before := e.state
	after, effects := Transition(before, ev)
	e.state = after
	e.deliver(effects)
	observers := e.observers
	e.mu.Unlock()

	step := Step{Event: ev, Before: before, After: after, Effects: effects}
	for _, o := range observers {
		o(ctx, step)
	}
	return effects, nil
}

// DispatchAll applies events in order and returns all effects. It stops at
// the first invalid event.
func (e *Engine) DispatchAll(ctx context.Context, events []Event) ([]Effect, error) {
	var all []Effect
	for _, ev := range events {
		effects, err := e.Dispatch(ctx, ev)
		if err != nil {
			return all, err
		}
		all = append(all, effects...)
	}
	return all, nil
}

// Run consumes events from the channel until it is closed or ctx is done.
// Invalid events are skipped; the first one is returned once the channel closes.
func (e *Engine) Run(ctx context.Context, events <-chan Event) error {
	var firstErr error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return firstErr
			}
			if _, err := e.Dispatch(ctx, ev); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Reset returns the engine to a fresh state, including the memory register.
func (e *Engine) Reset() []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = State{Phase: PhaseEmpty}
	effects := []Effect{
		SetDisplay(e.state.Display()),
		SetMemoryIndicator(e.state.MemoryIndicator()),
	}
	e.deliver(effects)
	return effects
}

func (e *Engine) deliver(effects []Effect) {
	if e.display == nil {
		return
	}
	for _, eff := range effects {
		switch eff.Kind {
		case EffectSetDisplay:
			e.display.SetDisplay(eff.Text)
		case EffectSetMemoryIndicator:
			e.display.SetMemoryIndicator(eff.Text)
		}
	}
}

// Recorder is a Display that keeps the latest texts and every effect.
type Recorder struct {
	mu      sync.Mutex
	display string
	memory  string
	effects []Effect
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetDisplay implements Display.
func (r *Recorder) SetDisplay(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.display = text
	r.effects = append(r.effects, SetDisplay(text))
}

// SetMemoryIndicator implements Display.
func (r *Recorder) SetMemoryIndicator(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memory = text
	r.effects = append(r.effects, SetMemoryIndicator(text))
}

// Display returns the last display text.
func (r *Recorder) Display() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.display
}

// Memory returns the last memory indicator text.
func (r *Recorder) Memory() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memory
}

// Effects returns a copy of all recorded effects.
func (r *Recorder) Effects() []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Effect{}, r.effects...)
}
