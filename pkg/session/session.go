// Package session binds a calculator engine to telemetry.
//
// A Session owns one engine and instruments every key press with a span,
// metrics, a debug log line and telemetry events. It is the unit the CLI,
// the script runner and the MCP server work with.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/pocketcalc/pkg/calculator"
	"github.com/openfroyo/pocketcalc/pkg/keypad"
	"github.com/openfroyo/pocketcalc/pkg/telemetry"
)

// Session is one calculator engine with its instrumentation.
type Session struct {
	// ID uniquely identifies the session in logs, spans and events.
	ID string

	// Engine is the underlying calculator.
	Engine *calculator.Engine

	tel    *telemetry.Telemetry
	ctx    context.Context
	logger *telemetry.Logger

	mu      sync.Mutex
	presses int
	closed  bool
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID string           `json:"session_id"`
	Display   string           `json:"display"`
	Memory    string           `json:"memory_indicator"`
	Presses   int              `json:"presses"`
	State     calculator.State `json:"state"`
}

// Option configures a Session.
type Option func(*options)

type options struct {
	id     string
	memory float64
}

// WithID sets the session ID instead of generating one.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithMemory seeds the engine's memory register.
func WithMemory(v float64) Option {
	return func(o *options) {
		o.memory = v
	}
}

// New creates a session and emits the initial display to display. A nil
// tel disables instrumentation; a nil display discards effects.
func New(ctx context.Context, tel *telemetry.Telemetry, display calculator.Display, opts ...Option) *Session {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.New().String()
	}
	if tel == nil {
		tel = telemetry.NewNopTelemetry()
	}

	s := &Session{
		ID:  o.id,
		tel: tel,
	}

	s.ctx = telemetry.WithSessionContext(tel.WithContext(ctx), s.ID)
	s.logger = tel.Logger.NewComponentLogger("calculator").WithSessionID(s.ID)

	engineOpts := []calculator.Option{
		calculator.WithMemory(o.memory),
		calculator.WithObserver(s.observe),
	}
	if display != nil {
		engineOpts = append(engineOpts, calculator.WithDisplay(display))
	}
	s.Engine = calculator.NewEngine(engineOpts...)
	s.Engine.Start()

	s.logger.Info("session started")
	return s
}

// Press applies one key press. Domain errors are shown on the display and
// are not returned; input errors are returned and leave the state unchanged.
func (s *Session) Press(ctx context.Context, ev calculator.Event) ([]calculator.Effect, error) {
	// Nest the press under the session span unless the caller has its own.
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		ctx = trace.ContextWithSpan(ctx, trace.SpanFromContext(s.ctx))
	}

	label := keypad.Label(ev)
	ctx, span := s.tel.Tracer.StartPressSpan(ctx, s.ID, string(ev.Kind), label)
	defer span.End()

	timer := telemetry.NewTimer()
	effects, err := s.Engine.Dispatch(ctx, ev)
	if err != nil {
		telemetry.RecordError(span, err)
		s.tel.Metrics.RecordError(string(calculator.CodeOf(err)))
		s.logger.WithError(err).Warn("key press rejected")
		return nil, err
	}

	s.tel.Metrics.RecordKeypress(string(ev.Kind), timer.Duration())
	s.mu.Lock()
	s.presses++
	s.mu.Unlock()

	state := s.Engine.State()
	span.SetAttributes(
		telemetry.AttrPhase.String(string(state.Phase)),
		telemetry.AttrDisplay.String(state.Display()),
	)
	if state.Fault == nil {
		telemetry.RecordSuccess(span)
	}

	s.logger.WithEvent(string(ev.Kind), label).Zerolog().Debug().
		Str("phase", string(state.Phase)).
		Str("display", state.Display()).
		Msg("key pressed")

	return effects, nil
}

// PressKeys parses a key sequence and presses each key in order. It stops
// at the first unknown key without pressing anything.
func (s *Session) PressKeys(ctx context.Context, keys string) ([]calculator.Effect, error) {
	events, err := keypad.ParseSequence(keys)
	if err != nil {
		return nil, err
	}
	s.logger.Zerolog().Debug().
		Str("keys", keypad.FormatSequence(events)).
		Int("count", len(events)).
		Msg("pressing keys")

	var all []calculator.Effect
	for _, ev := range events {
		effects, err := s.Press(ctx, ev)
		if err != nil {
			return all, err
		}
		all = append(all, effects...)
	}
	return all, nil
}

// Run presses events received on the channel until it is closed or ctx is
// done. Invalid events are skipped and the first one is returned when the
// channel closes.
func (s *Session) Run(ctx context.Context, events <-chan calculator.Event) error {
	var firstErr error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return firstErr
			}
			if _, err := s.Press(ctx, ev); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
}

// ClearAll resets the session: input, operator and operands. Memory is kept.
func (s *Session) ClearAll(ctx context.Context) ([]calculator.Effect, error) {
	return s.Press(ctx, calculator.ClearAll())
}

// Reset returns the calculator to its initial state, memory included.
func (s *Session) Reset() []calculator.Effect {
	before := s.Engine.State()
	effects := s.Engine.Reset()

	if old := before.Display(); old != "0" {
		s.publish(s.tel.Events.PublishDisplayChanged(s.ID, old, "0"))
	}
	if before.MemoryIndicator() != "" {
		s.publish(s.tel.Events.PublishMemoryChanged(s.ID, ""))
	}
	s.logger.Info("session reset")
	return effects
}

// Subscribe registers subscriber for this session's telemetry events of
// the given types, or of every type when none are given.
func (s *Session) Subscribe(subscriber telemetry.EventSubscriber, types ...string) {
	bySession := telemetry.FilterBySession(s.ID)
	byType := telemetry.FilterByType(types...)
	s.tel.Events.Subscribe(subscriber, func(e telemetry.Event) bool {
		return bySession(e) && (len(types) == 0 || byType(e))
	})
}

// Snapshot returns the current display, memory indicator and state.
func (s *Session) Snapshot() Snapshot {
	state := s.Engine.State()

	s.mu.Lock()
	presses := s.presses
	s.mu.Unlock()

	return Snapshot{
		SessionID: s.ID,
		Display:   state.Display(),
		Memory:    state.MemoryIndicator(),
		Presses:   presses,
		State:     state,
	}
}

// Close ends the session span and records the session end. Calling Close
// more than once has no further effect.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	presses := s.presses
	s.mu.Unlock()

	telemetry.EndSessionContext(s.ctx, s.ID, presses, nil)
	s.logger.Zerolog().Info().Int("presses", presses).Msg("session closed")
	return nil
}

// observe turns applied steps into metrics, span events and telemetry events.
func (s *Session) observe(ctx context.Context, step calculator.Step) {
	span := trace.SpanFromContext(ctx)

	if op, ok := step.Evaluated(); ok {
		s.tel.Metrics.RecordEvaluation(string(op))
		telemetry.AddEvent(span, "evaluated", telemetry.AttrOperator.String(string(op)))
	}

	if step.Event.Kind.IsMemory() {
		s.tel.Metrics.RecordMemoryOperation(string(step.Event.Kind))
	}

	if fault := step.Fault(); fault != nil {
		s.tel.Metrics.RecordError(string(fault.Code))
		span.SetAttributes(
			telemetry.AttrErrorClass.String(string(fault.Class)),
			telemetry.AttrErrorCode.String(string(fault.Code)),
		)
		telemetry.RecordError(span, fault)
		s.publish(s.tel.Events.PublishError(s.ID, string(fault.Code), fault.Message))
		s.logger.Zerolog().Warn().
			Str("code", string(fault.Code)).
			Str("operation", fault.Operation).
			Float64("operand", fault.Operand).
			Msg(fault.Message)
	}

	oldDisplay := step.Before.Display()
	oldMemory := step.Before.MemoryIndicator()
	for _, eff := range step.Effects {
		switch eff.Kind {
		case calculator.EffectSetDisplay:
			if eff.Text != oldDisplay {
				s.publish(s.tel.Events.PublishDisplayChanged(s.ID, oldDisplay, eff.Text))
			}
		case calculator.EffectSetMemoryIndicator:
			if eff.Text != oldMemory {
				s.publish(s.tel.Events.PublishMemoryChanged(s.ID, eff.Text))
			}
		}
	}
}

// publish logs an event the publisher could not accept, such as one dropped
// because the async buffer is full.
func (s *Session) publish(err error) {
	if err != nil {
		s.logger.WithError(err).Warn("telemetry event dropped")
	}
}
