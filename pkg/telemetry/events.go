package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a telemetry event emitted by a calculator session or script run.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated (session, script).
	Source string `json:"source"`

	// SessionID is the associated session, if applicable.
	SessionID string `json:"session_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeSessionStarted = "session.started"
	EventTypeSessionEnded   = "session.ended"
	EventTypeDisplayChanged = "display.changed"
	EventTypeMemoryChanged  = "memory.changed"
	EventTypeError          = "calculator.error"
	EventTypeScriptPassed   = "script.passed"
	EventTypeScriptFailed   = "script.failed"
)

// Event severity levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// ErrPublisherStopped is returned by Publish after Shutdown.
var ErrPublisherStopped = errors.New("event publisher stopped")

// ErrBufferFull is returned when an async publisher cannot accept an event.
var ErrBufferFull = errors.New("event buffer full, event dropped")

// EventSubscriber handles a published event. Subscribers run on the
// publishing goroutine in sync mode and on the delivery goroutine in async
// mode; they must not block.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish stamps the event and hands it to subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}
	if ep.ctx.Err() != nil {
		return ErrPublisherStopped
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if !ep.config.EnableAsync {
		ep.deliverEvent(event)
		return nil
	}

	select {
	case ep.buffer <- event:
		return nil
	case <-ep.ctx.Done():
		return ErrPublisherStopped
	default:
		return ErrBufferFull
	}
}

// PublishSessionStarted publishes a session started event.
func (ep *EventPublisher) PublishSessionStarted(sessionID string) error {
	return ep.Publish(Event{
		Type:      EventTypeSessionStarted,
		Source:    "session",
		SessionID: sessionID,
		Message:   fmt.Sprintf("Session %s started", sessionID),
	})
}

// PublishSessionEnded publishes a session ended event.
func (ep *EventPublisher) PublishSessionEnded(sessionID string, presses int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:      EventTypeSessionEnded,
		Source:    "session",
		SessionID: sessionID,
		Message:   fmt.Sprintf("Session %s ended after %d key presses", sessionID, presses),
		Data: map[string]interface{}{
			"presses":  presses,
			"duration": duration.Seconds(),
		},
	})
}

// PublishDisplayChanged publishes a display change.
func (ep *EventPublisher) PublishDisplayChanged(sessionID, oldText, newText string) error {
	return ep.Publish(Event{
		Type:      EventTypeDisplayChanged,
		Source:    "session",
		SessionID: sessionID,
		Message:   fmt.Sprintf("Display changed from %q to %q", oldText, newText),
		Data: map[string]interface{}{
			"old": oldText,
			"new": newText,
		},
	})
}

// PublishMemoryChanged publishes a memory indicator change.
func (ep *EventPublisher) PublishMemoryChanged(sessionID, indicator string) error {
	return ep.Publish(Event{
		Type:      EventTypeMemoryChanged,
		Source:    "session",
		SessionID: sessionID,
		Message:   fmt.Sprintf("Memory indicator set to %q", indicator),
		Data: map[string]interface{}{
			"indicator": indicator,
		},
	})
}

// PublishError publishes a calculator error shown on the display.
func (ep *EventPublisher) PublishError(sessionID, code, message string) error {
	return ep.Publish(Event{
		Type:      EventTypeError,
		Source:    "session",
		SessionID: sessionID,
		Message:   message,
		Level:     EventLevelWarning,
		Data: map[string]interface{}{
			"code": code,
		},
	})
}

// PublishScriptResult publishes the outcome of a key script run.
func (ep *EventPublisher) PublishScriptResult(name string, passed bool, failures int, duration time.Duration) error {
	event := Event{
		Type:    EventTypeScriptPassed,
		Source:  "script",
		Message: fmt.Sprintf("Script %s passed", name),
		Data: map[string]interface{}{
			"script":   name,
			"failures": failures,
			"duration": duration.Seconds(),
		},
	}
	if !passed {
		event.Type = EventTypeScriptFailed
		event.Level = EventLevelError
		event.Message = fmt.Sprintf("Script %s failed with %d mismatches", name, failures)
	}
	return ep.Publish(event)
}

// Subscribe adds a new event subscriber. A nil filter accepts all events.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents drains the buffer in batches until shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			// Deliver once the buffer is momentarily empty or the batch is full.
			if len(ep.buffer) == 0 || len(batch) >= ep.config.MaxBatchSize {
				flush()
			}

		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all matching subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout: %w", ctx.Err())
	}
}

// LogSubscriber returns a subscriber that writes events to logger.
// Display and memory changes are logged at debug level, other events at
// the level matching their severity.
func LogSubscriber(logger *Logger) EventSubscriber {
	return func(event Event) {
		l := logger.WithField("event_type", event.Type)
		if event.SessionID != "" {
			l = l.WithSessionID(event.SessionID)
		}

		switch {
		case event.Level == EventLevelError:
			l.Errorf("%s: %s", event.Source, event.Message)
		case event.Level == EventLevelWarning:
			l.Warnf("%s: %s", event.Source, event.Message)
		case event.Type == EventTypeDisplayChanged || event.Type == EventTypeMemoryChanged:
			l.Debugf("%s: %s", event.Source, event.Message)
		default:
			l.Infof("%s: %s", event.Source, event.Message)
		}
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterBySession creates a filter that only allows events for one session.
func FilterBySession(sessionID string) EventFilter {
	return func(event Event) bool {
		return event.SessionID == sessionID
	}
}
