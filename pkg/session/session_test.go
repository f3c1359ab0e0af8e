package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/openfroyo/pocketcalc/pkg/calculator"
	"github.com/openfroyo/pocketcalc/pkg/telemetry"
)

// newTestTelemetry returns telemetry with live metrics, sync events and an
// in-memory span recorder.
func newTestTelemetry(t *testing.T) (*telemetry.Telemetry, *tracetest.SpanRecorder) {
	t.Helper()

	tel := telemetry.NewNopTelemetry()
	metrics, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics() error: %v", err)
	}
	tel.Metrics = metrics
	tel.Events, _ = telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})

	sr := tracetest.NewSpanRecorder()
	tel.Tracer = telemetry.NewTracerWithProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)), "test")
	return tel, sr
}

func TestSession_PressKeys(t *testing.T) {
	rec := calculator.NewRecorder()
	s := New(context.Background(), nil, rec)
	defer s.Close()

	if rec.Display() != "0" {
		t.Fatalf("initial display = %q, want 0", rec.Display())
	}

	if _, err := s.PressKeys(context.Background(), "2 + 3 x 4 ="); err != nil {
		t.Fatalf("PressKeys() error: %v", err)
	}
	if rec.Display() != "20" {
		t.Errorf("display = %q, want 20", rec.Display())
	}

	snap := s.Snapshot()
	if snap.Display != "20" || snap.Presses != 6 || snap.State.Phase != calculator.PhaseResultShown {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestSession_PressKeysInvalid(t *testing.T) {
	s := New(context.Background(), nil, nil)

	_, err := s.PressKeys(context.Background(), "1 + %")
	if !errors.Is(err, calculator.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if s.Snapshot().Presses != 0 {
		t.Error("no key may be pressed when the sequence is invalid")
	}
}

func TestSession_WithOptions(t *testing.T) {
	s := New(context.Background(), nil, nil, WithID("fixed"), WithMemory(2.5))
	snap := s.Snapshot()
	if snap.SessionID != "fixed" {
		t.Errorf("id = %q", snap.SessionID)
	}
	if snap.Memory != "M: 2.50" {
		t.Errorf("memory = %q", snap.Memory)
	}
}

func TestSession_Metrics(t *testing.T) {
	tel, _ := newTestTelemetry(t)
	s := New(context.Background(), tel, nil)

	ctx := context.Background()
	s.PressKeys(ctx, "6 x 2 + 1 = M+ 5 / 0 =")
	s.Press(ctx, calculator.Event{Kind: calculator.EventDigit, Digit: 12})

	reg := tel.Metrics.Registry()
	expected := `
# HELP pcalc_evaluations_total Total number of successful binary evaluations, by operator
# TYPE pcalc_evaluations_total counter
pcalc_evaluations_total{operator="+"} 1
pcalc_evaluations_total{operator="×"} 1
# HELP pcalc_errors_total Total number of calculator errors, by error code
# TYPE pcalc_errors_total counter
pcalc_errors_total{code="DIVIDE_BY_ZERO"} 1
pcalc_errors_total{code="INVALID_EVENT"} 1
# HELP pcalc_memory_operations_total Total number of memory register operations
# TYPE pcalc_memory_operations_total counter
pcalc_memory_operations_total{operation="memory_add"} 1
# HELP pcalc_active_sessions Current number of open calculator sessions
# TYPE pcalc_active_sessions gauge
pcalc_active_sessions 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"pcalc_evaluations_total", "pcalc_errors_total", "pcalc_memory_operations_total", "pcalc_active_sessions")
	if err != nil {
		t.Error(err)
	}

	s.Close()
	s.Close()
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP pcalc_active_sessions Current number of open calculator sessions
# TYPE pcalc_active_sessions gauge
pcalc_active_sessions 0
`), "pcalc_active_sessions"); err != nil {
		t.Error(err)
	}
}

func TestSession_Events(t *testing.T) {
	tel, _ := newTestTelemetry(t)

	var mu sync.Mutex
	var got []string
	tel.Events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case telemetry.EventTypeDisplayChanged:
			got = append(got, "display "+e.Data["new"].(string))
		case telemetry.EventTypeMemoryChanged:
			got = append(got, "memory "+e.Data["indicator"].(string))
		case telemetry.EventTypeError:
			got = append(got, "error "+e.Data["code"].(string))
		}
	}, nil)

	s := New(context.Background(), tel, nil)
	defer s.Close()

	s.PressKeys(context.Background(), "4 M+ - sqrt 0 C")

	// The operator changes nothing on screen and C on "0" is not a change.
	want := "display 4,memory M: 4,display 2,display 0"

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, ",") != want {
		t.Errorf("events = %v, want %s", got, want)
	}
}

func TestSession_ErrorEvent(t *testing.T) {
	tel, _ := newTestTelemetry(t)

	var codes []string
	tel.Events.Subscribe(func(e telemetry.Event) {
		codes = append(codes, e.Data["code"].(string))
	}, telemetry.FilterByType(telemetry.EventTypeError))

	s := New(context.Background(), tel, nil)
	s.PressKeys(context.Background(), "0 log 5 - 9 = sqrt")

	if strings.Join(codes, ",") != "NON_POSITIVE_LOG_OPERAND,NEGATIVE_SQRT_OPERAND" {
		t.Errorf("codes = %v", codes)
	}
}

func TestSession_Spans(t *testing.T) {
	tel, sr := newTestTelemetry(t)
	s := New(context.Background(), tel, nil)

	s.PressKeys(context.Background(), "9 / 0 =")
	s.Close()

	var presses []sdktrace.ReadOnlySpan
	var session sdktrace.ReadOnlySpan
	for _, span := range sr.Ended() {
		switch span.Name() {
		case "calculator.press":
			presses = append(presses, span)
		case "calculator.session":
			session = span
		}
	}

	if len(presses) != 4 {
		t.Fatalf("expected 4 press spans, got %d", len(presses))
	}
	if session == nil {
		t.Fatal("session span not ended")
	}
	for _, p := range presses {
		if p.Parent().SpanID() != session.SpanContext().SpanID() {
			t.Errorf("press span %s is not a child of the session", p.Name())
		}
	}
	if len(presses[3].Events()) == 0 {
		t.Error("expected the divide by zero to be recorded on the last press span")
	}
}

func TestSession_Run(t *testing.T) {
	rec := calculator.NewRecorder()
	s := New(context.Background(), nil, rec)

	events := make(chan calculator.Event)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), events)
	}()

	for _, ev := range []calculator.Event{
		calculator.Digit(1), calculator.Digit(0),
		calculator.OperatorKey(calculator.OperatorDivide),
		calculator.Digit(4), calculator.Equals(),
	} {
		events <- ev
	}
	close(events)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if rec.Display() != "2.5" {
		t.Errorf("display = %q, want 2.5", rec.Display())
	}
}

func TestSession_ClearAllKeepsMemory(t *testing.T) {
	rec := calculator.NewRecorder()
	s := New(context.Background(), nil, rec)

	ctx := context.Background()
	s.PressKeys(ctx, "7 M+ 3 +")
	s.ClearAll(ctx)

	snap := s.Snapshot()
	if snap.Display != "0" || snap.Memory != "M: 7" || !snap.State.Operator.IsNone() {
		t.Errorf("unexpected snapshot after clear all: %+v", snap)
	}
}

func TestWriterDisplay(t *testing.T) {
	var buf bytes.Buffer
	rec := calculator.NewRecorder()
	s := New(context.Background(), nil, MultiDisplay{NewWriterDisplay(&buf), rec})

	s.PressKeys(context.Background(), "5 M+ MC")

	want := "display: 0\nmemory:  -\ndisplay: 5\nmemory:  M: 5\nmemory:  -\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}
	if rec.Display() != "5" {
		t.Errorf("recorder display = %q", rec.Display())
	}
}

func TestSession_Reset(t *testing.T) {
	tel, _ := newTestTelemetry(t)
	ctx := context.Background()

	rec := calculator.NewRecorder()
	s := New(ctx, tel, rec, WithMemory(4))
	defer s.Close()

	var got []string
	s.Subscribe(func(e telemetry.Event) {
		got = append(got, e.Type)
	}, telemetry.EventTypeDisplayChanged, telemetry.EventTypeMemoryChanged)

	other := New(ctx, tel, nil)
	defer other.Close()
	other.PressKeys(ctx, "9")

	s.PressKeys(ctx, "12 +")
	s.Reset()

	state := s.Engine.State()
	if state.Memory != 0 || state.Phase != calculator.PhaseEmpty || !state.Operator.IsNone() {
		t.Errorf("reset left state %+v", state)
	}
	if rec.Display() != "0" || rec.Memory() != "" {
		t.Errorf("display %q, memory %q after reset", rec.Display(), rec.Memory())
	}

	want := "display.changed,display.changed,display.changed,memory.changed"
	if strings.Join(got, ",") != want {
		t.Errorf("events = %v, want %s", got, want)
	}
}

func TestSession_DroppedEventsAreLogged(t *testing.T) {
	var buf bytes.Buffer

	tel := telemetry.NewNopTelemetry()
	tel.Logger = telemetry.NewLoggerWithWriter(telemetry.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	tel.Events, _ = telemetry.NewEventPublisher(telemetry.EventsConfig{
		Enabled: true, EnableAsync: true, BufferSize: 1, MaxBatchSize: 1,
	})

	// The subscriber holds the delivery goroutine, so the buffer fills.
	release := make(chan struct{})
	tel.Events.Subscribe(func(telemetry.Event) { <-release }, nil)
	defer func() {
		close(release)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		tel.Events.Shutdown(ctx)
	}()

	s := New(context.Background(), tel, nil)
	s.PressKeys(context.Background(), "1 2 3")

	if !strings.Contains(buf.String(), "telemetry event dropped") {
		t.Fatalf("expected a dropped event warning, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), telemetry.ErrBufferFull.Error()) {
		t.Errorf("expected the buffer error in the log, got %s", buf.String())
	}
}
