package calculator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEngine_DispatchInvalidEvent(t *testing.T) {
	eng := NewEngine()
	ctx := context.Background()

	if _, err := eng.Dispatch(ctx, Digit(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := eng.Dispatch(ctx, Event{Kind: EventDigit, Digit: 10})
	if err == nil {
		t.Fatal("expected error for out-of-range digit")
	}
	if !IsInputError(err) {
		t.Errorf("expected input error, got %v", err)
	}
	if !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
	if eng.State().Input != "3" {
		t.Errorf("state changed by invalid event: %q", eng.State().Input)
	}

	if _, err := eng.Dispatch(ctx, Event{Kind: "percent"}); !IsInputError(err) {
		t.Errorf("expected input error for unknown kind, got %v", err)
	}
}

func TestEngine_DomainErrorsAreNotReturned(t *testing.T) {
	rec := NewRecorder()
	eng := NewEngine(WithDisplay(rec))

	_, err := eng.DispatchAll(context.Background(), []Event{
		Digit(5), OperatorKey(OperatorDivide), Digit(0), Equals(),
	})
	if err != nil {
		t.Fatalf("domain error escaped: %v", err)
	}

	state := eng.State()
	if state.Phase != PhaseError {
		t.Fatalf("phase = %s, want %s", state.Phase, PhaseError)
	}
	if !errors.Is(state.Fault, ErrDivideByZero) {
		t.Errorf("fault = %v, want divide by zero", state.Fault)
	}
	if !IsDomainError(state.Fault) {
		t.Errorf("expected domain error class")
	}
	if rec.Display() != "Cannot divide by zero" {
		t.Errorf("display = %q", rec.Display())
	}
}

func TestEngine_Observer(t *testing.T) {
	var steps []Step
	eng := NewEngine(WithObserver(func(ctx context.Context, step Step) {
		steps = append(steps, step)
	}))

	ctx := context.Background()
	eng.Dispatch(ctx, Digit(4))
	eng.Dispatch(ctx, Sqrt())

	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	last := steps[1]
	if last.Before.Input != "4" || last.After.Input != "2" {
		t.Errorf("unexpected step: %+v", last)
	}
	if last.After.Phase != PhaseResultShown {
		t.Errorf("phase = %s", last.After.Phase)
	}
}

func TestStep_EvaluatedAndFault(t *testing.T) {
	var steps []Step
	eng := NewEngine(WithObserver(func(_ context.Context, step Step) {
		steps = append(steps, step)
	}))

	// 6 × 2 + 1 ÷ 0 =
	eng.DispatchAll(context.Background(), []Event{
		Digit(6), OperatorKey(OperatorMultiply), Digit(2),
		OperatorKey(OperatorAdd), Digit(1),
		OperatorKey(OperatorDivide), Digit(0), Equals(),
		Digit(3),
	})

	var evaluated []Operator
	var faults []ErrorCode
	for _, st := range steps {
		if op, ok := st.Evaluated(); ok {
			evaluated = append(evaluated, op)
		}
		if f := st.Fault(); f != nil {
			faults = append(faults, f.Code)
		}
	}

	if len(evaluated) != 2 || evaluated[0] != OperatorMultiply || evaluated[1] != OperatorAdd {
		t.Errorf("evaluated = %v, want [× +]", evaluated)
	}
	if len(faults) != 1 || faults[0] != ErrCodeDivideByZero {
		t.Errorf("faults = %v, want [DIVIDE_BY_ZERO]", faults)
	}
}

func TestStep_FailedChainIsNotEvaluated(t *testing.T) {
	var last Step
	eng := NewEngine(WithObserver(func(_ context.Context, step Step) {
		last = step
	}))

	eng.DispatchAll(context.Background(), []Event{
		Digit(8), OperatorKey(OperatorDivide), Digit(0), OperatorKey(OperatorAdd),
	})

	if op, ok := last.Evaluated(); ok {
		t.Errorf("failed chain reported as evaluated %s", op)
	}
	if f := last.Fault(); f == nil || f.Code != ErrCodeDivideByZero {
		t.Errorf("fault = %v, want DIVIDE_BY_ZERO", f)
	}
	if last.After.Operator != OperatorAdd {
		t.Errorf("operator = %q, want +", last.After.Operator)
	}
}

func TestEngine_WithMemory(t *testing.T) {
	rec := NewRecorder()
	eng := NewEngine(WithDisplay(rec), WithMemory(-4))
	eng.Start()

	if rec.Memory() != "M: -4" {
		t.Errorf("memory indicator = %q, want %q", rec.Memory(), "M: -4")
	}

	eng.DispatchAll(context.Background(), []Event{MemoryRecall(), Sqrt()})
	if rec.Display() != "Cannot calculate square root of negative number" {
		t.Errorf("display = %q", rec.Display())
	}
}

func TestEngine_Reset(t *testing.T) {
	rec := NewRecorder()
	eng := NewEngine(WithDisplay(rec), WithMemory(9))
	eng.Dispatch(context.Background(), Digit(8))

	eng.Reset()

	state := eng.State()
	if state.Input != "" || state.Memory != 0 || state.Phase != PhaseEmpty {
		t.Errorf("reset left state %+v", state)
	}
	if rec.Display() != "0" || rec.Memory() != "" {
		t.Errorf("display %q, memory %q after reset", rec.Display(), rec.Memory())
	}
}

func TestEngine_Run(t *testing.T) {
	rec := NewRecorder()
	eng := NewEngine(WithDisplay(rec))

	events := make(chan Event)
	done := make(chan error, 1)
	go func() {
		done <- eng.Run(context.Background(), events)
	}()

	for _, ev := range []Event{Digit(2), OperatorKey(OperatorAdd), Digit(3), OperatorKey(OperatorMultiply), Digit(4), Equals()} {
		events <- ev
	}
	events <- Event{Kind: EventDigit, Digit: -1}
	close(events)

	select {
	case err := <-done:
		if !IsInputError(err) {
			t.Errorf("expected the skipped invalid event to be reported, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}

	if rec.Display() != "20" {
		t.Errorf("display = %q, want %q", rec.Display(), "20")
	}
}

func TestEngine_RunCancelled(t *testing.T) {
	eng := NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eng.Run(ctx, make(chan Event))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEngine_ConcurrentDispatch(t *testing.T) {
	eng := NewEngine()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				eng.Dispatch(ctx, Digit(1))
				eng.Dispatch(ctx, MemoryAdd())
				eng.Dispatch(ctx, ClearAll())
			}
		}()
	}
	wg.Wait()

	if eng.State().Memory <= 0 {
		t.Errorf("expected positive memory, got %v", eng.State().Memory)
	}
}
