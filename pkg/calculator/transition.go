package calculator

import (
	"math"
	"strings"
)

// Transition applies one event to a state and returns the next state with
// the effects for the display collaborator. It never fails: domain faults
// are recorded in Fault and shown on the display, and invalid events leave
// the state unchanged.
func Transition(s State, ev Event) (State, []Effect) {
	if ev.Validate() != nil {
		return s, nil
	}

	switch ev.Kind {
	case EventDigit, EventDecimalPoint:
		return onDigit(s, ev.token())
	case EventOperator:
		return onOperator(s, ev.Operator)
	case EventEquals:
		return onEquals(s)
	case EventClear:
		return onClear(s)
	case EventClearAll:
		return onClearAll(s)
	case EventBackspace:
		return onBackspace(s)
	case EventSqrt:
		return onUnary(s, func(v float64) (float64, *Error) {
			if v < 0 {
				return 0, newDomainError(ErrCodeNegativeSqrtOperand, "sqrt", v)
			}
			return math.Sqrt(v), nil
		})
	case EventLog:
		return onUnary(s, func(v float64) (float64, *Error) {
			if v <= 0 {
				return 0, newDomainError(ErrCodeNonPositiveLogOperand, "log", v)
			}
			return math.Log10(v), nil
		})
	case EventMemoryAdd:
		return onMemoryAdjust(s, 1)
	case EventMemorySubtract:
		return onMemoryAdjust(s, -1)
	case EventMemoryRecall:
		return onMemoryRecall(s)
	case EventMemoryClear:
		s.Memory = 0
		return s, []Effect{SetMemoryIndicator(s.MemoryIndicator())}
	}
	return s, nil
}

// entering returns the typing phase that matches the pending operator.
func entering(s State) Phase {
	if s.Operator.IsNone() {
		return PhaseEnteringFirst
	}
	return PhaseEnteringSecond
}

func display(s State) []Effect {
	return []Effect{SetDisplay(s.Display())}
}

func onDigit(s State, tok string) (State, []Effect) {
	if s.Phase.StartsFresh() {
		s.Input = ""
		s.Fault = nil
		s.Phase = entering(s)
	}

	if tok == "." && strings.Contains(s.Input, ".") {
		return s, nil
	}

	if s.Input == "0" && tok != "." {
		s.Input = tok
	} else {
		s.Input += tok
	}
	if s.Phase == PhaseEmpty {
		s.Phase = PhaseEnteringFirst
	}
	return s, display(s)
}

func onOperator(s State, op Operator) (State, []Effect) {
	if s.Input == "" {
		return s, nil
	}

	var effects []Effect
	if !s.Operator.IsNone() && !s.Phase.AwaitsSecond() {
		// Chain left to right: finish the pending operation first. A failed
		// step still arms the new operator with a zero first operand while
		// the error stays on the display.
		s, effects = evaluate(s)
	}

	s.First = Parse(s.Input)
	s.Operator = op
	s.Phase = PhaseOperatorPending
	return s, effects
}

func onEquals(s State) (State, []Effect) {
	if s.Input == "" || s.Operator.IsNone() {
		return s, nil
	}
	return evaluate(s)
}

// evaluate completes the pending operation with Input as the second operand.
func evaluate(s State) (State, []Effect) {
	second := Parse(s.Input)
	result, err := s.Operator.Apply(s.First, second)
	if err != nil {
		return fail(s, err.(*Error))
	}

	s.Second = second
	s.Input = Format(result)
	s.Operator = OperatorNone
	s.Phase = PhaseResultShown
	return s, display(s)
}

// fail puts the engine in the error phase. Operands and memory are kept.
func fail(s State, err *Error) (State, []Effect) {
	s.Input = ""
	s.Operator = OperatorNone
	s.Phase = PhaseError
	s.Fault = err
	return s, display(s)
}

// onClear drops the input only. A chosen operator keeps waiting for its
// second operand.
func onClear(s State) (State, []Effect) {
	s.Input = ""
	s.Fault = nil
	switch {
	case s.Operator.IsNone():
		s.Phase = PhaseEmpty
	case s.Phase.AwaitsSecond():
		s.Phase = PhaseOperatorPending
	default:
		s.Phase = PhaseEnteringSecond
	}
	return s, display(s)
}

func onClearAll(s State) (State, []Effect) {
	s = State{Phase: PhaseEmpty, Memory: s.Memory}
	return s, display(s)
}

func onBackspace(s State) (State, []Effect) {
	if s.Input == "" || s.Phase.Computed() {
		return s, nil
	}

	s.Input = s.Input[:len(s.Input)-1]
	if s.Input == "" && s.Phase == PhaseEnteringFirst {
		s.Phase = PhaseEmpty
	}
	return s, display(s)
}

func onUnary(s State, fn func(float64) (float64, *Error)) (State, []Effect) {
	if s.Input == "" {
		return s, nil
	}

	result, err := fn(Parse(s.Input))
	if err != nil {
		return fail(s, err)
	}

	s.Input = Format(result)
	s.Phase = shown(s)
	return s, display(s)
}

// shown returns the phase for a value placed on the display by a function
// or memory recall.
func shown(s State) Phase {
	if s.Phase.AwaitsSecond() {
		return PhaseResultPending
	}
	return PhaseResultShown
}

func onMemoryAdjust(s State, sign float64) (State, []Effect) {
	if s.Input == "" {
		return s, nil
	}
	s.Memory += sign * Parse(s.Input)
	return s, []Effect{SetMemoryIndicator(s.MemoryIndicator())}
}

func onMemoryRecall(s State) (State, []Effect) {
	s.Input = Format(s.Memory)
	s.Fault = nil
	s.Phase = shown(s)
	return s, display(s)
}
