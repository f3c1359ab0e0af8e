package calculator

import (
	"encoding/json"
	"fmt"
)

// Operator is a pending binary operator.
type Operator string

const (
	// OperatorNone indicates that no operator has been chosen.
	OperatorNone Operator = ""

	// OperatorAdd adds the second operand to the first.
	OperatorAdd Operator = "+"

	// OperatorSubtract subtracts the second operand from the first.
	OperatorSubtract Operator = "-"

	// OperatorMultiply multiplies both operands.
	OperatorMultiply Operator = "×"

	// OperatorDivide divides the first operand by the second.
	OperatorDivide Operator = "÷"
)

// IsNone returns true if no operator is set.
func (o Operator) IsNone() bool {
	return o == OperatorNone
}

// Validate checks if the operator is one of the four binary operators.
func (o Operator) Validate() error {
	switch o {
	case OperatorAdd, OperatorSubtract, OperatorMultiply, OperatorDivide:
		return nil
	default:
		return fmt.Errorf("invalid operator: %q", string(o))
	}
}

// Apply computes first <op> second.
// Division by zero returns ErrDivideByZero instead of an infinity.
func (o Operator) Apply(first, second float64) (float64, error) {
	switch o {
	case OperatorAdd:
		return first + second, nil
	case OperatorSubtract:
		return first - second, nil
	case OperatorMultiply:
		return first * second, nil
	case OperatorDivide:
		if second == 0 {
			return 0, newDomainError(ErrCodeDivideByZero, "equals", second)
		}
		return first / second, nil
	default:
		return 0, nil
	}
}

// EventKind identifies an inbound button press.
type EventKind string

const (
	EventDigit          EventKind = "digit"
	EventDecimalPoint   EventKind = "decimal_point"
	EventOperator       EventKind = "operator"
	EventEquals         EventKind = "equals"
	EventClear          EventKind = "clear"
	EventClearAll       EventKind = "clear_all"
	EventBackspace      EventKind = "backspace"
	EventSqrt           EventKind = "sqrt"
	EventLog            EventKind = "log"
	EventMemoryAdd      EventKind = "memory_add"
	EventMemorySubtract EventKind = "memory_subtract"
	EventMemoryRecall   EventKind = "memory_recall"
	EventMemoryClear    EventKind = "memory_clear"
)

// Validate checks if the event kind is known.
func (k EventKind) Validate() error {
	switch k {
	case EventDigit, EventDecimalPoint, EventOperator, EventEquals,
		EventClear, EventClearAll, EventBackspace, EventSqrt, EventLog,
		EventMemoryAdd, EventMemorySubtract, EventMemoryRecall, EventMemoryClear:
		return nil
	default:
		return fmt.Errorf("invalid event kind: %s", k)
	}
}

// IsMemory returns true for the four memory register keys.
func (k EventKind) IsMemory() bool {
	return k == EventMemoryAdd || k == EventMemorySubtract ||
		k == EventMemoryRecall || k == EventMemoryClear
}

// Event is a single button press consumed by the engine.
type Event struct {
	// Kind is the pressed button.
	Kind EventKind `json:"kind"`

	// Digit is the pressed digit for EventDigit.
	Digit int `json:"digit,omitempty"`

	// Operator is the pressed operator for EventOperator.
	Operator Operator `json:"operator,omitempty"`
}

// Digit returns the event for pressing digit d (0-9).
func Digit(d int) Event { return Event{Kind: EventDigit, Digit: d} }

// DecimalPoint returns the event for pressing ".".
func DecimalPoint() Event { return Event{Kind: EventDecimalPoint} }

// OperatorKey returns the event for pressing a binary operator.
func OperatorKey(op Operator) Event { return Event{Kind: EventOperator, Operator: op} }

func Equals() Event         { return Event{Kind: EventEquals} }
func Clear() Event          { return Event{Kind: EventClear} }
func ClearAll() Event       { return Event{Kind: EventClearAll} }
func Backspace() Event      { return Event{Kind: EventBackspace} }
func Sqrt() Event           { return Event{Kind: EventSqrt} }
func Log() Event            { return Event{Kind: EventLog} }
func MemoryAdd() Event      { return Event{Kind: EventMemoryAdd} }
func MemorySubtract() Event { return Event{Kind: EventMemorySubtract} }
func MemoryRecall() Event   { return Event{Kind: EventMemoryRecall} }
func MemoryClear() Event    { return Event{Kind: EventMemoryClear} }

// Validate checks that the event carries a usable payload.
func (e Event) Validate() error {
	if err := e.Kind.Validate(); err != nil {
		return newInputError(ErrCodeInvalidEvent, err.Error())
	}
	switch e.Kind {
	case EventDigit:
		if e.Digit < 0 || e.Digit > 9 {
			return newInputError(ErrCodeInvalidEvent, fmt.Sprintf("digit out of range: %d", e.Digit))
		}
	case EventOperator:
		if err := e.Operator.Validate(); err != nil {
			return newInputError(ErrCodeInvalidEvent, err.Error())
		}
	}
	return nil
}

// token returns the text appended to the input for digit and decimal events.
func (e Event) token() string {
	if e.Kind == EventDecimalPoint {
		return "."
	}
	return string(rune('0' + e.Digit))
}

// String renders the event for logs.
func (e Event) String() string {
	switch e.Kind {
	case EventDigit, EventDecimalPoint:
		return e.token()
	case EventOperator:
		return string(e.Operator)
	default:
		return string(e.Kind)
	}
}

// Phase is the explicit state tag of the engine.
type Phase string

const (
	// PhaseEmpty indicates nothing has been typed.
	PhaseEmpty Phase = "empty"

	// PhaseEnteringFirst indicates the first operand is being typed.
	PhaseEnteringFirst Phase = "entering_first"

	// PhaseOperatorPending indicates an operator was just chosen; the next
	// digit starts the second operand.
	PhaseOperatorPending Phase = "operator_pending"

	// PhaseEnteringSecond indicates the second operand is being typed.
	PhaseEnteringSecond Phase = "entering_second"

	// PhaseResultShown indicates the input holds a computed value; the next
	// digit starts a fresh number.
	PhaseResultShown Phase = "result_shown"

	// PhaseResultPending indicates a function or memory recall replaced the
	// input right after an operator was chosen. The next operator replaces
	// the pending one instead of evaluating it.
	PhaseResultPending Phase = "result_pending"

	// PhaseError indicates the display shows an error message.
	PhaseError Phase = "error"
)

// Validate checks if the phase is valid.
func (p Phase) Validate() error {
	switch p {
	case PhaseEmpty, PhaseEnteringFirst, PhaseOperatorPending,
		PhaseEnteringSecond, PhaseResultShown, PhaseResultPending, PhaseError:
		return nil
	default:
		return fmt.Errorf("invalid phase: %s", p)
	}
}

// StartsFresh returns true if the next digit discards the current input.
func (p Phase) StartsFresh() bool {
	switch p {
	case PhaseResultShown, PhaseOperatorPending, PhaseResultPending, PhaseError:
		return true
	}
	return false
}

// AwaitsSecond returns true if an operator was chosen and no digit of the
// second operand has been typed since.
func (p Phase) AwaitsSecond() bool {
	return p == PhaseOperatorPending || p == PhaseResultPending
}

// Computed returns true if the input holds a computed value that backspace
// must not edit.
func (p Phase) Computed() bool {
	return p == PhaseResultShown || p == PhaseResultPending
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*p = Phase(str)
	return p.Validate()
}

// EffectKind identifies an outbound effect.
type EffectKind string

const (
	// EffectSetDisplay replaces the main display text.
	EffectSetDisplay EffectKind = "set_display"

	// EffectSetMemoryIndicator replaces the memory indicator text.
	EffectSetMemoryIndicator EffectKind = "set_memory_indicator"
)

// Effect is an outbound instruction for the display collaborator.
type Effect struct {
	Kind EffectKind `json:"kind"`
	Text string     `json:"text"`
}

// SetDisplay returns a display effect.
func SetDisplay(text string) Effect {
	return Effect{Kind: EffectSetDisplay, Text: text}
}

// SetMemoryIndicator returns a memory indicator effect.
func SetMemoryIndicator(text string) Effect {
	return Effect{Kind: EffectSetMemoryIndicator, Text: text}
}

// State is the complete calculator state. It is a plain value; transitions
// return a new State rather than mutating the old one.
type State struct {
	// Phase is the explicit state tag.
	Phase Phase `json:"phase"`

	// Input is the text of the operand being typed or shown.
	Input string `json:"input"`

	// Operator is the pending binary operator, if any.
	Operator Operator `json:"operator,omitempty"`

	// First is the first operand of the pending or last operation.
	First float64 `json:"first"`

	// Second is the second operand of the last completed operation.
	Second float64 `json:"second"`

	// Memory is the memory register.
	Memory float64 `json:"memory"`

	// Fault is the error on the display. It stays set until the display
	// changes, which may be after an operator was chosen.
	Fault *Error `json:"fault,omitempty"`
}

// Display returns the text shown on the main display.
func (s State) Display() string {
	if s.Fault != nil {
		return s.Fault.Message
	}
	if s.Input == "" {
		return "0"
	}
	return s.Input
}

// MemoryIndicator returns the memory indicator text.
func (s State) MemoryIndicator() string {
	return FormatMemory(s.Memory)
}
