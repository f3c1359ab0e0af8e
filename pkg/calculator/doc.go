// Package calculator implements the state machine behind a basic on-screen
// calculator.
//
// # Overview
//
// The engine consumes discrete button events (digits, decimal point, the four
// binary operators, equals, clear, clear-all, backspace, square root, base-10
// logarithm and the memory keys M+, M-, MR, MC) and produces two kinds of
// effects: the text for the main display and the text for the memory
// indicator.
//
// All logic lives in a single pure function:
//
//	next, effects := calculator.Transition(state, calculator.Digit(7))
//
// Engine wraps Transition with a mutex, a Display collaborator and observers:
//
//	rec := calculator.NewRecorder()
//	eng := calculator.NewEngine(calculator.WithDisplay(rec))
//	eng.Start()
//	eng.DispatchAll(ctx, []calculator.Event{
//	    calculator.Digit(2), calculator.OperatorKey(calculator.OperatorAdd),
//	    calculator.Digit(2), calculator.Equals(),
//	})
//	rec.Display() // "4"
//
// # Phases
//
// The state carries an explicit Phase tag:
//
//   - Empty: nothing typed
//   - EnteringFirst: the first operand is being typed
//   - OperatorPending: an operator was just chosen
//   - EnteringSecond: the second operand is being typed
//   - ResultShown: the input holds a computed value
//   - Error: the display shows an error message
//
// Operators chain strictly left to right with no precedence:
// 2 + 3 × 4 = evaluates as (2 + 3) × 4 = 20.
//
// # Errors
//
// Division by zero, square root of a negative number and logarithm of a
// non-positive number are domain errors. They never escape Transition; the
// engine shows the message, clears the input and the pending operator, and
// the next digit starts a fresh number. Invalid events are input errors,
// returned by Engine.Dispatch without touching the state.
//
// # Formatting
//
// Computed values render as bare integers when integral (within the 32-bit
// range), otherwise with 8 decimal digits and trailing zeros stripped. The
// memory indicator uses two decimals and is empty when the register is zero.
package calculator
