package calculator

import (
	"errors"
	"fmt"
)

// ErrorClass separates user-visible arithmetic faults from bad input.
type ErrorClass string

const (
	// ErrorClassDomain indicates an arithmetic domain violation. The engine
	// shows the message on the display and recovers on the next key press.
	ErrorClassDomain ErrorClass = "domain"

	// ErrorClassInput indicates an event or key the engine cannot accept.
	// The state is left untouched and the error is returned to the caller.
	ErrorClassInput ErrorClass = "input"
)

// ErrorCode identifies a specific calculator error.
type ErrorCode string

const (
	ErrCodeDivideByZero          ErrorCode = "DIVIDE_BY_ZERO"
	ErrCodeNegativeSqrtOperand   ErrorCode = "NEGATIVE_SQRT_OPERAND"
	ErrCodeNonPositiveLogOperand ErrorCode = "NON_POSITIVE_LOG_OPERAND"
	ErrCodeInvalidEvent          ErrorCode = "INVALID_EVENT"
	ErrCodeInvalidKey            ErrorCode = "INVALID_KEY"
)

// domainMessages are the texts put on the display.
var domainMessages = map[ErrorCode]string{
	ErrCodeDivideByZero:          "Cannot divide by zero",
	ErrCodeNegativeSqrtOperand:   "Cannot calculate square root of negative number",
	ErrCodeNonPositiveLogOperand: "Cannot calculate log of zero or negative number",
}

// Error is a classified calculator error.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code identifies the error for programmatic handling.
	Code ErrorCode `json:"code"`

	// Message is the human-readable message. For domain errors this is the
	// exact display text.
	Message string `json:"message"`

	// Operation is the key that triggered the error, if applicable.
	Operation string `json:"operation,omitempty"`

	// Operand is the offending operand for domain errors.
	Operand float64 `json:"operand,omitempty"`
}

// Sentinel errors for errors.Is comparisons.
var (
	ErrDivideByZero          = &Error{Class: ErrorClassDomain, Code: ErrCodeDivideByZero}
	ErrNegativeSqrtOperand   = &Error{Class: ErrorClassDomain, Code: ErrCodeNegativeSqrtOperand}
	ErrNonPositiveLogOperand = &Error{Class: ErrorClassDomain, Code: ErrCodeNonPositiveLogOperand}
	ErrInvalidEvent          = &Error{Class: ErrorClassInput, Code: ErrCodeInvalidEvent}
	ErrInvalidKey            = &Error{Class: ErrorClassInput, Code: ErrCodeInvalidKey}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation=%s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newDomainError(code ErrorCode, operation string, operand float64) *Error {
	return &Error{
		Class:     ErrorClassDomain,
		Code:      code,
		Message:   domainMessages[code],
		Operation: operation,
		Operand:   operand,
	}
}

func newInputError(code ErrorCode, message string) *Error {
	return &Error{
		Class:   ErrorClassInput,
		Code:    code,
		Message: message,
	}
}

// NewInvalidKeyError reports a key label that maps to no event.
func NewInvalidKeyError(key string) *Error {
	return newInputError(ErrCodeInvalidKey, fmt.Sprintf("unknown key: %q", key))
}

// IsDomainError returns true if err is a user-visible arithmetic fault.
func IsDomainError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassDomain
	}
	return false
}

// IsInputError returns true if err reports an unusable event or key.
func IsInputError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassInput
	}
	return false
}

// CodeOf returns the error code of err, or "" if err is not a calculator error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
