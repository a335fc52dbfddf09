// Package relay holds the error taxonomy shared by the relay components.
//
// Components classify their failures as recoverable (absorbed at the
// component boundary, the session keeps running) or fatal (the activity or
// the whole session is torn down). Callers test the class with IsRecoverable
// and IsFatal rather than matching concrete error values.
package relay

import (
	"errors"
)

var (
	// ErrRecoverable marks a failure that is absorbed locally.
	// Examples: malformed inbound message, unknown function, task timeout.
	ErrRecoverable = errors.New("recoverable relay error")

	// ErrFatal marks a failure that ends an activity or the session.
	// Examples: transport loss, output device that cannot be opened.
	ErrFatal = errors.New("fatal relay error")
)

// IsRecoverable reports whether err is classified as recoverable.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal reports whether err is classified as fatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// ClassifiedError wraps an underlying error with its class.
type ClassifiedError struct {
	Underlying error
	Fatal      bool
	Message    string
}

func (e *ClassifiedError) Error() string {
	switch {
	case e.Message != "" && e.Underlying != nil:
		return e.Message + ": " + e.Underlying.Error()
	case e.Message != "":
		return e.Message
	case e.Underlying != nil:
		return e.Underlying.Error()
	}
	return "relay error"
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *ClassifiedError) Unwrap() []error {
	class := ErrRecoverable
	if e.Fatal {
		class = ErrFatal
	}
	if e.Underlying == nil {
		return []error{class}
	}
	return []error{class, e.Underlying}
}

// NewRecoverableError classifies underlying as recoverable.
func NewRecoverableError(underlying error, message string) error {
	return &ClassifiedError{
		Underlying: underlying,
		Fatal:      false,
		Message:    message,
	}
}

// NewFatalError classifies underlying as fatal.
func NewFatalError(underlying error, message string) error {
	return &ClassifiedError{
		Underlying: underlying,
		Fatal:      true,
		Message:    message,
	}
}
