package relay

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/matryer/is"
)

func TestClassification(t *testing.T) {
	is := is.New(t)

	rec := NewRecoverableError(io.ErrUnexpectedEOF, "decode message")
	is.True(IsRecoverable(rec))                  // recoverable class
	is.True(!IsFatal(rec))                       // not fatal
	is.True(errors.Is(rec, io.ErrUnexpectedEOF)) // cause is reachable
	is.Equal(rec.Error(), "decode message: unexpected EOF")

	fatal := NewFatalError(io.EOF, "transport closed")
	is.True(IsFatal(fatal))
	is.True(!IsRecoverable(fatal))
	is.True(errors.Is(fatal, io.EOF))
}

func TestClassification_Wrapped(t *testing.T) {
	is := is.New(t)

	err := fmt.Errorf("session: %w", NewFatalError(nil, "read loop"))
	is.True(IsFatal(err)) // class survives fmt.Errorf wrapping
	is.Equal(err.Error(), "session: read loop")
}

func TestClassifiedError_EmptyMessage(t *testing.T) {
	is := is.New(t)

	err := &ClassifiedError{Underlying: io.EOF}
	is.Equal(err.Error(), "EOF")

	err = &ClassifiedError{}
	is.Equal(err.Error(), "relay error")
	is.True(IsRecoverable(err)) // zero value is recoverable
}
