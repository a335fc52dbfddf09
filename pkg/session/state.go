package session

import "fmt"

// ConnectionState is the lifecycle of the transport connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	// Connecting means Run started and session.created has not arrived yet.
	Connecting
	Open
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("connection_state(%d)", int(s))
}

// State is the mutable session state. The Coordinator owns it exclusively;
// callers only ever see copies.
//
// Recording and ModelResponding are never both true.
type State struct {
	Connection      ConnectionState
	UserSpeaking    bool
	ModelResponding bool
	Recording       bool
	Playing         bool

	SessionID string
}
