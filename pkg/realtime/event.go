// Package realtime speaks the wire protocol of the realtime voice service:
// it classifies inbound JSON messages into a closed set of events and builds
// the outbound client events (session.update, input_audio_buffer.append,
// conversation.item.create and response.create).
package realtime

import (
	"encoding/base64"
	"fmt"
)

// Server event types the relay reacts to.
const (
	TypeSessionCreated         = "session.created"
	TypeSessionUpdated         = "session.updated"
	TypeSpeechStarted          = "input_audio_buffer.speech_started"
	TypeSpeechStopped          = "input_audio_buffer.speech_stopped"
	TypeTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeAudioDelta             = "response.audio.delta"
	TypeAudioDone              = "response.audio.done"
	TypeFunctionCallDone       = "response.function_call_arguments.done"
	TypeError                  = "error"
)

// Client event types.
const (
	TypeSessionUpdate      = "session.update"
	TypeAudioAppend        = "input_audio_buffer.append"
	TypeConversationCreate = "conversation.item.create"
	TypeResponseCreate     = "response.create"
)

// Kind classifies an inbound message.
type Kind int

const (
	KindUnknown Kind = iota
	KindSessionCreated
	KindSessionUpdated
	KindUserSpeechStarted
	KindUserSpeechStopped
	KindTranscriptionCompleted
	KindAudioDelta
	KindAudioDone
	KindFunctionCallDone
	KindError
)

var kindNames = [...]string{
	KindUnknown:                "unknown",
	KindSessionCreated:         "session_created",
	KindSessionUpdated:         "session_updated",
	KindUserSpeechStarted:      "user_speech_started",
	KindUserSpeechStopped:      "user_speech_stopped",
	KindTranscriptionCompleted: "transcription_completed",
	KindAudioDelta:             "audio_delta",
	KindAudioDone:              "audio_done",
	KindFunctionCallDone:       "function_call_done",
	KindError:                  "error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists every event kind, in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// FunctionCall is a completed function call requested by the service.
// It is dispatched once and never persisted.
type FunctionCall struct {
	Name      string
	CallID    string
	Arguments string // raw JSON object
}

// ErrorDetail is the payload of a service-reported error event.
type ErrorDetail struct {
	Type    string
	Code    string
	Message string
	Param   string
	EventID string
}

func (d ErrorDetail) Error() string {
	switch {
	case d.Code != "":
		return fmt.Sprintf("realtime: %s: %s", d.Code, d.Message)
	case d.Type != "":
		return fmt.Sprintf("realtime: %s: %s", d.Type, d.Message)
	}
	return "realtime: " + d.Message
}

// Event is one decoded inbound message. Only the fields relevant to Kind are set;
// fields the message lacked are empty strings.
type Event struct {
	Kind Kind
	Type string // wire type, empty when the message had none

	SessionID string       // SessionCreated, SessionUpdated
	Text      string       // TranscriptionCompleted
	Payload   string       // AudioDelta, base64 PCM
	Call      FunctionCall // FunctionCallDone
	Err       ErrorDetail  // Error

	Raw []byte // Unknown
}

// Audio decodes the base64 payload of an AudioDelta.
func (e Event) Audio() ([]byte, error) {
	if e.Payload == "" {
		return nil, nil
	}
	pcm, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio delta: %w", err)
	}
	return pcm, nil
}
