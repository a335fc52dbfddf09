package realtime

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
)

// Default modalities requested for spoken replies.
var responseModalities = []string{ModalityAudio, ModalityText}

// ClientEvent is an outbound message. Exactly one of the payload fields is set,
// matching Type.
type ClientEvent struct {
	Type     string            `json:"type"`
	EventID  string            `json:"event_id,omitempty"`
	Session  *SessionConfig    `json:"session,omitempty"`
	Audio    string            `json:"audio,omitempty"`
	Item     *ConversationItem `json:"item,omitempty"`
	Response *ResponseOptions  `json:"response,omitempty"`
}

// ConversationItem is the item of a conversation.item.create event.
type ConversationItem struct {
	Type    string        `json:"type"` // "message" or "function_call_output"
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

// ContentPart is one part of a message item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ResponseOptions configures a response.create event.
type ResponseOptions struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// Marshal encodes the event as a single JSON text message.
func (e ClientEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// newEventID generates a unique client event ID.
func newEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// SessionUpdate wraps cfg in a session.update event.
func SessionUpdate(cfg SessionConfig) ClientEvent {
	return ClientEvent{
		Type:    TypeSessionUpdate,
		EventID: newEventID(),
		Session: &cfg,
	}
}

// AppendAudio wraps a raw PCM frame in an input_audio_buffer.append event.
func AppendAudio(pcm []byte) ClientEvent {
	return ClientEvent{
		Type:    TypeAudioAppend,
		EventID: newEventID(),
		Audio:   base64.StdEncoding.EncodeToString(pcm),
	}
}

// ResponseCreate asks the service to speak a reply shaped by instructions.
func ResponseCreate(instructions string) ClientEvent {
	return ClientEvent{
		Type:    TypeResponseCreate,
		EventID: newEventID(),
		Response: &ResponseOptions{
			Modalities:   responseModalities,
			Instructions: instructions,
		},
	}
}

// FunctionCallOutput attaches the result of a function call to the conversation.
func FunctionCallOutput(callID, output string) ClientEvent {
	return ClientEvent{
		Type:    TypeConversationCreate,
		EventID: newEventID(),
		Item: &ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
}

// ContextMessage adds a text message to the conversation without requesting a reply.
// role is "system" or "user".
func ContextMessage(role, text string) ClientEvent {
	return ClientEvent{
		Type:    TypeConversationCreate,
		EventID: newEventID(),
		Item: &ConversationItem{
			Type: "message",
			Role: role,
			Content: []ContentPart{
				{Type: "input_text", Text: text},
			},
		},
	}
}
