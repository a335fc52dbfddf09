package realtime

import (
	"encoding/json"
)

// Decode classifies one complete inbound message. It never fails: anything
// that is not a JSON object with a known type comes back as KindUnknown with
// the raw bytes attached.
func Decode(msg []byte) Event {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(msg, &doc); err != nil || doc == nil {
		return Event{Kind: KindUnknown, Raw: msg}
	}

	typ := stringField(doc, "type")
	ev := Event{Type: typ}

	switch typ {
	case TypeSessionCreated:
		ev.Kind = KindSessionCreated
		ev.SessionID = stringField(objectField(doc, "session"), "id")
	case TypeSessionUpdated:
		ev.Kind = KindSessionUpdated
		ev.SessionID = stringField(objectField(doc, "session"), "id")
	case TypeSpeechStarted:
		ev.Kind = KindUserSpeechStarted
	case TypeSpeechStopped:
		ev.Kind = KindUserSpeechStopped
	case TypeTranscriptionCompleted:
		ev.Kind = KindTranscriptionCompleted
		ev.Text = stringField(doc, "transcript")
	case TypeAudioDelta:
		ev.Kind = KindAudioDelta
		ev.Payload = stringField(doc, "delta")
	case TypeAudioDone:
		ev.Kind = KindAudioDone
	case TypeFunctionCallDone:
		ev.Kind = KindFunctionCallDone
		ev.Call = FunctionCall{
			Name:      stringField(doc, "name"),
			CallID:    stringField(doc, "call_id"),
			Arguments: stringField(doc, "arguments"),
		}
	case TypeError:
		ev.Kind = KindError
		detail := objectField(doc, "error")
		ev.Err = ErrorDetail{
			Type:    stringField(detail, "type"),
			Code:    stringField(detail, "code"),
			Message: stringField(detail, "message"),
			Param:   stringField(detail, "param"),
			EventID: stringField(detail, "event_id"),
		}
	default:
		ev.Kind = KindUnknown
		ev.Raw = msg
	}

	return ev
}

// stringField returns doc[key] when it is a JSON string, "" otherwise.
func stringField(doc map[string]json.RawMessage, key string) string {
	raw, ok := doc[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// objectField returns doc[key] when it is a JSON object, nil otherwise.
func objectField(doc map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw, ok := doc[key]
	if !ok {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}
