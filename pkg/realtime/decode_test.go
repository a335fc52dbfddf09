package realtime

import (
	"testing"

	"github.com/matryer/is"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want Event
	}{
		{
			name: "session created",
			msg:  `{"type":"session.created","event_id":"e1","session":{"id":"sess_1","model":"gpt"}}`,
			want: Event{Kind: KindSessionCreated, Type: TypeSessionCreated, SessionID: "sess_1"},
		},
		{
			name: "session updated",
			msg:  `{"type":"session.updated","session":{"id":"sess_1"}}`,
			want: Event{Kind: KindSessionUpdated, Type: TypeSessionUpdated, SessionID: "sess_1"},
		},
		{
			name: "speech started",
			msg:  `{"type":"input_audio_buffer.speech_started","audio_start_ms":120}`,
			want: Event{Kind: KindUserSpeechStarted, Type: TypeSpeechStarted},
		},
		{
			name: "speech stopped",
			msg:  `{"type":"input_audio_buffer.speech_stopped"}`,
			want: Event{Kind: KindUserSpeechStopped, Type: TypeSpeechStopped},
		},
		{
			name: "transcription",
			msg:  `{"type":"conversation.item.input_audio_transcription.completed","transcript":"hello there"}`,
			want: Event{Kind: KindTranscriptionCompleted, Type: TypeTranscriptionCompleted, Text: "hello there"},
		},
		{
			name: "audio delta",
			msg:  `{"type":"response.audio.delta","delta":"AAEC"}`,
			want: Event{Kind: KindAudioDelta, Type: TypeAudioDelta, Payload: "AAEC"},
		},
		{
			name: "audio done",
			msg:  `{"type":"response.audio.done"}`,
			want: Event{Kind: KindAudioDone, Type: TypeAudioDone},
		},
		{
			name: "function call",
			msg:  `{"type":"response.function_call_arguments.done","name":"get_background","call_id":"call_1","arguments":"{}"}`,
			want: Event{Kind: KindFunctionCallDone, Type: TypeFunctionCallDone,
				Call: FunctionCall{Name: "get_background", CallID: "call_1", Arguments: "{}"}},
		},
		{
			name: "error",
			msg:  `{"type":"error","error":{"type":"invalid_request_error","code":"bad","message":"nope","param":"session.voice"}}`,
			want: Event{Kind: KindError, Type: TypeError,
				Err: ErrorDetail{Type: "invalid_request_error", Code: "bad", Message: "nope", Param: "session.voice"}},
		},
		{
			name: "missing fields are empty",
			msg:  `{"type":"response.function_call_arguments.done"}`,
			want: Event{Kind: KindFunctionCallDone, Type: TypeFunctionCallDone},
		},
		{
			name: "wrong field types are empty",
			msg:  `{"type":"conversation.item.input_audio_transcription.completed","transcript":42}`,
			want: Event{Kind: KindTranscriptionCompleted, Type: TypeTranscriptionCompleted},
		},
		{
			name: "error without detail",
			msg:  `{"type":"error","error":"boom"}`,
			want: Event{Kind: KindError, Type: TypeError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode([]byte(tt.msg))
			if got.Kind != tt.want.Kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.want.Kind)
			}
			if got.Type != tt.want.Type {
				t.Errorf("Type = %q, want %q", got.Type, tt.want.Type)
			}
			if got.SessionID != tt.want.SessionID {
				t.Errorf("SessionID = %q, want %q", got.SessionID, tt.want.SessionID)
			}
			if got.Text != tt.want.Text {
				t.Errorf("Text = %q, want %q", got.Text, tt.want.Text)
			}
			if got.Payload != tt.want.Payload {
				t.Errorf("Payload = %q, want %q", got.Payload, tt.want.Payload)
			}
			if got.Call != tt.want.Call {
				t.Errorf("Call = %+v, want %+v", got.Call, tt.want.Call)
			}
			if got.Err != tt.want.Err {
				t.Errorf("Err = %+v, want %+v", got.Err, tt.want.Err)
			}
		})
	}
}

func TestDecode_Unknown(t *testing.T) {
	msgs := []string{
		``,
		`not json`,
		`{"type":`,
		`[1,2,3]`,
		`"session.created"`,
		`null`,
		`{}`,
		`{"type":"response.text.delta","delta":"hi"}`,
		`{"type":7}`,
	}

	for _, msg := range msgs {
		got := Decode([]byte(msg))
		if got.Kind != KindUnknown {
			t.Errorf("Decode(%q).Kind = %v, want unknown", msg, got.Kind)
		}
		if string(got.Raw) != msg {
			t.Errorf("Decode(%q).Raw = %q, want original bytes", msg, got.Raw)
		}
	}
}

func TestEvent_Audio(t *testing.T) {
	is := is.New(t)

	pcm, err := Event{Payload: "AAEC"}.Audio()
	is.NoErr(err)
	is.Equal(pcm, []byte{0, 1, 2})

	pcm, err = Event{}.Audio()
	is.NoErr(err)
	is.Equal(len(pcm), 0) // empty payload decodes to nothing

	_, err = Event{Payload: "!!!"}.Audio()
	is.True(err != nil) // invalid base64
}

func TestKindString(t *testing.T) {
	is := is.New(t)
	is.Equal(KindAudioDelta.String(), "audio_delta")
	is.Equal(Kind(99).String(), "kind(99)")
	is.Equal(len(Kinds()), 10)
}
