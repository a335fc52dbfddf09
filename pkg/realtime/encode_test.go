package realtime

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func decodeObject(t *testing.T, ev ClientEvent) map[string]any {
	t.Helper()
	data, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return out
}

func TestAppendAudio(t *testing.T) {
	is := is.New(t)
	pcm := []byte{1, 2, 3, 4}

	got := decodeObject(t, AppendAudio(pcm))
	is.Equal(got["type"], "input_audio_buffer.append")
	is.Equal(got["audio"], base64.StdEncoding.EncodeToString(pcm))
	is.True(strings.HasPrefix(got["event_id"].(string), "evt_")) // event id prefix
	is.Equal(len(got["event_id"].(string)), 16)

	_, hasSession := got["session"]
	is.True(!hasSession) // only the audio payload is set
}

func TestAppendAudio_UniqueEventIDs(t *testing.T) {
	is := is.New(t)
	a := AppendAudio([]byte{0, 0})
	b := AppendAudio([]byte{0, 0})
	is.True(a.EventID != b.EventID)
}

func TestSessionUpdate(t *testing.T) {
	is := is.New(t)
	cfg := DefaultSessionConfig().WithTools([]Tool{{Type: "function", Name: "get_background"}})

	got := decodeObject(t, SessionUpdate(cfg))
	is.Equal(got["type"], "session.update")

	session := got["session"].(map[string]any)
	is.Equal(session["voice"], "alloy")
	is.Equal(session["input_audio_format"], "pcm16")
	is.Equal(session["tool_choice"], "auto")
	is.Equal(session["max_response_output_tokens"], float64(4096))

	td := session["turn_detection"].(map[string]any)
	is.Equal(td["type"], "server_vad")
	is.Equal(td["prefix_padding_ms"], float64(300))
	is.Equal(td["silence_duration_ms"], float64(500))

	tools := session["tools"].([]any)
	is.Equal(len(tools), 1)
	is.Equal(tools[0].(map[string]any)["name"], "get_background")
}

func TestResponseCreate(t *testing.T) {
	is := is.New(t)

	got := decodeObject(t, ResponseCreate("The catalina is available."))
	is.Equal(got["type"], "response.create")
	resp := got["response"].(map[string]any)
	is.Equal(resp["instructions"], "The catalina is available.")
	is.Equal(resp["modalities"], []any{"audio", "text"})
}

func TestFunctionCallOutput(t *testing.T) {
	is := is.New(t)

	got := decodeObject(t, FunctionCallOutput("call_9", "available"))
	is.Equal(got["type"], "conversation.item.create")
	item := got["item"].(map[string]any)
	is.Equal(item["type"], "function_call_output")
	is.Equal(item["call_id"], "call_9")
	is.Equal(item["output"], "available")
}

func TestContextMessage(t *testing.T) {
	is := is.New(t)

	got := decodeObject(t, ContextMessage("system", "floorplans"))
	item := got["item"].(map[string]any)
	is.Equal(item["type"], "message")
	is.Equal(item["role"], "system")
	content := item["content"].([]any)
	is.Equal(content[0].(map[string]any)["text"], "floorplans")
}
