package session

import (
	"testing"

	"pgregory.net/rapid"
)

var eventPool = []string{
	msgSessionCreated,
	msgSessionUpdated,
	msgSpeechStarted,
	msgSpeechStopped,
	msgAudioDone,
	deltaMsg(1, 0),
	deltaMsg(2, 0, 3, 0),
	deltaMsg(7), // invalid, odd length
	`{"type":"conversation.item.input_audio_transcription.completed","transcript":"hi"}`,
	`{"type":"error","error":{"message":"x"}}`,
	`{"type":"response.done"}`,
	`{broken`,
}

// Random event sequences never record while the model responds, and every
// user speech start leaves playback cancelled with nothing queued.
func TestProperty_EchoSuppressionAndBargeIn(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(rt)
		defer h.close()

		events := rapid.SliceOfN(rapid.SampledFrom(eventPool), 1, 40).Draw(rt, "events")
		for i, msg := range events {
			h.recv(msg)

			st := h.c.State()
			if st.Recording && st.ModelResponding {
				rt.Fatalf("event %d (%s): recording while model responding", i, msg)
			}
			if msg == msgSpeechStarted {
				if h.c.QueueLen() != 0 {
					rt.Fatalf("event %d: queue not empty after speech start", i)
				}
				if st.Playing {
					rt.Fatalf("event %d: playback still active after speech start", i)
				}
				if !st.UserSpeaking {
					rt.Fatalf("event %d: user speaking not set", i)
				}
			}
		}
	})
}

// While the user speaks nothing is queued for playback.
func TestProperty_NoQueueWhileUserSpeaks(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(rt)
		defer h.close()

		h.recv(msgSpeechStarted)
		n := rapid.IntRange(1, 20).Draw(rt, "deltas")
		for i := 0; i < n; i++ {
			h.recv(deltaMsg(byte(i), 0))
		}
		if got := h.c.QueueLen(); got != 0 {
			rt.Fatalf("queued %d frames while the user was speaking", got)
		}
		if h.c.State().ModelResponding {
			rt.Fatalf("model responding set while the user was speaking")
		}
	})
}
