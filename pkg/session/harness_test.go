package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/voicerelay-go/internal/transport"
	"github.com/chriscow/voicerelay-go/pkg/device/fake"
	"github.com/chriscow/voicerelay-go/pkg/realtime"
)

type fatalf interface {
	Helper()
	Fatalf(format string, args ...any)
}

// harness wires a Coordinator to fake devices and plays the service side of
// an in-memory transport, recording every client message.
type harness struct {
	c      *Coordinator
	server *transport.Memory
	in     *fake.Input
	out    *fake.Output

	mu   sync.Mutex
	msgs []map[string]any
	done chan struct{}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t fatalf, opts ...func(*Config)) *harness {
	t.Helper()
	client, server := transport.Pipe()

	in := fake.NewInput()
	in.Interval = 5 * time.Millisecond
	out := fake.NewOutput()

	cfg := Config{
		Transport:    client,
		Session:      realtime.DefaultSessionConfig(),
		Input:        in,
		Output:       out,
		PlaybackIdle: 50 * time.Millisecond,
		Logger:       quietLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	h := &harness{c: c, server: server, in: in, out: out, done: make(chan struct{})}
	go h.drain()
	return h
}

func (h *harness) drain() {
	defer close(h.done)
	for {
		msg, err := h.server.Receive(context.Background())
		if err != nil {
			return
		}
		var doc map[string]any
		if err := json.Unmarshal(msg, &doc); err != nil {
			continue
		}
		h.mu.Lock()
		h.msgs = append(h.msgs, doc)
		h.mu.Unlock()
	}
}

func (h *harness) close() {
	h.c.Close()
	<-h.done
}

// recv feeds one service message straight into the coordinator.
func (h *harness) recv(msg string) {
	h.c.Handle(realtime.Decode([]byte(msg)))
}

func (h *harness) all() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any(nil), h.msgs...)
}

func (h *harness) sent(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range h.all() {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// waitSent waits until at least n messages of typ were sent.
func (h *harness) waitSent(typ string, n int) []map[string]any {
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := h.sent(typ)
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(time.Millisecond)
	}
}

// waitFor polls cond for up to two seconds.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func deltaMsg(pcm ...byte) string {
	return fmt.Sprintf(`{"type":"response.audio.delta","delta":%q}`, base64.StdEncoding.EncodeToString(pcm))
}

const (
	msgSessionCreated = `{"type":"session.created","session":{"id":"sess_1"}}`
	msgSessionUpdated = `{"type":"session.updated","session":{"id":"sess_1"}}`
	msgSpeechStarted  = `{"type":"input_audio_buffer.speech_started"}`
	msgSpeechStopped  = `{"type":"input_audio_buffer.speech_stopped"}`
	msgAudioDone      = `{"type":"response.audio.done"}`
)

func functionCallMsg(name, callID, args string) string {
	doc, _ := json.Marshal(map[string]string{
		"type":      realtime.TypeFunctionCallDone,
		"name":      name,
		"call_id":   callID,
		"arguments": args,
	})
	return string(doc)
}

func instructions(m map[string]any) string {
	resp, _ := m["response"].(map[string]any)
	s, _ := resp["instructions"].(string)
	return s
}
