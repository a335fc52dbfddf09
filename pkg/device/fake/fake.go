// Package fake provides in-memory audio devices for tests and headless runs.
package fake

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/chriscow/voicerelay-go/pkg/device"
	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

// Input replays scripted frames as a microphone.
type Input struct {
	// Frames are returned in order by every stream opened on this Input.
	Frames [][]byte
	// Loop keeps a stream producing silence once Frames are exhausted instead of returning io.EOF.
	Loop bool
	// Interval is how long each Read blocks. Defaults to 1ms.
	Interval time.Duration
	// OpenErr, when set, is returned by OpenInput.
	OpenErr error

	mu     sync.Mutex
	opens  int
	active int
}

// NewInput returns an Input that replays frames then produces silence forever.
func NewInput(frames ...[]byte) *Input {
	return &Input{Frames: frames, Loop: true}
}

// OpenInput implements device.Input.
func (in *Input) OpenInput(format rtc.Format) (device.InputStream, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.OpenErr != nil {
		return nil, in.OpenErr
	}
	in.opens++
	in.active++

	interval := in.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &inputStream{owner: in, format: format, interval: interval}, nil
}

// Opens reports how many streams have been opened.
func (in *Input) Opens() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.opens
}

// Active reports how many streams are open right now.
func (in *Input) Active() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

type inputStream struct {
	owner    *Input
	format   rtc.Format
	interval time.Duration
	next     int
	closed   bool
}

func (s *inputStream) Read() (*rtc.AudioFrame, error) {
	if s.closed {
		return nil, errors.New("fake input: read on closed stream")
	}
	time.Sleep(s.interval)

	var data []byte
	switch {
	case s.next < len(s.owner.Frames):
		data = append([]byte(nil), s.owner.Frames[s.next]...)
		s.next++
	case s.owner.Loop:
		data = make([]byte, s.format.BytesIn(s.interval))
		if len(data) == 0 {
			data = make([]byte, s.format.NumChannels*2)
		}
	default:
		return nil, io.EOF
	}
	return rtc.NewAudioFrame(data, s.format, 0)
}

func (s *inputStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.owner.mu.Lock()
	s.owner.active--
	s.owner.mu.Unlock()
	return nil
}

// Output records every frame written to it.
type Output struct {
	// WriteDelay simulates device latency per frame.
	WriteDelay time.Duration
	// Realtime makes Write block for the duration of the audio it is given,
	// like a sound card draining its buffer.
	Realtime bool
	// OpenErr, when set, is returned by OpenOutput.
	OpenErr error
	// Gate, when set, blocks OpenOutput until it is closed.
	Gate chan struct{}

	mu      sync.Mutex
	frames  [][]byte
	opens   int
	active  int
	maxOpen int
}

// NewOutput returns an Output with no simulated latency.
func NewOutput() *Output {
	return &Output{}
}

// OpenOutput implements device.Output.
func (out *Output) OpenOutput(format rtc.Format) (device.OutputStream, error) {
	if out.Gate != nil {
		<-out.Gate
	}
	out.mu.Lock()
	defer out.mu.Unlock()

	if out.OpenErr != nil {
		return nil, out.OpenErr
	}
	out.opens++
	out.active++
	if out.active > out.maxOpen {
		out.maxOpen = out.active
	}
	return &outputStream{owner: out}, nil
}

// Frames returns a copy of the rendered frames, in order.
func (out *Output) Frames() [][]byte {
	out.mu.Lock()
	defer out.mu.Unlock()
	return append([][]byte(nil), out.frames...)
}

// Opens reports how many streams have been opened.
func (out *Output) Opens() int {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.opens
}

// Active reports how many streams are open right now.
func (out *Output) Active() int {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.active
}

// MaxConcurrent reports the largest number of streams that were open at once.
func (out *Output) MaxConcurrent() int {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.maxOpen
}

// Bytes returns the total amount of audio rendered, in bytes.
func (out *Output) Bytes() int {
	out.mu.Lock()
	defer out.mu.Unlock()
	n := 0
	for _, f := range out.frames {
		n += len(f)
	}
	return n
}

// WaitFrames blocks until at least n frames were rendered or timeout elapses.
func (out *Output) WaitFrames(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		out.mu.Lock()
		got := len(out.frames)
		out.mu.Unlock()
		if got >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

type outputStream struct {
	owner  *Output
	closed bool
}

func (s *outputStream) Write(frame *rtc.AudioFrame) error {
	if s.closed {
		return errors.New("fake output: write on closed stream")
	}
	if d := s.owner.WriteDelay; d > 0 {
		time.Sleep(d)
	}
	if s.owner.Realtime {
		time.Sleep(frame.Duration())
	}
	s.owner.mu.Lock()
	s.owner.frames = append(s.owner.frames, append([]byte(nil), frame.Data...))
	s.owner.mu.Unlock()
	return nil
}

func (s *outputStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.owner.mu.Lock()
	s.owner.active--
	s.owner.mu.Unlock()
	return nil
}

var (
	_ device.Input  = (*Input)(nil)
	_ device.Output = (*Output)(nil)
)
