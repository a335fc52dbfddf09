// Package wavfile backs the audio devices with WAV files, for headless runs.
package wavfile

import (
	"fmt"
	"time"

	"github.com/chriscow/voicerelay-go/pkg/audio/wav"
	"github.com/chriscow/voicerelay-go/pkg/device"
	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

// Input plays a WAV file as the microphone, paced in real time.
// The file must already be in the requested format; nothing is resampled.
type Input struct {
	Path          string
	FrameDuration time.Duration
	// Realtime paces reads to the wall clock. Off in tests.
	Realtime bool
}

// NewInput returns a real-time paced Input reading path.
func NewInput(path string) *Input {
	return &Input{Path: path, FrameDuration: device.DefaultFrameDuration, Realtime: true}
}

// OpenInput implements device.Input.
func (in *Input) OpenInput(format rtc.Format) (device.InputStream, error) {
	r, err := wav.NewReader(in.Path)
	if err != nil {
		return nil, err
	}
	if got := r.Header().Format(); got != format {
		r.Close()
		return nil, fmt.Errorf("%s is %s, want %s", in.Path, got, format)
	}

	d := in.FrameDuration
	if d <= 0 {
		d = device.DefaultFrameDuration
	}
	return &inputStream{reader: r, frame: d, realtime: in.Realtime}, nil
}

type inputStream struct {
	reader   *wav.Reader
	frame    time.Duration
	realtime bool
	next     time.Time
}

func (s *inputStream) Read() (*rtc.AudioFrame, error) {
	if s.realtime {
		now := time.Now()
		if s.next.IsZero() {
			s.next = now
		}
		if wait := s.next.Sub(now); wait > 0 {
			time.Sleep(wait)
		}
		s.next = s.next.Add(s.frame)
	}
	return s.reader.NextFrame(s.frame)
}

func (s *inputStream) Close() error {
	return s.reader.Close()
}

// Output writes everything it renders to a WAV file. Each stream truncates the file.
type Output struct {
	Path string
}

// OpenOutput implements device.Output.
func (out *Output) OpenOutput(format rtc.Format) (device.OutputStream, error) {
	w, err := wav.NewWriter(out.Path, format)
	if err != nil {
		return nil, err
	}
	return &outputStream{writer: w}, nil
}

type outputStream struct {
	writer *wav.Writer
}

func (s *outputStream) Write(frame *rtc.AudioFrame) error {
	return s.writer.WriteFrame(frame)
}

func (s *outputStream) Close() error {
	return s.writer.Close()
}

var (
	_ device.Input  = (*Input)(nil)
	_ device.Output = (*Output)(nil)
)
