//go:build portaudio

// Package portaudio drives the default system microphone and speaker through PortAudio.
package portaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/chriscow/voicerelay-go/pkg/device"
	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

// Available reports whether this build links PortAudio.
const Available = true

// Host owns the PortAudio library lifetime. Streams must be closed before Close.
type Host struct {
	closeOnce sync.Once
}

// Open initializes PortAudio.
func Open() (*Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &Host{}, nil
}

// Close terminates PortAudio.
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = portaudio.Terminate()
	})
	return err
}

// Input returns the default microphone.
func (h *Host) Input() device.Input { return input{} }

// Output returns the default speaker.
func (h *Host) Output() device.Output { return output{} }

type input struct{}

func (input) OpenInput(format rtc.Format) (device.InputStream, error) {
	samples := format.BytesIn(device.DefaultFrameDuration) / 2
	buf := make([]int16, samples)

	stream, err := portaudio.OpenDefaultStream(format.NumChannels, 0, float64(format.SampleRate), samples/format.NumChannels, buf)
	if err != nil {
		return nil, fmt.Errorf("error opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("error starting input stream: %w", err)
	}
	return &inputStream{stream: stream, buf: buf, format: format}, nil
}

type inputStream struct {
	stream *portaudio.Stream
	buf    []int16
	format rtc.Format
}

func (s *inputStream) Read() (*rtc.AudioFrame, error) {
	if err := s.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, fmt.Errorf("read input stream: %w", err)
	}
	return rtc.NewAudioFrame(device.Int16ToBytes(nil, s.buf), s.format, 0)
}

func (s *inputStream) Close() error {
	s.stream.Stop()
	return s.stream.Close()
}

type output struct{}

func (output) OpenOutput(format rtc.Format) (device.OutputStream, error) {
	samples := format.BytesIn(device.DefaultFrameDuration) / 2
	buf := make([]int16, samples)

	stream, err := portaudio.OpenDefaultStream(0, format.NumChannels, float64(format.SampleRate), samples/format.NumChannels, buf)
	if err != nil {
		return nil, fmt.Errorf("error opening output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("error starting output stream: %w", err)
	}
	return &outputStream{stream: stream, buf: buf}, nil
}

type outputStream struct {
	stream *portaudio.Stream
	buf    []int16
}

// Write splits the frame into device-sized buffers; the last one is padded with silence.
func (s *outputStream) Write(frame *rtc.AudioFrame) error {
	pcm := frame.Data
	for len(pcm) > 0 {
		n := device.BytesToInt16(s.buf, pcm)
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		if err := s.stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return fmt.Errorf("write output stream: %w", err)
		}
		if n*2 >= len(pcm) {
			break
		}
		pcm = pcm[n*2:]
	}
	return nil
}

func (s *outputStream) Close() error {
	s.stream.Stop()
	return s.stream.Close()
}
