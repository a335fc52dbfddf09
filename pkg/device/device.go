// Package device abstracts the local audio hardware used by the relay.
//
// An Input or Output is a factory; each Open call yields a stream owned by
// exactly one goroutine until it is closed. Streams are not restartable:
// capture and playback open a fresh stream for every activation.
package device

import (
	"errors"
	"time"

	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

// DefaultFrameDuration is the capture block size. It bounds how long a Read may block.
const DefaultFrameDuration = 20 * time.Millisecond

// ErrUnavailable is returned by Open when no device backs the factory.
var ErrUnavailable = errors.New("audio device unavailable")

// Input opens microphone streams.
type Input interface {
	OpenInput(format rtc.Format) (InputStream, error)
}

// InputStream produces captured audio.
type InputStream interface {
	// Read blocks for at most about one frame duration and returns the next frame.
	// io.EOF means the source is exhausted.
	Read() (*rtc.AudioFrame, error)
	Close() error
}

// Output opens speaker streams.
type Output interface {
	OpenOutput(format rtc.Format) (OutputStream, error)
}

// OutputStream renders audio. Write blocks until the frame is handed to the device.
type OutputStream interface {
	Write(frame *rtc.AudioFrame) error
	Close() error
}
