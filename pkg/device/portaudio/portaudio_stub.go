//go:build !portaudio

// Package portaudio provides a stub when the portaudio build tag is not used.
package portaudio

import (
	"fmt"

	"github.com/chriscow/voicerelay-go/pkg/device"
)

// Available reports whether this build links PortAudio.
const Available = false

// Host is unusable without the portaudio build tag.
type Host struct{}

// Open always fails in this build.
func Open() (*Host, error) {
	return nil, fmt.Errorf("portaudio devices not available (build with -tags=portaudio): %w", device.ErrUnavailable)
}

func (h *Host) Close() error { return nil }

func (h *Host) Input() device.Input { return nil }

func (h *Host) Output() device.Output { return nil }
