package rtc

import (
	"fmt"
	"time"
)

// Format describes linear 16-bit little-endian PCM.
// The realtime service exchanges 24 kHz mono; the layout is fixed, not negotiated.
type Format struct {
	SampleRate  int // samples per second per channel
	NumChannels int // 1 or 2
}

// PCM16Mono24K is the format spoken by the realtime service on both legs.
var PCM16Mono24K = Format{SampleRate: 24000, NumChannels: 1}

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.NumChannels * 2
}

// BytesIn returns the number of bytes that hold d of audio, rounded down to a whole sample.
func (f Format) BytesIn(d time.Duration) int {
	samples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return samples * f.NumChannels * 2
}

// Duration returns how much audio n bytes represent.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

func (f Format) String() string {
	return fmt.Sprintf("pcm16/%dHz/%dch", f.SampleRate, f.NumChannels)
}

// AudioFrame is an opaque block of PCM audio moving through the relay.
// Len(Data) == SamplesPerChannel * NumChannels * 2.
//
// A zero Timestamp means "live"; otherwise it is the offset from the start of the stream.
type AudioFrame struct {
	Data              []byte        // 16-bit PCM, little-endian
	SampleRate        int           // 24 000 for the realtime service
	SamplesPerChannel int           // len(Data) / (NumChannels * 2)
	NumChannels       int           // 1 or 2
	Timestamp         time.Duration // optional
}

// NewAudioFrame wraps data as a frame of the given format.
// Returns an error if data does not hold a whole number of samples.
func NewAudioFrame(data []byte, format Format, timestamp time.Duration) (*AudioFrame, error) {
	if format.SampleRate <= 0 || format.NumChannels <= 0 {
		return nil, fmt.Errorf("invalid audio format %s", format)
	}
	blockAlign := format.NumChannels * 2
	if len(data)%blockAlign != 0 {
		return nil, fmt.Errorf("AudioFrame data length mismatch: %d bytes is not a multiple of %d for %s",
			len(data), blockAlign, format)
	}

	return &AudioFrame{
		Data:              data,
		SampleRate:        format.SampleRate,
		SamplesPerChannel: len(data) / blockAlign,
		NumChannels:       format.NumChannels,
		Timestamp:         timestamp,
	}, nil
}

// Format returns the PCM format of the frame.
func (f *AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, NumChannels: f.NumChannels}
}

// Clone creates a deep copy of the AudioFrame.
func (f *AudioFrame) Clone() *AudioFrame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)

	return &AudioFrame{
		Data:              data,
		SampleRate:        f.SampleRate,
		SamplesPerChannel: f.SamplesPerChannel,
		NumChannels:       f.NumChannels,
		Timestamp:         f.Timestamp,
	}
}

// Duration returns the duration represented by this frame.
func (f *AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(f.SamplesPerChannel) * int64(time.Second) / int64(f.SampleRate))
}
