package device

import (
	"testing"

	"github.com/matryer/is"
)

func TestInt16RoundTrip(t *testing.T) {
	is := is.New(t)
	samples := []int16{0, 1, -1, 32767, -32768, 1234}

	pcm := Int16ToBytes(nil, samples)
	is.Equal(len(pcm), 12)
	is.Equal(pcm[2], byte(1)) // little-endian
	is.Equal(pcm[3], byte(0))

	out := make([]int16, len(samples))
	is.Equal(BytesToInt16(out, pcm), len(samples))
	is.Equal(out, samples)
}

func TestBytesToInt16_Short(t *testing.T) {
	is := is.New(t)
	out := make([]int16, 2)

	is.Equal(BytesToInt16(out, []byte{1, 0, 2, 0, 3, 0}), 2) // dst bounds the copy
	is.Equal(BytesToInt16(out, []byte{5}), 0)                // odd byte dropped
}

func TestTone(t *testing.T) {
	is := is.New(t)

	a := Tone(480, 24000, 440, 0)
	is.Equal(len(a), 960)
	is.Equal(a[0], byte(0)) // sin(0)
	is.Equal(a[1], byte(0))

	// consecutive blocks continue the same wave
	whole := Tone(960, 24000, 440, 0)
	b := Tone(480, 24000, 440, 480)
	is.Equal(append(a, b...), whole)
}
