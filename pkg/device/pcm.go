package device

import (
	"encoding/binary"
	"math"
)

// Int16ToBytes packs samples as little-endian PCM into dst, growing it as needed.
func Int16ToBytes(dst []byte, samples []int16) []byte {
	if cap(dst) < len(samples)*2 {
		dst = make([]byte, len(samples)*2)
	}
	dst = dst[:len(samples)*2]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return dst
}

// BytesToInt16 unpacks little-endian PCM into dst and returns the number of
// samples written. A trailing odd byte is ignored.
func BytesToInt16(dst []int16, pcm []byte) int {
	n := len(pcm) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return n
}

// Tone fills a mono PCM buffer with a sine wave at half amplitude.
// offset is the index of the first sample, so consecutive calls stay in phase.
func Tone(samples int, sampleRate int, frequency float64, offset int) []byte {
	data := make([]byte, samples*2)
	for j := 0; j < samples; j++ {
		t := float64(offset+j) / float64(sampleRate)
		sample := math.Sin(2*math.Pi*frequency*t) * 0.5
		binary.LittleEndian.PutUint16(data[j*2:], uint16(int16(sample*32767)))
	}
	return data
}
