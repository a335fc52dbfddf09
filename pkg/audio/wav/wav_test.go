package wav

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

func TestWriter_HeaderFinalizedOnClose(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "rec.wav")

	w, err := NewWriter(path, rtc.PCM16Mono24K)
	is.NoErr(err)

	_, err = w.Write(make([]byte, 960))
	is.NoErr(err)
	_, err = w.Write(make([]byte, 480))
	is.NoErr(err)
	is.Equal(w.BytesWritten(), 1440)

	is.NoErr(w.Close())
	is.NoErr(w.Close()) // second close is a no-op

	raw, err := os.ReadFile(path)
	is.NoErr(err)
	is.Equal(len(raw), 44+1440)
	is.Equal(string(raw[0:4]), "RIFF")
	is.Equal(binary.LittleEndian.Uint32(raw[4:8]), uint32(1440+36)) // RIFF size
	is.Equal(binary.LittleEndian.Uint32(raw[24:28]), uint32(24000)) // sample rate
	is.Equal(binary.LittleEndian.Uint32(raw[28:32]), uint32(48000)) // byte rate
	is.Equal(binary.LittleEndian.Uint32(raw[40:44]), uint32(1440))  // data size
}

func TestWriter_WriteAfterClose(t *testing.T) {
	is := is.New(t)
	w, err := NewWriter(filepath.Join(t.TempDir(), "x.wav"), rtc.PCM16Mono24K)
	is.NoErr(err)
	is.NoErr(w.Close())

	_, err = w.Write([]byte{0, 0})
	is.Equal(err, ErrClosed)
}

func TestReader_RoundTrip(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "in.wav")

	w, err := NewWriter(path, rtc.PCM16Mono24K)
	is.NoErr(err)
	pcm := make([]byte, 2500) // 52.08ms, last frame short
	for i := range pcm {
		pcm[i] = byte(i)
	}
	_, err = w.Write(pcm)
	is.NoErr(err)
	is.NoErr(w.Close())

	r, err := NewReader(path)
	is.NoErr(err)
	defer r.Close()

	is.Equal(r.Header().Format(), rtc.PCM16Mono24K)
	is.Equal(r.Header().DataSize, uint32(2500))

	frames, err := r.ReadFrames(20 * time.Millisecond)
	is.NoErr(err)
	is.Equal(len(frames), 3)
	is.Equal(len(frames[0].Data), 960)
	is.Equal(len(frames[2].Data), 2500-1920)
	is.Equal(frames[1].Timestamp, 20*time.Millisecond)

	var got []byte
	for _, f := range frames {
		got = append(got, f.Data...)
	}
	is.Equal(got, pcm) // samples survive the round trip
}

func TestReader_UnclosedWriter(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "crash.wav")

	w, err := NewWriter(path, rtc.PCM16Mono24K)
	is.NoErr(err)
	_, err = w.Write(make([]byte, 480))
	is.NoErr(err)
	// simulate a crash: header sizes never patched
	is.NoErr(w.file.Close())

	r, err := NewReader(path)
	is.NoErr(err)
	defer r.Close()
	is.Equal(r.Header().DataSize, uint32(480)) // size recovered from the file length
}

func TestReader_Rejects(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not riff", data: []byte("JUNKxxxxWAVE")},
		{name: "not wave", data: []byte("RIFFxxxxAVI ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".wav")
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewReader(path); err == nil {
				t.Errorf("NewReader(%q) should have failed", tt.name)
			}
		})
	}
}
