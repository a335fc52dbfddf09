package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("wav: writer closed")

// Writer appends 16-bit PCM to a WAV file.
// The RIFF and data sizes are patched in on Close, so an unclosed file
// carries zero sizes but still holds the audio. Safe for concurrent use.
type Writer struct {
	mu           sync.Mutex
	file         *os.File
	format       rtc.Format
	bytesWritten uint32
}

// NewWriter creates filename (truncating it) and writes a provisional header.
func NewWriter(filename string, format rtc.Format) (*Writer, error) {
	if format.SampleRate <= 0 || format.NumChannels <= 0 {
		return nil, fmt.Errorf("invalid WAV format %s", format)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	writer := &Writer{
		file:   file,
		format: format,
	}

	// Write header (we'll update it when we close)
	if err := writer.writeHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	return writer, nil
}

// Write appends raw little-endian PCM. A trailing odd byte is kept as-is;
// callers are expected to hand whole samples.
func (w *Writer) Write(pcm []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, ErrClosed
	}
	n, err := w.file.Write(pcm)
	w.bytesWritten += uint32(n)
	if err != nil {
		return n, fmt.Errorf("failed to write audio data: %w", err)
	}
	return n, nil
}

// WriteFrame appends the frame's samples.
func (w *Writer) WriteFrame(frame *rtc.AudioFrame) error {
	_, err := w.Write(frame.Data)
	return err
}

// BytesWritten returns the number of audio bytes written so far.
func (w *Writer) BytesWritten() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.bytesWritten)
}

// Close finalizes the WAV file by updating the header with correct sizes.
// Calling Close more than once is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	dataSize := w.bytesWritten
	chunkSize := dataSize + 36

	// Seek to chunk size position and update
	if _, err := w.file.Seek(4, io.SeekStart); err != nil {
		w.file.Close()
		w.file = nil
		return fmt.Errorf("failed to seek to chunk size: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, chunkSize); err != nil {
		w.file.Close()
		w.file = nil
		return fmt.Errorf("failed to write chunk size: %w", err)
	}

	// Seek to data size position and update
	if _, err := w.file.Seek(40, io.SeekStart); err != nil {
		w.file.Close()
		w.file = nil
		return fmt.Errorf("failed to seek to data size: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, dataSize); err != nil {
		w.file.Close()
		w.file = nil
		return fmt.Errorf("failed to write data size: %w", err)
	}

	err := w.file.Close()
	w.file = nil
	return err
}

// writeHeader writes the 44-byte canonical header with zero sizes.
func (w *Writer) writeHeader() error {
	numChannels := uint16(w.format.NumChannels)
	sampleRate := uint32(w.format.SampleRate)
	const bitsPerSample = uint16(16)

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	// 4:8 chunk size, patched in Close
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], numChannels)
	binary.LittleEndian.PutUint32(hdr[24:28], sampleRate)
	binary.LittleEndian.PutUint32(hdr[28:32], sampleRate*uint32(numChannels)*uint32(bitsPerSample)/8)
	binary.LittleEndian.PutUint16(hdr[32:34], numChannels*bitsPerSample/8)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	// 40:44 data size, patched in Close

	_, err := w.file.Write(hdr[:])
	return err
}
