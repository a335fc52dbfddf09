package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

// Header represents a WAV file header
type Header struct {
	ChunkSize     uint32
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Format returns the PCM format described by the header.
func (h Header) Format() rtc.Format {
	return rtc.Format{SampleRate: int(h.SampleRate), NumChannels: int(h.NumChannels)}
}

// Reader streams a 16-bit PCM WAV file as AudioFrames.
type Reader struct {
	file      *os.File
	header    Header
	remaining int64
	offset    int64
}

// NewReader opens filename and validates its header.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	reader := &Reader{file: file}
	if err := reader.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	reader.remaining = int64(reader.header.DataSize)

	return reader, nil
}

// Header returns the WAV file header information
func (r *Reader) Header() Header {
	return r.header
}

// NextFrame reads up to d of audio. The final frame may be shorter.
// Returns io.EOF once the data chunk is exhausted.
func (r *Reader) NextFrame(d time.Duration) (*rtc.AudioFrame, error) {
	format := r.header.Format()
	want := int64(format.BytesIn(d))
	if want <= 0 {
		return nil, fmt.Errorf("frame duration %v too short for %s", d, format)
	}
	if r.remaining <= 0 {
		return nil, io.EOF
	}
	if want > r.remaining {
		want = r.remaining
	}

	buf := make([]byte, want)
	n, err := io.ReadFull(r.file, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		// Truncated file: the header promised more than is on disk.
		r.remaining = 0
		if n == 0 {
			return nil, io.EOF
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	} else {
		r.remaining -= int64(n)
	}

	blockAlign := format.NumChannels * 2
	n -= n % blockAlign

	frame, err := rtc.NewAudioFrame(buf[:n], format, format.Duration(int(r.offset)))
	if err != nil {
		return nil, err
	}
	r.offset += int64(n)
	return frame, nil
}

// ReadFrames reads the rest of the file as frames of duration d.
func (r *Reader) ReadFrames(d time.Duration) ([]*rtc.AudioFrame, error) {
	var frames []*rtc.AudioFrame
	for {
		frame, err := r.NextFrame(d)
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
}

// Close closes the WAV file
func (r *Reader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// readHeader reads and validates the WAV file header
func (r *Reader) readHeader() error {
	// Read RIFF header
	var riffHeader [12]byte
	if _, err := io.ReadFull(r.file, riffHeader[:]); err != nil {
		return fmt.Errorf("failed to read RIFF header: %w", err)
	}

	// Validate RIFF signature
	if string(riffHeader[0:4]) != "RIFF" {
		return fmt.Errorf("not a valid RIFF file")
	}

	// Validate WAVE signature
	if string(riffHeader[8:12]) != "WAVE" {
		return fmt.Errorf("not a valid WAVE file")
	}

	r.header.ChunkSize = binary.LittleEndian.Uint32(riffHeader[4:8])

	// Find and read fmt chunk
	if err := r.readFmtChunk(); err != nil {
		return err
	}

	// Find and read data chunk
	if err := r.readDataChunk(); err != nil {
		return err
	}

	// Validate format
	if r.header.BitsPerSample != 16 {
		return fmt.Errorf("only 16-bit samples are supported, got %d-bit", r.header.BitsPerSample)
	}

	if r.header.NumChannels != 1 && r.header.NumChannels != 2 {
		return fmt.Errorf("only mono and stereo are supported, got %d channels", r.header.NumChannels)
	}

	if r.header.SampleRate == 0 {
		return fmt.Errorf("sample rate must be non-zero")
	}

	return nil
}

// readFmtChunk reads the format chunk
func (r *Reader) readFmtChunk() error {
	for {
		chunkID, chunkSize, err := r.readChunkHeader()
		if err != nil {
			return err
		}

		if chunkID == "fmt " {
			if chunkSize < 16 {
				return fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
			}

			var fmtData [16]byte
			if _, err := io.ReadFull(r.file, fmtData[:]); err != nil {
				return fmt.Errorf("failed to read fmt data: %w", err)
			}

			audioFormat := binary.LittleEndian.Uint16(fmtData[0:2])
			if audioFormat != 1 {
				return fmt.Errorf("only PCM format is supported, got format %d", audioFormat)
			}

			r.header.NumChannels = binary.LittleEndian.Uint16(fmtData[2:4])
			r.header.SampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
			r.header.BitsPerSample = binary.LittleEndian.Uint16(fmtData[14:16])

			// Skip any remaining fmt data
			if chunkSize > 16 {
				if _, err := r.file.Seek(int64(chunkSize-16), io.SeekCurrent); err != nil {
					return fmt.Errorf("failed to skip fmt data: %w", err)
				}
			}

			return nil
		}

		// Skip unknown chunk
		if _, err := r.file.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
			return fmt.Errorf("failed to skip chunk: %w", err)
		}
	}
}

// readDataChunk finds the data chunk and positions the file pointer at the start of audio data
func (r *Reader) readDataChunk() error {
	for {
		chunkID, chunkSize, err := r.readChunkHeader()
		if err != nil {
			return err
		}

		if chunkID == "data" {
			r.header.DataSize = chunkSize
			if chunkSize == 0 {
				// Writer never closed; take everything that follows.
				if info, err := r.file.Stat(); err == nil {
					if pos, err := r.file.Seek(0, io.SeekCurrent); err == nil && info.Size() > pos {
						r.header.DataSize = uint32(info.Size() - pos)
					}
				}
			}
			return nil
		}

		// Skip unknown chunk
		if _, err := r.file.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
			return fmt.Errorf("failed to skip chunk: %w", err)
		}
	}
}

func (r *Reader) readChunkHeader() (string, uint32, error) {
	var chunkHeader [8]byte
	if _, err := io.ReadFull(r.file, chunkHeader[:]); err != nil {
		return "", 0, fmt.Errorf("failed to read chunk header: %w", err)
	}
	return string(chunkHeader[0:4]), binary.LittleEndian.Uint32(chunkHeader[4:8]), nil
}
