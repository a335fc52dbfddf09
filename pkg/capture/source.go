// Package capture reads the microphone and fans each frame out to the
// recording sink and the transport.
package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/chriscow/voicerelay-go/pkg/device"
	"github.com/chriscow/voicerelay-go/pkg/relay"
	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

var (
	// ErrDeviceOpen is returned by Start when the input device cannot be opened.
	ErrDeviceOpen = errors.New("capture: input device open failed")
	// ErrDeviceRead is reported when the input device fails mid-stream.
	ErrDeviceRead = errors.New("capture: input device read failed")
)

// Config configures a Source.
type Config struct {
	Input  device.Input
	Format rtc.Format
	// Recorder receives every captured frame before it is forwarded. Optional.
	Recorder io.Writer
	// OnFrame forwards a captured frame. It runs on the capture goroutine.
	OnFrame func(*rtc.AudioFrame)
	// OnError receives device failures after Start succeeded.
	OnError func(error)
	// OnEnd is called from the capture goroutine when the input stream runs
	// out. Running is false by then and the next Start opens a fresh stream.
	OnEnd func()
	Logger  *slog.Logger
}

// Source turns the input device into a stream of frames. Start and Stop are
// idempotent; each Start opens a fresh device stream.
type Source struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	act  *activity
	last *activity

	frames      atomic.Uint64
	recordFails atomic.Uint64
}

type activity struct {
	stopped atomic.Bool
	// ended is set when the capture goroutine exits for any reason.
	ended atomic.Bool
	// fwdMu is held across the stop check and the fan-out of one frame.
	fwdMu sync.Mutex
	done  chan struct{}
}

// New creates a stopped Source.
func New(cfg Config) *Source {
	if cfg.Format == (rtc.Format{}) {
		cfg.Format = rtc.PCM16Mono24K
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "capture")),
	}
}

// Start opens the input device and begins producing frames.
// Calling Start while running is a no-op.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.act != nil && !s.act.ended.Load() {
		return nil
	}
	s.act = nil

	// the previous stream is closed by its own goroutine
	if s.last != nil {
		<-s.last.done
	}

	stream, err := s.cfg.Input.OpenInput(s.cfg.Format)
	if err != nil {
		return relay.NewFatalError(fmt.Errorf("%w: %w", ErrDeviceOpen, err), "capture")
	}

	act := &activity{done: make(chan struct{})}
	s.act = act
	s.last = act
	go s.run(act, stream)

	s.logger.Debug("capture started")
	return nil
}

// Stop halts frame production. When it returns no further frame is recorded
// or forwarded until the next Start. Calling Stop while stopped is a no-op.
func (s *Source) Stop() {
	s.mu.Lock()
	act := s.act
	s.act = nil
	s.mu.Unlock()

	if act == nil {
		return
	}
	act.stopped.Store(true)
	// wait out a frame being fanned out
	act.fwdMu.Lock()
	act.fwdMu.Unlock()

	s.logger.Debug("capture stopped")
}

// Running reports whether capture is producing frames. It turns false on its
// own when the input stream ends or fails.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.act != nil && !s.act.ended.Load()
}

// Close stops capture and waits for the device to be released.
func (s *Source) Close() {
	s.Stop()
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil {
		<-last.done
	}
}

// Frames returns how many frames were forwarded.
func (s *Source) Frames() uint64 {
	return s.frames.Load()
}

func (s *Source) run(act *activity, stream device.InputStream) {
	defer close(act.done)
	defer stream.Close()
	defer act.ended.Store(true)

	for !act.stopped.Load() {
		frame, err := stream.Read()
		if err == io.EOF {
			s.logger.Info("capture source exhausted")
			act.ended.Store(true)
			if s.cfg.OnEnd != nil && !act.stopped.Load() {
				s.cfg.OnEnd()
			}
			return
		}
		if err != nil {
			if act.stopped.Load() {
				return
			}
			s.logger.Warn("input device read failed", slog.String("error", err.Error()))
			if s.cfg.OnError != nil {
				s.cfg.OnError(relay.NewFatalError(fmt.Errorf("%w: %w", ErrDeviceRead, err), "capture"))
			}
			return
		}

		act.fwdMu.Lock()
		if act.stopped.Load() {
			act.fwdMu.Unlock()
			return
		}
		s.fanOut(frame)
		act.fwdMu.Unlock()
	}
}

func (s *Source) fanOut(frame *rtc.AudioFrame) {
	if s.cfg.Recorder != nil {
		if _, err := s.cfg.Recorder.Write(frame.Data); err != nil {
			// log the first failure only; the recording is best effort
			if s.recordFails.Add(1) == 1 {
				s.logger.Warn("recording sink write failed", slog.String("error", err.Error()))
			}
		}
	}
	if s.cfg.OnFrame != nil {
		s.cfg.OnFrame(frame)
	}
	s.frames.Add(1)
}
