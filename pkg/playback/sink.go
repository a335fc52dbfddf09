package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/voicerelay-go/pkg/device"
	"github.com/chriscow/voicerelay-go/pkg/relay"
	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

// DefaultIdleTimeout is how long an activation keeps the device open with nothing to play.
const DefaultIdleTimeout = 2 * time.Second

var (
	// ErrDeviceOpen is reported when the output device cannot be opened.
	ErrDeviceOpen = errors.New("playback: output device open failed")
	// ErrDeviceWrite is reported when rendering a frame fails.
	ErrDeviceWrite = errors.New("playback: output device write failed")
)

// Config configures a Sink.
type Config struct {
	Output      device.Output
	Format      rtc.Format
	Capacity    int           // queue bound in frames, DefaultCapacity if zero
	IdleTimeout time.Duration // DefaultIdleTimeout if zero
	Logger      *slog.Logger
	// OnError receives device failures, classified fatal for playback only.
	// Called from the render goroutine.
	OnError func(error)
}

// Sink renders queued frames to the output device. At most one activation
// runs at a time and only the active Handle touches the device stream.
type Sink struct {
	cfg    Config
	queue  *Queue
	logger *slog.Logger
	// step is the largest write handed to the device, in bytes.
	step int

	mu         sync.Mutex
	active     *Handle
	lastHandle *Handle
	nextID     uint64

	rendered atomic.Uint64
}

// Handle is one playback activation.
type Handle struct {
	ID uint64

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
	// renderMu is held across the cancellation check and one render step.
	renderMu sync.Mutex
	prev     *Handle
}

// Done is closed when the activation's render loop has exited and released the device.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) cancelled() bool {
	select {
	case <-h.cancel:
		return true
	default:
		return false
	}
}

// NewSink creates a sink with its own queue.
func NewSink(cfg Config) *Sink {
	if cfg.Format == (rtc.Format{}) {
		cfg.Format = rtc.PCM16Mono24K
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		cfg:    cfg,
		queue:  NewQueue(cfg.Capacity),
		logger: logger.With(slog.String("component", "playback")),
		step:   cfg.Format.BytesIn(device.DefaultFrameDuration),
	}
}

// Queue exposes the pending audio queue.
func (s *Sink) Queue() *Queue {
	return s.queue
}

// Enqueue appends a frame without blocking. It reports whether the oldest
// queued frame was dropped to make room.
func (s *Sink) Enqueue(frame *rtc.AudioFrame) bool {
	if s.queue.Push(frame) {
		s.logger.Debug("playback queue full, dropped oldest frame")
		return true
	}
	return false
}

// Activate starts a render loop unless one is already running.
// It returns the running handle and whether a new one was started.
func (s *Sink) Activate() (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return s.active, false
	}

	s.nextID++
	h := &Handle{
		ID:     s.nextID,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	h.prev = s.lastHandle
	s.lastHandle = h
	s.active = h

	go s.run(h)
	return h, true
}

// Active reports whether an activation is running.
func (s *Sink) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Cancel stops the active activation, if any. When it returns, the cancelled
// activation will not write to the device again; a frame in progress is cut
// at the current render step. Safe to call from any goroutine.
func (s *Sink) Cancel() bool {
	s.mu.Lock()
	h := s.active
	s.active = nil
	s.mu.Unlock()

	if h == nil {
		return false
	}
	h.cancelOnce.Do(func() { close(h.cancel) })
	// wait out the render step in progress
	h.renderMu.Lock()
	h.renderMu.Unlock()
	return true
}

// Close cancels playback and waits for the device to be released.
func (s *Sink) Close() {
	s.Cancel()
	s.mu.Lock()
	h := s.lastHandle
	s.mu.Unlock()
	if h != nil {
		<-h.done
	}
}

// Rendered returns the number of frames written to the device.
func (s *Sink) Rendered() uint64 {
	return s.rendered.Load()
}

func (s *Sink) run(h *Handle) {
	defer close(h.done)
	defer s.release(h)

	// the previous activation must give up the device first
	if h.prev != nil {
		<-h.prev.done
		h.prev = nil
	}
	if h.cancelled() {
		return
	}

	stream, err := s.cfg.Output.OpenOutput(s.cfg.Format)
	if err != nil {
		dropped := s.queue.Clear()
		s.logger.Warn("output device open failed",
			slog.String("error", err.Error()),
			slog.Int("dropped_frames", dropped))
		s.report(relay.NewFatalError(fmt.Errorf("%w: %w", ErrDeviceOpen, err), "playback"))
		return
	}
	defer stream.Close()

	s.logger.Debug("playback activated", slog.Uint64("handle", h.ID))

	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		if h.cancelled() {
			s.logger.Debug("playback cancelled", slog.Uint64("handle", h.ID))
			return
		}

		if frame, ok := s.queue.Pop(); ok {
			done, err := s.render(h, stream, frame)
			if err != nil {
				s.logger.Warn("output device write failed", slog.String("error", err.Error()))
				s.report(relay.NewFatalError(fmt.Errorf("%w: %w", ErrDeviceWrite, err), "playback"))
				return
			}
			if !done {
				s.logger.Debug("playback cancelled mid-frame", slog.Uint64("handle", h.ID))
				return
			}
			s.rendered.Add(1)
			continue
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(s.cfg.IdleTimeout)

		select {
		case <-h.cancel:
			return
		case <-s.queue.Ready():
		case <-idle.C:
			if s.finishIdle(h) {
				s.logger.Debug("playback drained", slog.Uint64("handle", h.ID))
				return
			}
		}
	}
}

// render writes frame one render step at a time, checking for cancellation
// before each step. It reports whether the whole frame was written.
func (s *Sink) render(h *Handle, stream device.OutputStream, frame *rtc.AudioFrame) (bool, error) {
	step := s.step
	if step <= 0 || len(frame.Data) <= step {
		step = len(frame.Data)
	}
	for off := 0; off < len(frame.Data); off += step {
		end := min(off+step, len(frame.Data))
		chunk := frame
		if off > 0 || end < len(frame.Data) {
			c, err := rtc.NewAudioFrame(frame.Data[off:end], frame.Format(), frame.Timestamp)
			if err != nil {
				return false, err
			}
			chunk = c
		}

		h.renderMu.Lock()
		if h.cancelled() {
			h.renderMu.Unlock()
			return false, nil
		}
		err := stream.Write(chunk)
		h.renderMu.Unlock()
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// finishIdle retires h unless frames arrived while the idle timer fired.
func (s *Sink) finishIdle(h *Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() > 0 {
		return false
	}
	if s.active == h {
		s.active = nil
	}
	return true
}

func (s *Sink) release(h *Handle) {
	s.mu.Lock()
	if s.active == h {
		s.active = nil
	}
	s.mu.Unlock()
}

func (s *Sink) report(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}
