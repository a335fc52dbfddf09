// Package session implements the duplex audio session coordinator.
//
// The Coordinator owns the session state and reacts to decoded realtime
// events one at a time. It decides when the microphone is captured, when
// queued remote audio is rendered, and when a function call is dispatched.
// Capture, playback and function calls run on their own goroutines; every
// state transition happens under a single mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chriscow/voicerelay-go/pkg/capture"
	"github.com/chriscow/voicerelay-go/pkg/device"
	"github.com/chriscow/voicerelay-go/pkg/dispatch"
	"github.com/chriscow/voicerelay-go/pkg/playback"
	"github.com/chriscow/voicerelay-go/pkg/realtime"
	"github.com/chriscow/voicerelay-go/pkg/relay"
	"github.com/chriscow/voicerelay-go/pkg/rtc"
	"github.com/chriscow/voicerelay-go/pkg/transcript"
)

var (
	// ErrTransportLost is returned by Run when the connection fails mid-session.
	ErrTransportLost = errors.New("session: transport lost")
	// ErrAlreadyStarted is returned by Run on a coordinator that already ran.
	ErrAlreadyStarted = errors.New("session: already started")
)

// Transport is an ordered, message-framed, bidirectional connection.
// Send must be safe for concurrent use. Close must unblock Receive.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Config configures a Coordinator.
type Config struct {
	Transport Transport
	Session   realtime.SessionConfig
	Functions *dispatch.Table

	Input  device.Input
	Output device.Output
	Format rtc.Format // rtc.PCM16Mono24K if zero

	// Recorder receives every captured frame. Optional; the caller closes it.
	Recorder io.Writer
	// Transcript receives completed transcriptions. Optional.
	Transcript *transcript.Sink

	QueueCapacity int           // playback.DefaultCapacity if zero
	PlaybackIdle  time.Duration // playback.DefaultIdleTimeout if zero

	// PrimeBackground, when set, is added to the conversation as a system
	// message right after the session configuration.
	PrimeBackground string

	Metrics *Metrics
	Logger  *slog.Logger
}

// Coordinator drives one conversational session.
type Coordinator struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *Metrics
	lifecycle *Lifecycle

	capture  *capture.Source
	playback *playback.Sink

	// ctx scopes every send and dispatch; cancelled on teardown.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	closing  bool
	reported map[string]bool // device failures already explained to the user

	inflight     sync.WaitGroup
	teardownOnce sync.Once
}

// New creates a coordinator in the Disconnected state.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Transport == nil {
		return nil, errors.New("session: transport is required")
	}
	if cfg.Input == nil || cfg.Output == nil {
		return nil, errors.New("session: input and output devices are required")
	}
	if cfg.Functions == nil {
		cfg.Functions = dispatch.NewTable()
	}
	if cfg.Transcript == nil {
		cfg.Transcript = transcript.Discard()
	}
	if cfg.Format == (rtc.Format{}) {
		cfg.Format = rtc.PCM16Mono24K
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "session"))

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:       cfg,
		logger:    logger,
		metrics:   cfg.Metrics,
		lifecycle: NewLifecycle(logger),
		ctx:       ctx,
		cancel:    cancel,
		reported:  make(map[string]bool),
	}

	c.capture = capture.New(capture.Config{
		Input:    cfg.Input,
		Format:   cfg.Format,
		Recorder: cfg.Recorder,
		OnFrame:  c.forward,
		OnError:  func(err error) { go c.deviceFailed("capture", err) },
		OnEnd:    func() { go c.captureEnded() },
		Logger:   cfg.Logger,
	})
	c.playback = playback.NewSink(playback.Config{
		Output:      cfg.Output,
		Format:      cfg.Format,
		Capacity:    cfg.QueueCapacity,
		IdleTimeout: cfg.PlaybackIdle,
		Logger:      cfg.Logger,
		OnError:     func(err error) { go c.deviceFailed("playback", err) },
	})
	return c, nil
}

// Lifecycle exposes the shutdown hooks run when the session ends.
func (c *Coordinator) Lifecycle() *Lifecycle {
	return c.lifecycle
}

// State returns a snapshot of the session state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Playing = c.playback.Active()
	return st
}

// QueueLen returns the number of frames waiting for playback.
func (c *Coordinator) QueueLen() int {
	return c.playback.Queue().Len()
}

// Run consumes inbound messages until ctx is cancelled or the transport
// fails. A transport failure is fatal and returned; cancellation returns nil.
// The session is Connecting until the service announces it with
// session.created. The session is torn down before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Connection != Disconnected || c.closing {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state.Connection = Connecting
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, c.cancel)
	defer stop()

	c.logger.Info("session started")

	g, gctx := errgroup.WithContext(c.ctx)
	inbound := make(chan []byte, 64)

	g.Go(func() error {
		defer close(inbound)
		for {
			msg, err := c.cfg.Transport.Receive(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return relay.NewFatalError(fmt.Errorf("%w: %w", ErrTransportLost, err), "transport")
			}
			select {
			case inbound <- msg:
			case <-gctx.Done():
				return nil
			}
		}
	})

	// one event at a time, in arrival order
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg, ok := <-inbound:
				if !ok {
					return nil
				}
				c.Handle(realtime.Decode(msg))
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		if err := c.cfg.Transport.Close(); err != nil {
			c.logger.Debug("transport close", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()

	reason := "context cancelled"
	if err != nil {
		reason = err.Error()
		c.logger.Error("session failed", slog.String("error", reason))
	}
	c.teardown(reason)
	return err
}

// Close tears the session down without waiting for Run.
func (c *Coordinator) Close() {
	c.teardown("closed")
}

// Handle applies one event to the session. Events must be handled one at a
// time; Run does this for inbound messages.
func (c *Coordinator) Handle(ev realtime.Event) {
	c.metrics.event(ev.Kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return
	}

	switch ev.Kind {
	case realtime.KindSessionCreated:
		c.state.Connection = Open
		c.state.SessionID = ev.SessionID
		c.logger.Info("session created", slog.String("session_id", ev.SessionID))
		c.send(realtime.SessionUpdate(c.cfg.Session))
		if c.cfg.PrimeBackground != "" {
			c.send(realtime.ContextMessage("system", c.cfg.PrimeBackground))
		}

	case realtime.KindSessionUpdated:
		c.logger.Debug("session updated")
		c.startCapture()

	case realtime.KindUserSpeechStarted:
		c.state.UserSpeaking = true
		c.state.ModelResponding = false
		cancelled := c.playback.Cancel()
		dropped := c.playback.Queue().Clear()
		c.metrics.drop(dropInterrupted, dropped)
		c.metrics.setQueued(0)
		if cancelled || dropped > 0 {
			c.metrics.interrupted()
			c.logger.Info("user interrupted playback",
				slog.Bool("cancelled", cancelled),
				slog.Int("dropped_frames", dropped))
		}
		c.startCapture()

	case realtime.KindUserSpeechStopped:
		c.state.UserSpeaking = false
		if c.playback.Queue().Len() > 0 {
			c.playback.Activate()
		}

	case realtime.KindAudioDelta:
		c.audioDelta(ev)

	case realtime.KindAudioDone:
		c.state.ModelResponding = false
		c.startCapture()

	case realtime.KindFunctionCallDone:
		c.dispatch(ev.Call)

	case realtime.KindTranscriptionCompleted:
		c.logger.Info("transcription", slog.String("text", ev.Text))
		if err := c.cfg.Transcript.Append(ev.Text); err != nil {
			c.logger.Warn("transcript append failed", slog.String("error", err.Error()))
		}

	case realtime.KindError:
		c.logger.Warn("service error",
			slog.String("type", ev.Err.Type),
			slog.String("code", ev.Err.Code),
			slog.String("message", ev.Err.Message),
			slog.String("param", ev.Err.Param),
			slog.String("event_id", ev.Err.EventID))

	default:
		if ev.Type == "" {
			c.logger.Warn("malformed message ignored", slog.Int("bytes", len(ev.Raw)))
		} else {
			c.logger.Debug("unhandled event", slog.String("type", ev.Type))
		}
	}
}

func (c *Coordinator) audioDelta(ev realtime.Event) {
	if c.state.UserSpeaking {
		c.metrics.drop(dropUserSpeaking, 1)
		return
	}

	pcm, err := ev.Audio()
	if err != nil || len(pcm) == 0 {
		c.metrics.drop(dropInvalid, 1)
		c.logger.Debug("audio delta dropped", slog.Int("bytes", len(pcm)))
		return
	}
	frame, err := rtc.NewAudioFrame(pcm, c.cfg.Format, 0)
	if err != nil {
		c.metrics.drop(dropInvalid, 1)
		c.logger.Debug("audio delta dropped", slog.String("error", err.Error()))
		return
	}

	// echo suppression: the microphone is off while remote audio is queued
	c.stopCapture()
	c.state.ModelResponding = true

	if c.playback.Enqueue(frame) {
		c.metrics.drop(dropOverflow, 1)
	}
	c.metrics.setQueued(c.playback.Queue().Len())
	c.playback.Activate()
}

func (c *Coordinator) startCapture() {
	if c.state.ModelResponding {
		return
	}
	// Recording may be stale if the input ran out and captureEnded has not run yet
	if c.state.Recording && c.capture.Running() {
		return
	}
	if err := c.capture.Start(); err != nil {
		c.reportDevice("capture", err)
		return
	}
	c.state.Recording = true
}

func (c *Coordinator) stopCapture() {
	if !c.state.Recording {
		return
	}
	c.capture.Stop()
	c.state.Recording = false
}

// captureEnded clears Recording after the input stream ran out, so the next
// resume point reopens it.
func (c *Coordinator) captureEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || !c.state.Recording || c.capture.Running() {
		return
	}
	c.state.Recording = false
	c.logger.Info("capture input ended")
}

// deviceFailed handles a failure reported from a capture or render goroutine.
func (c *Coordinator) deviceFailed(activity string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return
	}
	if activity == "capture" && c.state.Recording {
		c.capture.Stop()
		c.state.Recording = false
	}
	c.reportDevice(activity, err)
}

// reportDevice surfaces a device failure once per activity. The other
// activity keeps running.
func (c *Coordinator) reportDevice(activity string, err error) {
	if c.reported[activity] {
		c.logger.Debug("device still failing", slog.String("activity", activity), slog.String("error", err.Error()))
		return
	}
	c.reported[activity] = true
	c.logger.Warn("device failure", slog.String("activity", activity), slog.String("error", err.Error()))

	what := "the microphone is not working, so they cannot be heard"
	if activity == "playback" {
		what = "the speaker is not working, so replies cannot be played"
	}
	c.send(realtime.ResponseCreate("Tell the user briefly that " + what + "."))
}

// forward sends one captured frame. It runs on the capture goroutine and
// must not take c.mu.
func (c *Coordinator) forward(frame *rtc.AudioFrame) {
	msg, err := realtime.AppendAudio(frame.Data).Marshal()
	if err != nil {
		c.logger.Error("encode audio frame", slog.String("error", err.Error()))
		return
	}
	if err := c.cfg.Transport.Send(c.ctx, msg); err != nil {
		c.logger.Debug("audio frame not sent", slog.String("error", err.Error()))
		return
	}
	c.metrics.frameSent()
}

// dispatch runs a function call off the event loop. Must hold c.mu.
func (c *Coordinator) dispatch(call realtime.FunctionCall) {
	c.logger.Info("function call",
		slog.String("name", call.Name),
		slog.String("call_id", call.CallID))

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		start := time.Now()
		result, err := c.cfg.Functions.Invoke(c.ctx, call)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			c.metrics.functionCall(call.Name, "error")
			c.logger.Warn("function call failed",
				slog.String("name", call.Name),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("error", err.Error()))
			c.send(realtime.ResponseCreate(FailureInstructions(err)))
			return
		}

		c.metrics.functionCall(call.Name, "ok")
		c.logger.Debug("function call completed",
			slog.String("name", call.Name),
			slog.Duration("elapsed", time.Since(start)))
		if call.CallID != "" {
			c.send(realtime.FunctionCallOutput(call.CallID, result))
		}
		c.send(realtime.ResponseCreate(result))
	}()
}

// FailureInstructions is the reply requested when a function call fails.
func FailureInstructions(err error) string {
	return "Tell the user briefly that the request could not be completed: " + err.Error()
}

func (c *Coordinator) send(ev realtime.ClientEvent) {
	msg, err := ev.Marshal()
	if err != nil {
		c.logger.Error("encode client event", slog.String("type", ev.Type), slog.String("error", err.Error()))
		return
	}
	if err := c.cfg.Transport.Send(c.ctx, msg); err != nil {
		c.logger.Warn("send failed", slog.String("type", ev.Type), slog.String("error", err.Error()))
		return
	}
	c.logger.Debug("sent", slog.String("type", ev.Type))
}

func (c *Coordinator) teardown(reason string) {
	c.teardownOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		c.mu.Unlock()

		c.cancel()
		c.inflight.Wait()

		c.mu.Lock()
		c.stopCapture()
		c.playback.Cancel()
		c.playback.Queue().Clear()
		c.state.ModelResponding = false
		c.state.UserSpeaking = false
		c.state.Connection = Closed
		c.mu.Unlock()

		// wait for both devices to be released
		c.capture.Close()
		c.playback.Close()
		c.cfg.Transport.Close()

		c.lifecycle.Shutdown(reason)
	})
}
