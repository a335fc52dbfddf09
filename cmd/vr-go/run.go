package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chriscow/voicerelay-go/internal/config"
	"github.com/chriscow/voicerelay-go/internal/transport"
	"github.com/chriscow/voicerelay-go/pkg/audio/wav"
	"github.com/chriscow/voicerelay-go/pkg/device"
	"github.com/chriscow/voicerelay-go/pkg/device/portaudio"
	"github.com/chriscow/voicerelay-go/pkg/device/wavfile"
	"github.com/chriscow/voicerelay-go/pkg/dispatch"
	"github.com/chriscow/voicerelay-go/pkg/realtime"
	"github.com/chriscow/voicerelay-go/pkg/rtc"
	"github.com/chriscow/voicerelay-go/pkg/session"
	"github.com/chriscow/voicerelay-go/pkg/tasks"
	"github.com/chriscow/voicerelay-go/pkg/tasks/assistants"
	"github.com/chriscow/voicerelay-go/pkg/transcript"
)

// buildSession resolves the session document and the function table. With
// openFiles false the notepad is discarded instead of opened. The returned
// cleanup closes the notepad.
func buildSession(cfg config.Config, openFiles bool, logger *slog.Logger) (realtime.SessionConfig, *dispatch.Table, func(), error) {
	doc := realtime.DefaultSessionConfig()
	if cfg.SessionConfigPath != "" {
		loaded, err := realtime.LoadSessionConfig(cfg.SessionConfigPath)
		if err != nil {
			return doc, nil, nil, err
		}
		doc = loaded
	}

	builtins := dispatch.Builtins{
		Poll: tasks.PollConfig{Interval: cfg.TaskPollInterval, Timeout: cfg.TaskTimeout},
	}

	cleanup := func() {}
	switch {
	case cfg.NotepadPath == "":
	case !openFiles:
		builtins.Notepad = transcript.Discard()
	default:
		notepad, err := transcript.Open(cfg.NotepadPath)
		if err != nil {
			return doc, nil, nil, err
		}
		builtins.Notepad = notepad
		cleanup = func() { notepad.Close() }
	}

	switch {
	case cfg.AssistantID == "":
		logger.Debug("no assistant configured, availability lookup disabled")
	case cfg.APIKey == "":
		logger.Warn("assistant configured without an API key, availability lookup disabled")
	default:
		svc, err := assistants.New(assistants.Config{APIKey: cfg.APIKey, AssistantID: cfg.AssistantID})
		if err != nil {
			cleanup()
			return doc, nil, nil, err
		}
		builtins.Tasks = svc
	}

	table := dispatch.NewBuiltinTable(builtins)
	return doc.WithTools(table.Tools()), table, cleanup, nil
}

// openDevices picks WAV files when requested and the sound card otherwise.
func openDevices(cfg config.Config, logger *slog.Logger) (device.Input, device.Output, func(), error) {
	var host *portaudio.Host
	openHost := func() error {
		if host != nil {
			return nil
		}
		h, err := portaudio.Open()
		if err != nil {
			return fmt.Errorf("audio devices: %w (use --input-wav and --output-wav without a sound card)", err)
		}
		host = h
		return nil
	}
	cleanup := func() {
		if host != nil {
			host.Close()
		}
	}

	var in device.Input
	if cfg.InputWAV != "" {
		in = wavfile.NewInput(cfg.InputWAV)
		logger.Info("Using WAV input", slog.String("file", cfg.InputWAV))
	} else {
		if err := openHost(); err != nil {
			return nil, nil, nil, err
		}
		in = host.Input()
	}

	var out device.Output
	if cfg.OutputWAV != "" {
		out = &wavfile.Output{Path: cfg.OutputWAV}
		logger.Info("Using WAV output", slog.String("file", cfg.OutputWAV))
	} else {
		if err := openHost(); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		out = host.Output()
	}

	return in, out, cleanup, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}

func runRelay(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	doc, table, closeNotepad, err := buildSession(cfg, !cfg.DryRun, logger)
	if err != nil {
		return err
	}
	defer closeNotepad()

	if cfg.DryRun {
		logger.Info("Dry run mode - exiting",
			slog.Int("functions", len(table.List())),
			slog.String("voice", doc.Voice))
		return nil
	}

	input, output, closeDevices, err := openDevices(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDevices()

	var metrics *session.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = session.NewMetrics(reg)
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	scfg := session.Config{
		Session:       doc,
		Functions:     table,
		Input:         input,
		Output:        output,
		Format:        rtc.PCM16Mono24K,
		QueueCapacity: cfg.QueueCapacity,
		PlaybackIdle:  cfg.PlaybackIdle,
		Metrics:       metrics,
		Logger:        logger,
	}
	if cfg.PrimeBackground {
		scfg.PrimeBackground = dispatch.DefaultBackground
	}

	var closers []func() error
	if cfg.RecordingPath != "" {
		rec, err := wav.NewWriter(cfg.RecordingPath, rtc.PCM16Mono24K)
		if err != nil {
			return err
		}
		scfg.Recorder = rec
		closers = append(closers, rec.Close)
	}
	if cfg.TranscriptPath != "" {
		sink, err := transcript.Open(cfg.TranscriptPath)
		if err != nil {
			closeAll(closers, logger)
			return err
		}
		scfg.Transcript = sink
		closers = append(closers, sink.Close)
	}

	conn, err := transport.Dial(ctx, transport.Config{
		URL:    cfg.RealtimeURL,
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
		Logger: logger,
	})
	if err != nil {
		closeAll(closers, logger)
		return err
	}
	scfg.Transport = conn

	coord, err := session.New(scfg)
	if err != nil {
		conn.Close()
		closeAll(closers, logger)
		return err
	}
	coord.Lifecycle().OnShutdown(func(reason string) {
		closeAll(closers, logger)
	})

	return coord.Run(ctx)
}

func closeAll(closers []func() error, logger *slog.Logger) {
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}
