// Package config resolves the relay's runtime settings from defaults, an
// optional .env file and the process environment. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables.
const (
	EnvAPIKey          = "OPENAI_API_KEY"
	EnvRealtimeURL     = "VR_REALTIME_URL"
	EnvModel           = "VR_MODEL"
	EnvAssistantID     = "VR_ASSISTANT_ID"
	EnvRecordingPath   = "VR_RECORDING_PATH"
	EnvTranscriptPath  = "VR_TRANSCRIPT_PATH"
	EnvNotepadPath     = "VR_NOTEPAD_PATH"
	EnvSessionConfig   = "VR_SESSION_CONFIG"
	EnvTaskPoll        = "VR_TASK_POLL_INTERVAL"
	EnvTaskTimeout     = "VR_TASK_TIMEOUT"
	EnvPlaybackIdle    = "VR_PLAYBACK_IDLE"
	EnvQueueCapacity   = "VR_QUEUE_CAPACITY"
	EnvPrimeBackground = "VR_PRIME_BACKGROUND"
)

// Config is the resolved relay configuration.
type Config struct {
	APIKey      string
	RealtimeURL string // transport.DefaultURL if empty
	Model       string // transport.DefaultModel if empty
	AssistantID string // enables the availability lookup

	RecordingPath     string // captured audio, WAV; empty disables
	TranscriptPath    string // empty disables
	NotepadPath       string // empty disables write_notepad
	SessionConfigPath string // YAML overrides of the session document

	TaskPollInterval time.Duration
	TaskTimeout      time.Duration
	PlaybackIdle     time.Duration
	QueueCapacity    int

	PrimeBackground bool

	// Set from flags only.
	InputWAV    string
	OutputWAV   string
	MetricsAddr string
	DryRun      bool
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		RecordingPath:    "session.wav",
		TranscriptPath:   "transcript.txt",
		NotepadPath:      "notepad.txt",
		TaskPollInterval: 2 * time.Second,
		TaskTimeout:      30 * time.Second,
		PlaybackIdle:     2 * time.Second,
		QueueCapacity:    256,
	}
}

// Load reads envFile into the environment, without overriding variables that
// are already set, then resolves the configuration. A missing envFile is only
// an error when required is true.
func Load(envFile string, required bool) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if required || !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv resolves the configuration through lookup, starting from Defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str(EnvAPIKey, &cfg.APIKey)
	str(EnvRealtimeURL, &cfg.RealtimeURL)
	str(EnvModel, &cfg.Model)
	str(EnvAssistantID, &cfg.AssistantID)
	str(EnvRecordingPath, &cfg.RecordingPath)
	str(EnvTranscriptPath, &cfg.TranscriptPath)
	str(EnvNotepadPath, &cfg.NotepadPath)
	str(EnvSessionConfig, &cfg.SessionConfigPath)
	dur(EnvTaskPoll, &cfg.TaskPollInterval)
	dur(EnvTaskTimeout, &cfg.TaskTimeout)
	dur(EnvPlaybackIdle, &cfg.PlaybackIdle)

	if v, ok := lookup(EnvQueueCapacity); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvQueueCapacity, err))
		} else {
			cfg.QueueCapacity = n
		}
	}
	if v, ok := lookup(EnvPrimeBackground); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvPrimeBackground, err))
		} else {
			cfg.PrimeBackground = b
		}
	}

	return cfg, errors.Join(errs...)
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" && !c.DryRun {
		errs = append(errs, fmt.Errorf("%s is required", EnvAPIKey))
	}
	if c.TaskPollInterval <= 0 {
		errs = append(errs, errors.New("task poll interval must be positive"))
	}
	if c.TaskTimeout < c.TaskPollInterval {
		errs = append(errs, errors.New("task timeout must not be shorter than the poll interval"))
	}
	if c.PlaybackIdle <= 0 {
		errs = append(errs, errors.New("playback idle timeout must be positive"))
	}
	if c.QueueCapacity <= 0 {
		errs = append(errs, errors.New("queue capacity must be positive"))
	}
	return errors.Join(errs...)
}
