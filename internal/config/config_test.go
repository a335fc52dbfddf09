package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	is := is.New(t)
	cfg, err := FromEnv(lookupFrom(nil))
	is.NoErr(err)
	is.Equal(cfg, Defaults())
	is.Equal(cfg.TaskTimeout, 30*time.Second)
}

func TestFromEnv_Overrides(t *testing.T) {
	is := is.New(t)
	cfg, err := FromEnv(lookupFrom(map[string]string{
		EnvAPIKey:          "sk-test",
		EnvAssistantID:     "asst_1",
		EnvRecordingPath:   "", // explicitly disabled
		EnvTaskPoll:        "500ms",
		EnvTaskTimeout:     "10s",
		EnvQueueCapacity:   "64",
		EnvPrimeBackground: "true",
	}))
	is.NoErr(err)
	is.Equal(cfg.APIKey, "sk-test")
	is.Equal(cfg.AssistantID, "asst_1")
	is.Equal(cfg.RecordingPath, "")
	is.Equal(cfg.TaskPollInterval, 500*time.Millisecond)
	is.Equal(cfg.TaskTimeout, 10*time.Second)
	is.Equal(cfg.QueueCapacity, 64)
	is.True(cfg.PrimeBackground)
	is.NoErr(cfg.Validate())
}

func TestFromEnv_BadValues(t *testing.T) {
	is := is.New(t)
	_, err := FromEnv(lookupFrom(map[string]string{
		EnvTaskTimeout:     "soon",
		EnvQueueCapacity:   "many",
		EnvPrimeBackground: "perhaps",
	}))
	is.True(err != nil)
	for _, key := range []string{EnvTaskTimeout, EnvQueueCapacity, EnvPrimeBackground} {
		is.True(strings.Contains(err.Error(), key)) // every bad variable is named
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) { c.APIKey = "sk" }, ""},
		{"dry run needs no key", func(c *Config) { c.DryRun = true }, ""},
		{"missing key", func(c *Config) {}, EnvAPIKey},
		{"timeout shorter than poll", func(c *Config) {
			c.APIKey = "sk"
			c.TaskTimeout = time.Second
		}, "task timeout"},
		{"zero capacity", func(c *Config) {
			c.APIKey = "sk"
			c.QueueCapacity = 0
		}, "queue capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), ".env")
	is.NoErr(os.WriteFile(path, []byte("VR_MODEL=from-file\nVR_ASSISTANT_ID=asst_file\n"), 0o600))

	t.Setenv(EnvModel, "from-env") // the environment wins
	t.Setenv(EnvAssistantID, "")
	os.Unsetenv(EnvAssistantID)

	cfg, err := Load(path, true)
	is.NoErr(err)
	is.Equal(cfg.Model, "from-env")
	is.Equal(cfg.AssistantID, "asst_file")
}

func TestLoad_MissingEnvFile(t *testing.T) {
	is := is.New(t)
	missing := filepath.Join(t.TempDir(), "nope.env")

	_, err := Load(missing, false)
	is.NoErr(err) // optional file

	_, err = Load(missing, true)
	is.True(err != nil)
}
