package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chriscow/voicerelay-go/internal/config"
	"github.com/chriscow/voicerelay-go/pkg/dispatch"
	"github.com/chriscow/voicerelay-go/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "vr-go",
	Short: "Voice relay - duplex audio bridge to a realtime voice service",
	Long: `vr-go relays microphone audio to a realtime conversational voice service and
plays its replies, cancelling playback when the user talks over it and answering
the service's function calls locally.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the realtime service and relay audio until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger.Info("Starting relay",
			slog.String("service", "vr-go"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.Bool("dry_run", cfg.DryRun))

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runRelay(ctx, cfg, logger)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the session configuration sent to the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		doc, _, cleanup, err := buildSession(cfg, false, setupLogger())
		if err != nil {
			return err
		}
		defer cleanup()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "Function dispatch commands",
}

var functionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the functions the service may call",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		_, table, cleanup, err := buildSession(cfg, false, setupLogger())
		if err != nil {
			return err
		}
		defer cleanup()

		printFunctions(table)
		return nil
	},
}

func printFunctions(table *dispatch.Table) {
	fns := table.List()
	if len(fns) == 0 {
		fmt.Println("No functions registered")
		return
	}
	fmt.Printf("Registered functions (%d):\n", len(fns))
	for _, fn := range fns {
		fmt.Printf("  %-20s %s\n", fn.Name, fn.Description)
	}
}

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("VR_LOG_FORMAT")
	logLevel := os.Getenv("VR_LOG_LEVEL")

	var handler slog.Handler
	opts := &slog.HandlerOptions{}

	switch logLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadConfig resolves defaults, the env file and the environment, then applies
// any flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile, cmd.Flags().Changed("env-file"))
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("url", &cfg.RealtimeURL)
	str("model", &cfg.Model)
	str("session-config", &cfg.SessionConfigPath)
	str("recording", &cfg.RecordingPath)
	str("transcript", &cfg.TranscriptPath)
	str("notepad", &cfg.NotepadPath)
	str("input-wav", &cfg.InputWAV)
	str("output-wav", &cfg.OutputWAV)
	str("metrics", &cfg.MetricsAddr)

	if flags.Lookup("dry-run") != nil {
		cfg.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Lookup("prime-background") != nil && flags.Changed("prime-background") {
		cfg.PrimeBackground, _ = flags.GetBool("prime-background")
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().String("session-config", "", "YAML file overriding the session configuration")
	rootCmd.PersistentFlags().String("notepad", "", "Notepad file for write_notepad (overrides VR_NOTEPAD_PATH)")

	runCmd.Flags().String("url", "", "Realtime service WebSocket URL")
	runCmd.Flags().String("model", "", "Realtime model")
	runCmd.Flags().String("recording", "", "WAV file receiving captured audio")
	runCmd.Flags().String("transcript", "", "Transcript file")
	runCmd.Flags().String("input-wav", "", "Replay a 24kHz mono WAV file as the microphone")
	runCmd.Flags().String("output-wav", "", "Write replies to a WAV file instead of the speaker")
	runCmd.Flags().String("metrics", "", "Serve Prometheus metrics on this address, e.g. :9090")
	runCmd.Flags().Bool("prime-background", false, "Add the background text to the conversation on connect")
	runCmd.Flags().Bool("dry-run", false, "Dry run mode - validate config and exit")

	configCmd.AddCommand(configShowCmd)
	functionsCmd.AddCommand(functionsListCmd)
	rootCmd.AddCommand(versionCmd, runCmd, configCmd, functionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
