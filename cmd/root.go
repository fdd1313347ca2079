package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pi-chan/claudeye/internal/config"
	"github.com/pi-chan/claudeye/internal/logging"
	"github.com/pi-chan/claudeye/internal/monitor"
	"github.com/pi-chan/claudeye/internal/mux"
	telem "github.com/pi-chan/claudeye/internal/otel"
)

// Version is set at build time via -ldflags "-X github.com/pi-chan/claudeye/cmd.Version=...".
var Version = "dev"

var (
	// Global flags.
	flagConfig    string
	flagMux       string
	flagSocket    string
	flagCommand   string
	flagFilter    string
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string
	flagNoColor   bool
)

// cfg is the resolved configuration, set in PersistentPreRunE.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "claudeye",
	Short: "Watch Claude Code sessions running in tmux",
	Long: `claudeye finds every tmux pane running Claude Code, reads the bottom of
its screen on a fixed interval and classifies it as running, approval,
waiting, idle, stopped or unknown.

Classification is deterministic text matching on the captured screen.
Nothing is sent anywhere unless an OTLP endpoint is configured.

Configuration is loaded from .claudeye.yaml (or .claudeye.toml), then
~/.config/claudeye/config.yaml, then CLAUDEYE_* environment variables,
then flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(*cobra.Command, []string) { logging.Shutdown() },
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: search .claudeye.yaml, ~/.config/claudeye/config.yaml)")
	pf.StringVar(&flagMux, "mux", "", "terminal multiplexer: tmux (default: auto-detect)")
	pf.StringVarP(&flagSocket, "socket", "L", "", "tmux server socket name")
	pf.StringVar(&flagCommand, "command", "", "command to monitor (default: claude)")
	pf.StringVar(&flagFilter, "filter", "", "regex pattern to filter by session name")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text, json")
	pf.StringVar(&flagLogFile, "log-file", "", "write logs to a rotated file instead of stderr")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	rootCmd.Version = Version
}

// loadConfig resolves defaults, file, environment and flags, in that order,
// and initializes logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadFrom(flagConfig)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("socket") {
		c.TmuxSocket = flagSocket
	}
	if flags.Changed("command") {
		c.Command = flagCommand
	}
	if flags.Changed("filter") {
		c.Filter = flagFilter
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		c.LogFormat = flagLogFormat
	}
	if flags.Changed("log-file") {
		c.LogFile = flagLogFile
	}
	applyCommandFlags(cmd, c)
	if err := c.Finalize(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File:   c.LogFile,
	})
	telem.Version = Version
	if c.ConfigFile != "" {
		cliLog.Debug("config_loaded", slog.String("path", c.ConfigFile))
	}
	cfg = c
	return nil
}

var cliLog = logging.ForComponent(logging.CompCLI)

// Flags shared by the long-running commands.
var (
	flagInterval string
	flagListen   string
)

// applyCommandFlags copies command-local flag overrides into c.
func applyCommandFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		c.Interval = flagInterval
	}
	if flags.Changed("listen") {
		c.Listen = flagListen
	}
}

// getMultiplexer returns the configured or auto-detected multiplexer.
func getMultiplexer(c *config.Config) (mux.Multiplexer, error) {
	opts := mux.TmuxOptions{Socket: c.TmuxSocket, Timeout: c.CaptureTimeoutDuration}
	if flagMux != "" {
		return mux.FromName(flagMux, opts)
	}
	return mux.Detect(opts)
}

// newMonitor wires a monitor from the resolved configuration. The returned
// telemetry must be shut down by the caller.
func newMonitor(ctx context.Context, c *config.Config) (*monitor.Monitor, *telem.Telemetry, error) {
	m, err := getMultiplexer(c)
	if err != nil {
		return nil, nil, err
	}
	clf, err := c.Classifier()
	if err != nil {
		return nil, nil, fmt.Errorf("patterns: %w", err)
	}

	// Initialize OTEL (no-op if no endpoint configured)
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: c.OTELEndpoint,
		Headers:  c.OTELHeaders,
	})
	if err != nil {
		cliLog.Warn("otel_init_failed", slog.String("error", err.Error()))
		tel = telem.Noop()
	}

	mon := monitor.New(monitor.Options{
		Mux:             m,
		Versions:        mux.NewVersionTable(c.Command, c.VersionTTLDuration),
		Classifier:      clf,
		Telemetry:       tel,
		Command:         c.Command,
		Filter:          c.Filter,
		ExcludeSessions: c.ExcludeSessions,
		SelfPaneID:      os.Getenv("TMUX_PANE"),
		Interval:        c.IntervalDuration,
		CaptureLines:    c.CaptureLines,
		CaptureTimeout:  c.CaptureTimeoutDuration,
		Parallel:        c.Parallel,
		StaleThreshold:  c.StaleThreshold,
	})
	return mon, tel, nil
}
