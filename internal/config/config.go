// Package config loads claudeye configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Command-line flags (applied by the caller)
//  2. Environment variables (CLAUDEYE_*)
//  3. Config file
//  4. Built-in defaults
//
// Config file search order:
//  1. .claudeye.yaml or .claudeye.toml in current directory
//  2. ~/.config/claudeye/config.yaml or config.toml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pi-chan/claudeye/internal/classifier"
)

// Config holds all claudeye configuration.
type Config struct {
	// Discovery
	Command         string   `yaml:"command" toml:"command"`                   // Logical command to monitor, e.g. "claude"
	Filter          string   `yaml:"filter" toml:"filter"`                     // Session name regex
	ExcludeSessions []string `yaml:"exclude_sessions" toml:"exclude_sessions"` // Session names to skip; trailing * matches a prefix
	TmuxSocket      string   `yaml:"tmux_socket" toml:"tmux_socket"`           // tmux -L socket name
	VersionTTL      string   `yaml:"version_ttl" toml:"version_ttl"`           // Go duration string, e.g. "30s"

	// Polling
	Interval       string `yaml:"interval" toml:"interval"`               // Go duration string, e.g. "1s"
	CaptureLines   int    `yaml:"capture_lines" toml:"capture_lines"`     // Trailing lines captured per pane
	CaptureTimeout string `yaml:"capture_timeout" toml:"capture_timeout"` // Per tmux call
	Parallel       int    `yaml:"parallel" toml:"parallel"`               // Concurrent captures per cycle
	StaleThreshold int    `yaml:"stale_threshold" toml:"stale_threshold"` // Consecutive failures before a session turns unknown

	// Classification
	ActiveWindow  int                 `yaml:"active_window" toml:"active_window"`   // Recent lines searched for a running indicator below a prompt
	Patterns      classifier.Patterns `yaml:"patterns" toml:"patterns"`             // Replace the built-in pattern sets
	ExtraPatterns classifier.Patterns `yaml:"extra_patterns" toml:"extra_patterns"` // Appended to the pattern sets

	// Feed server
	Listen string `yaml:"listen" toml:"listen"`

	// Logging
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`
	LogFile   string `yaml:"log_file" toml:"log_file"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint" toml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers" toml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed durations (not from the file, set after loading)
	IntervalDuration       time.Duration `yaml:"-" toml:"-"`
	CaptureTimeoutDuration time.Duration `yaml:"-" toml:"-"`
	VersionTTLDuration     time.Duration `yaml:"-" toml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-" toml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Command:        "claude",
		VersionTTL:     "30s",
		Interval:       "1s",
		CaptureLines:   120,
		CaptureTimeout: "2s",
		Parallel:       8,
		StaleThreshold: 3,
		ActiveWindow:   classifier.DefaultActiveWindow,
		Listen:         "127.0.0.1:7420",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load searches for a config file and reads configuration from it and from
// environment variables.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from path (or the search order when path is
// empty) and environment variables. Environment variables always override
// file values.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		path, data, err = findConfigFile()
	}
	if err == nil {
		fileCfg, err := decodeFile(path, data)
		if err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
		mergeFile(cfg, fileCfg)
	}

	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize parses durations and validates the configuration. Call it again
// after applying flag overrides.
func (c *Config) Finalize() error {
	var err error
	c.IntervalDuration, err = parseDuration(c.Interval, time.Second)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", c.Interval, err)
	}
	c.CaptureTimeoutDuration, err = parseDuration(c.CaptureTimeout, 2*time.Second)
	if err != nil {
		return fmt.Errorf("invalid capture timeout %q: %w", c.CaptureTimeout, err)
	}
	c.VersionTTLDuration, err = parseDuration(c.VersionTTL, 30*time.Second)
	if err != nil {
		return fmt.Errorf("invalid version TTL %q: %w", c.VersionTTL, err)
	}
	return c.Validate()
}

// Validate checks value ranges and pattern syntax.
func (c *Config) Validate() error {
	var errs []error
	if c.Command == "" {
		errs = append(errs, errors.New("command must not be empty"))
	}
	if c.IntervalDuration <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.IntervalDuration))
	}
	if c.CaptureTimeoutDuration <= 0 {
		errs = append(errs, fmt.Errorf("capture timeout must be positive, got %s", c.CaptureTimeoutDuration))
	}
	if c.CaptureLines <= 0 {
		errs = append(errs, fmt.Errorf("capture_lines must be positive, got %d", c.CaptureLines))
	}
	if c.Parallel <= 0 {
		errs = append(errs, fmt.Errorf("parallel must be positive, got %d", c.Parallel))
	}
	if c.StaleThreshold < 0 {
		errs = append(errs, fmt.Errorf("stale_threshold must not be negative, got %d", c.StaleThreshold))
	}
	if err := c.ResolvedPatterns().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ResolvedPatterns returns the built-in patterns with the configured
// replacements and extras applied.
func (c *Config) ResolvedPatterns() classifier.Patterns {
	return classifier.Merge(classifier.DefaultPatterns(), c.Patterns, c.ExtraPatterns)
}

// Classifier builds a classifier from the configured patterns.
func (c *Config) Classifier() (*classifier.Classifier, error) {
	return classifier.New(classifier.Options{
		Patterns:     c.ResolvedPatterns(),
		ActiveWindow: c.ActiveWindow,
	})
}

// MatchesExcludeList reports whether name matches any pattern. A pattern
// ending in "*" matches by prefix; anything else must match exactly.
func MatchesExcludeList(name string, patterns []string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if name == p {
			return true
		}
	}
	return false
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	candidates := []string{".claudeye.yaml", ".claudeye.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "claudeye")
		candidates = append(candidates,
			filepath.Join(dir, "config.yaml"),
			filepath.Join(dir, "config.toml"),
		)
	}
	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}
	return "", nil, fmt.Errorf("no config file found")
}

// decodeFile parses data as TOML when path ends in .toml, YAML otherwise.
func decodeFile(path string, data []byte) (*Config, error) {
	var fileCfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		return &fileCfg, nil
	}
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &fileCfg, nil
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Command != "" {
		cfg.Command = file.Command
	}
	if file.Filter != "" {
		cfg.Filter = file.Filter
	}
	if file.ExcludeSessions != nil {
		cfg.ExcludeSessions = file.ExcludeSessions
	}
	if file.TmuxSocket != "" {
		cfg.TmuxSocket = file.TmuxSocket
	}
	if file.VersionTTL != "" {
		cfg.VersionTTL = file.VersionTTL
	}
	if file.Interval != "" {
		cfg.Interval = file.Interval
	}
	if file.CaptureLines > 0 {
		cfg.CaptureLines = file.CaptureLines
	}
	if file.CaptureTimeout != "" {
		cfg.CaptureTimeout = file.CaptureTimeout
	}
	if file.Parallel > 0 {
		cfg.Parallel = file.Parallel
	}
	if file.StaleThreshold > 0 {
		cfg.StaleThreshold = file.StaleThreshold
	}
	if file.ActiveWindow > 0 {
		cfg.ActiveWindow = file.ActiveWindow
	}
	cfg.Patterns = file.Patterns
	cfg.ExtraPatterns = file.ExtraPatterns
	if file.Listen != "" {
		cfg.Listen = file.Listen
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
	}
	if file.LogFile != "" {
		cfg.LogFile = file.LogFile
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	strs := map[string]*string{
		"CLAUDEYE_COMMAND":         &cfg.Command,
		"CLAUDEYE_FILTER":          &cfg.Filter,
		"CLAUDEYE_TMUX_SOCKET":     &cfg.TmuxSocket,
		"CLAUDEYE_VERSION_TTL":     &cfg.VersionTTL,
		"CLAUDEYE_INTERVAL":        &cfg.Interval,
		"CLAUDEYE_CAPTURE_TIMEOUT": &cfg.CaptureTimeout,
		"CLAUDEYE_LISTEN":          &cfg.Listen,
		"CLAUDEYE_LOG_LEVEL":       &cfg.LogLevel,
		"CLAUDEYE_LOG_FORMAT":      &cfg.LogFormat,
		"CLAUDEYE_LOG_FILE":        &cfg.LogFile,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}

	ints := map[string]*int{
		"CLAUDEYE_CAPTURE_LINES":   &cfg.CaptureLines,
		"CLAUDEYE_PARALLEL":        &cfg.Parallel,
		"CLAUDEYE_STALE_THRESHOLD": &cfg.StaleThreshold,
		"CLAUDEYE_ACTIVE_WINDOW":   &cfg.ActiveWindow,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}

	if v := os.Getenv("CLAUDEYE_EXCLUDE_SESSIONS"); v != "" {
		cfg.ExcludeSessions = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.ExcludeSessions = append(cfg.ExcludeSessions, s)
			}
		}
	}
	return nil
}

// parseDuration parses a Go duration string. Empty string returns the
// fallback value.
func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
