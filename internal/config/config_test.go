package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// envKeys lists every variable Load reads, so tests start from a clean slate.
var envKeys = []string{
	"CLAUDEYE_COMMAND", "CLAUDEYE_FILTER", "CLAUDEYE_TMUX_SOCKET", "CLAUDEYE_VERSION_TTL",
	"CLAUDEYE_INTERVAL", "CLAUDEYE_CAPTURE_TIMEOUT", "CLAUDEYE_LISTEN",
	"CLAUDEYE_LOG_LEVEL", "CLAUDEYE_LOG_FORMAT", "CLAUDEYE_LOG_FILE",
	"CLAUDEYE_CAPTURE_LINES", "CLAUDEYE_PARALLEL", "CLAUDEYE_STALE_THRESHOLD",
	"CLAUDEYE_ACTIVE_WINDOW", "CLAUDEYE_EXCLUDE_SESSIONS",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

// inDir runs the test from dir with HOME pointing at an empty directory.
func inDir(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Command != "claude" {
		t.Errorf("Command: got %q, want %q", cfg.Command, "claude")
	}
	if cfg.Interval != "1s" {
		t.Errorf("Interval: got %q, want %q", cfg.Interval, "1s")
	}
	if cfg.StaleThreshold != 3 {
		t.Errorf("StaleThreshold: got %d, want %d", cfg.StaleThreshold, 3)
	}
	if cfg.Parallel != 8 {
		t.Errorf("Parallel: got %d, want %d", cfg.Parallel, 8)
	}
	if cfg.VersionTTL != "30s" {
		t.Errorf("VersionTTL: got %q, want %q", cfg.VersionTTL, "30s")
	}
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	inDir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile: got %q, want empty", cfg.ConfigFile)
	}
	if cfg.IntervalDuration != time.Second {
		t.Errorf("IntervalDuration: got %v", cfg.IntervalDuration)
	}
	if cfg.CaptureTimeoutDuration != 2*time.Second {
		t.Errorf("CaptureTimeoutDuration: got %v", cfg.CaptureTimeoutDuration)
	}
	if cfg.VersionTTLDuration != 30*time.Second {
		t.Errorf("VersionTTLDuration: got %v", cfg.VersionTTLDuration)
	}
}

func TestMatchesExcludeList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		patterns []string
		want     bool
	}{
		{name: "exact match", input: "my-session", patterns: []string{"my-session"}, want: true},
		{name: "exact no match", input: "my-session", patterns: []string{"other-session"}, want: false},
		{name: "prefix glob match", input: "scratch-1234", patterns: []string{"scratch-*"}, want: true},
		{name: "prefix glob no match", input: "my-session", patterns: []string{"scratch-*"}, want: false},
		{name: "prefix glob exact prefix", input: "scratch-", patterns: []string{"scratch-*"}, want: true},
		{name: "empty patterns", input: "anything", patterns: []string{}, want: false},
		{name: "nil patterns", input: "anything", patterns: nil, want: false},
		{name: "multiple patterns last match", input: "bar", patterns: []string{"foo", "scratch-*", "bar"}, want: true},
		{name: "star only matches everything", input: "anything", patterns: []string{"*"}, want: true},
		{name: "empty name no match", input: "", patterns: []string{"foo"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchesExcludeList(tt.input, tt.patterns)
			if got != tt.want {
				t.Errorf("MatchesExcludeList(%q, %v) = %v, want %v",
					tt.input, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMs  int64
		wantErr bool
	}{
		{"empty returns fallback", "", 5000, false},
		{"valid duration", "30s", 30000, false},
		{"valid short duration", "500ms", 500, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDuration(tt.input, 5*time.Second)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q): error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.Milliseconds() != tt.wantMs {
				t.Errorf("parseDuration(%q) = %v, want %dms", tt.input, got, tt.wantMs)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	content := `command: claude
interval: "500ms"
capture_lines: 80
parallel: 4
stale_threshold: 5
exclude_sessions:
  - "scratch-*"
  - "private"
patterns:
  stopped:
    - "re:^bye$"
extra_patterns:
  footer:
    - "my-statusline"
`
	if err := os.WriteFile(filepath.Join(dir, ".claudeye.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	inDir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ConfigFile != ".claudeye.yaml" {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
	if cfg.IntervalDuration != 500*time.Millisecond {
		t.Errorf("IntervalDuration: got %v, want 500ms", cfg.IntervalDuration)
	}
	if cfg.CaptureLines != 80 || cfg.Parallel != 4 || cfg.StaleThreshold != 5 {
		t.Errorf("ints: got lines=%d parallel=%d stale=%d", cfg.CaptureLines, cfg.Parallel, cfg.StaleThreshold)
	}
	if len(cfg.ExcludeSessions) != 2 || cfg.ExcludeSessions[0] != "scratch-*" {
		t.Fatalf("ExcludeSessions: got %v", cfg.ExcludeSessions)
	}

	p := cfg.ResolvedPatterns()
	if len(p.Stopped) != 1 || p.Stopped[0] != "re:^bye$" {
		t.Errorf("Stopped override: got %v", p.Stopped)
	}
	if p.Footer[len(p.Footer)-1] != "my-statusline" {
		t.Errorf("Footer extra not appended: got %v", p.Footer)
	}
	if len(p.Prompt) == 0 {
		t.Error("Prompt defaults should be kept when not overridden")
	}
	if _, err := cfg.Classifier(); err != nil {
		t.Errorf("Classifier(): %v", err)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claudeye.toml")
	content := `command = "claude"
interval = "2s"
parallel = 2
tmux_socket = "work"

[extra_patterns]
running = ["re:^Compacting"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.IntervalDuration != 2*time.Second {
		t.Errorf("IntervalDuration: got %v", cfg.IntervalDuration)
	}
	if cfg.Parallel != 2 || cfg.TmuxSocket != "work" {
		t.Errorf("got parallel=%d socket=%q", cfg.Parallel, cfg.TmuxSocket)
	}
	running := cfg.ResolvedPatterns().Running
	if running[len(running)-1] != "re:^Compacting" {
		t.Errorf("Running extra not appended: got %v", running)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `interval: "5s"
parallel: 3
`
	if err := os.WriteFile(filepath.Join(dir, ".claudeye.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	inDir(t, dir)

	t.Setenv("CLAUDEYE_INTERVAL", "250ms")
	t.Setenv("CLAUDEYE_PARALLEL", "16")
	t.Setenv("CLAUDEYE_EXCLUDE_SESSIONS", "a, b*,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.IntervalDuration != 250*time.Millisecond {
		t.Errorf("IntervalDuration: got %v (env should override file)", cfg.IntervalDuration)
	}
	if cfg.Parallel != 16 {
		t.Errorf("Parallel: got %d (env should override file)", cfg.Parallel)
	}
	if strings.Join(cfg.ExcludeSessions, "|") != "a|b*" {
		t.Errorf("ExcludeSessions: got %v", cfg.ExcludeSessions)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad interval":    `interval: "soon"`,
		"bad regex":       "patterns:\n  prompt:\n    - \"re:([\"",
		"bad yaml":        "interval: [",
		"negative window": `interval: "-1s"`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			clearEnv(t)
			if _, err := LoadFrom(path); err == nil {
				t.Errorf("LoadFrom(%q): expected error", content)
			}
		})
	}
}

func TestLoad_InvalidEnvInt(t *testing.T) {
	clearEnv(t)
	inDir(t, t.TempDir())
	t.Setenv("CLAUDEYE_STALE_THRESHOLD", "three")

	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric CLAUDEYE_STALE_THRESHOLD")
	}
}
