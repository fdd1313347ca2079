package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pi-chan/claudeye/internal/logging"
	"github.com/pi-chan/claudeye/internal/model"
)

var muxLog = logging.ForComponent(logging.CompMux)

// DefaultTimeout bounds every tmux invocation when TmuxOptions.Timeout is unset.
const DefaultTimeout = 3 * time.Second

// paneFormat is the list-panes format. Fields are tab separated; the title
// comes last because programs are free to put anything in it.
const paneFormat = "#{pane_id}\t#{session_name}:#{window_index}.#{pane_index}\t#{window_name}\t#{pane_active}\t#{pane_pid}\t#{pane_current_path}\t#{pane_current_command}\t#{pane_title}"

const paneFields = 8

// TmuxOptions configures the tmux client.
type TmuxOptions struct {
	// Binary is the tmux executable (default "tmux").
	Binary string
	// Socket is passed as -L to select a non-default server.
	Socket string
	// Timeout bounds each command (default DefaultTimeout).
	Timeout time.Duration
}

// Tmux implements the Multiplexer interface for tmux.
type Tmux struct {
	binary  string
	socket  string
	timeout time.Duration

	// captureSf deduplicates concurrent captures of the same pane.
	captureSf singleflight.Group
}

// NewTmux creates a new tmux multiplexer.
func NewTmux(opts TmuxOptions) *Tmux {
	t := &Tmux{binary: opts.Binary, socket: opts.Socket, timeout: opts.Timeout}
	if t.binary == "" {
		t.binary = "tmux"
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	return t
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// ListPanes returns all tmux panes, optionally filtered by session name pattern.
func (t *Tmux) ListPanes(ctx context.Context, filter string) ([]model.Pane, error) {
	var re *regexp.Regexp
	if filter != "" {
		var err error
		re, err = regexp.Compile(filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	out, err := t.run(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: tmux list-panes: %w", ErrBackendUnavailable, err)
	}

	var panes []model.Pane
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pane, err := parsePaneLine(line)
		if err != nil {
			muxLog.Debug("skip_pane_line", slog.String("line", line), slog.String("error", err.Error()))
			continue
		}
		if re != nil && !re.MatchString(pane.Session) {
			continue
		}
		panes = append(panes, pane)
	}
	return panes, nil
}

// CapturePane captures the trailing lines of a pane including scrollback.
// Uses -p (stdout), -J (joins wrapped lines) and -S -N (scrollback start).
func (t *Tmux) CapturePane(ctx context.Context, target string, lines int) (string, error) {
	args := []string{"capture-pane", "-p", "-J", "-t", target}
	if lines > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(lines))
	}

	key := target + "/" + strconv.Itoa(lines)
	v, err, _ := t.captureSf.Do(key, func() (any, error) {
		return t.run(ctx, args...)
	})
	if err != nil {
		return "", fmt.Errorf("%w: tmux capture-pane -t %s: %w", ErrCaptureFailed, target, err)
	}
	return v.(string), nil
}

// ActivatePane selects the pane's window and the pane itself, then switches
// a tmux client to it. Outside tmux the most recently active client is
// switched; with no client attached the pane is only selected, so it is
// focused on the next attach.
func (t *Tmux) ActivatePane(ctx context.Context, target string) error {
	if _, err := t.run(ctx, "select-window", "-t", target); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrActivationFailed, target, err)
	}
	if _, err := t.run(ctx, "select-pane", "-t", target); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrActivationFailed, target, err)
	}

	args := []string{"switch-client", "-t", target}
	if os.Getenv("TMUX") == "" {
		client, err := t.latestClient(ctx)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrActivationFailed, target, err)
		}
		if client == "" {
			muxLog.Debug("activate_no_client", slog.String("target", target))
			return nil
		}
		args = []string{"switch-client", "-c", client, "-t", target}
	}
	if _, err := t.run(ctx, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrActivationFailed, target, err)
	}
	return nil
}

// latestClient returns the name of the most recently active client, or ""
// when no client is attached.
func (t *Tmux) latestClient(ctx context.Context) (string, error) {
	out, err := t.run(ctx, "list-clients", "-F", "#{client_activity}\t#{client_name}")
	if err != nil {
		return "", err
	}
	var best string
	var bestActivity int64 = -1
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		activity, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		if activity > bestActivity {
			bestActivity = activity
			best = parts[1]
		}
	}
	return best, nil
}

// run executes a tmux command under the configured timeout and returns its stdout.
func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	allArgs := make([]string, 0, len(args)+2)
	if t.socket != "" {
		allArgs = append(allArgs, "-L", t.socket)
	}
	allArgs = append(allArgs, args...)

	cmd := exec.CommandContext(ctx, t.binary, allArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("tmux %s: %w after %s", args[0], ErrTimeout, t.timeout)
		}
		return "", wrapError(err, stderr.String(), args)
	}
	return stdout.String(), nil
}

// wrapError maps tmux failures onto the package's sentinel errors.
func wrapError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)

	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("tmux %s: %w: %w", args[0], ErrBackendUnavailable, err)
	}
	if strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") ||
		strings.Contains(stderr, "server exited unexpectedly") {
		return fmt.Errorf("tmux %s: %w: %s", args[0], ErrBackendUnavailable, stderr)
	}
	if strings.Contains(stderr, "can't find pane") ||
		strings.Contains(stderr, "can't find window") ||
		strings.Contains(stderr, "can't find session") {
		return fmt.Errorf("tmux %s: %w: %s", args[0], ErrPaneNotFound, stderr)
	}

	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

// parsePaneLine parses one line of list-panes output in paneFormat.
func parsePaneLine(line string) (model.Pane, error) {
	parts := strings.SplitN(line, "\t", paneFields)
	if len(parts) < paneFields-1 {
		return model.Pane{}, fmt.Errorf("expected %d fields, got %d", paneFields, len(parts))
	}

	pane, err := parseTarget(parts[1])
	if err != nil {
		return model.Pane{}, err
	}
	pid, err := strconv.Atoi(parts[4])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid pid %q: %w", parts[4], err)
	}
	if !strings.HasPrefix(parts[0], "%") {
		return model.Pane{}, fmt.Errorf("invalid pane id %q", parts[0])
	}

	pane.ID = parts[0]
	pane.WindowName = parts[2]
	pane.Active = parts[3] == "1"
	pane.PID = pid
	pane.Path = parts[5]
	pane.Command = strings.TrimSpace(parts[6])
	if len(parts) == paneFields {
		pane.Title = parts[7]
	}
	return pane, nil
}

// parseTarget parses a tmux target string "session:window.pane" into a Pane.
func parseTarget(target string) (model.Pane, error) {
	colonIdx := strings.LastIndex(target, ":")
	if colonIdx < 0 {
		return model.Pane{}, fmt.Errorf("invalid target %q: missing ':'", target)
	}

	session := target[:colonIdx]
	rest := target[colonIdx+1:]

	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return model.Pane{}, fmt.Errorf("invalid target %q: missing '.'", target)
	}

	window, err := strconv.Atoi(rest[:dotIdx])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid window index in %q: %w", target, err)
	}

	pane, err := strconv.Atoi(rest[dotIdx+1:])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid pane index in %q: %w", target, err)
	}

	return model.Pane{
		Target:  target,
		Session: session,
		Window:  window,
		Pane:    pane,
	}, nil
}
