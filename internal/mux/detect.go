package mux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Detect returns the multiplexer for this environment.
// It checks $TMUX first, then falls back to checking that the tmux binary
// exists and has a running server. Errors wrap ErrBackendUnavailable.
func Detect(opts TmuxOptions) (Multiplexer, error) {
	if os.Getenv("TMUX") != "" {
		return NewTmux(opts), nil
	}
	if os.Getenv("ZELLIJ") != "" {
		return nil, fmt.Errorf("%w: zellij is not supported", ErrBackendUnavailable)
	}

	tmuxPath, err := exec.LookPath("tmux")
	if err != nil || tmuxPath == "" {
		return nil, fmt.Errorf("%w: tmux not found in PATH", ErrBackendUnavailable)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, tmuxPath, "list-sessions").Run(); err != nil {
		return nil, fmt.Errorf("%w: no tmux server running", ErrBackendUnavailable)
	}
	return NewTmux(opts), nil
}

// FromName creates a Multiplexer by name.
func FromName(name string, opts TmuxOptions) (Multiplexer, error) {
	switch name {
	case "tmux":
		return NewTmux(opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown multiplexer %q (supported: tmux)", ErrBackendUnavailable, name)
	}
}
