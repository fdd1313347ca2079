// Package mux provides an abstraction over the terminal multiplexer.
//
// This package is pure transport. It lists panes, captures their content and
// focuses them, without interpreting any of it. Classification lives in the
// classifier package.
package mux

import (
	"context"

	"github.com/pi-chan/claudeye/internal/model"
)

// Multiplexer abstracts terminal multiplexer operations.
// Tmux is the real implementation; Fake returns scripted data for tests.
type Multiplexer interface {
	// Name returns the multiplexer name (e.g., "tmux").
	Name() string

	// ListPanes returns all panes, optionally filtered by a session name regex pattern.
	// An empty filter returns all panes. Failures wrap ErrBackendUnavailable.
	ListPanes(ctx context.Context, filter string) ([]model.Pane, error)

	// CapturePane captures up to lines trailing lines of a pane, including
	// scrollback. Failures wrap ErrCaptureFailed.
	CapturePane(ctx context.Context, target string, lines int) (string, error)

	// ActivatePane brings the pane into focus. Failures wrap ErrActivationFailed.
	ActivatePane(ctx context.Context, target string) error
}
