package mux

import "errors"

// Error taxonomy. Callers test with errors.Is; concrete errors wrap one of
// these with the failing command and target.
var (
	// ErrBackendUnavailable means the multiplexer cannot be queried at all
	// (not installed, no server running, listing failed). Fatal.
	ErrBackendUnavailable = errors.New("multiplexer unavailable")

	// ErrCaptureFailed means one pane could not be captured. The pane is
	// retried on the next poll.
	ErrCaptureFailed = errors.New("capture failed")

	// ErrActivationFailed means a pane could not be brought into focus.
	ErrActivationFailed = errors.New("activation failed")

	// ErrPaneNotFound means the target pane no longer exists.
	ErrPaneNotFound = errors.New("pane not found")

	// ErrTimeout means a multiplexer command did not finish in time.
	ErrTimeout = errors.New("multiplexer command timed out")
)
