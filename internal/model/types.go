package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Pane represents a terminal multiplexer pane.
type Pane struct {
	// ID is the multiplexer's unique pane id (e.g., "%12"). It is stable for
	// the lifetime of the pane and is the identity of a Session.
	ID string `json:"id"`
	// Target is the human-readable pane address (e.g., "session:0.1").
	// Unlike ID it changes when windows are renumbered.
	Target string `json:"target"`
	// Session is the session name.
	Session string `json:"session"`
	// Window is the window index.
	Window int `json:"window"`
	// WindowName is the window name.
	WindowName string `json:"window_name,omitempty"`
	// Pane is the pane index.
	Pane int `json:"pane"`
	// Title is the pane title set by the running program.
	Title string `json:"title,omitempty"`
	// Active reports whether the pane is the focused pane of its window.
	Active bool `json:"active"`
	// PID is the pane's shell process ID.
	PID int `json:"pid"`
	// Path is the pane's current working directory.
	Path string `json:"path,omitempty"`
	// Command is the foreground command as reported by the multiplexer
	// (e.g., "claude", "zsh", or "2.1.50" for a version-pinned binary).
	Command string `json:"command"`
}

// Project returns the base name of the pane's working directory, or
// "unknown" when the path is not known.
func (p Pane) Project() string {
	if p.Path == "" {
		return "unknown"
	}
	base := filepath.Base(p.Path)
	if base == "." || base == string(filepath.Separator) {
		return "unknown"
	}
	return base
}

// Content is the captured text of a pane, one entry per line, most recent
// line last. A Content is never modified after capture.
type Content []string

// SplitContent splits raw capture output into lines, keeping at most the
// last max lines (0 keeps everything). A single trailing newline does not
// produce an extra empty line.
func SplitContent(raw string, max int) Content {
	if raw == "" {
		return Content{}
	}
	raw = strings.TrimSuffix(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	lines := strings.Split(raw, "\n")
	if max > 0 && len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return Content(lines)
}

// String joins the lines back into a single block of text.
func (c Content) String() string {
	return strings.Join(c, "\n")
}

// Session is the registry's record of one monitored agent pane.
type Session struct {
	// Pane is the multiplexer pane hosting the agent.
	Pane Pane `json:"pane"`
	// Command is the resolved logical command name (e.g., "claude").
	Command string `json:"command"`
	// State is the current classification.
	State State `json:"state"`
	// PreviousState is the state before the most recent transition.
	PreviousState State `json:"previous_state"`
	// StateChangedAt is when State last changed.
	StateChangedAt time.Time `json:"state_changed_at"`
	// LastCapture is the time of the last successful capture. Zero if no
	// capture has succeeded yet.
	LastCapture time.Time `json:"last_capture"`
	// Failures counts consecutive capture failures. Reset on success.
	Failures int `json:"failures"`
	// LastError is the most recent capture error, cleared on success.
	LastError string `json:"last_error,omitempty"`
}

// Stale reports whether recent captures have failed.
func (s Session) Stale() bool {
	return s.Failures > 0
}

// String returns a short one-line description, used in logs.
func (s Session) String() string {
	return fmt.Sprintf("%s (%s) %s", s.Pane.Target, s.Pane.ID, s.State)
}

// Snapshot is an immutable, ordered view of all known sessions at the end of
// one poll cycle. Callers must not modify the Sessions slice.
type Snapshot struct {
	// Sequence increases by one with every published snapshot.
	Sequence uint64 `json:"sequence"`
	// TakenAt is when the poll cycle that produced the snapshot completed.
	TakenAt time.Time `json:"taken_at"`
	// Sessions are in stable discovery order: a session keeps its position
	// across polls and new sessions are appended.
	Sessions []Session `json:"sessions"`
}

// Len returns the number of sessions.
func (s Snapshot) Len() int {
	return len(s.Sessions)
}

// At returns the session at the given 0-based index. Used for numeric
// fast-select ("1" selects index 0).
func (s Snapshot) At(i int) (Session, bool) {
	if i < 0 || i >= len(s.Sessions) {
		return Session{}, false
	}
	return s.Sessions[i], true
}

// Find returns the session for the given pane ID.
func (s Snapshot) Find(paneID string) (Session, bool) {
	for _, sess := range s.Sessions {
		if sess.Pane.ID == paneID {
			return sess, true
		}
	}
	return Session{}, false
}

// Counts returns the number of sessions in each state.
func (s Snapshot) Counts() map[State]int {
	counts := make(map[State]int, len(AllStates))
	for _, sess := range s.Sessions {
		counts[sess.State]++
	}
	return counts
}
