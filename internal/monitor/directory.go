// Package monitor discovers agent panes, classifies them on a fixed
// interval and publishes the results as immutable snapshots.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pi-chan/claudeye/internal/config"
	"github.com/pi-chan/claudeye/internal/logging"
	"github.com/pi-chan/claudeye/internal/model"
	"github.com/pi-chan/claudeye/internal/mux"
)

var pollLog = logging.ForComponent(logging.CompPoller)

// Candidate is a pane whose foreground command resolves to the monitored
// command.
type Candidate struct {
	Pane model.Pane
	// Command is the resolved logical command name.
	Command string
}

// Directory lists candidate panes.
type Directory struct {
	Mux mux.Multiplexer
	// Versions resolves version-named binaries; nil compares raw names.
	Versions *mux.VersionTable
	// Command is the logical command to match (e.g. "claude").
	Command string
	// Filter is a session name regex passed to the multiplexer.
	Filter string
	// ExcludeSessions skips sessions by exact name or "prefix*".
	ExcludeSessions []string
	// SelfPaneID is the pane running this process; it is never a candidate.
	SelfPaneID string
}

// ListCandidates enumerates all panes and keeps those running Command, in
// multiplexer listing order. Listing failures wrap mux.ErrBackendUnavailable.
func (d *Directory) ListCandidates(ctx context.Context) ([]Candidate, error) {
	panes, err := d.Mux.ListPanes(ctx, d.Filter)
	if err != nil {
		return nil, fmt.Errorf("list panes: %w", err)
	}

	out := make([]Candidate, 0, len(panes))
	for _, p := range panes {
		if d.SelfPaneID != "" && p.ID == d.SelfPaneID {
			continue
		}
		if len(d.ExcludeSessions) > 0 && config.MatchesExcludeList(p.Session, d.ExcludeSessions) {
			continue
		}
		cmd := d.resolve(p.Command)
		if cmd != d.Command {
			continue
		}
		out = append(out, Candidate{Pane: p, Command: cmd})
	}
	pollLog.Debug("candidates_listed",
		slog.Int("panes", len(panes)),
		slog.Int("candidates", len(out)))
	return out, nil
}

func (d *Directory) resolve(raw string) string {
	if d.Versions == nil {
		return raw
	}
	return d.Versions.Resolve(raw)
}
