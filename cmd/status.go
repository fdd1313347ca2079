package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pi-chan/claudeye/internal/model"
)

var flagStatusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a one-line summary of session states",
	Long: `Poll once and print how many sessions are in each state, attention
states first. Suitable for a tmux status line:

  set -g status-right '#(claudeye status --no-color)'

With --json, prints the counts as a JSON object keyed by state name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mon, tel, err := newMonitor(ctx, cfg)
		if err != nil {
			return err
		}
		defer tel.Shutdown(ctx)

		snap, err := mon.Once(ctx)
		if err != nil {
			return fmt.Errorf("failed to poll panes: %w", err)
		}

		if flagStatusJSON {
			return writeJSON(os.Stdout, stateCounts(snap))
		}
		printStatus(os.Stdout, outputStyles(), snap)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&flagStatusJSON, "json", false, "output counts as JSON")
	rootCmd.AddCommand(statusCmd)
}

// statusOrder lists attention states first.
var statusOrder = []model.State{
	model.StateApproval,
	model.StateWaiting,
	model.StateRunning,
	model.StateIdle,
	model.StateStopped,
	model.StateUnknown,
}

// stateCounts returns counts for every state, zeros included.
func stateCounts(snap model.Snapshot) map[string]int {
	counts := snap.Counts()
	out := make(map[string]int, len(statusOrder)+1)
	for _, st := range statusOrder {
		out[st.String()] = counts[st]
	}
	out["total"] = snap.Len()
	return out
}

// printStatus writes e.g. "2 approval · 1 running · 3 idle". Zero counts are
// omitted.
func printStatus(w io.Writer, st styles, snap model.Snapshot) {
	if snap.Len() == 0 {
		fmt.Fprintln(w, st.Dim("no sessions"))
		return
	}
	counts := snap.Counts()
	var parts []string
	for _, state := range statusOrder {
		if n := counts[state]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st.State(state, 0)))
		}
	}
	fmt.Fprintln(w, strings.Join(parts, " · "))
}
