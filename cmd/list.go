package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pi-chan/claudeye/internal/model"
)

var flagListJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored sessions and their state",
	Long: `Poll once and list every pane running the monitored command, in
discovery order, with its classified state.

The index in the first column can be passed to "claudeye activate".
Use --json for machine-readable output.`,
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

		if flagListJSON {
			return writeJSON(os.Stdout, snap)
		}
		printSessions(os.Stdout, outputStyles(), snap, time.Now())
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&flagListJSON, "json", false, "output the snapshot as JSON")
	rootCmd.AddCommand(listCmd)
}

const (
	colTarget  = 24
	colProject = 20
	colState   = 9
	colFor     = 7
)

// printSessions writes one row per session, numbered from 1.
func printSessions(w io.Writer, st styles, snap model.Snapshot, now time.Time) {
	if snap.Len() == 0 {
		fmt.Fprintln(w, st.Dim("no sessions found"))
		return
	}
	fmt.Fprintln(w, st.Header(fmt.Sprintf("%-3s %s %s %s %s %s",
		"#", pad("TARGET", colTarget), pad("PROJECT", colProject),
		pad("STATE", colState), pad("FOR", colFor), "PANE")))
	for i, s := range snap.Sessions {
		row := fmt.Sprintf("%-3d %s %s %s %s %s",
			i+1,
			pad(s.Pane.Target, colTarget),
			pad(s.Pane.Project(), colProject),
			st.State(s.State, colState),
			pad(since(s.StateChangedAt, now), colFor),
			s.Pane.ID)
		if s.Stale() {
			row += " " + st.Dim(fmt.Sprintf("(%d failed: %s)", s.Failures, firstLine(s.LastError)))
		}
		fmt.Fprintln(w, row)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
