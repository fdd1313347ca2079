package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pi-chan/claudeye/internal/model"
)

var flagWatchAll bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll continuously and print state changes",
	Long: `Poll on the configured interval and print one line per state change:
a session appearing, changing state or going away.

With --all, the full session table is reprinted after every poll that
changed anything. Stops on Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mon, tel, err := newMonitor(ctx, cfg)
		if err != nil {
			return err
		}
		defer tel.Shutdown(context.Background())

		snaps := mon.Subscribe(ctx)
		runErr := make(chan error, 1)
		go func() { runErr <- mon.Run(ctx) }()

		st := outputStyles()
		var prev model.Snapshot
		for {
			select {
			case err := <-runErr:
				stop()
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			case snap, ok := <-snaps:
				if !ok {
					if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				}
				if printChanges(os.Stdout, st, prev, snap) && flagWatchAll {
					fmt.Fprintln(os.Stdout)
					printSessions(os.Stdout, st, snap, snap.TakenAt)
					fmt.Fprintln(os.Stdout)
				}
				prev = snap
			}
		}
	},
}

func init() {
	watchCmd.Flags().BoolVar(&flagWatchAll, "all", false, "reprint the session table after each change")
	watchCmd.Flags().StringVar(&flagInterval, "interval", "", "poll interval, e.g. 500ms (default: interval from config)")
	rootCmd.AddCommand(watchCmd)
}

// printChanges writes one line per session that appeared, changed state or
// disappeared between prev and next. It reports whether anything changed.
func printChanges(w io.Writer, st styles, prev, next model.Snapshot) bool {
	ts := st.Dim(next.TakenAt.Format(time.TimeOnly))
	changed := false

	for _, s := range next.Sessions {
		old, found := prev.Find(s.Pane.ID)
		switch {
		case !found:
			fmt.Fprintf(w, "%s %s %s %s\n", ts, pad(s.Pane.Target, colTarget), st.Dim("new    "), st.State(s.State, 0))
		case old.State != s.State:
			fmt.Fprintf(w, "%s %s %s → %s\n", ts, pad(s.Pane.Target, colTarget), st.State(old.State, colState), st.State(s.State, 0))
		default:
			continue
		}
		changed = true
	}
	for _, s := range prev.Sessions {
		if _, found := next.Find(s.Pane.ID); !found {
			fmt.Fprintf(w, "%s %s %s\n", ts, pad(s.Pane.Target, colTarget), st.Dim("gone"))
			changed = true
		}
	}
	return changed
}
