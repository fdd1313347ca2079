package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pi-chan/claudeye/internal/model"
	"github.com/pi-chan/claudeye/internal/mux"
)

var activateCmd = &cobra.Command{
	Use:   "activate <pane|index>",
	Short: "Switch the tmux client to a session's pane",
	Long: `Select the window and pane of a monitored session and switch the tmux
client to it.

The argument is a pane id ("%12"), a tmux target ("work:0.1"), or the
1-based index shown by "claudeye list".`,
	Args: cobra.ExactArgs(1),
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

		sess, err := resolveSession(snap, args[0])
		if err != nil {
			return err
		}
		if err := mon.Activate(ctx, sess.Pane.ID); err != nil {
			return err
		}
		fmt.Printf("activated %s (%s)\n", sess.Pane.Target, sess.Pane.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
}

// resolveSession finds a session by 1-based index, pane id or target.
func resolveSession(snap model.Snapshot, arg string) (model.Session, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if s, ok := snap.At(n - 1); ok {
			return s, nil
		}
		return model.Session{}, fmt.Errorf("%w: no session at index %d (%d sessions)", mux.ErrPaneNotFound, n, snap.Len())
	}
	if s, ok := snap.Find(arg); ok {
		return s, nil
	}
	for _, s := range snap.Sessions {
		if s.Pane.Target == arg {
			return s, nil
		}
	}
	return model.Session{}, fmt.Errorf("%w: %s is not a monitored session", mux.ErrPaneNotFound, arg)
}
