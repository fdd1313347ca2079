package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pi-chan/claudeye/internal/classifier"
	"github.com/pi-chan/claudeye/internal/model"
)

var (
	flagCaptureExplain bool
	flagCaptureLines   int
)

var captureCmd = &cobra.Command{
	Use:   "capture <pane>",
	Short: "Capture the visible content of a pane",
	Long: `Capture the last lines of a tmux pane and print them to stdout.

The pane is a tmux target: a pane id ("%12") or an address
("mysession:0.1").

With --explain, the capture is classified with the configured patterns
and the decision is printed instead: the state, the rule that decided it
and the line that matched. Useful when writing custom patterns.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		m, err := getMultiplexer(cfg)
		if err != nil {
			return err
		}

		lines := cfg.CaptureLines
		if cmd.Flags().Changed("lines") {
			lines = flagCaptureLines
		}
		raw, err := m.CapturePane(cmd.Context(), target, lines)
		if err != nil {
			return fmt.Errorf("failed to capture pane %q: %w", target, err)
		}

		if !flagCaptureExplain {
			fmt.Fprint(os.Stdout, raw)
			return nil
		}

		clf, err := cfg.Classifier()
		if err != nil {
			return fmt.Errorf("patterns: %w", err)
		}
		content := model.SplitContent(raw, lines)
		printDecision(os.Stdout, outputStyles(), content, clf.Explain(content))
		return nil
	},
}

func init() {
	captureCmd.Flags().BoolVar(&flagCaptureExplain, "explain", false, "classify the capture and show why")
	captureCmd.Flags().IntVarP(&flagCaptureLines, "lines", "n", 0, "lines to capture (default: capture_lines from config)")
	rootCmd.AddCommand(captureCmd)
}

// printDecision prints the decision and the lines it refers to.
func printDecision(w io.Writer, st styles, content model.Content, d classifier.Decision) {
	fmt.Fprintf(w, "%s %s\n", st.Title("state:"), st.State(d.State, 0))
	fmt.Fprintf(w, "%s %s\n", st.Title("rule: "), d.Rule)
	if d.Pattern != "" {
		fmt.Fprintf(w, "%s %q\n", st.Title("match:"), d.Pattern)
	}
	if d.PromptLine >= 0 && d.PromptLine < len(content) {
		fmt.Fprintf(w, "%s %s %s\n", st.Title("prompt:"), st.Dim(fmt.Sprintf("%4d|", d.PromptLine+1)), content[d.PromptLine])
	}
	if d.MatchLine >= 0 && d.MatchLine < len(content) && d.MatchLine != d.PromptLine {
		fmt.Fprintf(w, "%s %s %s\n", st.Title("line: "), st.Dim(fmt.Sprintf("%4d|", d.MatchLine+1)), content[d.MatchLine])
	}
}
