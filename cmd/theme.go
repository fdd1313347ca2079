package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/pi-chan/claudeye/internal/model"
)

// Theme defines the colors used for human-readable output.
type Theme struct {
	Approval  lipgloss.Color // needs a yes/no from the user
	Waiting   lipgloss.Color // asked a question
	Running   lipgloss.Color
	Idle      lipgloss.Color
	Stopped   lipgloss.Color
	Unknown   lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color // secondary text, headers
	Primary   lipgloss.Color // titles
}

// DarkTheme is the default.
func DarkTheme() Theme {
	return Theme{
		Approval:  lipgloss.Color("#f5a742"),
		Waiting:   lipgloss.Color("#5c9cf5"),
		Running:   lipgloss.Color("#7fd88f"),
		Idle:      lipgloss.Color("#808080"),
		Stopped:   lipgloss.Color("#e06c75"),
		Unknown:   lipgloss.Color("#9d7cd8"),
		Text:      lipgloss.Color("#eeeeee"),
		TextMuted: lipgloss.Color("#808080"),
		Primary:   lipgloss.Color("#fab283"),
	}
}

// styles holds the lipgloss styles derived from a Theme.
type styles struct {
	enabled bool
	title   lipgloss.Style
	header  lipgloss.Style
	dim     lipgloss.Style
	state   map[model.State]lipgloss.Style
}

func newStyles(t Theme, enabled bool) styles {
	s := styles{
		enabled: enabled,
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		header:  lipgloss.NewStyle().Foreground(t.TextMuted),
		dim:     lipgloss.NewStyle().Foreground(t.TextMuted),
		state: map[model.State]lipgloss.Style{
			model.StateApproval: lipgloss.NewStyle().Bold(true).Foreground(t.Approval),
			model.StateWaiting:  lipgloss.NewStyle().Bold(true).Foreground(t.Waiting),
			model.StateRunning:  lipgloss.NewStyle().Foreground(t.Running),
			model.StateIdle:     lipgloss.NewStyle().Foreground(t.Idle),
			model.StateStopped:  lipgloss.NewStyle().Foreground(t.Stopped),
			model.StateUnknown:  lipgloss.NewStyle().Foreground(t.Unknown),
		},
	}
	return s
}

// outputStyles returns styles for stdout: colored only on a terminal and
// when neither --no-color nor NO_COLOR is set.
func outputStyles() styles {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return newStyles(DarkTheme(), tty && !flagNoColor && os.Getenv("NO_COLOR") == "")
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

// State renders a state name padded to width display columns.
func (s styles) State(state model.State, width int) string {
	return s.render(s.state[state], pad(state.String(), width))
}

func (s styles) Title(text string) string  { return s.render(s.title, text) }
func (s styles) Header(text string) string { return s.render(s.header, text) }
func (s styles) Dim(text string) string    { return s.render(s.dim, text) }

// pad truncates or pads text to exactly width display columns.
func pad(text string, width int) string {
	if width <= 0 {
		return text
	}
	return runewidth.FillRight(runewidth.Truncate(text, width, "…"), width)
}

// since formats how long ago t was, coarsely: "42s", "5m", "2h07m".
func since(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := max(now.Sub(t), 0)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
