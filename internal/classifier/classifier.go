// Package classifier derives an agent session's state from the text
// rendered in its pane.
//
// Classification is a pure function of the captured lines. The decision
// proceeds in a fixed order:
//
//  1. Scan backward for the most recent prompt line. Blank lines, box-drawing
//     separators, footer lines and numbered menu options are skipped; the
//     first other line is either the prompt or ends the scan.
//  2. With a prompt, a pending approval or question at/after the prompt wins.
//  3. With a prompt and nothing pending, an active-processing indicator in
//     the recent window means the agent is still working; otherwise idle.
//  4. Without a prompt, any processing indicator means running, then any
//     termination marker means stopped, else unknown.
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pi-chan/claudeye/internal/model"
)

// DefaultActiveWindow is the number of trailing non-blank lines searched for
// a processing indicator when a prompt is visible.
const DefaultActiveWindow = 30

// Rule names the step of the decision that produced a state.
type Rule string

const (
	RuleEmpty         Rule = "empty"
	RulePromptApprove Rule = "prompt-approval"
	RulePromptWait    Rule = "prompt-waiting"
	RulePromptRunning Rule = "prompt-running"
	RulePromptIdle    Rule = "prompt-idle"
	RuleRunning       Rule = "running"
	RuleStopped       Rule = "stopped"
	RuleUnclassified  Rule = "unclassified"
)

// menuOption matches the unselected entries of a numbered selection menu.
var menuOption = regexp.MustCompile(`^\s*\d+\.\s`)

// Options configures a Classifier.
type Options struct {
	Patterns Patterns
	// ActiveWindow bounds the running check when a prompt is visible.
	// Zero means DefaultActiveWindow.
	ActiveWindow int
}

// Classifier classifies captured pane content. It is immutable and safe
// for concurrent use.
type Classifier struct {
	c            compiled
	activeWindow int
}

// New compiles the patterns. Every invalid regular expression is reported.
func New(opts Options) (*Classifier, error) {
	c, err := compileAll(opts.Patterns)
	if err != nil {
		return nil, fmt.Errorf("compile patterns: %w", err)
	}
	if opts.ActiveWindow <= 0 {
		opts.ActiveWindow = DefaultActiveWindow
	}
	return &Classifier{c: c, activeWindow: opts.ActiveWindow}, nil
}

// Default returns a classifier using DefaultPatterns.
func Default() *Classifier {
	c, err := New(Options{Patterns: DefaultPatterns()})
	if err != nil {
		panic(err)
	}
	return c
}

// Decision is a classification with the evidence behind it.
type Decision struct {
	State model.State `json:"state"`
	Rule  Rule        `json:"rule"`
	// PromptLine is the index of the prompt line, or -1 when none was found.
	PromptLine int `json:"prompt_line"`
	// MatchLine is the index of the line that decided the state, or -1.
	MatchLine int `json:"match_line"`
	// MatchText is the content of MatchLine.
	MatchText string `json:"match_text,omitempty"`
	// Pattern is the configured pattern that matched.
	Pattern string `json:"pattern,omitempty"`
}

func (d Decision) String() string {
	if d.MatchLine < 0 {
		return fmt.Sprintf("%s (%s)", d.State, d.Rule)
	}
	return fmt.Sprintf("%s (%s) line %d %q matched %q", d.State, d.Rule, d.MatchLine, d.MatchText, d.Pattern)
}

// Classify returns the state of the given content.
func (c *Classifier) Classify(content model.Content) model.State {
	return c.Explain(content).State
}

// Explain classifies content and reports which rule and line decided it.
func (c *Classifier) Explain(content model.Content) Decision {
	lines := []string(content)
	d := Decision{State: model.StateUnknown, PromptLine: -1, MatchLine: -1}
	if isBlank(lines) {
		d.Rule = RuleEmpty
		return d
	}

	p, pattern := c.findPrompt(lines)
	if p >= 0 {
		d.PromptLine = p
		tail := lines[p:]

		if i, raw, ok := c.c.approval.find(tail); ok {
			return c.decide(d, model.StateApproval, RulePromptApprove, lines, p+i, raw)
		}
		if i, raw, ok := c.c.waiting.find(tail); ok {
			return c.decide(d, model.StateWaiting, RulePromptWait, lines, p+i, raw)
		}
		if i, raw, ok := c.findRecent(c.c.running, lines); ok {
			return c.decide(d, model.StateRunning, RulePromptRunning, lines, i, raw)
		}
		return c.decide(d, model.StateIdle, RulePromptIdle, lines, p, pattern)
	}

	if i, raw, ok := c.c.running.find(lines); ok {
		return c.decide(d, model.StateRunning, RuleRunning, lines, i, raw)
	}
	if i, raw, ok := c.c.stopped.find(lines); ok {
		return c.decide(d, model.StateStopped, RuleStopped, lines, i, raw)
	}
	d.Rule = RuleUnclassified
	return d
}

func (c *Classifier) decide(d Decision, s model.State, rule Rule, lines []string, i int, raw string) Decision {
	d.State = s
	d.Rule = rule
	d.MatchLine = i
	d.MatchText = lines[i]
	d.Pattern = raw
	return d
}

// findPrompt scans backward for the prompt line. Lines that are rendered
// around the prompt without being part of the conversation (blank lines,
// separators, footers, menu entries) are skipped, never treated as a reason
// to stop. The first remaining line is the prompt or there is none.
func (c *Classifier) findPrompt(lines []string) (int, string) {
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || isSeparator(trimmed) {
			continue
		}
		if raw, ok := c.c.prompt.match(lines[i]); ok {
			return i, raw
		}
		if _, ok := c.c.footer.match(lines[i]); ok {
			continue
		}
		if menuOption.MatchString(lines[i]) {
			continue
		}
		return -1, ""
	}
	return -1, ""
}

// findRecent searches the last activeWindow non-blank, non-separator lines.
func (c *Classifier) findRecent(m *matcher, lines []string) (int, string, bool) {
	seen := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0 && seen < c.activeWindow; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || isSeparator(trimmed) {
			continue
		}
		seen++
		start = i
	}
	for i := start; i < len(lines); i++ {
		if raw, ok := m.match(lines[i]); ok {
			return i, raw, true
		}
	}
	return -1, "", false
}

// isSeparator reports whether a non-empty line is drawn only with
// box-drawing characters (U+2500 to U+257F).
func isSeparator(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if r < '─' || r > '╿' {
			return false
		}
	}
	return true
}

func isBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}
