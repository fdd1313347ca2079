package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Patterns holds the recognition patterns in their configured string form.
// Patterns prefixed with "re:" are compiled as regular expressions; anything
// else matches as a plain substring. Every pattern is tested against one line
// at a time.
type Patterns struct {
	// Prompt identifies the agent's input line (and inline questions that
	// take over the input area).
	Prompt []string `yaml:"prompt,omitempty" toml:"prompt,omitempty" json:"prompt,omitempty"`
	// Footer identifies status lines rendered below the prompt. They are
	// skipped by the backward prompt scan.
	Footer []string `yaml:"footer,omitempty" toml:"footer,omitempty" json:"footer,omitempty"`
	// Approval identifies a pending yes/no confirmation at the prompt.
	Approval []string `yaml:"approval,omitempty" toml:"approval,omitempty" json:"approval,omitempty"`
	// Waiting identifies a pending free-form question at the prompt.
	Waiting []string `yaml:"waiting,omitempty" toml:"waiting,omitempty" json:"waiting,omitempty"`
	// Running identifies the agent's active-processing status line.
	Running []string `yaml:"running,omitempty" toml:"running,omitempty" json:"running,omitempty"`
	// Stopped identifies termination and crash output.
	Stopped []string `yaml:"stopped,omitempty" toml:"stopped,omitempty" json:"stopped,omitempty"`
}

// DefaultPatterns returns the built-in patterns for the claude CLI.
func DefaultPatterns() Patterns {
	return Patterns{
		Prompt: []string{
			`re:^\s*❯`,
			`re:(?i)[(\[]y/n[)\]]\s*$`,
			`re:Enter to select.*to navigate`,
		},
		Footer: []string{
			`re:^\s*-- (INSERT|NORMAL|VISUAL|REPLACE)( LINE| BLOCK)? --`,
			`re:Context.*\d+%`,
			"? for shortcuts",
			"ctrl+",
			"shift+",
			`re:^\s*\d+\s+files?\s+[+\-]`,
			"accept edits on",
			"plan mode on",
			"bypass permissions on",
			"Esc to cancel",
			"Enter to confirm",
		},
		Approval: []string{
			`re:❯\s*\d+\.`,
			`re:^\s*❯\s*(Yes|No)\b`,
			"Yes, allow once",
			"Yes, allow always",
			"Allow once",
			"Allow always",
			"Do you trust",
			"Run this command?",
			"Allow this MCP server",
			"Continue?",
			"Proceed?",
			"Do you want to proceed?",
			`re:(?i)[(\[]y/n[)\]]`,
		},
		Waiting: []string{
			`re:Enter to select.*to navigate`,
			"Type something.",
			"Chat about this",
		},
		Running: []string{
			// status line with elapsed time after a middle dot: (esc to interrupt · 1m 45s · ...)
			`re:^[✢✽✶✻·]\s+.+?…?\s*\([^)]*·\s*((?:\d+[smh]\s*)+)`,
			// elapsed time first: (1m 52s · ...)
			`re:^[✢✽✶✻·]\s+.+?…?\s*\(((?:\d+[smh]\s*)+)\s*·`,
			`re:^[✢✽✶✻·]\s+.+?…?\s*\((esc|ctrl\+c) to interrupt`,
			`re:·\s*esc to interrupt(\s|·|$)`,
			// initial thinking phase before a timer appears
			`re:^[✢✽✶✻·]\s+.+?…`,
			`re:^[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]\s+\S`,
		},
		Stopped: []string{
			`re:^Pane is dead`,
			`re:^\[(exited|Process completed)\]`,
			`re:^panic: `,
			`re:^FATAL ERROR: `,
			`re:^Killed\b`,
			"Segmentation fault",
		},
	}
}

// Merge returns defaults with overrides and extras applied. A non-nil
// override field replaces the default field, even when empty; extras are
// appended afterwards.
func Merge(defaults, overrides, extras Patterns) Patterns {
	pick := func(def, over, extra []string) []string {
		out := copySlice(def)
		if over != nil {
			out = copySlice(over)
		}
		return append(out, extra...)
	}
	return Patterns{
		Prompt:   pick(defaults.Prompt, overrides.Prompt, extras.Prompt),
		Footer:   pick(defaults.Footer, overrides.Footer, extras.Footer),
		Approval: pick(defaults.Approval, overrides.Approval, extras.Approval),
		Waiting:  pick(defaults.Waiting, overrides.Waiting, extras.Waiting),
		Running:  pick(defaults.Running, overrides.Running, extras.Running),
		Stopped:  pick(defaults.Stopped, overrides.Stopped, extras.Stopped),
	}
}

// Validate reports every pattern that fails to compile.
func (p Patterns) Validate() error {
	_, err := compileAll(p)
	return err
}

// matcher is one compiled pattern set.
type matcher struct {
	kind     string
	patterns []pattern
}

type pattern struct {
	raw string
	sub string
	re  *regexp.Regexp
}

func (p pattern) match(line string) bool {
	if p.re != nil {
		return p.re.MatchString(line)
	}
	return strings.Contains(line, p.sub)
}

// match returns the first pattern matching line.
func (m *matcher) match(line string) (string, bool) {
	for _, p := range m.patterns {
		if p.match(line) {
			return p.raw, true
		}
	}
	return "", false
}

// find returns the index of the first line in lines matching any pattern,
// scanning forward, and the pattern that matched.
func (m *matcher) find(lines []string) (int, string, bool) {
	for i, line := range lines {
		if raw, ok := m.match(line); ok {
			return i, raw, true
		}
	}
	return -1, "", false
}

func compile(kind string, raw []string) (*matcher, error) {
	m := &matcher{kind: kind}
	var errs []error
	for _, r := range raw {
		if r == "" {
			continue
		}
		if expr, ok := strings.CutPrefix(r, "re:"); ok {
			re, err := regexp.Compile(expr)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s pattern %q: %w", kind, r, err))
				continue
			}
			m.patterns = append(m.patterns, pattern{raw: r, re: re})
			continue
		}
		m.patterns = append(m.patterns, pattern{raw: r, sub: r})
	}
	return m, errors.Join(errs...)
}

type compiled struct {
	prompt, footer, approval, waiting, running, stopped *matcher
}

func compileAll(p Patterns) (compiled, error) {
	var c compiled
	var errs []error
	for _, set := range []struct {
		dst  **matcher
		kind string
		raw  []string
	}{
		{&c.prompt, "prompt", p.Prompt},
		{&c.footer, "footer", p.Footer},
		{&c.approval, "approval", p.Approval},
		{&c.waiting, "waiting", p.Waiting},
		{&c.running, "running", p.Running},
		{&c.stopped, "stopped", p.Stopped},
	} {
		m, err := compile(set.kind, set.raw)
		if err != nil {
			errs = append(errs, err)
		}
		*set.dst = m
	}
	return c, errors.Join(errs...)
}

func copySlice(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
