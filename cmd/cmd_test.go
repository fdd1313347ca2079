package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pi-chan/claudeye/internal/classifier"
	"github.com/pi-chan/claudeye/internal/model"
	"github.com/pi-chan/claudeye/internal/mux"
)

var plain = newStyles(DarkTheme(), false)

func session(id, target string, state model.State) model.Session {
	return model.Session{
		Pane:  model.Pane{ID: id, Target: target, Path: "/src/" + strings.Split(target, ":")[0]},
		State: state,
	}
}

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		Sequence: 4,
		TakenAt:  time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Sessions: []model.Session{
			session("%1", "api:0.0", model.StateRunning),
			session("%5", "web:1.0", model.StateApproval),
			session("%9", "docs:0.1", model.StateIdle),
		},
	}
}

func TestResolveSession(t *testing.T) {
	snap := testSnapshot()
	tests := []struct {
		arg    string
		wantID string
	}{
		{"1", "%1"},
		{"3", "%9"},
		{"%5", "%5"},
		{"docs:0.1", "%9"},
	}
	for _, tt := range tests {
		got, err := resolveSession(snap, tt.arg)
		if err != nil {
			t.Errorf("resolveSession(%q): unexpected error %v", tt.arg, err)
			continue
		}
		if got.Pane.ID != tt.wantID {
			t.Errorf("resolveSession(%q) = %s, want %s", tt.arg, got.Pane.ID, tt.wantID)
		}
	}
}

func TestResolveSession_NotFound(t *testing.T) {
	snap := testSnapshot()
	for _, arg := range []string{"0", "4", "-1", "%7", "nope:0.0"} {
		_, err := resolveSession(snap, arg)
		if !errors.Is(err, mux.ErrPaneNotFound) {
			t.Errorf("resolveSession(%q): got %v, want ErrPaneNotFound", arg, err)
		}
	}
}

func TestPrintSessions(t *testing.T) {
	var buf bytes.Buffer
	snap := testSnapshot()
	snap.Sessions[0].StateChangedAt = snap.TakenAt.Add(-90 * time.Second)
	snap.Sessions[2].Failures = 2
	snap.Sessions[2].LastError = "capture failed: docs:0.1\nmore"

	printSessions(&buf, plain, snap, snap.TakenAt)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "#") {
		t.Errorf("header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1 ") || !strings.Contains(lines[1], "running") || !strings.Contains(lines[1], "1m") {
		t.Errorf("row 1: %q", lines[1])
	}
	if !strings.Contains(lines[2], "approval") || !strings.Contains(lines[2], "web") {
		t.Errorf("row 2: %q", lines[2])
	}
	if !strings.Contains(lines[3], "(2 failed: capture failed: docs:0.1)") {
		t.Errorf("row 3 should show the first error line: %q", lines[3])
	}
}

func TestPrintSessions_Empty(t *testing.T) {
	var buf bytes.Buffer
	printSessions(&buf, plain, model.Snapshot{}, time.Now())
	if got := strings.TrimSpace(buf.String()); got != "no sessions found" {
		t.Errorf("got %q", got)
	}
}

func TestPrintStatus(t *testing.T) {
	snap := testSnapshot()
	snap.Sessions = append(snap.Sessions, session("%10", "ops:0.0", model.StateApproval))

	var buf bytes.Buffer
	printStatus(&buf, plain, snap)
	want := "2 approval · 1 running · 1 idle"
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStateCounts(t *testing.T) {
	counts := stateCounts(testSnapshot())
	want := map[string]int{
		"approval": 1, "waiting": 0, "running": 1, "idle": 1,
		"stopped": 0, "unknown": 0, "total": 3,
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("counts[%q] = %d, want %d", k, counts[k], v)
		}
	}
}

func TestPrintChanges(t *testing.T) {
	prev := testSnapshot()
	next := testSnapshot()
	next.Sessions = []model.Session{
		session("%1", "api:0.0", model.StateApproval), // changed
		session("%5", "web:1.0", model.StateApproval), // unchanged
		session("%12", "new:0.0", model.StateRunning), // new
	} // %9 gone

	var buf bytes.Buffer
	if !printChanges(&buf, plain, prev, next) {
		t.Fatal("expected changes")
	}
	out := buf.String()
	for _, want := range []string{"api:0.0", "running", "→ approval", "new:0.0", "new", "docs:0.1", "gone"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "web:1.0") {
		t.Errorf("unchanged session printed:\n%s", out)
	}
}

func TestPrintChanges_NoChange(t *testing.T) {
	var buf bytes.Buffer
	if printChanges(&buf, plain, testSnapshot(), testSnapshot()) {
		t.Errorf("expected no changes, got:\n%s", buf.String())
	}
}

func TestPrintDecision(t *testing.T) {
	content := model.Content{"Do you want to proceed?", "❯ 1. Yes", "  2. No"}
	d := classifier.Default().Explain(content)

	var buf bytes.Buffer
	printDecision(&buf, plain, content, d)
	out := buf.String()
	if !strings.Contains(out, "state: approval") {
		t.Errorf("missing state:\n%s", out)
	}
	if !strings.Contains(out, string(d.Rule)) {
		t.Errorf("missing rule %q:\n%s", d.Rule, out)
	}
	if !strings.Contains(out, "❯ 1. Yes") {
		t.Errorf("missing prompt line:\n%s", out)
	}
}

func TestPad(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 4, "abc…"},
		{"日本語", 5, "日本…"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := pad(tt.in, tt.width); got != tt.want {
			t.Errorf("pad(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestSince(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{5*time.Minute + 10*time.Second, "5m"},
		{2*time.Hour + 7*time.Minute, "2h07m"},
		{-time.Second, "0s"},
	}
	for _, tt := range tests {
		if got := since(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("since(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if got := since(time.Time{}, now); got != "-" {
		t.Errorf("since(zero) = %q, want -", got)
	}
}
