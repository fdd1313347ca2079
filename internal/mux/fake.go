package mux

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/pi-chan/claudeye/internal/model"
)

// Fake is a scripted Multiplexer. Tests set panes, contents and errors and
// change them between poll cycles; all methods are safe for concurrent use.
type Fake struct {
	mu          sync.Mutex
	panes       []model.Pane
	contents    map[string]string
	captureErrs map[string]error
	listErr     error
	activateErr error
	delay       time.Duration

	captures    map[string]int
	activations []string
}

// NewFake returns a Fake with the given panes and no content.
func NewFake(panes ...model.Pane) *Fake {
	return &Fake{
		panes:       panes,
		contents:    make(map[string]string),
		captureErrs: make(map[string]error),
		captures:    make(map[string]int),
	}
}

// Name returns "fake".
func (f *Fake) Name() string { return "fake" }

// SetPanes replaces the listed panes.
func (f *Fake) SetPanes(panes ...model.Pane) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panes = append([]model.Pane(nil), panes...)
}

// SetContent sets the capture output for a pane ID or target and clears
// any scripted capture error for it.
func (f *Fake) SetContent(target, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[target] = content
	delete(f.captureErrs, target)
}

// SetCaptureError makes captures of target fail with err. A nil err clears it.
func (f *Fake) SetCaptureError(target string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.captureErrs, target)
		return
	}
	f.captureErrs[target] = err
}

// SetListError makes ListPanes fail with err.
func (f *Fake) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// SetActivateError makes ActivatePane fail with err.
func (f *Fake) SetActivateError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activateErr = err
}

// SetDelay makes every capture block for d or until its context ends.
func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// ListPanes returns the scripted panes.
func (f *Fake) ListPanes(_ context.Context, filter string) ([]model.Pane, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, f.listErr)
	}
	var re *regexp.Regexp
	if filter != "" {
		var err error
		if re, err = regexp.Compile(filter); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}
	out := make([]model.Pane, 0, len(f.panes))
	for _, p := range f.panes {
		if re != nil && !re.MatchString(p.Session) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// CapturePane returns the scripted content for target.
func (f *Fake) CapturePane(ctx context.Context, target string, lines int) (string, error) {
	f.mu.Lock()
	f.captures[target]++
	delay := f.delay
	content, ok := f.contents[target]
	err := f.captureErrs[target]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: %w", ErrCaptureFailed, target, ErrTimeout)
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrCaptureFailed, target, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s: %w", ErrCaptureFailed, target, ErrPaneNotFound)
	}
	return content, nil
}

// ActivatePane records the activation. Unknown panes fail with ErrPaneNotFound.
func (f *Fake) ActivatePane(_ context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activateErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrActivationFailed, target, f.activateErr)
	}
	found := false
	for _, p := range f.panes {
		if p.ID == target || p.Target == target {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s: %w", ErrActivationFailed, target, ErrPaneNotFound)
	}
	f.activations = append(f.activations, target)
	return nil
}

// CaptureCount returns how many times target was captured.
func (f *Fake) CaptureCount(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures[target]
}

// Activations returns the activated targets in call order.
func (f *Fake) Activations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.activations...)
}
