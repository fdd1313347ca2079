package mux

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-chan/claudeye/internal/model"
)

var _ Multiplexer = (*Fake)(nil)
var _ Multiplexer = (*Tmux)(nil)

func TestFake_ListAndCapture(t *testing.T) {
	f := NewFake(
		model.Pane{ID: "%1", Target: "dev:0.0", Session: "dev", Command: "claude"},
		model.Pane{ID: "%2", Target: "ops:0.0", Session: "ops", Command: "zsh"},
	)
	f.SetContent("%1", "❯ ")

	ctx := context.Background()
	panes, err := f.ListPanes(ctx, "")
	require.NoError(t, err)
	assert.Len(t, panes, 2)

	panes, err = f.ListPanes(ctx, "^dev$")
	require.NoError(t, err)
	require.Len(t, panes, 1)
	assert.Equal(t, "%1", panes[0].ID)

	out, err := f.CapturePane(ctx, "%1", 100)
	require.NoError(t, err)
	assert.Equal(t, "❯ ", out)
	assert.Equal(t, 1, f.CaptureCount("%1"))

	_, err = f.CapturePane(ctx, "%2", 100)
	assert.ErrorIs(t, err, ErrCaptureFailed)
	assert.ErrorIs(t, err, ErrPaneNotFound)
}

func TestFake_ScriptedErrors(t *testing.T) {
	f := NewFake(model.Pane{ID: "%1"})
	ctx := context.Background()

	f.SetListError(errors.New("no server running"))
	_, err := f.ListPanes(ctx, "")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	f.SetListError(nil)

	f.SetContent("%1", "x")
	f.SetCaptureError("%1", errors.New("boom"))
	_, err = f.CapturePane(ctx, "%1", 10)
	assert.ErrorIs(t, err, ErrCaptureFailed)

	f.SetContent("%1", "y")
	out, err := f.CapturePane(ctx, "%1", 10)
	require.NoError(t, err)
	assert.Equal(t, "y", out)
}

func TestFake_DelayHonoursContext(t *testing.T) {
	f := NewFake(model.Pane{ID: "%1"})
	f.SetContent("%1", "x")
	f.SetDelay(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.CapturePane(ctx, "%1", 10)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFake_Activate(t *testing.T) {
	f := NewFake(model.Pane{ID: "%1", Target: "dev:0.0"})
	ctx := context.Background()

	require.NoError(t, f.ActivatePane(ctx, "%1"))
	err := f.ActivatePane(ctx, "%9")
	assert.ErrorIs(t, err, ErrActivationFailed)
	assert.ErrorIs(t, err, ErrPaneNotFound)
	assert.Equal(t, []string{"%1"}, f.Activations())
}
