package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pi-chan/claudeye/internal/classifier"
	"github.com/pi-chan/claudeye/internal/model"
	"github.com/pi-chan/claudeye/internal/mux"
	ceotel "github.com/pi-chan/claudeye/internal/otel"
)

// ErrThrottled is returned by Activate when requests arrive faster than the
// activation rate limit. It wraps mux.ErrActivationFailed.
var ErrThrottled = fmt.Errorf("%w: too many requests", mux.ErrActivationFailed)

// Default activation limit: a short burst, then a few per second.
const (
	DefaultActivateRate  = rate.Limit(5)
	DefaultActivateBurst = 3
)

// Options configures a Monitor. Zero values take the package defaults.
type Options struct {
	Mux        mux.Multiplexer
	Versions   *mux.VersionTable
	Classifier *classifier.Classifier
	Telemetry  *ceotel.Telemetry

	Command         string
	Filter          string
	ExcludeSessions []string
	SelfPaneID      string

	Interval       time.Duration
	CaptureLines   int
	CaptureTimeout time.Duration
	Parallel       int
	StaleThreshold int

	ActivateRate  rate.Limit
	ActivateBurst int
}

// Monitor is the entry point for consumers: it owns the poller and exposes
// the latest snapshot, a snapshot stream and pane activation.
type Monitor struct {
	mux       mux.Multiplexer
	versions  *mux.VersionTable
	registry  *Registry
	poller    *Poller
	telemetry *ceotel.Telemetry
	limiter   *rate.Limiter
}

// New wires a Monitor. It does not start polling; call Run or Once.
func New(opts Options) *Monitor {
	if opts.Classifier == nil {
		opts.Classifier = classifier.Default()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = ceotel.Noop()
	}
	if opts.Command == "" {
		opts.Command = "claude"
	}
	if opts.ActivateRate <= 0 {
		opts.ActivateRate = DefaultActivateRate
	}
	if opts.ActivateBurst <= 0 {
		opts.ActivateBurst = DefaultActivateBurst
	}

	reg := NewRegistry(opts.StaleThreshold)
	tel := opts.Telemetry
	reg.OnTransition(func(t Transition) {
		tel.Metrics.RecordTransition(context.Background(), t.From.String(), t.To.String())
		registryLog.Info("state_changed",
			slog.String("pane", t.Session.Pane.ID),
			slog.String("target", t.Session.Pane.Target),
			slog.String("project", t.Session.Pane.Project()),
			slog.String("from", t.From.String()),
			slog.String("to", t.To.String()))
	})

	dir := &Directory{
		Mux:             opts.Mux,
		Versions:        opts.Versions,
		Command:         opts.Command,
		Filter:          opts.Filter,
		ExcludeSessions: opts.ExcludeSessions,
		SelfPaneID:      opts.SelfPaneID,
	}
	p := NewPoller(dir, opts.Classifier, reg, tel)
	if opts.Interval > 0 {
		p.Interval = opts.Interval
	}
	if opts.CaptureLines > 0 {
		p.CaptureLines = opts.CaptureLines
	}
	if opts.CaptureTimeout > 0 {
		p.CaptureTimeout = opts.CaptureTimeout
	}
	if opts.Parallel > 0 {
		p.Parallel = opts.Parallel
	}

	return &Monitor{
		mux:       opts.Mux,
		versions:  opts.Versions,
		registry:  reg,
		poller:    p,
		telemetry: tel,
		limiter:   rate.NewLimiter(opts.ActivateRate, opts.ActivateBurst),
	}
}

// Run polls until ctx is cancelled or discovery fails. It also watches the
// versions directory, when there is one, so new installs resolve at once.
func (m *Monitor) Run(ctx context.Context) error {
	if m.versions != nil {
		if err := m.versions.Watch(ctx); err != nil {
			pollLog.Warn("versions_watch_failed", slog.String("error", err.Error()))
		}
	}
	return m.poller.Run(ctx)
}

// Once runs a single poll cycle.
func (m *Monitor) Once(ctx context.Context) (model.Snapshot, error) {
	return m.poller.Once(ctx)
}

// Current returns the latest published snapshot.
func (m *Monitor) Current() model.Snapshot {
	return m.registry.Current()
}

// Subscribe streams snapshots, newest only, starting with the current one.
// The channel closes when ctx ends.
func (m *Monitor) Subscribe(ctx context.Context) <-chan model.Snapshot {
	return m.registry.Subscribe(ctx)
}

// RunID identifies this monitor's poller.
func (m *Monitor) RunID() string {
	return m.poller.RunID()
}

// Activate focuses the pane of a monitored session. The pane must be in the
// current snapshot. Errors wrap mux.ErrActivationFailed.
func (m *Monitor) Activate(ctx context.Context, paneID string) error {
	if !m.limiter.Allow() {
		m.telemetry.Metrics.RecordActivation(ctx, "throttled")
		return ErrThrottled
	}
	if _, ok := m.Current().Find(paneID); !ok {
		m.telemetry.Metrics.RecordActivation(ctx, "error")
		return fmt.Errorf("%w: %s: %w", mux.ErrActivationFailed, paneID, mux.ErrPaneNotFound)
	}

	ctx, span := m.telemetry.Tracer.Start(ctx, "activate_pane")
	defer span.End()

	if err := m.mux.ActivatePane(ctx, paneID); err != nil {
		m.telemetry.Metrics.RecordActivation(ctx, "error")
		span.RecordError(err)
		if !errors.Is(err, mux.ErrActivationFailed) {
			err = fmt.Errorf("%w: %s: %w", mux.ErrActivationFailed, paneID, err)
		}
		return err
	}
	m.telemetry.Metrics.RecordActivation(ctx, "ok")
	pollLog.Info("pane_activated", slog.String("pane", paneID))
	return nil
}
