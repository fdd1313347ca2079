package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pi-chan/claudeye/internal/classifier"
	"github.com/pi-chan/claudeye/internal/model"
	"github.com/pi-chan/claudeye/internal/mux"
	ceotel "github.com/pi-chan/claudeye/internal/otel"
)

// Defaults for Poller fields left zero.
const (
	DefaultInterval       = time.Second
	DefaultCaptureLines   = 120
	DefaultCaptureTimeout = 2 * time.Second
	DefaultParallel       = 8
)

// captureWarnEvery bounds how often a failing pane is logged at warn level.
const captureWarnEvery = 30 * time.Second

// Poller runs discover, capture, classify and publish cycles.
type Poller struct {
	Directory      *Directory
	Classifier     *classifier.Classifier
	Registry       *Registry
	Cache          *ClassifyCache
	Interval       time.Duration
	CaptureLines   int
	CaptureTimeout time.Duration
	Parallel       int
	Telemetry      *ceotel.Telemetry

	runID string
	cycle atomic.Uint64

	warnMu sync.Mutex
	warns  map[string]*rate.Sometimes
}

// NewPoller creates a poller with default timing. Callers may adjust the
// exported fields before Run.
func NewPoller(dir *Directory, c *classifier.Classifier, reg *Registry, tel *ceotel.Telemetry) *Poller {
	if tel == nil {
		tel = ceotel.Noop()
	}
	return &Poller{
		Directory:      dir,
		Classifier:     c,
		Registry:       reg,
		Cache:          NewClassifyCache(),
		Interval:       DefaultInterval,
		CaptureLines:   DefaultCaptureLines,
		CaptureTimeout: DefaultCaptureTimeout,
		Parallel:       DefaultParallel,
		Telemetry:      tel,
		runID:          uuid.NewString(),
		warns:          make(map[string]*rate.Sometimes),
	}
}

// RunID identifies this poller in logs and traces.
func (p *Poller) RunID() string {
	return p.runID
}

// Run polls immediately and then every Interval until ctx is cancelled.
// A discovery failure stops polling and is returned; it wraps
// mux.ErrBackendUnavailable when the multiplexer could not be queried.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	pollLog.Info("poller_started",
		slog.String("run_id", p.runID),
		slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.Once(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			pollLog.Error("poll_failed", slog.String("run_id", p.runID), slog.String("error", err.Error()))
			return err
		}
		select {
		case <-ctx.Done():
			pollLog.Info("poller_stopped", slog.String("run_id", p.runID))
			return nil
		case <-ticker.C:
		}
	}
}

// Once runs a single cycle and returns the published snapshot. On error
// nothing is published and the previous snapshot stays current.
func (p *Poller) Once(ctx context.Context) (model.Snapshot, error) {
	cycle := p.cycle.Add(1)
	start := time.Now()
	ctx, span := p.Telemetry.Tracer.Start(ctx, "poll_cycle",
		trace.WithAttributes(
			attribute.String("run.id", p.runID),
			attribute.Int64("cycle", int64(cycle)),
		))
	defer span.End()

	snap, err := p.cycleOnce(ctx)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.Telemetry.Metrics.RecordCycle(ctx, "error", elapsed.Seconds())
		return model.Snapshot{}, err
	}

	counts := snap.Counts()
	span.SetAttributes(
		attribute.Int("sessions.total", snap.Len()),
		attribute.Int("sessions.attention", counts[model.StateApproval]+counts[model.StateWaiting]),
		attribute.Int64("snapshot.sequence", int64(snap.Sequence)),
	)
	p.Telemetry.Metrics.RecordCycle(ctx, "ok", elapsed.Seconds())
	pollLog.Debug("cycle_complete",
		slog.Uint64("sequence", snap.Sequence),
		slog.Int("sessions", snap.Len()),
		slog.Duration("elapsed", elapsed))
	return snap, nil
}

func (p *Poller) cycleOnce(ctx context.Context) (model.Snapshot, error) {
	candidates, err := p.Directory.ListCandidates(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}

	parallel := p.Parallel
	if parallel < 1 {
		parallel = 1
	}

	results := make([]PaneResult, len(candidates))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, c := range candidates {
		g.Go(func() error {
			results[i] = p.capture(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	// A cancelled cycle would look like every capture failed.
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, fmt.Errorf("poll cycle: %w", err)
	}

	keep := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		keep[c.Pane.ID] = true
	}
	p.Cache.Retain(keep)
	p.retainWarns(keep)

	return p.Registry.Apply(results, time.Now()), nil
}

// capture captures and classifies one candidate. It never returns an error;
// failures are carried in the result.
func (p *Poller) capture(ctx context.Context, c Candidate) PaneResult {
	ctx, span := p.Telemetry.Tracer.Start(ctx, "capture_pane",
		trace.WithAttributes(
			attribute.String("pane.id", c.Pane.ID),
			attribute.String("pane.target", c.Pane.Target),
			attribute.String("pane.session", c.Pane.Session),
		))
	defer span.End()

	timeout := p.CaptureTimeout
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := p.Directory.Mux.CapturePane(cctx, c.Pane.ID, p.CaptureLines)
	if err != nil {
		outcome := "error"
		if errors.Is(err, mux.ErrTimeout) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		p.Telemetry.Metrics.RecordCapture(ctx, outcome)
		p.warnCapture(c.Pane, err)
		return PaneResult{Candidate: c, Err: err}
	}
	p.Telemetry.Metrics.RecordCapture(ctx, "ok")

	content := model.SplitContent(raw, p.CaptureLines)
	d, hit := p.Cache.Lookup(c.Pane.ID, content)
	if hit {
		p.Telemetry.Metrics.RecordCacheHit(ctx)
	} else {
		p.Telemetry.Metrics.RecordCacheMiss(ctx)
		d = p.Classifier.Explain(content)
		p.Cache.Store(c.Pane.ID, content, d)
	}
	p.Telemetry.Metrics.RecordClassification(ctx, d.State.String())

	span.SetAttributes(
		attribute.Bool("cache.hit", hit),
		attribute.String("state", d.State.String()),
		attribute.String("rule", string(d.Rule)),
	)
	return PaneResult{Candidate: c, State: d.State}
}

// warnCapture logs a capture failure at warn level at most once per
// captureWarnEvery per pane, and at debug level otherwise.
func (p *Poller) warnCapture(pane model.Pane, err error) {
	p.warnMu.Lock()
	s, ok := p.warns[pane.ID]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: captureWarnEvery}
		p.warns[pane.ID] = s
	}
	p.warnMu.Unlock()

	warned := false
	s.Do(func() {
		warned = true
		pollLog.Warn("capture_failed",
			slog.String("pane", pane.ID),
			slog.String("target", pane.Target),
			slog.String("error", err.Error()))
	})
	if !warned {
		pollLog.Debug("capture_failed",
			slog.String("pane", pane.ID),
			slog.String("error", err.Error()))
	}
}

func (p *Poller) retainWarns(keep map[string]bool) {
	p.warnMu.Lock()
	defer p.warnMu.Unlock()
	for id := range p.warns {
		if !keep[id] {
			delete(p.warns, id)
		}
	}
}
