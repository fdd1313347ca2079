package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pi-chan/claudeye/internal/logging"
	"github.com/pi-chan/claudeye/internal/model"
)

var registryLog = logging.ForComponent(logging.CompRegistry)

// PaneResult is the outcome of capturing and classifying one candidate in
// a poll cycle.
type PaneResult struct {
	Candidate Candidate
	State     model.State
	// Err is the capture error, if any. State is ignored when set.
	Err error
}

// Transition describes a session whose state changed.
type Transition struct {
	Session model.Session
	From    model.State
	To      model.State
}

// Registry holds the sessions known across poll cycles and publishes a new
// immutable Snapshot after each cycle. Apply is the only writer; Current
// and Subscribe may be used from any goroutine.
type Registry struct {
	staleThreshold int
	onTransition   func(Transition)

	// mu serialises Apply.
	mu       sync.Mutex
	order    []string
	sessions map[string]*model.Session
	seq      uint64

	current atomic.Pointer[model.Snapshot]

	subsMu sync.Mutex
	subs   map[chan model.Snapshot]struct{}
}

// NewRegistry creates an empty registry. A session whose capture fails more
// than staleThreshold consecutive times becomes unknown.
func NewRegistry(staleThreshold int) *Registry {
	r := &Registry{
		staleThreshold: staleThreshold,
		sessions:       make(map[string]*model.Session),
		subs:           make(map[chan model.Snapshot]struct{}),
	}
	r.current.Store(&model.Snapshot{Sessions: []model.Session{}})
	return r
}

// OnTransition registers fn to be called, from Apply, for every state
// change. Must be set before the first Apply.
func (r *Registry) OnTransition(fn func(Transition)) {
	r.onTransition = fn
}

// Apply merges one cycle's results and publishes the resulting snapshot.
// Results must contain every candidate discovered in the cycle; sessions
// not in results are removed.
func (r *Registry) Apply(results []PaneResult, at time.Time) model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(results))
	var transitions []Transition

	for _, res := range results {
		id := res.Candidate.Pane.ID
		if seen[id] {
			continue
		}
		seen[id] = true

		s, known := r.sessions[id]
		if !known {
			s = &model.Session{State: model.StateUnknown, PreviousState: model.StateUnknown, StateChangedAt: at}
			r.sessions[id] = s
			r.order = append(r.order, id)
		}
		s.Pane = res.Candidate.Pane
		s.Command = res.Candidate.Command

		next := s.State
		if res.Err != nil {
			s.Failures++
			s.LastError = res.Err.Error()
			if s.Failures > r.staleThreshold {
				next = model.StateUnknown
			}
		} else {
			s.Failures = 0
			s.LastError = ""
			s.LastCapture = at
			next = res.State
		}

		if next != s.State {
			t := Transition{From: s.State, To: next}
			s.PreviousState = s.State
			s.State = next
			s.StateChangedAt = at
			t.Session = *s
			transitions = append(transitions, t)
		}
	}

	// Drop sessions not seen this cycle, keeping the order of the rest.
	kept := r.order[:0]
	for _, id := range r.order {
		if seen[id] {
			kept = append(kept, id)
			continue
		}
		registryLog.Debug("session_removed", slog.String("pane", id))
		delete(r.sessions, id)
	}
	r.order = kept

	r.seq++
	snap := model.Snapshot{
		Sequence: r.seq,
		TakenAt:  at,
		Sessions: make([]model.Session, 0, len(r.order)),
	}
	for _, id := range r.order {
		snap.Sessions = append(snap.Sessions, *r.sessions[id])
	}

	r.publish(snap)

	if r.onTransition != nil {
		for _, t := range transitions {
			r.onTransition(t)
		}
	}
	return snap
}

// Current returns the most recently published snapshot.
func (r *Registry) Current() model.Snapshot {
	return *r.current.Load()
}

// Subscribe returns a channel that always holds the newest snapshot. The
// current snapshot, if any has been published, is delivered first. Slow
// readers skip intermediate snapshots. The channel is closed when ctx ends.
func (r *Registry) Subscribe(ctx context.Context) <-chan model.Snapshot {
	ch := make(chan model.Snapshot, 1)

	r.subsMu.Lock()
	if snap := r.current.Load(); snap.Sequence > 0 {
		ch <- *snap
	}
	r.subs[ch] = struct{}{}
	r.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		r.subsMu.Lock()
		delete(r.subs, ch)
		close(ch)
		r.subsMu.Unlock()
	}()
	return ch
}

// publish swaps in snap and hands it to every subscriber, replacing any
// snapshot they have not read yet.
func (r *Registry) publish(snap model.Snapshot) {
	r.current.Store(&snap)

	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
