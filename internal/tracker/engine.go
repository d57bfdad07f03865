// Package tracker implements the run-tracking engine: it turns clock ticks and
// GPS samples into distance, pace, elevation gain and mile splits.
package tracker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mreicher/runflow/internal/clock"
	"github.com/mreicher/runflow/internal/location"
	"github.com/mreicher/runflow/internal/shared/units"
)

const defaultProbeTimeout = 10 * time.Second

var nowFn = time.Now

// Option configures an Engine.
type Option func(*Engine)

// WithProbeTimeout bounds the readiness probe run at construction.
func WithProbeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.probeTimeout = d }
}

// WithCompletion sets the callback that receives each completed Run.
func WithCompletion(fn func(Run)) Option {
	return func(e *Engine) { e.onComplete = fn }
}

type observer struct {
	id int
	fn func(Snapshot)
}

// Engine owns the state of one run attempt at a time. Every event (tick,
// sample, feed error, control call) takes notifyMu and then mu, in that
// order. The state change happens under mu; observers and the completion
// callback then run with only notifyMu held, so they see events in order and
// may call Snapshot. Observers must not call control methods synchronously.
type Engine struct {
	clock clock.Clock
	feed  location.Feed

	probeTimeout time.Duration
	onComplete   func(Run)

	mu        sync.Mutex
	notifyMu  sync.Mutex
	state     runState
	ready     bool
	degraded  bool
	readyCh   chan struct{}
	startedAt time.Time
	runnerID  string

	timer     clock.Handle
	ticking   bool
	sub       location.Subscription
	watching  bool
	tickEpoch uint64
	feedEpoch uint64

	observers    []observer
	nextObserver int
}

// New builds an engine. If feed implements location.Prober the probe runs in
// the background and Start is refused until it finishes; a failed probe still
// marks the engine ready, flagged as degraded.
func New(clk clock.Clock, feed location.Feed, opts ...Option) *Engine {
	e := &Engine{
		clock:        clk,
		feed:         feed,
		probeTimeout: defaultProbeTimeout,
		readyCh:      make(chan struct{}),
		state:        runState{phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(e)
	}

	if prober, ok := feed.(location.Prober); ok {
		go e.probe(prober)
	} else {
		e.markReady(false)
	}
	return e
}

func (e *Engine) probe(p location.Prober) {
	ctx, cancel := context.WithTimeout(context.Background(), e.probeTimeout)
	defer cancel()

	degraded := false
	if err := p.Probe(ctx); err != nil {
		log.Printf("tracker: location probe failed, tracking may be inaccurate: %v", err)
		degraded = true
	}
	e.markReady(degraded)
}

// lock takes both locks for an event.
func (e *Engine) lock() {
	e.notifyMu.Lock()
	e.mu.Lock()
}

// unlock abandons an event that published nothing.
func (e *Engine) unlock() {
	e.mu.Unlock()
	e.notifyMu.Unlock()
}

func (e *Engine) markReady(degraded bool) {
	e.lock()
	e.ready = true
	e.degraded = e.degraded || degraded
	close(e.readyCh)
	e.publishLocked(nil)
}

// WaitReady blocks until the readiness probe has finished.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins a fresh run. It is a no-op while a run is in progress or
// before the engine is ready, and reports whether a run was started.
func (e *Engine) Start() bool {
	return e.StartFor("")
}

// StartFor is Start with the id of the runner who will own the completed
// Run.
func (e *Engine) StartFor(runnerID string) bool {
	e.lock()
	if !e.ready || e.state.phase == PhaseRunning || e.state.phase == PhasePaused {
		e.unlock()
		return false
	}

	e.resetLocked()
	e.state.phase = PhaseArmed
	e.startedAt = nowFn()
	e.runnerID = runnerID

	e.startTickingLocked(0)

	feedEpoch := e.feedEpoch
	sub, err := e.feed.AcquireAndWatch(
		func(s location.Sample) { e.handleSample(feedEpoch, s) },
		func(err error) { e.handleFeedError(feedEpoch, err) },
	)
	if err != nil {
		log.Printf("tracker: location feed unavailable, continuing without samples: %v", err)
		e.degraded = true
	} else {
		e.sub = sub
		e.watching = true
	}

	e.state.phase = PhaseRunning
	e.publishLocked(nil)
	return true
}

// Pause freezes elapsed time and gates incoming samples. Only valid while
// running.
func (e *Engine) Pause() bool {
	e.lock()
	if e.state.phase != PhaseRunning {
		e.unlock()
		return false
	}
	e.stopTickingLocked()
	e.state.phase = PhasePaused
	e.publishLocked(nil)
	return true
}

// Resume continues a paused run, counting on from the frozen elapsed time.
func (e *Engine) Resume() bool {
	e.lock()
	if e.state.phase != PhasePaused {
		e.unlock()
		return false
	}
	e.startTickingLocked(e.state.elapsedSeconds)
	e.state.phase = PhaseRunning
	e.publishLocked(nil)
	return true
}

// Stop ends the run. When the distance exceeds MinRunDistanceMeters the
// completed Run is returned and delivered to the completion callback.
func (e *Engine) Stop() (Run, bool) {
	e.lock()
	if e.state.phase != PhaseRunning && e.state.phase != PhasePaused {
		e.unlock()
		return Run{}, false
	}
	e.releaseLocked()
	e.state.phase = PhaseStopped

	if e.state.distanceMeters <= MinRunDistanceMeters {
		e.publishLocked(nil)
		return Run{}, false
	}

	run := e.buildRunLocked()
	e.publishLocked(&run)
	return run, true
}

// Reset discards the current attempt from any phase and returns to idle.
func (e *Engine) Reset() {
	e.lock()
	e.resetLocked()
	e.publishLocked(nil)
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn for a snapshot after every state change. The
// returned func removes it.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextObserver++
	id := e.nextObserver
	e.observers = append(e.observers, observer{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, o := range e.observers {
			if o.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) handleTick(epoch uint64, elapsed int) {
	e.lock()
	if epoch != e.tickEpoch || e.state.phase != PhaseRunning {
		e.unlock()
		return
	}
	if elapsed > e.state.elapsedSeconds {
		e.state.elapsedSeconds = elapsed
	}

	if pace, ok := instantPace(e.state.history, nowFn()); ok {
		e.state.instantPace = pace
	}
	if split, ok := nextSplit(&e.state); ok {
		e.state.splits = append(e.state.splits, split)
		e.state.marker = splitMarker{
			elapsedSeconds: e.state.elapsedSeconds,
			distanceMeters: e.state.distanceMeters,
		}
	}
	e.publishLocked(nil)
}

func (e *Engine) handleSample(epoch uint64, s location.Sample) {
	e.lock()
	if epoch != e.feedEpoch || e.state.phase != PhaseRunning {
		e.unlock()
		return
	}
	// Pace windows compare against the local clock, so only arrival time
	// is trusted.
	s.CapturedAt = nowFn()
	applySample(&e.state, s)
	e.publishLocked(nil)
}

func (e *Engine) handleFeedError(epoch uint64, err error) {
	e.lock()
	if epoch != e.feedEpoch {
		e.unlock()
		return
	}
	log.Printf("tracker: location feed error: %v", err)
	if e.degraded {
		e.unlock()
		return
	}
	e.degraded = true
	e.publishLocked(nil)
}

func (e *Engine) startTickingLocked(anchor int) {
	e.tickEpoch++
	epoch := e.tickEpoch
	e.timer = e.clock.StartTicking(anchor, func(elapsed int) { e.handleTick(epoch, elapsed) })
	e.ticking = true
}

func (e *Engine) stopTickingLocked() {
	e.tickEpoch++
	if e.ticking {
		e.clock.StopTicking(e.timer)
		e.ticking = false
	}
}

// releaseLocked stops the clock and the feed subscription. Bumping the
// epochs makes any callback already in flight a no-op.
func (e *Engine) releaseLocked() {
	e.stopTickingLocked()
	e.feedEpoch++
	if e.watching {
		e.feed.Release(e.sub)
		e.watching = false
	}
}

func (e *Engine) resetLocked() {
	e.releaseLocked()
	e.state = runState{phase: PhaseIdle}
	e.startedAt = time.Time{}
	e.runnerID = ""
}

func (e *Engine) buildRunLocked() Run {
	st := &e.state
	return Run{
		ID:                  newRunID(e.startedAt),
		RunnerID:            e.runnerID,
		Date:                e.startedAt,
		DistanceMeters:      st.distanceMeters,
		DurationSeconds:     st.elapsedSeconds,
		Splits:              append([]Split{}, st.splits...),
		Path:                append([]LatLng{}, st.path...),
		Altitudes:           copyAltitudes(st.altitudes),
		ElevationGainMeters: st.elevationGainMeters,
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	st := &e.state
	snap := Snapshot{
		Phase:               st.phase,
		RunnerID:            e.runnerID,
		Ready:               e.ready,
		Degraded:            e.degraded,
		ElapsedSeconds:      st.elapsedSeconds,
		DistanceMeters:      st.distanceMeters,
		ElevationGainMeters: st.elevationGainMeters,
		InstantPace:         st.instantPace,
		AveragePace:         averagePace(st),
		CurrentMilePace:     currentMilePace(st),
		Splits:              append([]Split{}, st.splits...),
		Path:                append([]LatLng{}, st.path...),
		Altitudes:           copyAltitudes(st.altitudes),
	}
	snap.Display = Display{
		Time:            units.FormatTime(float64(snap.ElapsedSeconds)),
		Miles:           fmt.Sprintf("%.2f", units.MetersToMiles(snap.DistanceMeters)),
		AveragePace:     units.FormatPace(snap.AveragePace),
		InstantPace:     units.FormatPace(snap.InstantPace),
		CurrentMilePace: units.FormatPace(snap.CurrentMilePace),
		ElevationGain:   units.FormatElevation(snap.ElevationGainMeters),
	}
	return snap
}

// publishLocked ends an event taken with lock: it releases mu, delivers the
// resulting snapshot (and completed run, if any) and then releases notifyMu.
func (e *Engine) publishLocked(run *Run) {
	snap := e.snapshotLocked()
	observers := append([]observer(nil), e.observers...)
	onComplete := e.onComplete

	e.mu.Unlock()
	defer e.notifyMu.Unlock()

	if run != nil && onComplete != nil {
		onComplete(*run)
	}
	for _, o := range observers {
		o.fn(snap)
	}
}

func copyAltitudes(in []*float64) []*float64 {
	out := make([]*float64, len(in))
	for i, alt := range in {
		out[i] = copyAltitude(alt)
	}
	return out
}

// newRunID returns a time-ordered unique id.
func newRunID(started time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("run_%d_%s", started.UnixMilli(), uuid.NewString())
	}
	return "run_" + id.String()
}
