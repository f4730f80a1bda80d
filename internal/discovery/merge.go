package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doorstep-home/doorstep/internal/logging"
)

// Phase is the merge engine's externally observable lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhasePaused
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhasePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MergedState is a full immutable snapshot of the merged discovery view.
// Subscribers always receive whole snapshots, never deltas; consumers diff
// externally if they need to.
type MergedState struct {
	// Servers is sorted by Name and holds at most one record per
	// (host, port) key
	Servers []ServerRecord

	// Scanning is true while at least one backend reports scanning
	Scanning bool

	// Paused is true between Pause and Resume
	Paused bool

	// Progress is the arithmetic mean of all backends' progress, in [0, 1]
	Progress float64
}

// mergedEntry tracks the winning record for a key and which backend owns it
type mergedEntry struct {
	record   ServerRecord
	backend  string
	priority int
}

// sourcedEvent is what the engine's single consumption loop processes:
// either a backend event tagged with its origin, or a control message
// from the public API. Funnelling control through the same channel keeps
// the merged map single-writer without per-key locking.
type sourcedEvent struct {
	backend Backend
	event   Event

	reset     bool
	setPaused *bool
}

// MergeEngine owns a fixed set of discovery backends and reconciles their
// event streams into one consistent merged view.
//
// One forwarding goroutine per backend funnels that backend's events into
// a single ordered stream (FIFO per source, no cross-source ordering);
// one consumption goroutine applies the merge rule and publishes
// snapshots. Conflicts between backends reporting the same key resolve by
// backend priority, so the outcome is deterministic regardless of
// interleaving.
type MergeEngine struct {
	backends []Backend

	events chan sourcedEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	phase    Phase
	closed   bool
	snapshot MergedState
	subs     map[int]chan MergedState
	nextSub  int
	onChange func(MergedState)
}

// ErrEngineClosed is returned by Start on an engine that has been closed.
var ErrEngineClosed = errors.New("discovery: merge engine is closed")

// NewMergeEngine creates an engine over the given backends and starts its
// internal event plumbing. Backends themselves stay stopped until Start.
func NewMergeEngine(backends ...Backend) *MergeEngine {
	e := &MergeEngine{
		backends: backends,
		events:   make(chan sourcedEvent, 64),
		subs:     make(map[int]chan MergedState),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	for _, b := range backends {
		e.wg.Add(1)
		go e.forward(ctx, b)
	}
	e.wg.Add(1)
	go e.run(ctx)

	return e
}

// Start clears any prior merged state and starts every backend. It is a
// no-op while already scanning. If every backend fails to start, the
// engine returns to idle and the joined errors are returned so the caller
// can tell "scan failed to start" from "scanning, nothing found yet";
// a partial failure logs and continues with the backends that started.
func (e *MergeEngine) Start() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.phase == PhaseScanning {
		e.mu.Unlock()
		return nil
	}
	e.phase = PhaseScanning
	e.mu.Unlock()

	session := uuid.NewString()
	logging.Info("Discovery session starting",
		zap.String("session_id", session),
		zap.Int("backends", len(e.backends)),
	)

	// Reset travels through the event channel so the consumption loop
	// remains the merged map's only writer.
	e.events <- sourcedEvent{reset: true}

	var errs []error
	for _, b := range e.backends {
		if err := b.Start(); err != nil {
			logging.Warn("Backend failed to start",
				zap.String("session_id", session),
				zap.String("backend", b.Name()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	if len(errs) == len(e.backends) && len(e.backends) > 0 {
		e.mu.Lock()
		e.phase = PhaseIdle
		e.mu.Unlock()
		return errors.Join(errs...)
	}
	return nil
}

// Stop stops every backend. The last published snapshot remains readable;
// it is discarded and rebuilt on the next Start.
func (e *MergeEngine) Stop() {
	e.mu.Lock()
	if e.phase == PhaseIdle {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseIdle
	e.mu.Unlock()

	for _, b := range e.backends {
		b.Stop()
	}
	paused := false
	e.events <- sourcedEvent{setPaused: &paused}
}

// Pause forwards to every backend and marks the merged state paused.
// No-op unless scanning.
func (e *MergeEngine) Pause() {
	e.mu.Lock()
	if e.phase != PhaseScanning {
		e.mu.Unlock()
		return
	}
	e.phase = PhasePaused
	e.mu.Unlock()

	for _, b := range e.backends {
		b.Pause()
	}
	paused := true
	e.events <- sourcedEvent{setPaused: &paused}
}

// Resume restarts every paused backend. No-op unless paused.
func (e *MergeEngine) Resume() error {
	e.mu.Lock()
	if e.phase != PhasePaused {
		e.mu.Unlock()
		return nil
	}
	e.phase = PhaseScanning
	e.mu.Unlock()

	var errs []error
	for _, b := range e.backends {
		if err := b.Resume(); err != nil {
			logging.Warn("Backend failed to resume",
				zap.String("backend", b.Name()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	paused := false
	e.events <- sourcedEvent{setPaused: &paused}

	if len(errs) == len(e.backends) && len(e.backends) > 0 {
		e.mu.Lock()
		e.phase = PhaseIdle
		e.mu.Unlock()
		return errors.Join(errs...)
	}
	return nil
}

// Close stops all backends and tears down the engine's internal goroutines.
// Close is idempotent. A closed engine rejects Start with ErrEngineClosed;
// every other operation on it is a no-op.
func (e *MergeEngine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	wasIdle := e.phase == PhaseIdle
	e.phase = PhaseIdle
	e.mu.Unlock()

	if !wasIdle {
		for _, b := range e.backends {
			b.Stop()
		}
	}

	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.mu.Unlock()
}

// Phase returns the engine's current lifecycle state
func (e *MergeEngine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// State returns the last published merged snapshot
func (e *MergeEngine) State() MergedState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// SelectServer looks the key up in the merged view. It is a pure lookup
// for the caller's convenience and has no side effect on discovery.
func (e *MergeEngine) SelectServer(key Key) (ServerRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, rec := range e.snapshot.Servers {
		if rec.Key() == key {
			return rec, true
		}
	}
	return ServerRecord{}, false
}

// Subscribe registers for merged-state snapshots. The current snapshot is
// delivered immediately; afterwards a snapshot arrives whenever the server
// list, scanning flag, or progress changes. A slow subscriber only ever
// misses intermediate snapshots, never the latest. The returned func
// cancels the subscription and closes the channel.
func (e *MergeEngine) Subscribe() (<-chan MergedState, func()) {
	ch := make(chan MergedState, 1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.snapshot
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// SetOnChange installs a callback invoked with each published snapshot.
// The callback runs on the engine's consumption goroutine and must not
// block.
func (e *MergeEngine) SetOnChange(fn func(MergedState)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// forward funnels one backend's events into the engine's single stream,
// preserving that backend's emission order.
func (e *MergeEngine) forward(ctx context.Context, b Backend) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.Events():
			if !ok {
				return
			}
			select {
			case e.events <- sourcedEvent{backend: b, event: ev}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// run is the engine's single-writer consumption loop. The merged map and
// per-backend aggregation state live only on this goroutine's stack.
func (e *MergeEngine) run(ctx context.Context) {
	defer e.wg.Done()

	merged := make(map[Key]mergedEntry)
	scanning := make(map[string]bool)
	progress := make(map[string]float64)
	paused := false
	var last MergedState

	for {
		select {
		case <-ctx.Done():
			return
		case se := <-e.events:
			switch {
			case se.reset:
				merged = make(map[Key]mergedEntry)
				scanning = make(map[string]bool)
				progress = make(map[string]float64)
				paused = false
			case se.setPaused != nil:
				paused = *se.setPaused
			default:
				e.apply(merged, scanning, progress, se.backend, se.event)
			}

			st := e.buildState(merged, scanning, progress, paused)
			if statesEqual(st, last) {
				continue
			}
			last = st
			e.publish(st)
		}
	}
}

// apply mutates the merge state for one backend event.
//
// Added: insert when the key is unknown; overwrite when the reporting
// backend strictly outranks the current owner, or is the current owner
// refreshing its own record. A report from an equal-or-lower-ranked
// backend is discarded: the higher-priority source already vouches for
// the key.
//
// Removed: honored only when the tracked record's owner is exactly the
// reporting backend, so a lower-priority departure never evicts a record
// a higher-priority backend still vouches for.
func (e *MergeEngine) apply(merged map[Key]mergedEntry, scanning map[string]bool, progress map[string]float64, b Backend, ev Event) {
	switch ev.Type {
	case EventAdded:
		key := ev.Record.Key()
		cur, exists := merged[key]
		if exists && cur.backend != b.Name() && cur.priority >= b.Priority() {
			return
		}
		merged[key] = mergedEntry{
			record:   ev.Record,
			backend:  b.Name(),
			priority: b.Priority(),
		}

	case EventRemoved:
		cur, exists := merged[ev.Key]
		if exists && cur.backend == b.Name() {
			delete(merged, ev.Key)
		}

	case EventScanningChanged:
		scanning[b.Name()] = ev.Scanning

	case EventProgressChanged:
		progress[b.Name()] = ev.Progress
	}
}

// buildState assembles an immutable snapshot from the loop-owned maps
func (e *MergeEngine) buildState(merged map[Key]mergedEntry, scanning map[string]bool, progress map[string]float64, paused bool) MergedState {
	servers := make([]ServerRecord, 0, len(merged))
	for _, entry := range merged {
		servers = append(servers, entry.record)
	}
	sort.Slice(servers, func(i, j int) bool {
		if servers[i].Name != servers[j].Name {
			return servers[i].Name < servers[j].Name
		}
		return servers[i].Key().String() < servers[j].Key().String()
	})

	anyScanning := false
	var sum float64
	for _, b := range e.backends {
		if scanning[b.Name()] {
			anyScanning = true
		}
		sum += progress[b.Name()]
	}
	mean := 0.0
	if len(e.backends) > 0 {
		mean = sum / float64(len(e.backends))
	}

	return MergedState{
		Servers:  servers,
		Scanning: anyScanning,
		Paused:   paused,
		Progress: mean,
	}
}

// publish stores the snapshot and fans it out to subscribers, latest-wins
func (e *MergeEngine) publish(st MergedState) {
	e.mu.Lock()
	e.snapshot = st
	fn := e.onChange
	for _, ch := range e.subs {
		select {
		case ch <- st:
		default:
			// Replace the stale pending snapshot with the fresh one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
	e.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

// statesEqual reports whether two snapshots are observably identical
func statesEqual(a, b MergedState) bool {
	if a.Scanning != b.Scanning || a.Paused != b.Paused || a.Progress != b.Progress {
		return false
	}
	if len(a.Servers) != len(b.Servers) {
		return false
	}
	for i := range a.Servers {
		if a.Servers[i] != b.Servers[i] {
			return false
		}
	}
	return true
}
