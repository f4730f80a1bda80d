package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/doorstep-home/doorstep/internal/logging"
	"github.com/doorstep-home/doorstep/internal/protocol"
)

const (
	// MulticastGroup is the fixed announcement multicast group address
	MulticastGroup = "239.255.255.250"

	// MulticastPort is the fixed announcement UDP port
	MulticastPort = 12345

	// staleTimeout is how long a server may go unheard before eviction
	staleTimeout = 30 * time.Second

	// sweepInterval is how often the stale sweep runs
	sweepInterval = 10 * time.Second

	// maxDatagramSize covers the largest possible UDP payload
	maxDatagramSize = 65507

	// eventBuffer sizes each backend's event channel
	eventBuffer = 32
)

// Backend progress checkpoints: idle, transport ready, first result seen.
const (
	progressIdle     = 0.0
	progressReady    = 0.5
	progressProduced = 1.0
)

// presenceEntry tracks one announced server and when it was last heard
type presenceEntry struct {
	record   ServerRecord
	lastSeen time.Time
}

// MulticastReceiver listens for Doorstep announcement datagrams on the
// fixed multicast group and exposes a live, deduplicated, TTL-bounded view
// of announcing servers as a Backend event stream.
//
// Two loops run per session: a receive loop that blocks on the socket and
// upserts records, and a sweep loop that periodically evicts servers not
// heard from within staleTimeout. The presence map is owned by the
// receiver; all external observation goes through the event stream.
type MulticastReceiver struct {
	mu       sync.Mutex
	conn     *net.UDPConn
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	paused   bool
	produced bool
	seen     map[Key]*presenceEntry

	events chan Event

	// decodeFailures counts dropped malformed datagrams, for diagnostics only
	decodeFailures atomic.Uint64

	// timeouts are fixed in production; tests shorten them
	stale      time.Duration
	sweepEvery time.Duration
}

// NewMulticastReceiver creates a stopped receiver. Call Start to begin
// listening.
func NewMulticastReceiver() *MulticastReceiver {
	return &MulticastReceiver{
		seen:       make(map[Key]*presenceEntry),
		events:     make(chan Event, eventBuffer),
		stale:      staleTimeout,
		sweepEvery: sweepInterval,
	}
}

// Name returns the backend identifier
func (r *MulticastReceiver) Name() string {
	return string(SourceMulticast)
}

// Priority returns the backend's merge-conflict rank
func (r *MulticastReceiver) Priority() int {
	return PriorityMulticast
}

// Events returns the receiver's event stream
func (r *MulticastReceiver) Events() <-chan Event {
	return r.events
}

// DecodeFailures returns how many malformed datagrams have been dropped
func (r *MulticastReceiver) DecodeFailures() uint64 {
	return r.decodeFailures.Load()
}

// Start opens the UDP socket, joins the multicast group, and launches the
// receive and sweep loops. It is a no-op when already running. A bind or
// join failure is returned as a *TransportError and leaves the receiver
// in the not-started state.
func (r *MulticastReceiver) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}

	group := &net.UDPAddr{IP: net.ParseIP(MulticastGroup), Port: MulticastPort}
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		r.mu.Unlock()
		return &TransportError{Backend: r.Name(), Op: "join multicast group", Err: err}
	}
	_ = conn.SetReadBuffer(maxDatagramSize)

	ctx, cancel := context.WithCancel(context.Background())
	r.conn = conn
	r.cancel = cancel
	r.running = true
	r.paused = false
	r.produced = false

	r.wg.Add(2)
	go r.receiveLoop(ctx, conn)
	go r.sweepLoop(ctx)
	r.mu.Unlock()

	logging.LogBackendEvent(r.Name(), "started")
	r.emit(Event{Type: EventScanningChanged, Scanning: true})
	r.emit(Event{Type: EventProgressChanged, Progress: progressReady})
	return nil
}

// Stop cancels both loops, closes the socket, and clears all tracked
// state. Safe to call when not started.
func (r *MulticastReceiver) Stop() {
	r.mu.Lock()
	if !r.running {
		r.paused = false
		r.mu.Unlock()
		return
	}
	conn, cancel := r.conn, r.cancel
	r.conn, r.cancel = nil, nil
	r.running = false
	r.paused = false
	r.mu.Unlock()

	// Closing the socket interrupts the blocking read; the receive loop
	// treats a closed socket as normal termination.
	cancel()
	_ = conn.Close()
	r.wg.Wait()

	r.mu.Lock()
	r.seen = make(map[Key]*presenceEntry)
	r.mu.Unlock()

	logging.LogBackendEvent(r.Name(), "stopped")
	r.emit(Event{Type: EventScanningChanged, Scanning: false})
	r.emit(Event{Type: EventProgressChanged, Progress: progressIdle})
}

// Pause stops the receiver and remembers the caller's intent so Resume
// can restart it. No partial state survives a pause; this mirrors the
// coarse stop/restart semantic of the announcement channel.
func (r *MulticastReceiver) Pause() {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return
	}

	r.Stop()

	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
	logging.LogBackendEvent(r.Name(), "paused")
}

// Resume restarts a paused receiver. No-op unless paused.
func (r *MulticastReceiver) Resume() error {
	r.mu.Lock()
	paused := r.paused
	r.mu.Unlock()
	if !paused {
		return nil
	}

	logging.LogBackendEvent(r.Name(), "resuming")
	return r.Start()
}

// receiveLoop blocks for announcement datagrams until the socket closes
func (r *MulticastReceiver) receiveLoop(ctx context.Context, conn *net.UDPConn) {
	defer r.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			// A closed socket is the normal cooperative-cancellation path
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Warn("Receive loop terminated",
				zap.String("backend", r.Name()),
				zap.Error(err),
			)
			return
		}

		logging.LogDatagram(addr.String(), n)
		r.handleDatagram(buf[:n], addr)
	}
}

// handleDatagram decodes one announcement and upserts its server record.
// A decode failure drops the datagram and never stops the loop.
func (r *MulticastReceiver) handleDatagram(data []byte, addr net.Addr) {
	ann, err := protocol.DecodeAnnouncement(data)
	if err != nil {
		r.decodeFailures.Add(1)
		logging.Debug("Dropped malformed announcement",
			zap.String("remote_addr", addr.String()),
			zap.Error(err),
		)
		return
	}

	record := RecordFromAnnouncement(ann, SourceMulticast)
	key := record.Key()
	now := time.Now()

	r.mu.Lock()
	if entry, ok := r.seen[key]; ok {
		// Repeat sighting: refresh content and timestamp, no event
		entry.record = record
		entry.lastSeen = now
		r.mu.Unlock()
		return
	}
	r.seen[key] = &presenceEntry{record: record, lastSeen: now}
	first := !r.produced
	r.produced = true
	r.mu.Unlock()

	logging.LogServerFound(r.Name(), record.Name, record.Host, record.Port)
	r.emit(Event{Type: EventAdded, Record: record})
	if first {
		r.emit(Event{Type: EventProgressChanged, Progress: progressProduced})
	}
}

// sweepLoop wakes every sweep interval and evicts stale servers
func (r *MulticastReceiver) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

// sweep removes every tracked server whose last announcement is older than
// the stale timeout, emitting a Removed event per eviction. The sweep is
// the only writer that removes entries due to age.
func (r *MulticastReceiver) sweep(now time.Time) {
	r.mu.Lock()
	var evicted []Key
	for key, entry := range r.seen {
		if now.Sub(entry.lastSeen) > r.stale {
			delete(r.seen, key)
			evicted = append(evicted, key)
		}
	}
	r.mu.Unlock()

	for _, key := range evicted {
		logging.LogServerLost(r.Name(), key.Host, key.Port, "stale")
		r.emit(Event{Type: EventRemoved, Key: key})
	}
}

// emit delivers an event without ever blocking a loop. The merge engine
// drains the channel promptly; dropping under sustained backpressure is
// preferable to stalling the receive loop.
func (r *MulticastReceiver) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		logging.Warn("Dropping discovery event, consumer too slow",
			zap.String("backend", r.Name()),
		)
	}
}
