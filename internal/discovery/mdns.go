package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/doorstep-home/doorstep/internal/logging"
)

const (
	// ServiceType is the DNS-SD service type Doorstep servers register
	ServiceType = "_doorstep._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// TXT record keys carried in the mDNS advertisement
const (
	txtKeyName = "name"
	txtKeyAPI  = "api"
	txtKeyWS   = "ws"
)

// ZeroconfBackend browses for Doorstep servers via mDNS/DNS-SD and exposes
// them as a Backend event stream. It outranks the multicast receiver in
// merge priority: mDNS resolution is typically faster and more precise,
// and goodbye packets let it report departures without waiting for a
// timeout.
type ZeroconfBackend struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	paused   bool
	produced bool
	known    map[Key]struct{}

	events chan Event
}

// NewZeroconfBackend creates a stopped mDNS backend. Call Start to begin
// browsing.
func NewZeroconfBackend() *ZeroconfBackend {
	return &ZeroconfBackend{
		known:  make(map[Key]struct{}),
		events: make(chan Event, eventBuffer),
	}
}

// Name returns the backend identifier
func (b *ZeroconfBackend) Name() string {
	return string(SourceMDNS)
}

// Priority returns the backend's merge-conflict rank
func (b *ZeroconfBackend) Priority() int {
	return PriorityMDNS
}

// Events returns the backend's event stream
func (b *ZeroconfBackend) Events() <-chan Event {
	return b.events
}

// Start creates a resolver and begins a continuous browse. No-op when
// already running. Resolver or browse failures are returned as a
// *TransportError and leave the backend stopped.
func (b *ZeroconfBackend) Start() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		b.mu.Unlock()
		return &TransportError{Backend: b.Name(), Op: "create resolver", Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	entries := make(chan *zeroconf.ServiceEntry, eventBuffer)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		b.mu.Unlock()
		return &TransportError{Backend: b.Name(), Op: "browse", Err: err}
	}

	b.cancel = cancel
	b.running = true
	b.paused = false
	b.produced = false

	b.wg.Add(1)
	go b.browseLoop(entries)
	b.mu.Unlock()

	logging.LogBackendEvent(b.Name(), "started")
	b.emit(Event{Type: EventScanningChanged, Scanning: true})
	b.emit(Event{Type: EventProgressChanged, Progress: progressReady})
	return nil
}

// Stop cancels the browse and clears all tracked state. Safe to call when
// not started.
func (b *ZeroconfBackend) Stop() {
	b.mu.Lock()
	if !b.running {
		b.paused = false
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.cancel = nil
	b.running = false
	b.paused = false
	b.mu.Unlock()

	// Cancelling the browse context makes zeroconf close the entries
	// channel, which ends the browse loop.
	cancel()
	b.wg.Wait()

	b.mu.Lock()
	b.known = make(map[Key]struct{})
	b.mu.Unlock()

	logging.LogBackendEvent(b.Name(), "stopped")
	b.emit(Event{Type: EventScanningChanged, Scanning: false})
	b.emit(Event{Type: EventProgressChanged, Progress: progressIdle})
}

// Pause stops the browse and remembers the caller's intent for Resume
func (b *ZeroconfBackend) Pause() {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	if !running {
		return
	}

	b.Stop()

	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
	logging.LogBackendEvent(b.Name(), "paused")
}

// Resume restarts a paused backend. No-op unless paused.
func (b *ZeroconfBackend) Resume() error {
	b.mu.Lock()
	paused := b.paused
	b.mu.Unlock()
	if !paused {
		return nil
	}

	logging.LogBackendEvent(b.Name(), "resuming")
	return b.Start()
}

// browseLoop consumes service entries until zeroconf closes the channel
func (b *ZeroconfBackend) browseLoop(entries <-chan *zeroconf.ServiceEntry) {
	defer b.wg.Done()

	for entry := range entries {
		b.handleEntry(entry)
	}
}

// handleEntry converts one service entry into an Added, Removed, or silent
// refresh. Entries with TTL 0 are goodbye packets announcing departure.
func (b *ZeroconfBackend) handleEntry(entry *zeroconf.ServiceEntry) {
	record, ok := b.parseServiceEntry(entry)
	if !ok {
		logging.Debug("Ignoring unusable mDNS entry",
			zap.String("instance", entry.Instance),
			zap.String("host", entry.HostName),
		)
		return
	}
	key := record.Key()

	if entry.TTL == 0 {
		b.mu.Lock()
		_, tracked := b.known[key]
		delete(b.known, key)
		b.mu.Unlock()
		if tracked {
			logging.LogServerLost(b.Name(), key.Host, key.Port, "goodbye")
			b.emit(Event{Type: EventRemoved, Key: key})
		}
		return
	}

	b.mu.Lock()
	if _, tracked := b.known[key]; tracked {
		// Repeat sighting: silent refresh
		b.mu.Unlock()
		return
	}
	b.known[key] = struct{}{}
	first := !b.produced
	b.produced = true
	b.mu.Unlock()

	logging.LogServerFound(b.Name(), record.Name, record.Host, record.Port)
	b.emit(Event{Type: EventAdded, Record: record})
	if first {
		b.emit(Event{Type: EventProgressChanged, Progress: progressProduced})
	}
}

// parseServiceEntry converts a zeroconf service entry to a ServerRecord.
// Returns false if the entry lacks an address or a usable port.
func (b *ZeroconfBackend) parseServiceEntry(entry *zeroconf.ServiceEntry) (ServerRecord, bool) {
	// Prefer IPv4, fall back to IPv6, then to the advertised hostname
	var host string
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	} else if entry.HostName != "" {
		host = strings.TrimSuffix(entry.HostName, ".")
	}
	if host == "" {
		return ServerRecord{}, false
	}

	port := entry.Port
	if port < 1 || port > 65535 {
		return ServerRecord{}, false
	}

	// TXT records are in "key=value" format
	txt := make(map[string]string, len(entry.Text))
	for _, s := range entry.Text {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else {
			txt[parts[0]] = ""
		}
	}

	name := txt[txtKeyName]
	if name == "" {
		name = entry.Instance
	}
	apiURL := txt[txtKeyAPI]
	if apiURL == "" {
		apiURL = fmt.Sprintf("http://%s:%d", host, port)
	}
	wsURL := txt[txtKeyWS]
	if wsURL == "" {
		wsURL = fmt.Sprintf("ws://%s:%d", host, port)
	}

	return ServerRecord{
		Name:   name,
		Host:   host,
		Port:   port,
		APIURL: apiURL,
		WSURL:  wsURL,
		Source: SourceMDNS,
	}, true
}

// emit delivers an event without blocking the browse loop
func (b *ZeroconfBackend) emit(ev Event) {
	select {
	case b.events <- ev:
	default:
		logging.Warn("Dropping discovery event, consumer too slow",
			zap.String("backend", b.Name()),
		)
	}
}
