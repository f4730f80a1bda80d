package discovery

import "fmt"

// EventType discriminates the events a backend can emit.
type EventType int

const (
	// EventAdded reports a server seen for the first time this session.
	// Repeat sightings of a known key are silent refreshes, not events.
	EventAdded EventType = iota

	// EventRemoved reports a server that departed or went stale
	EventRemoved

	// EventScanningChanged reports the backend's scanning flag
	EventScanningChanged

	// EventProgressChanged reports the backend's progress in [0, 1]
	EventProgressChanged
)

// Event is one entry in a backend's event stream. Exactly the fields
// relevant to Type are populated.
type Event struct {
	Type     EventType
	Record   ServerRecord // EventAdded
	Key      Key          // EventRemoved
	Scanning bool         // EventScanningChanged
	Progress float64      // EventProgressChanged
}

// Backend is one independent discovery transport contributing server
// records to the merge engine. The engine owns backend lifecycles; a
// backend never talks to another backend.
//
// All methods must be safe for concurrent use. Start is idempotent:
// calling it on a running backend is a no-op. Stop on a stopped backend
// is likewise a no-op. Pause remembers the caller's intent and is
// implemented as stop-plus-flag; Resume restarts a paused backend.
type Backend interface {
	// Name returns a short stable identifier ("multicast", "mdns")
	Name() string

	// Priority ranks the backend for merge-conflict resolution.
	// Higher values win.
	Priority() int

	// Events returns the backend's event stream. The channel is owned by
	// the backend and stays open across stop/start cycles. Events for a
	// single key are delivered in the order the backend emitted them.
	Events() <-chan Event

	Start() error
	Stop()
	Pause()
	Resume() error
}

// TransportError reports a socket-level discovery failure: bind, multicast
// join, resolver setup, or a receive error that terminated a session. It
// surfaces once at the point it occurs and leaves the affected backend
// stopped until the caller retries Start; it never crashes the process or
// disturbs other backends.
type TransportError struct {
	Backend string
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
