// Package discovery locates Doorstep servers on the local network and
// merges the findings of multiple discovery transports into one consistent
// view.
//
// # Backends
//
// Two backends ship with the client:
//
//   - MulticastReceiver joins the announcement multicast group
//     (239.255.255.250:12345) and tracks servers by recently observed
//     datagrams, evicting any server not heard from for 30 seconds.
//   - ZeroconfBackend browses for "_doorstep._tcp" services via mDNS and
//     reports departures actively from goodbye packets.
//
// Both satisfy the Backend interface, which is the seam for injecting
// fakes in tests. Each backend emits a stream of Added/Removed events plus
// scanning and progress updates; repeat sightings of a known server are
// silent refreshes.
//
// # Merging
//
// MergeEngine subscribes to every backend and maintains a single
// deduplicated map keyed by (host, port). When two backends report the
// same key, the higher-priority backend's record wins regardless of
// arrival order; mDNS outranks multicast. A removal only takes effect if
// it comes from the backend currently vouching for the record, so a
// multicast timeout never evicts a server mDNS still sees.
//
// All cross-backend events are serialized onto one stream and applied by
// a single consumption goroutine, which keeps the merge race-free without
// per-key locking. The engine publishes full immutable MergedState
// snapshots on every observable change.
//
// # Usage
//
//	engine := discovery.NewMergeEngine(
//	    discovery.NewZeroconfBackend(),
//	    discovery.NewMulticastReceiver(),
//	)
//	updates, unsubscribe := engine.Subscribe()
//	defer unsubscribe()
//	if err := engine.Start(); err != nil {
//	    // every backend failed to start
//	}
//	for state := range updates {
//	    // state.Servers is sorted, deduplicated, freshness-bounded
//	}
//
// Engines are plain values with no process-wide state: multiple concurrent
// discovery sessions can run side by side, which the tests rely on.
package discovery
