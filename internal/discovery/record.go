package discovery

import (
	"fmt"

	"github.com/doorstep-home/doorstep/internal/protocol"
)

// Source identifies which discovery backend produced or last confirmed
// a server record.
type Source string

const (
	// SourceMulticast marks records learned from UDP announcement datagrams
	SourceMulticast Source = "multicast"

	// SourceMDNS marks records learned from mDNS/DNS-SD browsing
	SourceMDNS Source = "mdns"
)

// Backend priority ranks. mDNS outranks multicast: it is typically faster
// and more precise, and it can detect departures actively instead of
// waiting for a timeout.
const (
	PriorityMulticast = 1
	PriorityMDNS      = 2
)

// Key uniquely identifies a server on the network. The (host, port) pair
// is the sole dedup key: two records with the same key are the same
// logical server regardless of which backend reported them or what
// display name they carry.
type Key struct {
	Host string
	Port int
}

// String returns the key in host:port form
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Host, k.Port)
}

// ServerRecord is a discovered Doorstep server's advertised identity.
type ServerRecord struct {
	// Name is the human-readable server label, used only for sort/display
	Name string

	// Host is the advertised address as received, never resolved here
	Host string

	// Port is the advertised TCP port (1-65535)
	Port int

	// APIURL is the advertised base URL for the server's HTTP endpoints
	APIURL string

	// WSURL is the advertised base URL for the server's realtime endpoint
	WSURL string

	// Source is the backend that produced or last confirmed this record
	Source Source
}

// Key returns the record's dedup key
func (r ServerRecord) Key() Key {
	return Key{Host: r.Host, Port: r.Port}
}

// String returns a human-readable representation of the record
func (r ServerRecord) String() string {
	return fmt.Sprintf("%s (%s:%d, via %s)", r.Name, r.Host, r.Port, r.Source)
}

// RecordFromAnnouncement converts a decoded wire announcement into a
// ServerRecord tagged with the given source.
func RecordFromAnnouncement(a protocol.Announcement, source Source) ServerRecord {
	return ServerRecord{
		Name:   a.Name,
		Host:   a.Host,
		Port:   a.Port,
		APIURL: a.APIURL,
		WSURL:  a.WSURL,
		Source: source,
	}
}
