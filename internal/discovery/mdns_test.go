package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestZeroconfParseServiceEntry(t *testing.T) {
	b := NewZeroconfBackend()

	tests := []struct {
		name   string
		entry  *zeroconf.ServiceEntry
		wantOK bool
		want   ServerRecord
	}{
		{
			name: "full entry with TXT records",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "doorstep-office"},
				HostName:      "office.local.",
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.10")},
				Text: []string{
					"name=Office",
					"api=http://192.168.1.10:8080",
					"ws=ws://192.168.1.10:8080",
				},
			},
			wantOK: true,
			want: ServerRecord{
				Name:   "Office",
				Host:   "192.168.1.10",
				Port:   8080,
				APIURL: "http://192.168.1.10:8080",
				WSURL:  "ws://192.168.1.10:8080",
				Source: SourceMDNS,
			},
		},
		{
			name: "missing TXT records fall back to defaults",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "doorstep-garage"},
				HostName:      "garage.local.",
				Port:          9090,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantOK: true,
			want: ServerRecord{
				Name:   "doorstep-garage",
				Host:   "10.0.0.5",
				Port:   9090,
				APIURL: "http://10.0.0.5:9090",
				WSURL:  "ws://10.0.0.5:9090",
				Source: SourceMDNS,
			},
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "v6"},
				Port:          8080,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantOK: true,
			want: ServerRecord{
				Name:   "v6",
				Host:   "fe80::1",
				Port:   8080,
				APIURL: "http://fe80::1:8080",
				WSURL:  "ws://fe80::1:8080",
				Source: SourceMDNS,
			},
		},
		{
			name: "both families prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "dual"},
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantOK: true,
			want: ServerRecord{
				Name:   "dual",
				Host:   "192.168.1.50",
				Port:   8080,
				APIURL: "http://192.168.1.50:8080",
				WSURL:  "ws://192.168.1.50:8080",
				Source: SourceMDNS,
			},
		},
		{
			name: "no address falls back to hostname",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "byname"},
				HostName:      "front-door.local.",
				Port:          8080,
			},
			wantOK: true,
			want: ServerRecord{
				Name:   "byname",
				Host:   "front-door.local",
				Port:   8080,
				APIURL: "http://front-door.local:8080",
				WSURL:  "ws://front-door.local:8080",
				Source: SourceMDNS,
			},
		},
		{
			name: "no address and no hostname",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "ghost"},
				Port:          8080,
			},
			wantOK: false,
		},
		{
			name: "port zero",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "noport"},
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.1")},
				Port:          0,
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := b.parseServiceEntry(tt.entry)
			if ok != tt.wantOK {
				t.Fatalf("parseServiceEntry() ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if got != tt.want {
				t.Errorf("parseServiceEntry() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestZeroconfHandleEntryLifecycle(t *testing.T) {
	b := NewZeroconfBackend()

	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "doorstep-office"},
		Port:          8080,
		AddrIPv4:      []net.IP{net.ParseIP("192.168.1.10")},
		Text:          []string{"name=Office"},
		TTL:           120,
	}

	b.handleEntry(entry)
	events := drainEvents(b.events)
	if len(events) != 2 {
		t.Fatalf("got %d events, want Added + ProgressChanged", len(events))
	}
	if events[0].Type != EventAdded || events[0].Record.Name != "Office" {
		t.Errorf("events[0] = %+v, want Added Office", events[0])
	}

	// Repeat sighting is a silent refresh
	b.handleEntry(entry)
	if events := drainEvents(b.events); len(events) != 0 {
		t.Errorf("repeat sighting emitted %d events, want 0", len(events))
	}

	// Goodbye packet (TTL 0) removes the record
	goodbye := *entry
	goodbye.TTL = 0
	b.handleEntry(&goodbye)
	events = drainEvents(b.events)
	if len(events) != 1 || events[0].Type != EventRemoved {
		t.Fatalf("goodbye produced %+v, want one Removed", events)
	}
	if want := (Key{Host: "192.168.1.10", Port: 8080}); events[0].Key != want {
		t.Errorf("removed key = %v, want %v", events[0].Key, want)
	}

	// Goodbye for an untracked key is silent
	b.handleEntry(&goodbye)
	if events := drainEvents(b.events); len(events) != 0 {
		t.Errorf("untracked goodbye emitted %d events, want 0", len(events))
	}
}
