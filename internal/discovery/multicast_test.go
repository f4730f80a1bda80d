package discovery

import (
	"net"
	"testing"
	"time"
)

var testAddr = &net.UDPAddr{IP: net.ParseIP("192.168.1.10"), Port: 54321}

// drainEvents collects everything currently buffered on the event channel
func drainEvents(events <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHandleDatagramAddsThenRefreshesSilently(t *testing.T) {
	r := NewMulticastReceiver()

	payload := []byte(`{"name":"Office","host":"192.168.1.10","port":8080,"apiURL":"http://192.168.1.10:8080","wsURL":"ws://192.168.1.10:8080"}`)
	r.handleDatagram(payload, testAddr)

	events := drainEvents(r.events)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (Added + ProgressChanged)", len(events))
	}
	if events[0].Type != EventAdded {
		t.Errorf("events[0].Type = %v, want EventAdded", events[0].Type)
	}
	if events[0].Record.Name != "Office" {
		t.Errorf("record name = %q, want %q", events[0].Record.Name, "Office")
	}
	if events[0].Record.Source != SourceMulticast {
		t.Errorf("record source = %q, want %q", events[0].Record.Source, SourceMulticast)
	}
	if events[1].Type != EventProgressChanged || events[1].Progress != 1.0 {
		t.Errorf("events[1] = %+v, want progress 1.0", events[1])
	}

	// Repeat sighting with updated content: no event, record refreshed
	updated := []byte(`{"name":"Office Renamed","host":"192.168.1.10","port":8080,"apiURL":"http://192.168.1.10:8080","wsURL":"ws://192.168.1.10:8080"}`)
	r.handleDatagram(updated, testAddr)

	if events := drainEvents(r.events); len(events) != 0 {
		t.Errorf("repeat sighting emitted %d events, want 0", len(events))
	}

	key := Key{Host: "192.168.1.10", Port: 8080}
	r.mu.Lock()
	entry, ok := r.seen[key]
	r.mu.Unlock()
	if !ok {
		t.Fatal("key missing from presence map after refresh")
	}
	if entry.record.Name != "Office Renamed" {
		t.Errorf("refreshed record name = %q, want %q", entry.record.Name, "Office Renamed")
	}
}

func TestHandleDatagramDropsMalformed(t *testing.T) {
	r := NewMulticastReceiver()

	// Seed one valid record first
	r.handleDatagram([]byte(`{"name":"Office","host":"192.168.1.10","port":8080,"apiURL":"http://x","wsURL":"ws://x"}`), testAddr)
	drainEvents(r.events)

	malformed := [][]byte{
		[]byte(`not json`),
		[]byte(`{"name":"NoPort","host":"10.0.0.1","apiURL":"http://x","wsURL":"ws://x"}`),
		[]byte(`{"name":"StrPort","host":"10.0.0.2","port":"8080","apiURL":"http://x","wsURL":"ws://x"}`),
	}
	for _, payload := range malformed {
		r.handleDatagram(payload, testAddr)
	}

	if events := drainEvents(r.events); len(events) != 0 {
		t.Errorf("malformed datagrams emitted %d events, want 0", len(events))
	}
	if got := r.DecodeFailures(); got != 3 {
		t.Errorf("DecodeFailures() = %d, want 3", got)
	}

	// The already-tracked record is untouched
	r.mu.Lock()
	_, ok := r.seen[Key{Host: "192.168.1.10", Port: 8080}]
	tracked := len(r.seen)
	r.mu.Unlock()
	if !ok || tracked != 1 {
		t.Errorf("presence map disturbed: tracked=%d, office present=%v", tracked, ok)
	}
}

func TestSweepEvictsStaleEntries(t *testing.T) {
	r := NewMulticastReceiver()

	r.handleDatagram([]byte(`{"name":"Office","host":"192.168.1.10","port":8080,"apiURL":"http://x","wsURL":"ws://x"}`), testAddr)
	r.handleDatagram([]byte(`{"name":"Garage","host":"192.168.1.20","port":9090,"apiURL":"http://y","wsURL":"ws://y"}`), testAddr)
	drainEvents(r.events)

	// Within the timeout nothing is evicted
	r.sweep(time.Now().Add(r.stale / 2))
	if events := drainEvents(r.events); len(events) != 0 {
		t.Fatalf("early sweep emitted %d events, want 0", len(events))
	}

	// Refresh only Office, then sweep past the timeout
	time.Sleep(10 * time.Millisecond)
	r.handleDatagram([]byte(`{"name":"Office","host":"192.168.1.10","port":8080,"apiURL":"http://x","wsURL":"ws://x"}`), testAddr)

	r.mu.Lock()
	officeSeen := r.seen[Key{Host: "192.168.1.10", Port: 8080}].lastSeen
	r.mu.Unlock()

	// A moment after Garage went stale, Office (just refreshed) survives
	r.sweep(officeSeen.Add(r.stale).Add(-time.Millisecond))

	events := drainEvents(r.events)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 Removed", len(events))
	}
	if events[0].Type != EventRemoved {
		t.Errorf("event type = %v, want EventRemoved", events[0].Type)
	}
	if want := (Key{Host: "192.168.1.20", Port: 9090}); events[0].Key != want {
		t.Errorf("removed key = %v, want %v", events[0].Key, want)
	}

	r.mu.Lock()
	remaining := len(r.seen)
	r.mu.Unlock()
	if remaining != 1 {
		t.Errorf("presence map holds %d entries after sweep, want 1", remaining)
	}
}

func TestReceiverStartStopLifecycle(t *testing.T) {
	r := NewMulticastReceiver()

	if err := r.Start(); err != nil {
		// Multicast bind can fail in restricted environments
		t.Skipf("cannot join multicast group: %v", err)
	}

	// Idempotent: second Start is a no-op
	if err := r.Start(); err != nil {
		t.Errorf("second Start() error = %v, want nil", err)
	}

	r.Stop()

	r.mu.Lock()
	running, tracked := r.running, len(r.seen)
	r.mu.Unlock()
	if running {
		t.Error("receiver still running after Stop()")
	}
	if tracked != 0 {
		t.Errorf("presence map holds %d entries after Stop(), want 0", tracked)
	}

	// Stop when already stopped is safe
	r.Stop()

	// Pause while stopped is a no-op, so Resume must not start it
	r.Pause()
	if err := r.Resume(); err != nil {
		t.Errorf("Resume() after no-op Pause error = %v", err)
	}
	r.mu.Lock()
	running = r.running
	r.mu.Unlock()
	if running {
		t.Error("Resume() after no-op Pause started the receiver")
	}
}

func TestReceiverPauseResume(t *testing.T) {
	r := NewMulticastReceiver()

	if err := r.Start(); err != nil {
		t.Skipf("cannot join multicast group: %v", err)
	}
	defer r.Stop()

	r.Pause()
	r.mu.Lock()
	running, paused := r.running, r.paused
	r.mu.Unlock()
	if running || !paused {
		t.Fatalf("after Pause: running=%v paused=%v, want stopped and paused", running, paused)
	}

	if err := r.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	r.mu.Lock()
	running, paused = r.running, r.paused
	r.mu.Unlock()
	if !running || paused {
		t.Errorf("after Resume: running=%v paused=%v, want running and not paused", running, paused)
	}
}
