package protocol

import (
	"encoding/json"
	"fmt"
)

// Announcement is the payload of a single server presence datagram.
// One UDP datagram carries exactly one JSON-encoded announcement; there is
// no framing, sequencing, or authentication on the wire.
type Announcement struct {
	// Name is the human-readable server label (e.g., "Front Door")
	Name string `json:"name"`

	// Host is the advertised address, an IP literal or hostname.
	// It is passed through as-is; this package never resolves it.
	Host string `json:"host"`

	// Port is the advertised TCP port (1-65535)
	Port int `json:"port"`

	// APIURL is the advertised base URL of the server's HTTP API
	APIURL string `json:"apiURL"`

	// WSURL is the advertised base URL of the server's realtime endpoint
	WSURL string `json:"wsURL"`
}

// DecodeError describes a malformed announcement payload. Malformed
// datagrams are dropped by the receiver; a DecodeError never terminates
// a receive loop.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid announcement: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid announcement: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// rawAnnouncement uses pointer fields so that a missing key can be told
// apart from a present-but-zero value.
type rawAnnouncement struct {
	Name   *string `json:"name"`
	Host   *string `json:"host"`
	Port   *int    `json:"port"`
	APIURL *string `json:"apiURL"`
	WSURL  *string `json:"wsURL"`
}

// DecodeAnnouncement parses a datagram payload into an Announcement.
//
// Decoding fails if the payload is not valid JSON, if any required field
// (name, host, port, apiURL, wsURL) is missing, if a field has the wrong
// JSON type, or if port is outside 1-65535. No further validation is
// performed: URL well-formedness is the consuming client's concern.
func DecodeAnnouncement(data []byte) (Announcement, error) {
	var raw rawAnnouncement
	if err := json.Unmarshal(data, &raw); err != nil {
		return Announcement{}, &DecodeError{Reason: "malformed JSON", Err: err}
	}

	switch {
	case raw.Name == nil:
		return Announcement{}, &DecodeError{Reason: "missing field: name"}
	case raw.Host == nil:
		return Announcement{}, &DecodeError{Reason: "missing field: host"}
	case raw.Port == nil:
		return Announcement{}, &DecodeError{Reason: "missing field: port"}
	case raw.APIURL == nil:
		return Announcement{}, &DecodeError{Reason: "missing field: apiURL"}
	case raw.WSURL == nil:
		return Announcement{}, &DecodeError{Reason: "missing field: wsURL"}
	}

	if *raw.Port < 1 || *raw.Port > 65535 {
		return Announcement{}, &DecodeError{Reason: fmt.Sprintf("port out of range: %d", *raw.Port)}
	}

	return Announcement{
		Name:   *raw.Name,
		Host:   *raw.Host,
		Port:   *raw.Port,
		APIURL: *raw.APIURL,
		WSURL:  *raw.WSURL,
	}, nil
}

// EncodeAnnouncement serializes an Announcement to its wire form.
// The format is symmetric with DecodeAnnouncement; the client itself only
// consumes announcements, but servers and tests use the encoder.
func EncodeAnnouncement(a Announcement) ([]byte, error) {
	if a.Port < 1 || a.Port > 65535 {
		return nil, &DecodeError{Reason: fmt.Sprintf("port out of range: %d", a.Port)}
	}
	if a.Host == "" {
		return nil, &DecodeError{Reason: "missing field: host"}
	}

	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode announcement: %w", err)
	}
	return data, nil
}
