package protocol

import (
	"errors"
	"testing"
)

func TestDecodeAnnouncement(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		want    Announcement
	}{
		{
			name:    "valid announcement",
			payload: `{"name":"Office","host":"192.168.1.10","port":8080,"apiURL":"http://192.168.1.10:8080","wsURL":"ws://192.168.1.10:8080"}`,
			want: Announcement{
				Name:   "Office",
				Host:   "192.168.1.10",
				Port:   8080,
				APIURL: "http://192.168.1.10:8080",
				WSURL:  "ws://192.168.1.10:8080",
			},
		},
		{
			name:    "valid with hostname instead of IP",
			payload: `{"name":"Garage","host":"garage.local","port":443,"apiURL":"https://garage.local","wsURL":"wss://garage.local"}`,
			want: Announcement{
				Name:   "Garage",
				Host:   "garage.local",
				Port:   443,
				APIURL: "https://garage.local",
				WSURL:  "wss://garage.local",
			},
		},
		{
			name:    "malformed URLs pass through untouched",
			payload: `{"name":"Odd","host":"10.0.0.5","port":80,"apiURL":"not a url","wsURL":"::::"}`,
			want: Announcement{
				Name:   "Odd",
				Host:   "10.0.0.5",
				Port:   80,
				APIURL: "not a url",
				WSURL:  "::::",
			},
		},
		{
			name:    "not JSON at all",
			payload: `hello world`,
			wantErr: true,
		},
		{
			name:    "empty payload",
			payload: ``,
			wantErr: true,
		},
		{
			name:    "truncated JSON",
			payload: `{"name":"Office","host":"192.168.1.10"`,
			wantErr: true,
		},
		{
			name:    "missing port",
			payload: `{"name":"Office","host":"192.168.1.10","apiURL":"http://x","wsURL":"ws://x"}`,
			wantErr: true,
		},
		{
			name:    "missing host",
			payload: `{"name":"Office","port":8080,"apiURL":"http://x","wsURL":"ws://x"}`,
			wantErr: true,
		},
		{
			name:    "missing name",
			payload: `{"host":"192.168.1.10","port":8080,"apiURL":"http://x","wsURL":"ws://x"}`,
			wantErr: true,
		},
		{
			name:    "missing apiURL",
			payload: `{"name":"Office","host":"192.168.1.10","port":8080,"wsURL":"ws://x"}`,
			wantErr: true,
		},
		{
			name:    "missing wsURL",
			payload: `{"name":"Office","host":"192.168.1.10","port":8080,"apiURL":"http://x"}`,
			wantErr: true,
		},
		{
			name:    "port as string",
			payload: `{"name":"Office","host":"192.168.1.10","port":"8080","apiURL":"http://x","wsURL":"ws://x"}`,
			wantErr: true,
		},
		{
			name:    "name as number",
			payload: `{"name":42,"host":"192.168.1.10","port":8080,"apiURL":"http://x","wsURL":"ws://x"}`,
			wantErr: true,
		},
		{
			name:    "port zero",
			payload: `{"name":"Office","host":"192.168.1.10","port":0,"apiURL":"http://x","wsURL":"ws://x"}`,
			wantErr: true,
		},
		{
			name:    "port above range",
			payload: `{"name":"Office","host":"192.168.1.10","port":70000,"apiURL":"http://x","wsURL":"ws://x"}`,
			wantErr: true,
		},
		{
			name:    "negative port",
			payload: `{"name":"Office","host":"192.168.1.10","port":-1,"apiURL":"http://x","wsURL":"ws://x"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAnnouncement([]byte(tt.payload))

			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeAnnouncement() = %+v, want error", got)
				}
				var decErr *DecodeError
				if !errors.As(err, &decErr) {
					t.Errorf("DecodeAnnouncement() error = %v, want *DecodeError", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("DecodeAnnouncement() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeAnnouncement() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodeAnnouncement(t *testing.T) {
	a := Announcement{
		Name:   "Office",
		Host:   "192.168.1.10",
		Port:   8080,
		APIURL: "http://192.168.1.10:8080",
		WSURL:  "ws://192.168.1.10:8080",
	}

	data, err := EncodeAnnouncement(a)
	if err != nil {
		t.Fatalf("EncodeAnnouncement() error = %v", err)
	}

	decoded, err := DecodeAnnouncement(data)
	if err != nil {
		t.Fatalf("DecodeAnnouncement(encoded) error = %v", err)
	}
	if decoded != a {
		t.Errorf("round trip = %+v, want %+v", decoded, a)
	}
}

func TestEncodeAnnouncementRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		a    Announcement
	}{
		{"port zero", Announcement{Name: "x", Host: "h", Port: 0}},
		{"port out of range", Announcement{Name: "x", Host: "h", Port: 100000}},
		{"empty host", Announcement{Name: "x", Host: "", Port: 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeAnnouncement(tt.a); err == nil {
				t.Error("EncodeAnnouncement() expected error, got nil")
			}
		})
	}
}
