package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestFetchStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Status{Name: "Office", Version: "1.4.2", Uptime: 3600})
	}))
	defer ts.Close()

	status, err := FetchStatus(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}
	if status.Name != "Office" || status.Version != "1.4.2" {
		t.Errorf("FetchStatus() = %+v", status)
	}
}

func TestStatusUptimeDuration(t *testing.T) {
	tests := []struct {
		uptime int64
		want   time.Duration
	}{
		{0, 0},
		{90, 90 * time.Second},
		{3600, time.Hour},
	}

	for _, tt := range tests {
		s := &Status{Uptime: tt.uptime}
		if got := s.UptimeDuration(); got != tt.want {
			t.Errorf("UptimeDuration() with uptime %d = %v, want %v", tt.uptime, got, tt.want)
		}
	}
}

func TestFetchStatusTrailingSlash(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(Status{Name: "Office"})
	}))
	defer ts.Close()

	if _, err := FetchStatus(context.Background(), ts.URL+"/"); err != nil {
		t.Errorf("FetchStatus() with trailing slash error = %v", err)
	}
}

func TestFetchStatusNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	if _, err := FetchStatus(context.Background(), ts.URL); err == nil {
		t.Error("FetchStatus() accepted a 503 response, want error")
	}
}

func TestFetchStatusUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := FetchStatus(ctx, "http://127.0.0.1:1"); err == nil {
		t.Error("FetchStatus() against a closed port succeeded, want error")
	}
}

func TestDialEventsStreamsAndCloses(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/events" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		events := []ServerEvent{
			{Type: "doorbell", Timestamp: time.Now()},
			{Type: "motion", Timestamp: time.Now()},
		}
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	stream, err := DialEvents(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("DialEvents() error = %v", err)
	}
	defer stream.Close()

	var got []string
	for ev := range stream.Events {
		got = append(got, ev.Type)
	}

	if len(got) != 2 || got[0] != "doorbell" || got[1] != "motion" {
		t.Errorf("received events = %v, want [doorbell motion]", got)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err() = %v after clean close, want nil", err)
	}
}

func TestDialEventsRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := DialEvents(ctx, "ws://127.0.0.1:1"); err == nil {
		t.Error("DialEvents() against a closed port succeeded, want error")
	}
}
