package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/doorstep-home/doorstep/internal/logging"
)

const (
	// eventsPath is the realtime endpoint on a server's wsURL
	eventsPath = "/api/v1/events"

	// handshakeTimeout bounds the WebSocket upgrade
	handshakeTimeout = 10 * time.Second

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// ServerEvent is one message from a server's realtime stream. The payload
// is passed through undecoded; which event types exist is the server's
// contract with its UI, not this package's concern.
type ServerEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventStream is a live WebSocket connection to a Doorstep server's
// realtime endpoint. Received events arrive on Events; the channel closes
// when the connection ends for any reason.
type EventStream struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup

	Events chan ServerEvent

	mu      sync.Mutex
	lastErr error
}

// DialEvents connects to the realtime endpoint under the server's
// advertised wsURL and starts streaming events.
func DialEvents(ctx context.Context, wsURL string) (*EventStream, error) {
	url := strings.TrimSuffix(wsURL, "/") + eventsPath

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s := &EventStream{
		conn:   conn,
		cancel: cancel,
		Events: make(chan ServerEvent, 32),
	}

	s.wg.Add(2)
	go s.readLoop(streamCtx)
	go s.pingLoop(streamCtx)

	logging.Info("Connected to server event stream", zap.String("url", url))
	return s, nil
}

// Close tears the connection down. Safe to call more than once.
func (s *EventStream) Close() {
	s.cancel()
	_ = s.conn.Close()
	s.wg.Wait()
}

// Err returns the error that ended the stream, if any. A clean close
// (local Close or a normal close frame from the server) returns nil.
func (s *EventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// readLoop decodes incoming events until the connection ends
func (s *EventStream) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.Events)
	defer s.cancel()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev ServerEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("Event stream closed by server")
				return
			}
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			logging.Debug("Event stream ended", zap.Error(err))
			return
		}
		select {
		case s.Events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop keeps the connection alive until cancelled
func (s *EventStream) pingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
