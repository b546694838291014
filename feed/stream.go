package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrMalformedFrame marks a frame that is not a valid feed event.
var ErrMalformedFrame = errors.New("malformed feed frame")

// StreamConfig configures a Stream. Zero values select defaults.
type StreamConfig struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
	Logger           *slog.Logger
}

// Stream reads the feed websocket into a Ring.
type Stream struct {
	cfg  StreamConfig
	ring *Ring

	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// NewStream returns a stream that appends to ring.
func NewStream(cfg StreamConfig, ring *Ring) *Stream {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if ring == nil {
		ring = NewRing(DefaultCapacity)
	}
	return &Stream{cfg: cfg, ring: ring}
}

// Ring returns the buffer the stream appends to.
func (s *Stream) Ring() *Ring { return s.ring }

// Accepted returns the number of events appended to the ring.
func (s *Stream) Accepted() uint64 { return s.accepted.Load() }

// Dropped returns the number of malformed frames discarded.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

// Buffered returns the number of events currently held by the ring.
func (s *Stream) Buffered() int { return s.ring.Len() }

// Run connects and reads frames until ctx is cancelled or the connection
// ends. Cancellation and a normal close return nil.
func (s *Stream) Run(ctx context.Context) error {
	dialer := s.cfg.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = s.cfg.HandshakeTimeout
		dialer = &d
	}

	conn, resp, err := dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("feed dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("feed read: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		s.handle(data)
	}
}

func (s *Stream) handle(data []byte) {
	ev, err := decodeEvent(data)
	if err != nil {
		s.dropped.Add(1)
		s.cfg.Logger.Warn("feed frame dropped", "error", err, "bytes", len(data))
		return
	}
	s.ring.Append(ev)
	s.accepted.Add(1)
}

func decodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if ev.Agent == "" {
		return Event{}, fmt.Errorf("%w: missing agent", ErrMalformedFrame)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = NewTimestamp(time.Now())
	}
	return ev, nil
}
