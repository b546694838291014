package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func feedServer(t *testing.T, frames []string, closeAfter bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if closeAfter {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			_, _, _ = conn.ReadMessage()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamDropsMalformedFrames(t *testing.T) {
	srv := feedServer(t, []string{
		`{"agent":"rootbloom","status":"active","timestamp":"2026-01-02T03:04:05Z"}`,
		`not json`,
		`{"status":"orphan"}`,
		`{"agent":"sporelink","status":"idle"}`,
	}, true)

	var logs bytes.Buffer
	s := NewStream(StreamConfig{
		URL:    wsURL(srv),
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	}, NewRing(5))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if s.Accepted() != 2 || s.Dropped() != 2 || s.Buffered() != 2 {
		t.Fatalf("accepted=%d dropped=%d buffered=%d", s.Accepted(), s.Dropped(), s.Buffered())
	}
	events := s.Ring().Events()
	if events[0].Agent != "rootbloom" || events[1].Agent != "sporelink" {
		t.Fatalf("events = %+v", events)
	}
	if !events[0].Timestamp.Time.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("timestamp = %v", events[0].Timestamp)
	}
	if events[1].Timestamp.IsZero() {
		t.Fatal("missing timestamp must be stamped on receipt")
	}
	if !strings.Contains(logs.String(), "feed frame dropped") {
		t.Fatalf("expected drop log, got %q", logs.String())
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	srv := feedServer(t, []string{`{"agent":"a","status":"s"}`}, false)
	s := NewStream(StreamConfig{URL: wsURL(srv)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Accepted() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
	if s.Accepted() != 1 {
		t.Fatalf("accepted = %d", s.Accepted())
	}
}

func TestStreamDialFailure(t *testing.T) {
	s := NewStream(StreamConfig{URL: "ws://127.0.0.1:1/feed", HandshakeTimeout: time.Second}, nil)
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestDecodeEvent(t *testing.T) {
	if _, err := decodeEvent([]byte(`{"agent":""}`)); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("empty agent: %v", err)
	}
	if _, err := decodeEvent([]byte(`[1,2]`)); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("array: %v", err)
	}
	if _, err := decodeEvent([]byte(`{"agent":"a"`)); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("truncated: %v", err)
	}
}

func TestDecodeEventTimestampFormats(t *testing.T) {
	cases := []struct {
		name string
		ts   string
		raw  string
		want time.Time
	}{
		{"zoneless iso", `"2026-01-02T03:04:05.123456"`, "2026-01-02T03:04:05.123456",
			time.Date(2026, 1, 2, 3, 4, 5, 123456000, time.UTC)},
		{"rfc3339 offset", `"2026-01-02T05:04:05+02:00"`, "2026-01-02T05:04:05+02:00",
			time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"space separated", `"2026-01-02 03:04:05"`, "2026-01-02 03:04:05",
			time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"epoch seconds", `1767323045`, "1767323045",
			time.Unix(1767323045, 0).UTC()},
		{"epoch millis", `1767323045000`, "1767323045000",
			time.Unix(1767323045, 0).UTC()},
		{"free text", `"just now"`, "just now", time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := decodeEvent([]byte(`{"agent":"rootbloom","status":"active","timestamp":` + tc.ts + `}`))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ev.Timestamp.Raw != tc.raw {
				t.Fatalf("raw = %q, want %q", ev.Timestamp.Raw, tc.raw)
			}
			if !ev.Timestamp.Time.Equal(tc.want) {
				t.Fatalf("time = %v, want %v", ev.Timestamp.Time, tc.want)
			}
		})
	}
}

func TestTimestampRoundTripKeepsSenderText(t *testing.T) {
	for _, in := range []string{
		`{"agent":"a","status":"s","timestamp":"2026-01-02T03:04:05.123456"}`,
		`{"agent":"a","status":"s","timestamp":1767323045}`,
	} {
		ev, err := decodeEvent([]byte(in))
		if err != nil {
			t.Fatalf("decode %s: %v", in, err)
		}
		out, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if string(out) != in {
			t.Fatalf("got %s, want %s", out, in)
		}
	}
}
