package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestHandleFirstRegisteredMatchWins(t *testing.T) {
	s := NewService(nil, nil)
	var ran []string
	_ = s.Register("Open", func() { ran = append(ran, "open") })
	_ = s.Register("open neuroweave", func() { ran = append(ran, "neuroweave") })

	if !s.Handle("please OPEN Neuroweave now") {
		t.Fatal("expected a match")
	}
	if len(ran) != 1 || ran[0] != "open" {
		t.Fatalf("ran = %v", ran)
	}
	if s.Handle("nothing relevant") {
		t.Fatal("unexpected match")
	}
}

func TestRegisterReplacesInPlace(t *testing.T) {
	s := NewService(nil, nil)
	var ran string
	_ = s.Register("logout", func() { ran = "first" })
	_ = s.Register("status", func() { ran = "status" })
	_ = s.Register("LOGOUT", func() { ran = "second" })

	if got := s.Phrases(); len(got) != 2 || got[0] != "logout" || got[1] != "status" {
		t.Fatalf("phrases = %v", got)
	}
	s.Handle("logout")
	if ran != "second" {
		t.Fatalf("ran = %q", ran)
	}
	if err := s.Register("   ", func() {}); !errors.Is(err, ErrEmptyPhrase) {
		t.Fatalf("empty phrase: %v", err)
	}
}

func TestStartWithoutRecognizerLogs(t *testing.T) {
	var logs bytes.Buffer
	s := NewService(nil, slog.New(slog.NewTextHandler(&logs, nil)))

	if err := s.Start(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(logs.String(), "voice recognition unavailable") {
		t.Fatalf("logs = %q", logs.String())
	}
	s.Stop()
}

func TestLineRecognizerDrivesService(t *testing.T) {
	s := NewService(LineRecognizer{R: strings.NewReader("open mycocore\n\nsign out\n")}, nil)
	var mu sync.Mutex
	var ran []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
		}
	}
	_ = s.Register("mycocore", record("mycocore"))
	_ = s.Register("sign out", record("logout"))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer did not finish")
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 || ran[0] != "mycocore" || ran[1] != "logout" {
		t.Fatalf("ran = %v", ran)
	}
}

func TestStopUnblocksPendingRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewService(LineRecognizer{R: pr}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Fatalf("second start: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop blocked on a pending read")
	}
}

type unsupported struct{}

func (unsupported) Listen(context.Context, func(string)) error { return ErrUnsupported }

func TestUnsupportedRecognizerIsLogged(t *testing.T) {
	var logs bytes.Buffer
	s := NewService(unsupported{}, slog.New(slog.NewTextHandler(&logs, nil)))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-s.Done()
	s.Stop()
	if !strings.Contains(logs.String(), "voice recognition unavailable") {
		t.Fatalf("logs = %q", logs.String())
	}
}
