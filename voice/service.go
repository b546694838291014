package voice

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

var (
	// ErrUnsupported is returned by recognizers that cannot run on this host.
	ErrUnsupported = errors.New("speech recognition unsupported")
	ErrRunning     = errors.New("voice service already running")
	ErrEmptyPhrase = errors.New("voice command phrase is empty")
)

// Recognizer produces transcripts until ctx ends or its input is exhausted.
// Listen blocks; it calls emit once per transcript.
type Recognizer interface {
	Listen(ctx context.Context, emit func(transcript string)) error
}

type command struct {
	phrase string
	action func()
}

// Service matches transcripts against registered phrases.
type Service struct {
	recognizer Recognizer
	logger     *slog.Logger

	mu       sync.Mutex
	commands []command
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewService returns a service driven by r. r may be nil when transcripts
// are only delivered through Handle.
func NewService(r Recognizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{recognizer: r, logger: logger}
}

// Register binds phrase to action. Phrases match case-insensitively and keep
// their first registration order; registering a phrase again replaces its
// action.
func (s *Service) Register(phrase string, action func()) error {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return ErrEmptyPhrase
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.commands {
		if s.commands[i].phrase == phrase {
			s.commands[i].action = action
			return nil
		}
	}
	s.commands = append(s.commands, command{phrase: phrase, action: action})
	return nil
}

// Phrases returns the registered phrases in match order.
func (s *Service) Phrases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	for i, c := range s.commands {
		out[i] = c.phrase
	}
	return out
}

// Handle runs the first registered command whose phrase occurs in
// transcript and reports whether one matched.
func (s *Service) Handle(transcript string) bool {
	text := strings.ToLower(transcript)

	s.mu.Lock()
	var action func()
	matched := ""
	for _, c := range s.commands {
		if strings.Contains(text, c.phrase) {
			action, matched = c.action, c.phrase
			break
		}
	}
	s.mu.Unlock()

	if matched == "" {
		s.logger.Debug("voice transcript unmatched", "transcript", transcript)
		return false
	}
	s.logger.Info("voice command", "phrase", matched)
	if action != nil {
		action()
	}
	return true
}

// Start runs the recognizer in the background. Recognizer failures are
// logged and end the run.
func (s *Service) Start(ctx context.Context) error {
	if s.recognizer == nil {
		s.logger.Warn("voice recognition unavailable", "error", ErrUnsupported)
		return ErrUnsupported
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := s.recognizer.Listen(runCtx, func(t string) { s.Handle(t) })
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case errors.Is(err, ErrUnsupported):
			s.logger.Warn("voice recognition unavailable", "error", err)
		default:
			s.logger.Error("voice recognizer stopped", "error", err)
		}
	}()
	return nil
}

// Stop cancels a running recognizer and waits for it to return.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done returns a channel closed when the current run ends, or nil when the
// service is not running.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// LineRecognizer treats every non-empty line of R as a transcript. Listen
// returns on cancellation even while a read is blocked; the pending read
// finishes in the background.
type LineRecognizer struct {
	R io.Reader
}

func (l LineRecognizer) Listen(ctx context.Context, emit func(string)) error {
	if l.R == nil {
		return ErrUnsupported
	}

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(l.R)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case line := <-lines:
			if line = strings.TrimSpace(line); line != "" {
				emit(line)
			}
		}
	}
}
