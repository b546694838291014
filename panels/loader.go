package panels

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hyphae-os/hyphae/api"
	"github.com/hyphae-os/hyphae/gate"
	"github.com/hyphae-os/hyphae/session"
)

var (
	ErrNoSession = errors.New("no verified session")
	ErrForbidden = errors.New("panel not permitted for session")
	// ErrNoData is returned for panels rendered from local state only.
	ErrNoData = errors.New("panel has no remote data")
	// ErrOffline is returned when the loader has no backend to query.
	ErrOffline = errors.New("panel data unavailable offline")
)

const (
	MessageNetwork   = "Unable to connect to server"
	MessageForbidden = "Access denied"
	MessageSession   = "Authentication failed"
	MessageOffline   = "Panel data is unavailable in local mode"
	MessageFailed    = "Failed to load panel data"
)

// Source is the slice of the REST client the loader reads from.
type Source interface {
	MycoCoreSnapshot(ctx context.Context) (json.RawMessage, error)
	NeuroweaveData(ctx context.Context) (json.RawMessage, error)
	AgentLog(ctx context.Context, agentType, token string) (json.RawMessage, error)
}

// Result is the outcome of one panel load. Exactly one of Data and Message
// is set.
type Result struct {
	Panel   gate.Panel
	Data    json.RawMessage
	Message string
	Err     error
}

// Loader fetches panel data for the current session.
type Loader struct {
	sessions session.Reader
	source   Source
	logger   *slog.Logger
}

// NewLoader returns a loader. source may be nil in local mode.
func NewLoader(sessions session.Reader, source Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{sessions: sessions, source: source, logger: logger}
}

// Load fetches p's data. The session must be verified and allowed to see p.
func (l *Loader) Load(ctx context.Context, p gate.Panel) Result {
	data, err := l.fetch(ctx, p)
	if err != nil {
		l.logger.Debug("panel load failed", "panel", string(p), "error", err)
		return Result{Panel: p, Message: Message(err), Err: err}
	}
	return Result{Panel: p, Data: data}
}

func (l *Loader) fetch(ctx context.Context, p gate.Panel) (json.RawMessage, error) {
	var current *session.Session
	if l.sessions != nil {
		current = l.sessions.Get()
	}
	decision := gate.Decide(current)
	if decision.Region != gate.RegionDashboard {
		return nil, ErrNoSession
	}
	if !decision.Allows(p) {
		return nil, ErrForbidden
	}

	switch p {
	case gate.PanelMycoCore, gate.PanelNeuroweave, gate.PanelRootBloom, gate.PanelSporeLink:
	default:
		return nil, ErrNoData
	}
	if l.source == nil {
		return nil, ErrOffline
	}

	switch p {
	case gate.PanelMycoCore:
		return l.source.MycoCoreSnapshot(ctx)
	case gate.PanelNeuroweave:
		return l.source.NeuroweaveData(ctx)
	default:
		return l.source.AgentLog(ctx, string(p), current.Token)
	}
}

// Message maps a load error to the text shown in place of the panel.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSession), errors.Is(err, api.ErrUnauthorized):
		return MessageSession
	case errors.Is(err, ErrForbidden):
		return MessageForbidden
	case errors.Is(err, ErrOffline), errors.Is(err, ErrNoData):
		return MessageOffline
	case errors.Is(err, api.ErrTransport):
		return MessageNetwork
	default:
		return MessageFailed
	}
}
