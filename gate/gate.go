package gate

import (
	"github.com/hyphae-os/hyphae/session"
)

// Region is the top-level view a session entitles the client to.
type Region int

const (
	RegionLogin Region = iota
	RegionSecondFactor
	RegionDashboard
)

func (r Region) String() string {
	switch r {
	case RegionLogin:
		return "login"
	case RegionSecondFactor:
		return "second_factor"
	case RegionDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// Panel identifies one dashboard panel.
type Panel string

const (
	PanelOverview    Panel = "overview"
	PanelMemoryVault Panel = "memory_vault"
	PanelSettings    Panel = "settings"
	PanelNeuroweave  Panel = "neuroweave"
	PanelRootBloom   Panel = "rootbloom"
	PanelSporeLink   Panel = "sporelink"
	PanelMycoCore    Panel = "mycocore"
)

var basePanels = []Panel{
	PanelOverview,
	PanelMemoryVault,
	PanelSettings,
	PanelNeuroweave,
	PanelRootBloom,
	PanelSporeLink,
}

var privilegedPanels = []Panel{PanelMycoCore}

// Privileged reports whether p is restricted to owner and admin sessions.
func (p Panel) Privileged() bool {
	for _, q := range privilegedPanels {
		if p == q {
			return true
		}
	}
	return false
}

// Decision is the gate's verdict for one session value.
type Decision struct {
	Region Region
	// Panels is empty outside RegionDashboard.
	Panels []Panel
}

// Allows reports whether the decision grants access to p.
func (d Decision) Allows(p Panel) bool {
	for _, q := range d.Panels {
		if q == p {
			return true
		}
	}
	return false
}

// Decide evaluates s. Absent sessions get the login view, unverified ones the
// PIN view, verified ones the dashboard with base panels plus privileged
// panels for owner and admin roles.
func Decide(s *session.Session) Decision {
	switch {
	case s == nil:
		return Decision{Region: RegionLogin}
	case !s.PinVerified:
		return Decision{Region: RegionSecondFactor}
	}

	panels := make([]Panel, 0, len(basePanels)+len(privilegedPanels))
	panels = append(panels, basePanels...)
	if s.Identity.Role.Privileged() {
		panels = append(panels, privilegedPanels...)
	}
	return Decision{Region: RegionDashboard, Panels: panels}
}

// Watch calls fn with the decision for the current session, then again after
// every store change. The returned function stops further calls.
func Watch(r session.Reader, fn func(Decision)) (stop func()) {
	if r == nil || fn == nil {
		return func() {}
	}
	unsubscribe := r.Subscribe(func(s *session.Session) {
		fn(Decide(s))
	})
	fn(Decide(r.Get()))
	return unsubscribe
}
