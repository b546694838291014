package hyphae

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/hyphae-os/hyphae/internal"
)

// Mode selects how credentials are verified.
type Mode string

const (
	// ModeLocal accepts credentials by the built-in placeholder rules and
	// signs its own session tokens. No backend is contacted for login.
	ModeLocal Mode = "local"
	// ModeRemote verifies credentials against the HyphaeOS REST backend.
	ModeRemote Mode = "remote"
)

// Device describes the client the engine runs on. Its fingerprint becomes the
// session's DeviceID.
type Device struct {
	UserAgent    string
	ScreenWidth  int
	ScreenHeight int
	Language     string
	Platform     string
}

// Fingerprint returns the device identifier derived from the user agent,
// screen height, screen width, language and platform, in that order.
func (d Device) Fingerprint() string {
	return internal.Fingerprint(
		d.UserAgent,
		strconv.Itoa(d.ScreenHeight),
		strconv.Itoa(d.ScreenWidth),
		d.Language,
		d.Platform,
	)
}

// DefaultDevice describes the current process. Screen dimensions are zero for
// a headless client.
func DefaultDevice() Device {
	lang := os.Getenv("LANG")
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" {
		lang = "en_US"
	}
	return Device{
		UserAgent: "hyphae/" + runtime.Version(),
		Language:  strings.ReplaceAll(lang, "_", "-"),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
