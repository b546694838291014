package internaldefs

import (
	"github.com/hyphae-os/hyphae"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   hyphae.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   hyphae.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: hyphae.MetricLoginSuccess, Name: "hyphae_login_success_total", Help: "Logins that produced a session."},
	{ID: hyphae.MetricLoginFailure, Name: "hyphae_login_failure_total", Help: "Logins rejected by validation or the backend."},
	{ID: hyphae.MetricLoginSuperseded, Name: "hyphae_login_superseded_total", Help: "Login completions discarded because a newer attempt started."},
	{ID: hyphae.MetricPinSuccess, Name: "hyphae_pin_success_total", Help: "Successful second-factor verifications."},
	{ID: hyphae.MetricPinFailure, Name: "hyphae_pin_failure_total", Help: "Rejected or malformed PIN submissions."},
	{ID: hyphae.MetricPinRateLimited, Name: "hyphae_pin_rate_limited_total", Help: "PIN submissions refused by the attempt limiter."},
	{ID: hyphae.MetricRestoreSuccess, Name: "hyphae_restore_success_total", Help: "Sessions restored silently at startup."},
	{ID: hyphae.MetricRestoreFailure, Name: "hyphae_restore_failure_total", Help: "Silent restores that fell through to login."},
	{ID: hyphae.MetricSessionCreated, Name: "hyphae_session_created_total", Help: "Sessions written to the store."},
	{ID: hyphae.MetricLogout, Name: "hyphae_logout_total", Help: "Logouts that cleared a session."},
	{ID: hyphae.MetricRevokeFailure, Name: "hyphae_revoke_failure_total", Help: "Background backend logouts that failed."},
	{ID: hyphae.MetricTransportError, Name: "hyphae_transport_error_total", Help: "Backend calls that failed in transport."},
	{ID: hyphae.MetricCredentialPersistFailure, Name: "hyphae_credential_persist_failure_total", Help: "Credentials that could not be persisted for restore."},
}

var HistogramDefs = []HistogramDef{
	{ID: hyphae.MetricLoginLatency, Name: "hyphae_login_latency_seconds", Help: "Backend authentication round-trip latency."},
	{ID: hyphae.MetricPinLatency, Name: "hyphae_pin_latency_seconds", Help: "Backend PIN check latency."},
}

// HistogramBounds are the le labels matching hyphae.HistogramBucketBounds.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix is the instrument-name form of each bound, for
// exporters without native bucket labels.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// Feed series.
const (
	FeedAcceptedName = "hyphae_feed_accepted_total"
	FeedAcceptedHelp = "Feed events accepted into the ring."
	FeedDroppedName  = "hyphae_feed_dropped_total"
	FeedDroppedHelp  = "Malformed feed frames dropped."
	FeedBufferedName = "hyphae_feed_buffered"
	FeedBufferedHelp = "Events currently held by the feed ring."

	AuditDroppedName = "hyphae_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
