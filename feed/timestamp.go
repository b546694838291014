package feed

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// zonelessLayouts are tried after RFC 3339; they match ISO-8601 without an
// offset, which is read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp is the sender's timestamp as sent. Raw keeps the original text
// (string contents or number literal); Time is its parsed value and stays
// zero when the text is in no recognised format. Decoding never fails on the
// timestamp's content.
type Timestamp struct {
	Raw  string
	Time time.Time

	numeric bool
}

// NewTimestamp returns a Timestamp for t.
func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC()
	return Timestamp{Raw: t.Format(time.RFC3339Nano), Time: t}
}

// IsZero reports whether no timestamp was sent.
func (t Timestamp) IsZero() bool {
	return t.Raw == "" && t.Time.IsZero()
}

func (t Timestamp) String() string {
	return t.Raw
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = Timestamp{}

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			t.Raw = string(data)
			return nil
		}
		t.Raw = s
		t.Time = parseText(s)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		t.Raw = string(data)
		t.numeric = true
		if f, err := strconv.ParseFloat(t.Raw, 64); err == nil {
			t.Time = fromEpoch(f)
		}
	default:
		t.Raw = string(data)
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.numeric {
		return []byte(t.Raw), nil
	}
	if t.Raw == "" && !t.Time.IsZero() {
		return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
	}
	return json.Marshal(t.Raw)
}

func parseText(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC()
	}
	for _, layout := range zonelessLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	return time.Time{}
}

// fromEpoch reads seconds, or milliseconds for values past year 33658.
func fromEpoch(f float64) time.Time {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}
	}
	if math.Abs(f) >= 1e12 {
		f /= 1000
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
