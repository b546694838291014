package session

import (
	"strings"
	"testing"
	"time"
)

func testCredential() *Credential {
	return &Credential{
		DeviceID: "7f3a2c",
		Token:    strings.Repeat("t", 400),
		Cookies: []Cookie{
			{Name: "refresh_token", Value: "r-1"},
			{Name: "sid", Value: ""},
		},
		IssuedAt: time.Unix(1700000000, 0),
	}
}

func TestEncodeDecodePreservesCredential(t *testing.T) {
	in := testCredential()
	blob, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if blob[0] != credentialFormatVersionCurrent {
		t.Fatalf("expected version byte %d, got %d", credentialFormatVersionCurrent, blob[0])
	}

	out, err := Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.DeviceID != in.DeviceID || out.Token != in.Token || !out.IssuedAt.Equal(in.IssuedAt) {
		t.Fatalf("decoded credential mismatch: %+v", out)
	}
	if len(out.Cookies) != 2 || out.Cookies[0] != in.Cookies[0] || out.Cookies[1] != in.Cookies[1] {
		t.Fatalf("cookies mismatch: %+v", out.Cookies)
	}
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99})
	if err == nil || !strings.Contains(err.Error(), "unsupported credential schema version") {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	blob, err := Encode(testCredential())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, n := range []int{0, 1, 5, len(blob) / 2, len(blob) - 1} {
		if _, err := Decode(blob[:n]); err == nil {
			t.Fatalf("expected error decoding %d of %d bytes", n, len(blob))
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	blob, err := Encode(testCredential())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(append(blob, 0)); err == nil {
		t.Fatal("expected trailing bytes to be rejected")
	}
}

func TestEncodeRejectsOversizedDeviceID(t *testing.T) {
	c := testCredential()
	c.DeviceID = strings.Repeat("d", 256)
	if _, err := Encode(c); err == nil {
		t.Fatal("expected oversized device id to be rejected")
	}
}
