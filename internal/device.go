package internal

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// Fingerprint folds the given device attributes into a short, stable hex id.
//
// The attributes are concatenated without separators and hashed with the
// 32-bit rolling hash h = h*31 + c over UTF-16 code units, so a client that
// computes the same fingerprint in a browser arrives at the same id.
func Fingerprint(parts ...string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(strings.Join(parts, ""))) {
		h = (h << 5) - h + int32(unit)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}
