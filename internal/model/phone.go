package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizePhone reduces a phone number to digits plus an optional leading
// "+", so that formatting differences ("+49 170 123-4567" vs "+491701234567")
// hash identically across devices.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HashPhone returns the SHA-256 hex digest of the normalized phone number.
// This is the only form in which phone numbers leave the device for share
// addressing; the server matches participants on this hash, never on the
// raw number.
func HashPhone(raw string) string {
	norm := NormalizePhone(raw)
	if norm == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
