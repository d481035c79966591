package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashSSN is the single place a raw SSN becomes persistable. It hashes the
// normalized 9 digits with SHA-256 and returns the hex digest, or "" when the
// input does not contain exactly 9 digits. Raw SSNs must never be persisted
// or logged; everything downstream of extraction handles only this digest.
func HashSSN(raw string) string {
	digits := ssnDigits(raw)
	if digits == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(sum[:])
}

// ssnDigits strips separators and returns the 9-digit core, or "" when the
// input is not 9 digits long.
func ssnDigits(raw string) string {
	raw = strings.TrimSpace(raw)
	var b []byte
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			b = append(b, c)
		case c == '-' || c == ' ':
			// separator
		default:
			return ""
		}
	}
	if len(b) != 9 {
		return ""
	}
	return string(b)
}

// ssnLast4 returns the last four digits of an SSN-looking string, or "".
func ssnLast4(raw string) string {
	digits := ssnDigits(raw)
	if digits == "" {
		return ""
	}
	return digits[5:]
}
