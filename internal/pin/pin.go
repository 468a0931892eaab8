// Package pin generates, validates and hashes the 4-digit credentials users sign in with.
package pin

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/frahmantamala/hse-inspection/internal"
)

const (
	Length = 4

	// maxAttempts bounds rejection sampling. Roughly 93% of the space is valid, so
	// hitting the bound means the random source is broken.
	maxAttempts = 1000
)

var denylist = map[string]struct{}{
	"0000": {}, "1111": {}, "2222": {}, "3333": {}, "4444": {},
	"5555": {}, "6666": {}, "7777": {}, "8888": {}, "9999": {},
	"1234": {}, "4321": {}, "0123": {},
}

var ten = big.NewInt(10)

// Generate returns a random PIN that satisfies the full policy. It never returns a
// weak PIN; an error means the random source failed.
func Generate() (string, error) {
	buf := make([]byte, Length)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		for i := range buf {
			n, err := rand.Int(rand.Reader, ten)
			if err != nil {
				return "", fmt.Errorf("pin: read random digit: %w", err)
			}
			buf[i] = byte('0' + n.Int64())
		}
		candidate := string(buf)
		if Strong(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("pin: no acceptable pin after %d attempts", maxAttempts)
}

// WellFormed reports whether s is exactly four ASCII digits.
func WellFormed(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Denylisted reports whether s is one of the static weak PINs.
func Denylisted(s string) bool {
	_, ok := denylist[s]
	return ok
}

// Sequential reports whether every digit is exactly one above (or one below) the previous.
func Sequential(s string) bool {
	if len(s) < 2 {
		return false
	}
	step := int(s[1]) - int(s[0])
	if step != 1 && step != -1 {
		return false
	}
	for i := 2; i < len(s); i++ {
		if int(s[i])-int(s[i-1]) != step {
			return false
		}
	}
	return true
}

func distinctDigits(s string) int {
	seen := make(map[byte]struct{}, len(s))
	for i := 0; i < len(s); i++ {
		seen[s[i]] = struct{}{}
	}
	return len(seen)
}

// Strong reports whether s passes every generation rule.
func Strong(s string) bool {
	return WellFormed(s) && !Denylisted(s) && !Sequential(s) && distinctDigits(s) >= 3
}

// CheckFormat validates only the shape of a submitted PIN. Login uses it so that
// existing weak credentials still authenticate.
func CheckFormat(candidate string) error {
	switch {
	case candidate == "":
		return internal.NewValidationFieldError("pin", "PIN is required", internal.ErrCodeInvalidPIN)
	case len(candidate) != Length:
		return internal.NewValidationFieldError("pin", "PIN must be exactly 4 digits", internal.ErrCodeInvalidPIN)
	case strings.Trim(candidate, "0123456789") != "":
		return internal.NewValidationFieldError("pin", "PIN must contain only digits", internal.ErrCodeInvalidPIN)
	}
	return nil
}

// Validate rejects empty, malformed and denylisted PINs with a specific reason.
func Validate(candidate string) error {
	if err := CheckFormat(candidate); err != nil {
		return err
	}
	if Denylisted(candidate) {
		return internal.NewValidationFieldError("pin", "PIN is too common, choose a different one", internal.ErrCodeInvalidPIN)
	}
	return nil
}
