package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var claimIDPattern = regexp.MustCompile(`^CLM\d{13,16}$`)

// GenerateClaimID returns CLM followed by the unix millis of now and a
// random suffix in [0, 999].
func GenerateClaimID(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1000)
	}
	return fmt.Sprintf("CLM%d%d", now.UnixMilli(), n.Int64())
}

// IsClaimID reports whether id has the shape produced by GenerateClaimID.
func IsClaimID(id string) bool {
	return claimIDPattern.MatchString(id)
}

// NormalizeMSISDN strips spaces, dashes and a leading +91 or 0 from an
// Indian mobile number. Anything that is not 10 digits afterwards is
// returned unchanged.
func NormalizeMSISDN(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return raw
	}
	return digits
}

// TextLength counts runes after trimming surrounding whitespace.
func TextLength(s string) int {
	return len([]rune(strings.TrimSpace(s)))
}
