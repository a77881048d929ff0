package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateClaimID(t *testing.T) {
	now := time.UnixMilli(1717000000123)
	for i := 0; i < 50; i++ {
		id := GenerateClaimID(now)
		assert.True(t, strings.HasPrefix(id, "CLM1717000000123"), id)
		assert.True(t, IsClaimID(id), id)
	}
}

func TestIsClaimID(t *testing.T) {
	assert.True(t, IsClaimID("CLM1717000000123"))
	assert.True(t, IsClaimID("CLM1717000000123999"))
	assert.False(t, IsClaimID("CLM"))
	assert.False(t, IsClaimID("clm1717000000123"))
	assert.False(t, IsClaimID("CLM17170000abc"))
}

func TestNormalizeMSISDN(t *testing.T) {
	cases := map[string]string{
		"9876543210":       "9876543210",
		"+91 98765 43210":  "9876543210",
		"098765-43210":     "9876543210",
		"12345":            "12345",
		"+1 (555) 0100000": "+1 (555) 0100000",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeMSISDN(in), in)
	}
}

func TestTextLength(t *testing.T) {
	assert.Equal(t, 0, TextLength("   "))
	assert.Equal(t, 5, TextLength("  hello "))
	assert.Equal(t, 3, TextLength("खेत"))
}
