package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIDFormats(t *testing.T) {
	now := time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC)

	assert.Regexp(t, regexp.MustCompile(`^ABFI-MATCH-20250830-[0-9A-Z]{5}$`), NewMatchID(now))
	assert.Regexp(t, regexp.MustCompile(`^ABFI-CON-2025-[0-9A-Z]{5}$`), NewContractNumber(now))
	assert.Regexp(t, regexp.MustCompile(`^ABFI-DEL-20250830-[0-9A-Z]{5}$`), NewDeliveryID(now))
}

func TestIDsAreUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewMatchID(now)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
