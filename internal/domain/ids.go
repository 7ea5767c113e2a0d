package domain

import (
	"crypto/rand"
	"fmt"
	"time"
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randBase36 returns n uppercase base-36 characters from crypto/rand.
func randBase36(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform is broken; fall back to a
		// timestamp-derived suffix rather than panicking in a request path.
		ts := time.Now().UnixNano()
		for i := range b {
			b[i] = base36Alphabet[ts%36]
			ts /= 36
		}
		return string(b)
	}
	for i := range b {
		b[i] = base36Alphabet[int(b[i])%36]
	}
	return string(b)
}

// NewMatchID returns an ID like ABFI-MATCH-20250101-7K3QZ.
func NewMatchID(now time.Time) string {
	return fmt.Sprintf("ABFI-MATCH-%s-%s", now.Format("20060102"), randBase36(5))
}

// NewContractNumber returns a number like ABFI-CON-2025-7K3QZ.
func NewContractNumber(now time.Time) string {
	return fmt.Sprintf("ABFI-CON-%s-%s", now.Format("2006"), randBase36(5))
}

// NewDeliveryID returns an ID like ABFI-DEL-20250101-7K3QZ.
func NewDeliveryID(now time.Time) string {
	return fmt.Sprintf("ABFI-DEL-%s-%s", now.Format("20060102"), randBase36(5))
}
