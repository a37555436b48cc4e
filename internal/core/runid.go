// Package core holds the pure naming and matching rules shared by the emit
// engine: emit branch names, the drop marker, managed path patterns and run ids.
package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewRunID returns "<yyyymmddhhmmss><micros>-<rand4>" in UTC time.
// Example: "20260109013207123456-a3f2"
// Ids sort lexically in creation order down to the microsecond.
// Error only if crypto/rand read fails.
func NewRunID(now time.Time) (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	now = now.UTC()
	ts := now.Format("20060102150405") + fmt.Sprintf("%06d", now.Nanosecond()/int(time.Microsecond))
	suffix := hex.EncodeToString(b)
	return ts + "-" + suffix, nil
}
