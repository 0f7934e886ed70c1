package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// IdentityKey derives the deterministic publication key for a story. The
// inputs are the domain, the target, the run date (UTC day granularity), and
// a distinguishing attribute (category+location for a cluster, event name
// and state for a calendar story). Re-running the same job for the same day
// against the same signals always yields the same key.
func IdentityKey(domainName, targetID string, date time.Time, distinguisher string) string {
	input := fmt.Sprintf("%s|%s|%s|%s", domainName, targetID, date.UTC().Format("2006-01-02"), distinguisher)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if domainName == "" {
		return short
	}
	return domainName + "-" + short
}
