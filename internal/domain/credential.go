package domain

import "time"

// DefaultFreshnessMargin is the lead time before expiry at which a credential is considered stale.
const DefaultFreshnessMargin = 10 * time.Minute

// Credential is the token pair relayed by a client for the duration of one sync session.
// It is never persisted.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    uint64 // Unix seconds.
}

// IsFresh reports whether expiresAt lies at or beyond now plus margin.
func IsFresh(expiresAt uint64, now time.Time, margin time.Duration) bool {
	threshold := now.Add(margin).Unix()
	if threshold < 0 {
		return true
	}
	return expiresAt >= uint64(threshold)
}
