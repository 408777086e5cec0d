package domain

import "time"

// AccessToken is a bearer credential bound to a grant. The management id is
// distinct from the bearer value so management URLs never carry the secret.
type AccessToken struct {
	ID           string
	GrantID      string
	Value        string
	ManagementID string
	ExpiresIn    int
	RevokedAt    *time.Time
	CreatedAt    time.Time
}

// Expired reports whether the token's lifetime has elapsed at now.
func (t AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.CreatedAt.Add(time.Duration(t.ExpiresIn) * time.Second))
}

// Revoked reports whether the token has been marked unusable.
func (t AccessToken) Revoked() bool {
	return t.RevokedAt != nil
}
