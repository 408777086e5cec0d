package domain

import "time"

// Tenant owns grants and carries the identity-provider handshake
// configuration plus the interaction-skip policy per access type.
type Tenant struct {
	ID        string
	Host      string
	IsDefault bool

	IdpConsentURL string
	IdpSecret     string

	IncomingPaymentInteraction bool
	QuoteInteraction           bool
	ListAllInteraction         bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasIdentityProvider reports whether the tenant can run consent
// interactions at all.
func (t Tenant) HasIdentityProvider() bool {
	return t.IdpConsentURL != "" && t.IdpSecret != ""
}
