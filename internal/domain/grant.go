package domain

import "time"

// GrantState tracks a grant through its negotiation lifecycle.
type GrantState string

const (
	GrantStateProcessing GrantState = "PROCESSING"
	GrantStatePending    GrantState = "PENDING"
	GrantStateApproved   GrantState = "APPROVED"
	GrantStateFinalized  GrantState = "FINALIZED"
)

// FinalizationReason records why a grant reached its terminal state.
type FinalizationReason string

const (
	FinalizationIssued   FinalizationReason = "ISSUED"
	FinalizationRejected FinalizationReason = "REJECTED"
	FinalizationRevoked  FinalizationReason = "REVOKED"
)

// StartMethod is the interaction start mode requested by the client.
type StartMethod string

const StartMethodRedirect StartMethod = "redirect"

// FinishMethod is how the client wants to be called back after consent.
type FinishMethod string

const FinishMethodRedirect FinishMethod = "redirect"

// Grant is one record per negotiation.
type Grant struct {
	ID                 string
	TenantID           string
	State              GrantState
	FinalizationReason FinalizationReason

	ClientID    string
	ClientKeyID string

	StartMethods []StartMethod
	FinishMethod FinishMethod
	FinishURI    string
	ClientNonce  string

	ContinueID      string
	ContinueToken   string
	LastContinuedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Revoked reports whether the grant was terminated by revocation.
func (g Grant) Revoked() bool {
	return g.State == GrantStateFinalized && g.FinalizationReason == FinalizationRevoked
}

// Rejected reports whether the resource owner denied the grant.
func (g Grant) Rejected() bool {
	return g.State == GrantStateFinalized && g.FinalizationReason == FinalizationRejected
}

// Finalized reports whether the grant reached its terminal state.
func (g Grant) Finalized() bool {
	return g.State == GrantStateFinalized
}
