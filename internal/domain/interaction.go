package domain

import "time"

// InteractionState tracks the out-of-band consent step.
type InteractionState string

const (
	InteractionStatePending  InteractionState = "PENDING"
	InteractionStateApproved InteractionState = "APPROVED"
	InteractionStateDenied   InteractionState = "DENIED"
)

// Interaction is the consent step tied 1:1 to a grant. The ref is revealed
// to the client only at the finish redirect; the nonce binds the browser
// session that started the interaction.
type Interaction struct {
	ID        string
	GrantID   string
	Ref       string
	Nonce     string
	State     InteractionState
	ExpiresIn int
	CreatedAt time.Time
}

// Expired reports whether the interaction's lifetime has elapsed at now.
func (i Interaction) Expired(now time.Time) bool {
	return now.After(i.CreatedAt.Add(time.Duration(i.ExpiresIn) * time.Second))
}
