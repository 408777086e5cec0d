package domain

import "time"

// WebhookEventType names a grant lifecycle event delivered downstream.
type WebhookEventType string

const (
	WebhookEventGrantRevoked WebhookEventType = "grant.revoked"
	WebhookEventTokenRotated WebhookEventType = "token.rotated"
)

// WebhookEvent is an append-only delivery record. ProcessAt is the next
// eligible delivery time; nil once delivered. Events that exhaust their
// retries keep their last ProcessAt as a permanent failure record.
type WebhookEvent struct {
	ID         string
	Type       WebhookEventType
	Data       map[string]any
	Attempts   int
	StatusCode int
	ProcessAt  *time.Time
	CreatedAt  time.Time
}
