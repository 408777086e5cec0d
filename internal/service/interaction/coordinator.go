// Package interaction manages the out-of-band consent step tied 1:1 to a
// grant.
package interaction

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/random"
	"github.com/smallbiznis/gnap-auth/internal/repository"
)

var (
	// ErrNotFound covers both a missing row and a nonce mismatch.
	ErrNotFound = errors.New("interaction not found")
	// ErrExpired is distinct from ErrNotFound so callers can tell a
	// retryable failure from a terminal one.
	ErrExpired = errors.New("interaction expired")
)

// Coordinator creates and tracks consent interactions and computes the
// finish-redirect hash.
type Coordinator struct {
	interactions repository.InteractionRepository
	expiry       time.Duration

	// grantRequestURL is bound into the finish hash so the client can
	// detect a redirect replayed against a different server.
	grantRequestURL string
}

func NewCoordinator(interactions repository.InteractionRepository, expiry time.Duration, authServerURL string) *Coordinator {
	return &Coordinator{
		interactions:    interactions,
		expiry:          expiry,
		grantRequestURL: strings.TrimRight(authServerURL, "/") + "/",
	}
}

// Create inserts a pending interaction for the grant with a fresh ref and
// nonce, inside the grant-creation transaction.
func (c *Coordinator) Create(ctx context.Context, tx pgx.Tx, grantID string) (domain.Interaction, error) {
	ref, err := random.String(21)
	if err != nil {
		return domain.Interaction{}, err
	}
	nonce, err := random.String(21)
	if err != nil {
		return domain.Interaction{}, err
	}
	return c.interactions.WithTx(tx).Create(ctx, domain.Interaction{
		GrantID:   grantID,
		Ref:       ref,
		Nonce:     nonce,
		State:     domain.InteractionStatePending,
		ExpiresIn: int(c.expiry / time.Second),
	})
}

// GetBySession looks up an interaction by id and session nonce; a wrong
// nonce is indistinguishable from a missing interaction.
func (c *Coordinator) GetBySession(ctx context.Context, id, nonce string) (domain.Interaction, error) {
	return c.check(c.interactions.GetBySession(ctx, id, nonce))
}

// GetByRef looks up an interaction by the single-use reference revealed at
// finish.
func (c *Coordinator) GetByRef(ctx context.Context, ref string) (domain.Interaction, error) {
	return c.check(c.interactions.GetByRef(ctx, ref))
}

func (c *Coordinator) GetByGrant(ctx context.Context, grantID string) (domain.Interaction, error) {
	return c.check(c.interactions.GetByGrant(ctx, grantID))
}

func (c *Coordinator) check(i domain.Interaction, err error) (domain.Interaction, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Interaction{}, ErrNotFound
		}
		return domain.Interaction{}, err
	}
	if i.Expired(time.Now()) {
		return domain.Interaction{}, ErrExpired
	}
	return i, nil
}

// Approve marks the interaction accepted. Idempotent.
func (c *Coordinator) Approve(ctx context.Context, id string) error {
	return c.interactions.SetState(ctx, id, domain.InteractionStateApproved)
}

// Deny marks the interaction rejected. Idempotent.
func (c *Coordinator) Deny(ctx context.Context, id string) error {
	return c.interactions.SetState(ctx, id, domain.InteractionStateDenied)
}

// FinishHash binds the finish redirect to the negotiation: the client
// recomputes it from its own nonce and the values in the redirect and
// rejects the interaction result on mismatch.
func (c *Coordinator) FinishHash(clientNonce, interactNonce, interactRef string) string {
	payload := strings.Join([]string{clientNonce, interactNonce, interactRef, c.grantRequestURL}, "\n")
	sum := sha256.Sum256([]byte(payload))
	return base64.StdEncoding.EncodeToString(sum[:])
}
