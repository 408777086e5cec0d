// Package token mints, introspects, rotates, and revokes the bearer tokens
// bound to a grant.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/random"
	"github.com/smallbiznis/gnap-auth/internal/repository"
)

// ErrNotFound signals a rotation target that does not exist, is revoked, or
// does not match the presented value. All three collapse into one error so
// callers cannot probe which check failed.
var ErrNotFound = errors.New("access token not found")

// Issuer owns the token lifecycle. Rotation serializes on a grant-level
// lock: it conceptually replaces "the current token of this grant", so two
// concurrent rotations of the same grant must not both succeed against the
// same old token.
type Issuer struct {
	db       repository.DB
	tokens   repository.AccessTokenRepository
	accesses repository.AccessRepository
	grants   repository.GrantRepository
	webhooks repository.WebhookEventRepository

	expiry     time.Duration
	valueBytes int
}

func NewIssuer(
	db repository.DB,
	tokens repository.AccessTokenRepository,
	accesses repository.AccessRepository,
	grants repository.GrantRepository,
	webhooks repository.WebhookEventRepository,
	expiry time.Duration,
	valueBytes int,
) *Issuer {
	return &Issuer{
		db:         db,
		tokens:     tokens,
		accesses:   accesses,
		grants:     grants,
		webhooks:   webhooks,
		expiry:     expiry,
		valueBytes: valueBytes,
	}
}

// Create mints a token for the grant inside the caller's transaction. The
// management id is generated separately from the bearer value so management
// URLs never carry the secret.
func (s *Issuer) Create(ctx context.Context, tx pgx.Tx, grantID string) (domain.AccessToken, error) {
	value, err := random.String(s.valueBytes)
	if err != nil {
		return domain.AccessToken{}, err
	}
	return s.tokens.WithTx(tx).Create(ctx, domain.AccessToken{
		GrantID:      grantID,
		Value:        value,
		ManagementID: uuid.NewString(),
		ExpiresIn:    int(s.expiry / time.Second),
	})
}

// Introspection is the resource-server-facing view of a token.
type Introspection struct {
	Active bool
	Grant  domain.Grant
	Access []domain.AccessItem
}

// Introspect resolves a bearer value. Every failure mode (unknown value,
// revoked token, expired token, revoked grant) yields the same inactive
// result rather than an error. When requested items are supplied, each is
// matched against the grant's persisted access using hierarchical action
// containment; unmatched items are dropped silently.
func (s *Issuer) Introspect(ctx context.Context, value string, requested []domain.AccessItem) (Introspection, error) {
	inactive := Introspection{Active: false}

	token, err := s.tokens.GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inactive, nil
		}
		return inactive, err
	}
	if token.Revoked() || token.Expired(time.Now()) {
		return inactive, nil
	}

	grant, err := s.grants.GetByID(ctx, token.GrantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inactive, nil
		}
		return inactive, err
	}
	if grant.Revoked() {
		return inactive, nil
	}

	granted, err := s.accesses.GetByNonRevokedGrant(ctx, grant.ID)
	if err != nil {
		return inactive, err
	}

	result := Introspection{Active: true, Grant: grant}
	if len(requested) == 0 {
		for _, a := range granted {
			result.Access = append(result.Access, a.Item())
		}
		return result, nil
	}
	for _, want := range requested {
		for _, have := range granted {
			if have.Satisfies(want) {
				result.Access = append(result.Access, have.Item())
				break
			}
		}
	}
	return result, nil
}

// GetByManagementID resolves the live token for a management id, for
// key-binding checks on management requests.
func (s *Issuer) GetByManagementID(ctx context.Context, managementID string) (domain.AccessToken, error) {
	token, err := s.tokens.GetByManagementID(ctx, managementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccessToken{}, ErrNotFound
		}
		return domain.AccessToken{}, err
	}
	return token, nil
}

// Rotate revokes the current token for the management id and mints a
// replacement for the same grant under a grant-level lock. The new token
// keeps the management id, so the client's manage URL stays valid.
func (s *Issuer) Rotate(ctx context.Context, managementID string) (domain.AccessToken, []domain.Access, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.AccessToken{}, nil, fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback(ctx)

	tokens := s.tokens.WithTx(tx)

	current, err := tokens.GetByManagementID(ctx, managementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccessToken{}, nil, ErrNotFound
		}
		return domain.AccessToken{}, nil, err
	}
	if err := s.grants.WithTx(tx).Lock(ctx, current.GrantID); err != nil {
		return domain.AccessToken{}, nil, err
	}

	// Re-check under the lock; a concurrent rotation or revoke may have
	// gotten here first.
	ok, err := tokens.Revoke(ctx, current.ID)
	if err != nil {
		return domain.AccessToken{}, nil, err
	}
	if !ok {
		return domain.AccessToken{}, nil, ErrNotFound
	}

	value, err := random.String(s.valueBytes)
	if err != nil {
		return domain.AccessToken{}, nil, err
	}
	fresh, err := tokens.Create(ctx, domain.AccessToken{
		GrantID:      current.GrantID,
		Value:        value,
		ManagementID: managementID,
		ExpiresIn:    int(s.expiry / time.Second),
	})
	if err != nil {
		return domain.AccessToken{}, nil, err
	}

	access, err := s.accesses.WithTx(tx).GetByGrant(ctx, current.GrantID)
	if err != nil {
		return domain.AccessToken{}, nil, err
	}

	if _, err := s.webhooks.WithTx(tx).Create(ctx, domain.WebhookEvent{
		Type: domain.WebhookEventTokenRotated,
		Data: map[string]any{"grantId": current.GrantID, "managementId": managementID},
	}); err != nil {
		return domain.AccessToken{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.AccessToken{}, nil, fmt.Errorf("commit rotate: %w", err)
	}
	return fresh, access, nil
}

// Revoke marks the token for a management id unusable. Revoking a missing
// or already-revoked token succeeds silently.
func (s *Issuer) Revoke(ctx context.Context, managementID string) error {
	token, err := s.tokens.GetByManagementID(ctx, managementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if _, err := s.tokens.Revoke(ctx, token.ID); err != nil {
		return err
	}
	return nil
}
