package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smallbiznis/gnap-auth/internal/domain"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB opens transactions. Satisfied by *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// GrantRepository persists grants. WithTx returns a repository bound to the
// given transaction; Lock is only meaningful on a transaction-bound
// repository.
type GrantRepository interface {
	WithTx(tx pgx.Tx) GrantRepository
	Create(ctx context.Context, grant domain.Grant) (domain.Grant, error)
	GetByID(ctx context.Context, id string) (domain.Grant, error)
	GetByContinue(ctx context.Context, continueID, continueToken string, includeFinalized bool) (domain.Grant, error)
	MarkPending(ctx context.Context, id string) error
	Approve(ctx context.Context, id string) error
	Finalize(ctx context.Context, id string, reason domain.FinalizationReason) error
	Revoke(ctx context.Context, id, tenantID string) (bool, error)
	UpdateLastContinued(ctx context.Context, id string, at time.Time) error
	Lock(ctx context.Context, id string) error
}

// AccessRepository persists the access rights requested with a grant.
type AccessRepository interface {
	WithTx(tx pgx.Tx) AccessRepository
	CreateAll(ctx context.Context, grantID string, items []domain.AccessItem) ([]domain.Access, error)
	GetByGrant(ctx context.Context, grantID string) ([]domain.Access, error)
	GetByNonRevokedGrant(ctx context.Context, grantID string) ([]domain.Access, error)
}

// SubjectRepository persists the subject identifiers requested with a grant.
type SubjectRepository interface {
	WithTx(tx pgx.Tx) SubjectRepository
	CreateAll(ctx context.Context, grantID string, items []domain.SubjectItem) ([]domain.Subject, error)
	GetByGrant(ctx context.Context, grantID string) ([]domain.Subject, error)
}

// InteractionRepository persists consent interactions.
type InteractionRepository interface {
	WithTx(tx pgx.Tx) InteractionRepository
	Create(ctx context.Context, interaction domain.Interaction) (domain.Interaction, error)
	GetBySession(ctx context.Context, id, nonce string) (domain.Interaction, error)
	GetByRef(ctx context.Context, ref string) (domain.Interaction, error)
	GetByGrant(ctx context.Context, grantID string) (domain.Interaction, error)
	SetState(ctx context.Context, id string, state domain.InteractionState) error
}

// AccessTokenRepository persists issued access tokens. Revocation is a soft
// delete via revoked_at.
type AccessTokenRepository interface {
	WithTx(tx pgx.Tx) AccessTokenRepository
	Create(ctx context.Context, token domain.AccessToken) (domain.AccessToken, error)
	GetByValue(ctx context.Context, value string) (domain.AccessToken, error)
	GetByManagementID(ctx context.Context, managementID string) (domain.AccessToken, error)
	Revoke(ctx context.Context, id string) (bool, error)
	RevokeByGrant(ctx context.Context, grantID string) (int64, error)
}

// WebhookEventRepository persists the outbound delivery queue. NextEligible
// must run on a transaction-bound repository: it locks the selected row with
// SKIP LOCKED so concurrent workers never pick the same event.
type WebhookEventRepository interface {
	WithTx(tx pgx.Tx) WebhookEventRepository
	Create(ctx context.Context, event domain.WebhookEvent) (domain.WebhookEvent, error)
	NextEligible(ctx context.Context, maxRetry int, now time.Time) (domain.WebhookEvent, error)
	MarkDelivered(ctx context.Context, id string, statusCode, attempts int) error
	Reschedule(ctx context.Context, id string, statusCode, attempts int, processAt time.Time) error
}

// TenantRepository resolves tenants.
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (domain.Tenant, error)
	GetByHost(ctx context.Context, host string) (domain.Tenant, error)
	GetDefault(ctx context.Context) (domain.Tenant, error)
}
