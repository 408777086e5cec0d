package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/repository"
)

// In-memory repository fakes. WithTx returns the same instance: the fakes
// apply writes immediately, which is fine for single-goroutine service
// tests that never exercise rollback.

type MemoryGrantRepo struct {
	mu     sync.Mutex
	Grants map[string]domain.Grant
}

var _ repository.GrantRepository = (*MemoryGrantRepo)(nil)

func NewMemoryGrantRepo() *MemoryGrantRepo {
	return &MemoryGrantRepo{Grants: map[string]domain.Grant{}}
}

func (r *MemoryGrantRepo) WithTx(tx pgx.Tx) repository.GrantRepository { return r }

func (r *MemoryGrantRepo) Create(ctx context.Context, grant domain.Grant) (domain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grant.CreatedAt = now
	grant.UpdatedAt = now
	r.Grants[grant.ID] = grant
	return grant, nil
}

func (r *MemoryGrantRepo) GetByID(ctx context.Context, id string) (domain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.Grants[id]
	if !ok {
		return domain.Grant{}, pgx.ErrNoRows
	}
	return grant, nil
}

func (r *MemoryGrantRepo) GetByContinue(ctx context.Context, continueID, continueToken string, includeFinalized bool) (domain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, grant := range r.Grants {
		if grant.ContinueID != continueID || grant.ContinueToken != continueToken {
			continue
		}
		if grant.Finalized() && !includeFinalized {
			return domain.Grant{}, pgx.ErrNoRows
		}
		return grant, nil
	}
	return domain.Grant{}, pgx.ErrNoRows
}

func (r *MemoryGrantRepo) MarkPending(ctx context.Context, id string) error {
	return r.transition(id, domain.GrantStateProcessing, domain.GrantStatePending, "")
}

func (r *MemoryGrantRepo) Approve(ctx context.Context, id string) error {
	return r.transition(id, domain.GrantStatePending, domain.GrantStateApproved, "")
}

func (r *MemoryGrantRepo) transition(id string, from, to domain.GrantState, reason domain.FinalizationReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.Grants[id]
	if !ok || grant.State != from {
		return pgx.ErrNoRows
	}
	grant.State = to
	grant.FinalizationReason = reason
	grant.UpdatedAt = time.Now().UTC()
	r.Grants[id] = grant
	return nil
}

func (r *MemoryGrantRepo) Finalize(ctx context.Context, id string, reason domain.FinalizationReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.Grants[id]
	if !ok || grant.Finalized() {
		return pgx.ErrNoRows
	}
	grant.State = domain.GrantStateFinalized
	grant.FinalizationReason = reason
	grant.UpdatedAt = time.Now().UTC()
	r.Grants[id] = grant
	return nil
}

func (r *MemoryGrantRepo) Revoke(ctx context.Context, id, tenantID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.Grants[id]
	if !ok || grant.Revoked() {
		return false, nil
	}
	if tenantID != "" && grant.TenantID != tenantID {
		return false, nil
	}
	grant.State = domain.GrantStateFinalized
	grant.FinalizationReason = domain.FinalizationRevoked
	grant.UpdatedAt = time.Now().UTC()
	r.Grants[id] = grant
	return true, nil
}

func (r *MemoryGrantRepo) UpdateLastContinued(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.Grants[id]
	if !ok {
		return pgx.ErrNoRows
	}
	grant.LastContinuedAt = at
	r.Grants[id] = grant
	return nil
}

func (r *MemoryGrantRepo) Lock(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Grants[id]; !ok {
		return pgx.ErrNoRows
	}
	return nil
}

type MemoryAccessRepo struct {
	mu       sync.Mutex
	Accesses []domain.Access
	grants   *MemoryGrantRepo
}

var _ repository.AccessRepository = (*MemoryAccessRepo)(nil)

func NewMemoryAccessRepo(grants *MemoryGrantRepo) *MemoryAccessRepo {
	return &MemoryAccessRepo{grants: grants}
}

func (r *MemoryAccessRepo) WithTx(tx pgx.Tx) repository.AccessRepository { return r }

func (r *MemoryAccessRepo) CreateAll(ctx context.Context, grantID string, items []domain.AccessItem) ([]domain.Access, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := make([]domain.Access, 0, len(items))
	for _, item := range items {
		access := domain.Access{
			ID:         uuid.NewString(),
			GrantID:    grantID,
			Type:       item.Type,
			Actions:    item.Actions,
			Identifier: item.Identifier,
			Limits:     item.Limits,
			CreatedAt:  time.Now().UTC(),
		}
		r.Accesses = append(r.Accesses, access)
		created = append(created, access)
	}
	return created, nil
}

func (r *MemoryAccessRepo) GetByGrant(ctx context.Context, grantID string) ([]domain.Access, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Access
	for _, a := range r.Accesses {
		if a.GrantID == grantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryAccessRepo) GetByNonRevokedGrant(ctx context.Context, grantID string) ([]domain.Access, error) {
	grant, err := r.grants.GetByID(ctx, grantID)
	if err != nil || grant.Revoked() {
		return nil, nil
	}
	return r.GetByGrant(ctx, grantID)
}

type MemorySubjectRepo struct {
	mu       sync.Mutex
	Subjects []domain.Subject
}

var _ repository.SubjectRepository = (*MemorySubjectRepo)(nil)

func NewMemorySubjectRepo() *MemorySubjectRepo { return &MemorySubjectRepo{} }

func (r *MemorySubjectRepo) WithTx(tx pgx.Tx) repository.SubjectRepository { return r }

func (r *MemorySubjectRepo) CreateAll(ctx context.Context, grantID string, items []domain.SubjectItem) ([]domain.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := make([]domain.Subject, 0, len(items))
	for _, item := range items {
		subject := domain.Subject{
			ID:        uuid.NewString(),
			GrantID:   grantID,
			SubID:     item.ID,
			Format:    item.Format,
			CreatedAt: time.Now().UTC(),
		}
		r.Subjects = append(r.Subjects, subject)
		created = append(created, subject)
	}
	return created, nil
}

func (r *MemorySubjectRepo) GetByGrant(ctx context.Context, grantID string) ([]domain.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Subject
	for _, s := range r.Subjects {
		if s.GrantID == grantID {
			out = append(out, s)
		}
	}
	return out, nil
}

type MemoryInteractionRepo struct {
	mu           sync.Mutex
	Interactions map[string]domain.Interaction
}

var _ repository.InteractionRepository = (*MemoryInteractionRepo)(nil)

func NewMemoryInteractionRepo() *MemoryInteractionRepo {
	return &MemoryInteractionRepo{Interactions: map[string]domain.Interaction{}}
}

func (r *MemoryInteractionRepo) WithTx(tx pgx.Tx) repository.InteractionRepository { return r }

func (r *MemoryInteractionRepo) Create(ctx context.Context, interaction domain.Interaction) (domain.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	interaction.CreatedAt = time.Now().UTC()
	r.Interactions[interaction.ID] = interaction
	return interaction, nil
}

func (r *MemoryInteractionRepo) GetBySession(ctx context.Context, id, nonce string) (domain.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	interaction, ok := r.Interactions[id]
	if !ok || interaction.Nonce != nonce {
		return domain.Interaction{}, pgx.ErrNoRows
	}
	return interaction, nil
}

func (r *MemoryInteractionRepo) GetByRef(ctx context.Context, ref string) (domain.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, interaction := range r.Interactions {
		if interaction.Ref == ref {
			return interaction, nil
		}
	}
	return domain.Interaction{}, pgx.ErrNoRows
}

func (r *MemoryInteractionRepo) GetByGrant(ctx context.Context, grantID string) (domain.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, interaction := range r.Interactions {
		if interaction.GrantID == grantID {
			return interaction, nil
		}
	}
	return domain.Interaction{}, pgx.ErrNoRows
}

func (r *MemoryInteractionRepo) SetState(ctx context.Context, id string, state domain.InteractionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	interaction, ok := r.Interactions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	interaction.State = state
	r.Interactions[id] = interaction
	return nil
}

type MemoryAccessTokenRepo struct {
	mu     sync.Mutex
	Tokens map[string]domain.AccessToken
}

var _ repository.AccessTokenRepository = (*MemoryAccessTokenRepo)(nil)

func NewMemoryAccessTokenRepo() *MemoryAccessTokenRepo {
	return &MemoryAccessTokenRepo{Tokens: map[string]domain.AccessToken{}}
}

func (r *MemoryAccessTokenRepo) WithTx(tx pgx.Tx) repository.AccessTokenRepository { return r }

func (r *MemoryAccessTokenRepo) Create(ctx context.Context, token domain.AccessToken) (domain.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now().UTC()
	r.Tokens[token.ID] = token
	return token, nil
}

func (r *MemoryAccessTokenRepo) GetByValue(ctx context.Context, value string) (domain.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.Tokens {
		if token.Value == value {
			return token, nil
		}
	}
	return domain.AccessToken{}, pgx.ErrNoRows
}

func (r *MemoryAccessTokenRepo) GetByManagementID(ctx context.Context, managementID string) (domain.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.Tokens {
		if token.ManagementID == managementID && !token.Revoked() {
			return token, nil
		}
	}
	return domain.AccessToken{}, pgx.ErrNoRows
}

func (r *MemoryAccessTokenRepo) Revoke(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.Tokens[id]
	if !ok || token.Revoked() {
		return false, nil
	}
	now := time.Now().UTC()
	token.RevokedAt = &now
	r.Tokens[id] = token
	return true, nil
}

func (r *MemoryAccessTokenRepo) RevokeByGrant(ctx context.Context, grantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	now := time.Now().UTC()
	for id, token := range r.Tokens {
		if token.GrantID == grantID && !token.Revoked() {
			token.RevokedAt = &now
			r.Tokens[id] = token
			count++
		}
	}
	return count, nil
}

// MemoryWebhookEventRepo emulates the SKIP LOCKED dequeue: an event handed
// out by NextEligible stays invisible until MarkDelivered or Reschedule
// settles it.
type MemoryWebhookEventRepo struct {
	mu     sync.Mutex
	Events map[string]domain.WebhookEvent
	locked map[string]bool
}

var _ repository.WebhookEventRepository = (*MemoryWebhookEventRepo)(nil)

func NewMemoryWebhookEventRepo() *MemoryWebhookEventRepo {
	return &MemoryWebhookEventRepo{
		Events: map[string]domain.WebhookEvent{},
		locked: map[string]bool{},
	}
}

func (r *MemoryWebhookEventRepo) WithTx(tx pgx.Tx) repository.WebhookEventRepository { return r }

func (r *MemoryWebhookEventRepo) Create(ctx context.Context, event domain.WebhookEvent) (domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ProcessAt == nil {
		now := time.Now().UTC()
		event.ProcessAt = &now
	}
	event.CreatedAt = time.Now().UTC()
	r.Events[event.ID] = event
	return event, nil
}

func (r *MemoryWebhookEventRepo) NextEligible(ctx context.Context, maxRetry int, now time.Time) (domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var eligible []domain.WebhookEvent
	for _, event := range r.Events {
		if r.locked[event.ID] || event.Attempts >= maxRetry {
			continue
		}
		if event.ProcessAt == nil || event.ProcessAt.After(now) {
			continue
		}
		eligible = append(eligible, event)
	}
	if len(eligible) == 0 {
		return domain.WebhookEvent{}, pgx.ErrNoRows
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].ProcessAt.Before(*eligible[j].ProcessAt)
	})
	r.locked[eligible[0].ID] = true
	return eligible[0], nil
}

func (r *MemoryWebhookEventRepo) MarkDelivered(ctx context.Context, id string, statusCode, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.Events[id]
	if !ok {
		return pgx.ErrNoRows
	}
	event.ProcessAt = nil
	event.StatusCode = statusCode
	event.Attempts = attempts
	r.Events[id] = event
	delete(r.locked, id)
	return nil
}

func (r *MemoryWebhookEventRepo) Reschedule(ctx context.Context, id string, statusCode, attempts int, processAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.Events[id]
	if !ok {
		return pgx.ErrNoRows
	}
	event.ProcessAt = &processAt
	event.StatusCode = statusCode
	event.Attempts = attempts
	r.Events[id] = event
	delete(r.locked, id)
	return nil
}

type MemoryTenantRepo struct {
	mu      sync.Mutex
	Tenants map[string]domain.Tenant
}

var _ repository.TenantRepository = (*MemoryTenantRepo)(nil)

func NewMemoryTenantRepo(tenants ...domain.Tenant) *MemoryTenantRepo {
	r := &MemoryTenantRepo{Tenants: map[string]domain.Tenant{}}
	for _, t := range tenants {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		r.Tenants[t.ID] = t
	}
	return r
}

func (r *MemoryTenantRepo) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tenant, ok := r.Tenants[id]
	if !ok {
		return domain.Tenant{}, pgx.ErrNoRows
	}
	return tenant, nil
}

func (r *MemoryTenantRepo) GetByHost(ctx context.Context, host string) (domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tenant := range r.Tenants {
		if tenant.Host == host {
			return tenant, nil
		}
	}
	return domain.Tenant{}, pgx.ErrNoRows
}

func (r *MemoryTenantRepo) GetDefault(ctx context.Context) (domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tenant := range r.Tenants {
		if tenant.IsDefault {
			return tenant, nil
		}
	}
	return domain.Tenant{}, pgx.ErrNoRows
}
