package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smallbiznis/gnap-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ GrantRepository        = (*PostgresGrantRepo)(nil)
	_ AccessRepository       = (*PostgresAccessRepo)(nil)
	_ SubjectRepository      = (*PostgresSubjectRepo)(nil)
	_ InteractionRepository  = (*PostgresInteractionRepo)(nil)
	_ AccessTokenRepository  = (*PostgresAccessTokenRepo)(nil)
	_ WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)
	_ TenantRepository       = (*PostgresTenantRepo)(nil)
)

// PostgresGrantRepo implements GrantRepository over pgx.
type PostgresGrantRepo struct {
	q Querier
}

func NewPostgresGrantRepo(q Querier) *PostgresGrantRepo {
	return &PostgresGrantRepo{q: q}
}

func (r *PostgresGrantRepo) WithTx(tx pgx.Tx) GrantRepository {
	return &PostgresGrantRepo{q: tx}
}

const grantColumns = `id, tenant_id, state, finalization_reason, client_id, client_key_id,
start_methods, finish_method, finish_uri, client_nonce,
continue_id, continue_token, last_continued_at, created_at, updated_at`

const insertGrantSQL = `INSERT INTO grants (id, tenant_id, state, finalization_reason, client_id, client_key_id,
start_methods, finish_method, finish_uri, client_nonce, continue_id, continue_token, last_continued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + grantColumns

func (r *PostgresGrantRepo) Create(ctx context.Context, grant domain.Grant) (domain.Grant, error) {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	starts := make([]string, 0, len(grant.StartMethods))
	for _, m := range grant.StartMethods {
		starts = append(starts, string(m))
	}
	row := r.q.QueryRow(ctx, insertGrantSQL,
		grant.ID,
		grant.TenantID,
		string(grant.State),
		string(grant.FinalizationReason),
		grant.ClientID,
		grant.ClientKeyID,
		starts,
		string(grant.FinishMethod),
		grant.FinishURI,
		grant.ClientNonce,
		grant.ContinueID,
		grant.ContinueToken,
		grant.LastContinuedAt,
	)
	created, err := scanGrant(row)
	if err != nil {
		return domain.Grant{}, fmt.Errorf("create grant: %w", err)
	}
	return created, nil
}

func (r *PostgresGrantRepo) GetByID(ctx context.Context, id string) (domain.Grant, error) {
	row := r.q.QueryRow(ctx, `SELECT `+grantColumns+` FROM grants WHERE id = $1`, id)
	grant, err := scanGrant(row)
	if err != nil {
		return domain.Grant{}, fmt.Errorf("get grant: %w", err)
	}
	return grant, nil
}

func (r *PostgresGrantRepo) GetByContinue(ctx context.Context, continueID, continueToken string, includeFinalized bool) (domain.Grant, error) {
	sql := `SELECT ` + grantColumns + ` FROM grants WHERE continue_id = $1 AND continue_token = $2`
	if !includeFinalized {
		sql += ` AND state <> 'FINALIZED'`
	}
	row := r.q.QueryRow(ctx, sql, continueID, continueToken)
	grant, err := scanGrant(row)
	if err != nil {
		return domain.Grant{}, fmt.Errorf("get grant by continue: %w", err)
	}
	return grant, nil
}

func (r *PostgresGrantRepo) MarkPending(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE grants SET state = 'PENDING', updated_at = now() WHERE id = $1 AND state = 'PROCESSING'`, id)
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark pending: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresGrantRepo) Approve(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE grants SET state = 'APPROVED', updated_at = now() WHERE id = $1 AND state = 'PENDING'`, id)
	if err != nil {
		return fmt.Errorf("approve grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("approve grant: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresGrantRepo) Finalize(ctx context.Context, id string, reason domain.FinalizationReason) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE grants SET state = 'FINALIZED', finalization_reason = $2, updated_at = now()
		WHERE id = $1 AND state <> 'FINALIZED'`, id, string(reason))
	if err != nil {
		return fmt.Errorf("finalize grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize grant: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresGrantRepo) Revoke(ctx context.Context, id, tenantID string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE grants SET state = 'FINALIZED', finalization_reason = 'REVOKED', updated_at = now()
		WHERE id = $1 AND ($2 = '' OR tenant_id = $2)
		AND NOT (state = 'FINALIZED' AND finalization_reason = 'REVOKED')`, id, tenantID)
	if err != nil {
		return false, fmt.Errorf("revoke grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresGrantRepo) UpdateLastContinued(ctx context.Context, id string, at time.Time) error {
	if _, err := r.q.Exec(ctx,
		`UPDATE grants SET last_continued_at = $2, updated_at = now() WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("update last continued: %w", err)
	}
	return nil
}

// Lock takes a pessimistic row lock held until the surrounding transaction
// ends. No-key-update keeps child-row inserts referencing the grant alive.
func (r *PostgresGrantRepo) Lock(ctx context.Context, id string) error {
	var locked string
	err := r.q.QueryRow(ctx, `SELECT id FROM grants WHERE id = $1 FOR NO KEY UPDATE`, id).Scan(&locked)
	if err != nil {
		return fmt.Errorf("lock grant: %w", err)
	}
	return nil
}

func scanGrant(row pgx.Row) (domain.Grant, error) {
	var (
		g      domain.Grant
		state  string
		reason string
		starts []string
		finish string
	)
	if err := row.Scan(
		&g.ID,
		&g.TenantID,
		&state,
		&reason,
		&g.ClientID,
		&g.ClientKeyID,
		&starts,
		&finish,
		&g.FinishURI,
		&g.ClientNonce,
		&g.ContinueID,
		&g.ContinueToken,
		&g.LastContinuedAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return domain.Grant{}, err
	}
	g.State = domain.GrantState(state)
	g.FinalizationReason = domain.FinalizationReason(reason)
	g.FinishMethod = domain.FinishMethod(finish)
	g.StartMethods = make([]domain.StartMethod, 0, len(starts))
	for _, m := range starts {
		g.StartMethods = append(g.StartMethods, domain.StartMethod(m))
	}
	return g, nil
}

// PostgresAccessRepo implements AccessRepository.
type PostgresAccessRepo struct {
	q Querier
}

func NewPostgresAccessRepo(q Querier) *PostgresAccessRepo {
	return &PostgresAccessRepo{q: q}
}

func (r *PostgresAccessRepo) WithTx(tx pgx.Tx) AccessRepository {
	return &PostgresAccessRepo{q: tx}
}

const insertAccessSQL = `INSERT INTO accesses (id, grant_id, type, actions, identifier, limits)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, grant_id, type, actions, identifier, limits, created_at`

func (r *PostgresAccessRepo) CreateAll(ctx context.Context, grantID string, items []domain.AccessItem) ([]domain.Access, error) {
	created := make([]domain.Access, 0, len(items))
	for _, item := range items {
		actions := make([]string, 0, len(item.Actions))
		for _, a := range item.Actions {
			actions = append(actions, string(a))
		}
		row := r.q.QueryRow(ctx, insertAccessSQL,
			uuid.NewString(), grantID, string(item.Type), actions, item.Identifier, item.Limits)
		access, err := scanAccess(row)
		if err != nil {
			return nil, fmt.Errorf("create access: %w", err)
		}
		created = append(created, access)
	}
	return created, nil
}

func (r *PostgresAccessRepo) GetByGrant(ctx context.Context, grantID string) ([]domain.Access, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, grant_id, type, actions, identifier, limits, created_at FROM accesses WHERE grant_id = $1`, grantID)
	if err != nil {
		return nil, fmt.Errorf("get accesses: %w", err)
	}
	return collectAccesses(rows)
}

func (r *PostgresAccessRepo) GetByNonRevokedGrant(ctx context.Context, grantID string) ([]domain.Access, error) {
	rows, err := r.q.Query(ctx,
		`SELECT a.id, a.grant_id, a.type, a.actions, a.identifier, a.limits, a.created_at
		FROM accesses a
		JOIN grants g ON g.id = a.grant_id
		WHERE a.grant_id = $1
		AND NOT (g.state = 'FINALIZED' AND g.finalization_reason = 'REVOKED')`, grantID)
	if err != nil {
		return nil, fmt.Errorf("get accesses for non-revoked grant: %w", err)
	}
	return collectAccesses(rows)
}

func collectAccesses(rows pgx.Rows) ([]domain.Access, error) {
	defer rows.Close()
	var accesses []domain.Access
	for rows.Next() {
		access, err := scanAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access: %w", err)
		}
		accesses = append(accesses, access)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accesses: %w", err)
	}
	return accesses, nil
}

func scanAccess(row pgx.Row) (domain.Access, error) {
	var (
		a       domain.Access
		typ     string
		actions []string
	)
	if err := row.Scan(&a.ID, &a.GrantID, &typ, &actions, &a.Identifier, &a.Limits, &a.CreatedAt); err != nil {
		return domain.Access{}, err
	}
	a.Type = domain.AccessType(typ)
	a.Actions = make([]domain.AccessAction, 0, len(actions))
	for _, action := range actions {
		a.Actions = append(a.Actions, domain.AccessAction(action))
	}
	return a, nil
}

// PostgresSubjectRepo implements SubjectRepository.
type PostgresSubjectRepo struct {
	q Querier
}

func NewPostgresSubjectRepo(q Querier) *PostgresSubjectRepo {
	return &PostgresSubjectRepo{q: q}
}

func (r *PostgresSubjectRepo) WithTx(tx pgx.Tx) SubjectRepository {
	return &PostgresSubjectRepo{q: tx}
}

func (r *PostgresSubjectRepo) CreateAll(ctx context.Context, grantID string, items []domain.SubjectItem) ([]domain.Subject, error) {
	created := make([]domain.Subject, 0, len(items))
	for _, item := range items {
		row := r.q.QueryRow(ctx,
			`INSERT INTO subjects (id, grant_id, sub_id, format) VALUES ($1, $2, $3, $4)
			RETURNING id, grant_id, sub_id, format, created_at`,
			uuid.NewString(), grantID, item.ID, item.Format)
		var s domain.Subject
		if err := row.Scan(&s.ID, &s.GrantID, &s.SubID, &s.Format, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("create subject: %w", err)
		}
		created = append(created, s)
	}
	return created, nil
}

func (r *PostgresSubjectRepo) GetByGrant(ctx context.Context, grantID string) ([]domain.Subject, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, grant_id, sub_id, format, created_at FROM subjects WHERE grant_id = $1`, grantID)
	if err != nil {
		return nil, fmt.Errorf("get subjects: %w", err)
	}
	defer rows.Close()
	var subjects []domain.Subject
	for rows.Next() {
		var s domain.Subject
		if err := rows.Scan(&s.ID, &s.GrantID, &s.SubID, &s.Format, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// PostgresInteractionRepo implements InteractionRepository.
type PostgresInteractionRepo struct {
	q Querier
}

func NewPostgresInteractionRepo(q Querier) *PostgresInteractionRepo {
	return &PostgresInteractionRepo{q: q}
}

func (r *PostgresInteractionRepo) WithTx(tx pgx.Tx) InteractionRepository {
	return &PostgresInteractionRepo{q: tx}
}

const interactionColumns = `id, grant_id, ref, nonce, state, expires_in, created_at`

func (r *PostgresInteractionRepo) Create(ctx context.Context, interaction domain.Interaction) (domain.Interaction, error) {
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx,
		`INSERT INTO interactions (id, grant_id, ref, nonce, state, expires_in) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+interactionColumns,
		interaction.ID, interaction.GrantID, interaction.Ref, interaction.Nonce,
		string(interaction.State), interaction.ExpiresIn)
	created, err := scanInteraction(row)
	if err != nil {
		return domain.Interaction{}, fmt.Errorf("create interaction: %w", err)
	}
	return created, nil
}

func (r *PostgresInteractionRepo) GetBySession(ctx context.Context, id, nonce string) (domain.Interaction, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+interactionColumns+` FROM interactions WHERE id = $1 AND nonce = $2`, id, nonce)
	interaction, err := scanInteraction(row)
	if err != nil {
		return domain.Interaction{}, fmt.Errorf("get interaction by session: %w", err)
	}
	return interaction, nil
}

func (r *PostgresInteractionRepo) GetByRef(ctx context.Context, ref string) (domain.Interaction, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+interactionColumns+` FROM interactions WHERE ref = $1`, ref)
	interaction, err := scanInteraction(row)
	if err != nil {
		return domain.Interaction{}, fmt.Errorf("get interaction by ref: %w", err)
	}
	return interaction, nil
}

func (r *PostgresInteractionRepo) GetByGrant(ctx context.Context, grantID string) (domain.Interaction, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+interactionColumns+` FROM interactions WHERE grant_id = $1`, grantID)
	interaction, err := scanInteraction(row)
	if err != nil {
		return domain.Interaction{}, fmt.Errorf("get interaction by grant: %w", err)
	}
	return interaction, nil
}

func (r *PostgresInteractionRepo) SetState(ctx context.Context, id string, state domain.InteractionState) error {
	if _, err := r.q.Exec(ctx,
		`UPDATE interactions SET state = $2 WHERE id = $1`, id, string(state)); err != nil {
		return fmt.Errorf("set interaction state: %w", err)
	}
	return nil
}

func scanInteraction(row pgx.Row) (domain.Interaction, error) {
	var (
		i     domain.Interaction
		state string
	)
	if err := row.Scan(&i.ID, &i.GrantID, &i.Ref, &i.Nonce, &state, &i.ExpiresIn, &i.CreatedAt); err != nil {
		return domain.Interaction{}, err
	}
	i.State = domain.InteractionState(state)
	return i, nil
}

// PostgresAccessTokenRepo implements AccessTokenRepository.
type PostgresAccessTokenRepo struct {
	q Querier
}

func NewPostgresAccessTokenRepo(q Querier) *PostgresAccessTokenRepo {
	return &PostgresAccessTokenRepo{q: q}
}

func (r *PostgresAccessTokenRepo) WithTx(tx pgx.Tx) AccessTokenRepository {
	return &PostgresAccessTokenRepo{q: tx}
}

const tokenColumns = `id, grant_id, value, management_id, expires_in, revoked_at, created_at`

func (r *PostgresAccessTokenRepo) Create(ctx context.Context, token domain.AccessToken) (domain.AccessToken, error) {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx,
		`INSERT INTO access_tokens (id, grant_id, value, management_id, expires_in) VALUES ($1, $2, $3, $4, $5)
		RETURNING `+tokenColumns,
		token.ID, token.GrantID, token.Value, token.ManagementID, token.ExpiresIn)
	created, err := scanToken(row)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("create access token: %w", err)
	}
	return created, nil
}

func (r *PostgresAccessTokenRepo) GetByValue(ctx context.Context, value string) (domain.AccessToken, error) {
	row := r.q.QueryRow(ctx, `SELECT `+tokenColumns+` FROM access_tokens WHERE value = $1`, value)
	token, err := scanToken(row)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("get access token: %w", err)
	}
	return token, nil
}

// GetByManagementID returns the live token for a management id. Rotation
// reuses the management id, so revoked rows are excluded here.
func (r *PostgresAccessTokenRepo) GetByManagementID(ctx context.Context, managementID string) (domain.AccessToken, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM access_tokens WHERE management_id = $1 AND revoked_at IS NULL`, managementID)
	token, err := scanToken(row)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("get access token by management id: %w", err)
	}
	return token, nil
}

func (r *PostgresAccessTokenRepo) Revoke(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE access_tokens SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("revoke access token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresAccessTokenRepo) RevokeByGrant(ctx context.Context, grantID string) (int64, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE access_tokens SET revoked_at = now() WHERE grant_id = $1 AND revoked_at IS NULL`, grantID)
	if err != nil {
		return 0, fmt.Errorf("revoke access tokens by grant: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (domain.AccessToken, error) {
	var t domain.AccessToken
	if err := row.Scan(&t.ID, &t.GrantID, &t.Value, &t.ManagementID, &t.ExpiresIn, &t.RevokedAt, &t.CreatedAt); err != nil {
		return domain.AccessToken{}, err
	}
	return t, nil
}

// PostgresWebhookEventRepo implements WebhookEventRepository.
type PostgresWebhookEventRepo struct {
	q Querier
}

func NewPostgresWebhookEventRepo(q Querier) *PostgresWebhookEventRepo {
	return &PostgresWebhookEventRepo{q: q}
}

func (r *PostgresWebhookEventRepo) WithTx(tx pgx.Tx) WebhookEventRepository {
	return &PostgresWebhookEventRepo{q: tx}
}

const webhookColumns = `id, type, data, attempts, status_code, process_at, created_at`

func (r *PostgresWebhookEventRepo) Create(ctx context.Context, event domain.WebhookEvent) (domain.WebhookEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	processAt := event.ProcessAt
	if processAt == nil {
		now := time.Now().UTC()
		processAt = &now
	}
	row := r.q.QueryRow(ctx,
		`INSERT INTO webhook_events (id, type, data, attempts, status_code, process_at) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+webhookColumns,
		event.ID, string(event.Type), event.Data, event.Attempts, event.StatusCode, processAt)
	created, err := scanWebhookEvent(row)
	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("create webhook event: %w", err)
	}
	return created, nil
}

// NextEligible selects and locks the oldest deliverable event. SKIP LOCKED
// makes concurrent workers pick distinct rows instead of queueing.
func (r *PostgresWebhookEventRepo) NextEligible(ctx context.Context, maxRetry int, now time.Time) (domain.WebhookEvent, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+webhookColumns+` FROM webhook_events
		WHERE attempts < $1 AND process_at IS NOT NULL AND process_at <= $2
		ORDER BY process_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, maxRetry, now)
	event, err := scanWebhookEvent(row)
	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("next eligible webhook event: %w", err)
	}
	return event, nil
}

func (r *PostgresWebhookEventRepo) MarkDelivered(ctx context.Context, id string, statusCode, attempts int) error {
	if _, err := r.q.Exec(ctx,
		`UPDATE webhook_events SET process_at = NULL, status_code = $2, attempts = $3 WHERE id = $1`,
		id, statusCode, attempts); err != nil {
		return fmt.Errorf("mark webhook delivered: %w", err)
	}
	return nil
}

func (r *PostgresWebhookEventRepo) Reschedule(ctx context.Context, id string, statusCode, attempts int, processAt time.Time) error {
	if _, err := r.q.Exec(ctx,
		`UPDATE webhook_events SET process_at = $4, status_code = $2, attempts = $3 WHERE id = $1`,
		id, statusCode, attempts, processAt); err != nil {
		return fmt.Errorf("reschedule webhook: %w", err)
	}
	return nil
}

func scanWebhookEvent(row pgx.Row) (domain.WebhookEvent, error) {
	var (
		e   domain.WebhookEvent
		typ string
	)
	if err := row.Scan(&e.ID, &typ, &e.Data, &e.Attempts, &e.StatusCode, &e.ProcessAt, &e.CreatedAt); err != nil {
		return domain.WebhookEvent{}, err
	}
	e.Type = domain.WebhookEventType(typ)
	return e, nil
}

// PostgresTenantRepo implements TenantRepository.
type PostgresTenantRepo struct {
	q Querier
}

func NewPostgresTenantRepo(q Querier) *PostgresTenantRepo {
	return &PostgresTenantRepo{q: q}
}

const tenantColumns = `id, host, is_default, idp_consent_url, idp_secret,
incoming_payment_interaction, quote_interaction, list_all_interaction, created_at, updated_at`

func (r *PostgresTenantRepo) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	row := r.q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	tenant, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return tenant, nil
}

func (r *PostgresTenantRepo) GetByHost(ctx context.Context, host string) (domain.Tenant, error) {
	row := r.q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE host = $1`, host)
	tenant, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant by host: %w", err)
	}
	return tenant, nil
}

func (r *PostgresTenantRepo) GetDefault(ctx context.Context) (domain.Tenant, error) {
	row := r.q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE is_default LIMIT 1`)
	tenant, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("get default tenant: %w", err)
	}
	return tenant, nil
}

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(
		&t.ID,
		&t.Host,
		&t.IsDefault,
		&t.IdpConsentURL,
		&t.IdpSecret,
		&t.IncomingPaymentInteraction,
		&t.QuoteInteraction,
		&t.ListAllInteraction,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return domain.Tenant{}, err
	}
	return t, nil
}
