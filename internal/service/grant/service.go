// Package grant implements the central grant state machine: creation with
// tenant-policy interaction skipping, continuation and polling with wait
// period throttling, identity-provider driven transitions, and revocation
// with token cascade.
package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/random"
	"github.com/smallbiznis/gnap-auth/internal/repository"
	"github.com/smallbiznis/gnap-auth/internal/service/access"
	"github.com/smallbiznis/gnap-auth/internal/service/interaction"
	"github.com/smallbiznis/gnap-auth/internal/service/token"
)

// Service coordinates the grant lifecycle across the registrar, interaction
// coordinator, and token issuer.
type Service struct {
	db           repository.DB
	grants       repository.GrantRepository
	tokens       repository.AccessTokenRepository
	webhooks     repository.WebhookEventRepository
	registrar    *access.Registrar
	interactions *interaction.Coordinator
	issuer       *token.Issuer

	wait   time.Duration
	tracer trace.Tracer
}

func NewService(
	db repository.DB,
	grants repository.GrantRepository,
	tokens repository.AccessTokenRepository,
	webhooks repository.WebhookEventRepository,
	registrar *access.Registrar,
	interactions *interaction.Coordinator,
	issuer *token.Issuer,
	wait time.Duration,
) *Service {
	return &Service{
		db:           db,
		grants:       grants,
		tokens:       tokens,
		webhooks:     webhooks,
		registrar:    registrar,
		interactions: interactions,
		issuer:       issuer,
		wait:         wait,
		tracer:       otel.Tracer("grant"),
	}
}

// InteractSpec is the client's requested interaction shape.
type InteractSpec struct {
	Start        []domain.StartMethod
	FinishMethod domain.FinishMethod
	FinishURI    string
	Nonce        string
}

// CreateRequest carries a validated-at-the-edge grant request.
type CreateRequest struct {
	ClientID    string
	ClientKeyID string
	Access      []domain.AccessItem
	Subjects    []domain.SubjectItem
	Interact    *InteractSpec
}

// CreateResult is the outcome of grant creation. Token is non-nil only on
// the non-interactive path; Interaction is non-nil only on the interactive
// one.
type CreateResult struct {
	Grant       domain.Grant
	Access      []domain.Access
	Subjects    []domain.Subject
	Interaction *domain.Interaction
	Token       *domain.AccessToken
}

// Create validates the request, decides whether consent interaction can be
// skipped under tenant policy, and persists the grant with its access and
// subject rows atomically. A skippable grant is approved, issued a token,
// and finalized in the same transaction.
func (s *Service) Create(ctx context.Context, tenant domain.Tenant, req CreateRequest) (CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "grant.Create")
	defer span.End()

	if len(req.Access) == 0 && len(req.Subjects) == 0 {
		return CreateResult{}, newError(ErrorInvalidRequest, "request must carry access or subject items")
	}
	for _, item := range req.Access {
		if err := validateAccessItem(item); err != nil {
			return CreateResult{}, err
		}
	}

	// Interaction is skippable only when every item independently
	// qualifies under tenant policy and no subject identifiers were
	// requested.
	interactive := len(req.Subjects) > 0
	for _, item := range req.Access {
		if requiresInteraction(tenant, item) {
			interactive = true
			if item.Identifier == "" {
				return CreateResult{}, newError(ErrorInvalidRequest, "access item requiring interaction must carry an identifier")
			}
		}
	}
	if interactive {
		if err := validateInteract(req.Interact); err != nil {
			return CreateResult{}, err
		}
	}

	continueToken, err := random.String(32)
	if err != nil {
		span.RecordError(err)
		return CreateResult{}, err
	}
	now := time.Now().UTC()
	grant := domain.Grant{
		TenantID:        tenant.ID,
		State:           domain.GrantStateApproved,
		ClientID:        req.ClientID,
		ClientKeyID:     req.ClientKeyID,
		ContinueID:      uuid.NewString(),
		ContinueToken:   continueToken,
		LastContinuedAt: now,
	}
	if interactive {
		grant.State = domain.GrantStateProcessing
		grant.StartMethods = req.Interact.Start
		grant.FinishMethod = req.Interact.FinishMethod
		grant.FinishURI = req.Interact.FinishURI
		grant.ClientNonce = req.Interact.Nonce
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return CreateResult{}, fmt.Errorf("begin grant creation: %w", err)
	}
	defer tx.Rollback(ctx)

	grants := s.grants.WithTx(tx)
	created, err := grants.Create(ctx, grant)
	if err != nil {
		span.RecordError(err)
		return CreateResult{}, err
	}

	result := CreateResult{Grant: created}
	result.Access, err = s.registrar.CreateAccess(ctx, tx, created.ID, req.Access)
	if err != nil {
		span.RecordError(err)
		return CreateResult{}, err
	}
	result.Subjects, err = s.registrar.CreateSubjects(ctx, tx, created.ID, req.Subjects)
	if err != nil {
		if errors.Is(err, access.ErrInvalidSubjectID) || errors.Is(err, access.ErrInvalidSubjectFormat) {
			return CreateResult{}, newError(ErrorInvalidRequest, err.Error())
		}
		span.RecordError(err)
		return CreateResult{}, err
	}

	if interactive {
		i, err := s.interactions.Create(ctx, tx, created.ID)
		if err != nil {
			span.RecordError(err)
			return CreateResult{}, err
		}
		result.Interaction = &i
	} else {
		minted, err := s.issuer.Create(ctx, tx, created.ID)
		if err != nil {
			span.RecordError(err)
			return CreateResult{}, err
		}
		result.Token = &minted
		if err := grants.Finalize(ctx, created.ID, domain.FinalizationIssued); err != nil {
			span.RecordError(err)
			return CreateResult{}, err
		}
		result.Grant.State = domain.GrantStateFinalized
		result.Grant.FinalizationReason = domain.FinalizationIssued
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return CreateResult{}, fmt.Errorf("commit grant creation: %w", err)
	}
	zap.L().Info("grant created",
		zap.String("grant_id", result.Grant.ID),
		zap.Bool("interactive", interactive),
	)
	return result, nil
}

func validateAccessItem(item domain.AccessItem) *Error {
	if !item.Type.Valid() {
		return newError(ErrorInvalidRequest, fmt.Sprintf("unknown access type %q", item.Type))
	}
	if len(item.Actions) == 0 {
		return newError(ErrorInvalidRequest, "access item must carry at least one action")
	}
	for _, a := range item.Actions {
		if !a.Valid() {
			return newError(ErrorInvalidRequest, fmt.Sprintf("unknown action %q", a))
		}
	}
	if item.Limits != nil && item.Type != domain.AccessTypeOutgoingPayment {
		return newError(ErrorInvalidRequest, "limits are only valid on outgoing-payment access")
	}
	return nil
}

func validateInteract(spec *InteractSpec) *Error {
	if spec == nil {
		return newError(ErrorInvalidRequest, "interaction is required for this request")
	}
	hasRedirect := false
	for _, m := range spec.Start {
		if m == domain.StartMethodRedirect {
			hasRedirect = true
		} else {
			return newError(ErrorInvalidRequest, fmt.Sprintf("unsupported start method %q", m))
		}
	}
	if !hasRedirect {
		return newError(ErrorInvalidRequest, "interact.start must include redirect")
	}
	if spec.FinishMethod != "" {
		if spec.FinishMethod != domain.FinishMethodRedirect {
			return newError(ErrorInvalidRequest, fmt.Sprintf("unsupported finish method %q", spec.FinishMethod))
		}
		if spec.FinishURI == "" || spec.Nonce == "" {
			return newError(ErrorInvalidRequest, "interact.finish requires uri and nonce")
		}
	}
	return nil
}

func requiresInteraction(tenant domain.Tenant, item domain.AccessItem) bool {
	for _, a := range item.Actions {
		if a == domain.ActionListAll && tenant.ListAllInteraction {
			return true
		}
	}
	switch item.Type {
	case domain.AccessTypeIncomingPayment:
		return tenant.IncomingPaymentInteraction
	case domain.AccessTypeQuote:
		return tenant.QuoteInteraction
	default:
		// Outgoing payments always need the resource owner's consent.
		return true
	}
}

// GetByID loads a grant.
func (s *Service) GetByID(ctx context.Context, id string) (domain.Grant, error) {
	return s.grants.GetByID(ctx, id)
}

// MarkPending transitions Processing -> Pending when the resource owner is
// redirected to the identity provider. Re-entering an already-pending grant
// is a no-op.
func (s *Service) MarkPending(ctx context.Context, grantID string, tenant domain.Tenant) error {
	if !tenant.HasIdentityProvider() {
		return newError(ErrorRequestDenied, "tenant has no identity provider configured")
	}
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrorUnknownInteraction, "grant not found")
		}
		return err
	}
	switch grant.State {
	case domain.GrantStatePending:
		return nil
	case domain.GrantStateProcessing:
		return s.grants.MarkPending(ctx, grantID)
	default:
		return newError(ErrorInvalidInteraction, "grant is not awaiting interaction")
	}
}

// Approve transitions Pending -> Approved on identity-provider accept.
func (s *Service) Approve(ctx context.Context, grantID string) error {
	if err := s.grants.Approve(ctx, grantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrorInvalidInteraction, "grant is not pending approval")
		}
		return err
	}
	return nil
}

// Reject finalizes the grant with reason Rejected on identity-provider deny.
func (s *Service) Reject(ctx context.Context, grantID string) error {
	if err := s.grants.Finalize(ctx, grantID, domain.FinalizationRejected); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrorInvalidInteraction, "grant is already finalized")
		}
		return err
	}
	return nil
}

// RevokeGrant finalizes the grant as revoked, revokes all of its tokens in
// the same transaction, and enqueues a grant.revoked webhook event. Returns
// false when the grant does not exist in the tenant scope or is already
// revoked.
func (s *Service) RevokeGrant(ctx context.Context, grantID, tenantID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "grant.RevokeGrant")
	defer span.End()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("begin grant revocation: %w", err)
	}
	defer tx.Rollback(ctx)

	revoked, err := s.grants.WithTx(tx).Revoke(ctx, grantID, tenantID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if !revoked {
		return false, nil
	}

	if _, err := s.tokens.WithTx(tx).RevokeByGrant(ctx, grantID); err != nil {
		span.RecordError(err)
		return false, err
	}
	if _, err := s.webhooks.WithTx(tx).Create(ctx, domain.WebhookEvent{
		Type: domain.WebhookEventGrantRevoked,
		Data: map[string]any{"grantId": grantID},
	}); err != nil {
		span.RecordError(err)
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("commit grant revocation: %w", err)
	}
	zap.L().Info("grant revoked", zap.String("grant_id", grantID))
	return true, nil
}

// GetByContinue resolves a continuation capability. A revoked or otherwise
// finalized grant is indistinguishable from one that never existed.
func (s *Service) GetByContinue(ctx context.Context, continueID, continueToken string, includeFinalized bool) (domain.Grant, error) {
	grant, err := s.grants.GetByContinue(ctx, continueID, continueToken, includeFinalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Grant{}, newError(ErrorInvalidContinuation, "invalid continuation credentials")
		}
		return domain.Grant{}, err
	}
	return grant, nil
}

// ContinueResult is the outcome of a continuation call. A nil Token means a
// continuation-only envelope: the client should wait and retry.
type ContinueResult struct {
	Grant  domain.Grant
	Token  *domain.AccessToken
	Access []domain.Access
	Wait   int
}

// Continue resumes a grant negotiation. An empty interactRef is a poll; a
// non-empty one presents the reference revealed at interaction finish.
func (s *Service) Continue(ctx context.Context, continueID, continueToken, interactRef string) (ContinueResult, error) {
	ctx, span := s.tracer.Start(ctx, "grant.Continue")
	defer span.End()

	if interactRef == "" {
		return s.poll(ctx, continueID, continueToken)
	}
	return s.finishByRef(ctx, continueID, continueToken, interactRef)
}

func (s *Service) poll(ctx context.Context, continueID, continueToken string) (ContinueResult, error) {
	grant, err := s.GetByContinue(ctx, continueID, continueToken, false)
	if err != nil {
		return ContinueResult{}, err
	}
	// A grant with a finish callback must present its interaction
	// reference; polling would bypass the finish-hash check.
	if grant.FinishMethod != "" {
		return ContinueResult{}, newError(ErrorRequestDenied, "grant must be continued with an interaction reference")
	}
	if err := s.checkWait(grant); err != nil {
		return ContinueResult{}, err
	}

	switch grant.State {
	case domain.GrantStateProcessing, domain.GrantStatePending:
		if err := s.grants.UpdateLastContinued(ctx, grant.ID, time.Now().UTC()); err != nil {
			return ContinueResult{}, err
		}
		return ContinueResult{Grant: grant, Wait: int(s.wait / time.Second)}, nil
	case domain.GrantStateApproved:
		return s.issue(ctx, grant)
	default:
		return ContinueResult{}, newError(ErrorRequestDenied, "grant cannot be continued")
	}
}

func (s *Service) finishByRef(ctx context.Context, continueID, continueToken, interactRef string) (ContinueResult, error) {
	i, err := s.interactions.GetByRef(ctx, interactRef)
	if err != nil {
		switch {
		case errors.Is(err, interaction.ErrNotFound):
			return ContinueResult{}, newError(ErrorInvalidContinuation, "invalid continuation credentials")
		case errors.Is(err, interaction.ErrExpired):
			return ContinueResult{}, newError(ErrorInvalidInteraction, "interaction expired")
		}
		return ContinueResult{}, err
	}

	grant, err := s.grants.GetByID(ctx, i.GrantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContinueResult{}, newError(ErrorInvalidContinuation, "invalid continuation credentials")
		}
		return ContinueResult{}, err
	}
	if grant.Finalized() || grant.ContinueID != continueID || grant.ContinueToken != continueToken {
		return ContinueResult{}, newError(ErrorInvalidContinuation, "invalid continuation credentials")
	}
	if err := s.checkWait(grant); err != nil {
		return ContinueResult{}, err
	}
	if i.State == domain.InteractionStateDenied {
		return ContinueResult{}, newError(ErrorUserDenied, "resource owner denied the request")
	}
	if grant.State != domain.GrantStateApproved {
		return ContinueResult{}, newError(ErrorRequestDenied, "interaction has not been approved")
	}
	return s.issue(ctx, grant)
}

func (s *Service) checkWait(grant domain.Grant) *Error {
	if time.Now().Before(grant.LastContinuedAt.Add(s.wait)) {
		return newError(ErrorTooFast, "wait period has not elapsed")
	}
	return nil
}

// issue mints the token and finalizes the grant as issued, atomically and
// under the grant lock so a concurrent continuation cannot double-issue.
func (s *Service) issue(ctx context.Context, grant domain.Grant) (ContinueResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ContinueResult{}, fmt.Errorf("begin token issuance: %w", err)
	}
	defer tx.Rollback(ctx)

	grants := s.grants.WithTx(tx)
	if err := grants.Lock(ctx, grant.ID); err != nil {
		return ContinueResult{}, err
	}

	minted, err := s.issuer.Create(ctx, tx, grant.ID)
	if err != nil {
		return ContinueResult{}, err
	}
	if err := grants.Finalize(ctx, grant.ID, domain.FinalizationIssued); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContinueResult{}, newError(ErrorInvalidContinuation, "invalid continuation credentials")
		}
		return ContinueResult{}, err
	}
	if err := grants.UpdateLastContinued(ctx, grant.ID, time.Now().UTC()); err != nil {
		return ContinueResult{}, err
	}

	accessRows, err := s.registrar.GetAccess(ctx, grant.ID)
	if err != nil {
		return ContinueResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ContinueResult{}, fmt.Errorf("commit token issuance: %w", err)
	}

	grant.State = domain.GrantStateFinalized
	grant.FinalizationReason = domain.FinalizationIssued
	return ContinueResult{Grant: grant, Token: &minted, Access: accessRows}, nil
}

// RevokeByContinue cancels a negotiation via its continuation capability.
// An already-revoked grant yields the same error as a missing one.
func (s *Service) RevokeByContinue(ctx context.Context, continueID, continueToken string) error {
	grant, err := s.GetByContinue(ctx, continueID, continueToken, true)
	if err != nil {
		return err
	}
	if grant.Revoked() {
		return newError(ErrorInvalidContinuation, "invalid continuation credentials")
	}
	revoked, err := s.RevokeGrant(ctx, grant.ID, "")
	if err != nil {
		return err
	}
	if !revoked {
		return newError(ErrorInvalidContinuation, "invalid continuation credentials")
	}
	return nil
}
