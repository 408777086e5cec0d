package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/service/token"
	"github.com/smallbiznis/gnap-auth/internal/testutil"
)

type fixture struct {
	grants   *testutil.MemoryGrantRepo
	accesses *testutil.MemoryAccessRepo
	tokens   *testutil.MemoryAccessTokenRepo
	webhooks *testutil.MemoryWebhookEventRepo
	issuer   *token.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		grants:   testutil.NewMemoryGrantRepo(),
		tokens:   testutil.NewMemoryAccessTokenRepo(),
		webhooks: testutil.NewMemoryWebhookEventRepo(),
	}
	f.accesses = testutil.NewMemoryAccessRepo(f.grants)
	f.issuer = token.NewIssuer(testutil.NopDB{}, f.tokens, f.accesses, f.grants, f.webhooks, 10*time.Minute, 32)
	return f
}

func (f *fixture) seedGrant(t *testing.T) (domain.Grant, domain.AccessToken) {
	t.Helper()
	ctx := context.Background()
	grant, err := f.grants.Create(ctx, domain.Grant{
		TenantID: "tenant-1",
		State:    domain.GrantStateApproved,
		ClientID: "https://wallet.example/alice",
	})
	require.NoError(t, err)
	_, err = f.accesses.CreateAll(ctx, grant.ID, []domain.AccessItem{{
		Type:       domain.AccessTypeIncomingPayment,
		Actions:    []domain.AccessAction{domain.ActionReadAll, domain.ActionCreate},
		Identifier: "https://wallet.example/alice",
	}})
	require.NoError(t, err)

	minted, err := f.issuer.Create(ctx, &testutil.NopTx{}, grant.ID)
	require.NoError(t, err)
	return grant, minted
}

func TestCreateSeparatesValueAndManagementID(t *testing.T) {
	f := newFixture(t)
	_, minted := f.seedGrant(t)
	require.NotEmpty(t, minted.Value)
	require.NotEmpty(t, minted.ManagementID)
	require.NotEqual(t, minted.Value, minted.ManagementID)
}

func TestIntrospectActiveToken(t *testing.T) {
	f := newFixture(t)
	_, minted := f.seedGrant(t)

	result, err := f.issuer.Introspect(context.Background(), minted.Value, nil)
	require.NoError(t, err)
	require.True(t, result.Active)
	require.Len(t, result.Access, 1)
}

func TestIntrospectUnknownValueIsInactive(t *testing.T) {
	f := newFixture(t)
	result, err := f.issuer.Introspect(context.Background(), "nope", nil)
	require.NoError(t, err)
	require.False(t, result.Active)
}

func TestIntrospectRevokedGrantIsInactive(t *testing.T) {
	f := newFixture(t)
	grant, minted := f.seedGrant(t)

	revoked, err := f.grants.Revoke(context.Background(), grant.ID, "")
	require.NoError(t, err)
	require.True(t, revoked)

	// The token itself has not expired, but its grant is gone.
	result, err := f.issuer.Introspect(context.Background(), minted.Value, nil)
	require.NoError(t, err)
	require.False(t, result.Active)
}

func TestIntrospectMatchesHierarchically(t *testing.T) {
	f := newFixture(t)
	_, minted := f.seedGrant(t)

	result, err := f.issuer.Introspect(context.Background(), minted.Value, []domain.AccessItem{{
		Type:       domain.AccessTypeIncomingPayment,
		Actions:    []domain.AccessAction{domain.ActionRead},
		Identifier: "https://wallet.example/alice",
	}})
	require.NoError(t, err)
	require.True(t, result.Active)
	require.Len(t, result.Access, 1)

	// Unmatched requested items are dropped, never an error.
	result, err = f.issuer.Introspect(context.Background(), minted.Value, []domain.AccessItem{{
		Type:    domain.AccessTypeQuote,
		Actions: []domain.AccessAction{domain.ActionRead},
	}})
	require.NoError(t, err)
	require.True(t, result.Active)
	require.Empty(t, result.Access)
}

func TestRotateReplacesValueKeepsGrantAndManagementID(t *testing.T) {
	f := newFixture(t)
	grant, minted := f.seedGrant(t)

	fresh, accessRows, err := f.issuer.Rotate(context.Background(), minted.ManagementID)
	require.NoError(t, err)
	require.Equal(t, grant.ID, fresh.GrantID)
	require.Equal(t, minted.ManagementID, fresh.ManagementID)
	require.NotEqual(t, minted.Value, fresh.Value)
	require.Len(t, accessRows, 1)

	// The old value no longer introspects as active.
	result, err := f.issuer.Introspect(context.Background(), minted.Value, nil)
	require.NoError(t, err)
	require.False(t, result.Active)

	result, err = f.issuer.Introspect(context.Background(), fresh.Value, nil)
	require.NoError(t, err)
	require.True(t, result.Active)
}

func TestRotateUnknownManagementID(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.issuer.Rotate(context.Background(), "missing")
	require.ErrorIs(t, err, token.ErrNotFound)
}

func TestRotateEnqueuesRotationEvent(t *testing.T) {
	f := newFixture(t)
	_, minted := f.seedGrant(t)

	_, _, err := f.issuer.Rotate(context.Background(), minted.ManagementID)
	require.NoError(t, err)

	var types []domain.WebhookEventType
	for _, event := range f.webhooks.Events {
		types = append(types, event.Type)
	}
	require.Contains(t, types, domain.WebhookEventTokenRotated)
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, minted := f.seedGrant(t)

	require.NoError(t, f.issuer.Revoke(context.Background(), minted.ManagementID))
	require.NoError(t, f.issuer.Revoke(context.Background(), minted.ManagementID))
	require.NoError(t, f.issuer.Revoke(context.Background(), "missing"))

	result, err := f.issuer.Introspect(context.Background(), minted.Value, nil)
	require.NoError(t, err)
	require.False(t, result.Active)
}
