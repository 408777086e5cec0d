package interaction_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/service/interaction"
	"github.com/smallbiznis/gnap-auth/internal/testutil"
)

func TestCreateAndLookup(t *testing.T) {
	repo := testutil.NewMemoryInteractionRepo()
	c := interaction.NewCoordinator(repo, 10*time.Minute, "http://auth.example")
	ctx := context.Background()

	created, err := c.Create(ctx, &testutil.NopTx{}, "grant-1")
	require.NoError(t, err)
	require.Equal(t, domain.InteractionStatePending, created.State)
	require.NotEmpty(t, created.Ref)
	require.NotEmpty(t, created.Nonce)
	require.NotEqual(t, created.Ref, created.Nonce)

	bySession, err := c.GetBySession(ctx, created.ID, created.Nonce)
	require.NoError(t, err)
	require.Equal(t, created.ID, bySession.ID)

	byRef, err := c.GetByRef(ctx, created.Ref)
	require.NoError(t, err)
	require.Equal(t, created.ID, byRef.ID)
}

func TestWrongNonceLooksLikeNotFound(t *testing.T) {
	repo := testutil.NewMemoryInteractionRepo()
	c := interaction.NewCoordinator(repo, 10*time.Minute, "http://auth.example")
	ctx := context.Background()

	created, err := c.Create(ctx, &testutil.NopTx{}, "grant-1")
	require.NoError(t, err)

	_, err = c.GetBySession(ctx, created.ID, "wrong-nonce")
	require.ErrorIs(t, err, interaction.ErrNotFound)
}

func TestExpiredIsDistinctFromNotFound(t *testing.T) {
	repo := testutil.NewMemoryInteractionRepo()
	c := interaction.NewCoordinator(repo, 0, "http://auth.example")
	ctx := context.Background()

	created, err := c.Create(ctx, &testutil.NopTx{}, "grant-1")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = c.GetByRef(ctx, created.Ref)
	require.ErrorIs(t, err, interaction.ErrExpired)

	_, err = c.GetByRef(ctx, "no-such-ref")
	require.ErrorIs(t, err, interaction.ErrNotFound)
}

func TestApproveAndDenyAreIdempotent(t *testing.T) {
	repo := testutil.NewMemoryInteractionRepo()
	c := interaction.NewCoordinator(repo, 10*time.Minute, "http://auth.example")
	ctx := context.Background()

	created, err := c.Create(ctx, &testutil.NopTx{}, "grant-1")
	require.NoError(t, err)

	require.NoError(t, c.Approve(ctx, created.ID))
	require.NoError(t, c.Approve(ctx, created.ID))

	got, err := c.GetByGrant(ctx, "grant-1")
	require.NoError(t, err)
	require.Equal(t, domain.InteractionStateApproved, got.State)
}

func TestFinishHash(t *testing.T) {
	c := interaction.NewCoordinator(testutil.NewMemoryInteractionRepo(), 10*time.Minute, "http://auth.example")

	got := c.FinishHash("client-nonce", "interact-nonce", "interact-ref")
	sum := sha256.Sum256([]byte("client-nonce\ninteract-nonce\ninteract-ref\nhttp://auth.example/"))
	require.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), got)

	// The server url is bound into the hash, so the client can detect a
	// redirect replayed from elsewhere.
	other := interaction.NewCoordinator(testutil.NewMemoryInteractionRepo(), 10*time.Minute, "http://evil.example")
	require.NotEqual(t, got, other.FinishHash("client-nonce", "interact-nonce", "interact-ref"))
}
