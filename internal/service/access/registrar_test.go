package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/service/access"
	"github.com/smallbiznis/gnap-auth/internal/testutil"
)

func newRegistrar() (*access.Registrar, *testutil.MemoryGrantRepo) {
	grants := testutil.NewMemoryGrantRepo()
	return access.NewRegistrar(testutil.NewMemoryAccessRepo(grants), testutil.NewMemorySubjectRepo()), grants
}

func TestCreateAccessStampsGrantID(t *testing.T) {
	r, _ := newRegistrar()
	created, err := r.CreateAccess(context.Background(), &testutil.NopTx{}, "grant-1", []domain.AccessItem{
		{Type: domain.AccessTypeQuote, Actions: []domain.AccessAction{domain.ActionCreate}},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, "grant-1", created[0].GrantID)
}

func TestCreateSubjectsValidates(t *testing.T) {
	r, _ := newRegistrar()
	ctx := context.Background()

	_, err := r.CreateSubjects(ctx, &testutil.NopTx{}, "grant-1", []domain.SubjectItem{
		{ID: "https://wallet.example/alice", Format: "email"},
	})
	require.ErrorIs(t, err, access.ErrInvalidSubjectFormat)

	_, err = r.CreateSubjects(ctx, &testutil.NopTx{}, "grant-1", []domain.SubjectItem{
		{ID: "not-a-uri", Format: domain.SubjectIDFormatURI},
	})
	require.ErrorIs(t, err, access.ErrInvalidSubjectID)

	created, err := r.CreateSubjects(ctx, &testutil.NopTx{}, "grant-1", []domain.SubjectItem{
		{ID: "https://wallet.example/alice", Format: domain.SubjectIDFormatURI},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
}

func TestGetAccessForNonRevokedGrant(t *testing.T) {
	r, grants := newRegistrar()
	ctx := context.Background()

	grant, err := grants.Create(ctx, domain.Grant{State: domain.GrantStateApproved})
	require.NoError(t, err)
	_, err = r.CreateAccess(ctx, &testutil.NopTx{}, grant.ID, []domain.AccessItem{
		{Type: domain.AccessTypeQuote, Actions: []domain.AccessAction{domain.ActionCreate}},
	})
	require.NoError(t, err)

	rows, err := r.GetAccessForNonRevokedGrant(ctx, grant.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = grants.Revoke(ctx, grant.ID, "")
	require.NoError(t, err)

	rows, err = r.GetAccessForNonRevokedGrant(ctx, grant.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
}
