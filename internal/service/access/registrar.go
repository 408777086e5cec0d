// Package access persists the access rights and subject identifiers
// requested with a grant.
package access

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/repository"
)

var (
	ErrInvalidSubjectID     = errors.New("subject id must be an absolute uri")
	ErrInvalidSubjectFormat = errors.New("unsupported subject id format")
)

// Registrar writes access and subject rows inside a grant-creation
// transaction and serves the join-filtered reads used by introspection.
type Registrar struct {
	accesses repository.AccessRepository
	subjects repository.SubjectRepository
}

func NewRegistrar(accesses repository.AccessRepository, subjects repository.SubjectRepository) *Registrar {
	return &Registrar{accesses: accesses, subjects: subjects}
}

// CreateAccess persists one row per requested item, stamped with the grant
// id. Shape validation happened at grant creation; the registrar only owns
// the grant-ownership invariant.
func (r *Registrar) CreateAccess(ctx context.Context, tx pgx.Tx, grantID string, items []domain.AccessItem) ([]domain.Access, error) {
	return r.accesses.WithTx(tx).CreateAll(ctx, grantID, items)
}

// CreateSubjects validates and persists the requested subject identifiers.
// A violation aborts the enclosing grant-creation transaction.
func (r *Registrar) CreateSubjects(ctx context.Context, tx pgx.Tx, grantID string, items []domain.SubjectItem) ([]domain.Subject, error) {
	for _, item := range items {
		if item.Format != domain.SubjectIDFormatURI {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSubjectFormat, item.Format)
		}
		u, err := url.Parse(item.ID)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSubjectID, item.ID)
		}
	}
	return r.subjects.WithTx(tx).CreateAll(ctx, grantID, items)
}

func (r *Registrar) GetAccess(ctx context.Context, grantID string) ([]domain.Access, error) {
	return r.accesses.GetByGrant(ctx, grantID)
}

// GetAccessForNonRevokedGrant excludes rows whose owning grant is revoked.
func (r *Registrar) GetAccessForNonRevokedGrant(ctx context.Context, grantID string) ([]domain.Access, error) {
	return r.accesses.GetByNonRevokedGrant(ctx, grantID)
}

func (r *Registrar) GetSubjects(ctx context.Context, grantID string) ([]domain.Subject, error) {
	return r.subjects.GetByGrant(ctx, grantID)
}
