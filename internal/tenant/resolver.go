// Package tenant resolves the owning tenant for an incoming request.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/repository"
)

// Resolver loads tenant rows by request host, falling back to the default
// tenant for hosts with no dedicated row.
type Resolver struct {
	repo repository.TenantRepository
}

// NewResolver creates a tenant resolver.
func NewResolver(repo repository.TenantRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve loads tenant information from the host header.
func (r *Resolver) Resolve(ctx context.Context, host string) (domain.Tenant, error) {
	cleaned := strings.ToLower(strings.TrimSpace(host))
	if cleaned == "" {
		zap.L().Warn("tenant resolver received empty host")
		return domain.Tenant{}, fmt.Errorf("resolve tenant: empty host")
	}

	tenantRow, err := r.repo.GetByHost(ctx, cleaned)
	if err == nil {
		return tenantRow, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		zap.L().Error("failed to resolve tenant", zap.String("host", cleaned), zap.Error(err))
		return domain.Tenant{}, fmt.Errorf("resolve tenant: %w", err)
	}

	fallback, err := r.repo.GetDefault(ctx)
	if err != nil {
		zap.L().Error("no default tenant configured", zap.String("host", cleaned), zap.Error(err))
		return domain.Tenant{}, fmt.Errorf("resolve default tenant: %w", err)
	}
	return fallback, nil
}
