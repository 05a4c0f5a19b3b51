package tenancy

import (
	"context"

	"github.com/rs/zerolog"
)

// UserSource provides the persisted views of a principal the resolver falls
// back to when the in-memory tenant claim is absent or stale.
type UserSource interface {
	// TenantIDByUserID re-reads the user row and returns its tenant id.
	TenantIDByUserID(ctx context.Context, userID int64) (*int64, error)
	// ProfileTenantID reads the one-to-one profile row that may carry a
	// tenant id independently (legacy dual storage).
	ProfileTenantID(ctx context.Context, userID int64) (*int64, error)
	// HasBypassPermission reports whether the user holds the explicit
	// "bypass tenant scoping" grant.
	HasBypassPermission(ctx context.Context, userID int64) (bool, error)
}

// Resolver determines a principal's tenant and whether it bypasses tenant
// scoping entirely.
type Resolver struct {
	users UserSource
	log   zerolog.Logger
}

func NewResolver(users UserSource, log zerolog.Logger) *Resolver {
	return &Resolver{users: users, log: log}
}

// Resolve returns the principal's tenant id, or nil when none can be
// determined. Absence of a tenant is a legal state, not an error: the
// principal may simply not have been assigned an organization yet. It is
// logged because it is operationally anomalous.
func (r *Resolver) Resolve(ctx context.Context, p Principal) *int64 {
	if !p.Authenticated {
		return nil
	}
	if p.TenantID != nil {
		return p.TenantID
	}

	// The claim can be stale; re-read the user row.
	if tid, err := r.users.TenantIDByUserID(ctx, p.UserID); err == nil && tid != nil {
		return tid
	}

	// Legacy dual storage: the profile row may carry the tenant.
	if tid, err := r.users.ProfileTenantID(ctx, p.UserID); err == nil && tid != nil {
		return tid
	}

	r.log.Info().Int64("user_id", p.UserID).Msg("authenticated principal resolves to no tenant")
	return nil
}

// IsGlobalScope reports whether the principal bypasses tenant filtering.
// A failed permission lookup counts as not granted, never as an error.
func (r *Resolver) IsGlobalScope(ctx context.Context, p Principal) bool {
	if !p.Authenticated {
		return false
	}
	if p.Superuser {
		return true
	}
	if ok, err := r.users.HasBypassPermission(ctx, p.UserID); err == nil && ok {
		return true
	}
	return p.Rol == "Admin"
}
