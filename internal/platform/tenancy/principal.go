package tenancy

import "context"

// Principal is the authenticated caller as seen by the tenancy layer. The
// auth middleware builds one per request and stores it in the request
// context; nothing downstream mutates it.
type Principal struct {
	UserID        int64
	Authenticated bool

	// TenantID is the materialized tenant claim carried by the principal.
	// It may be stale or absent; the Resolver owns the fallback chain.
	TenantID *int64

	Superuser bool

	// Rol is a legacy role marker; "Admin" grants global scope for
	// backward compatibility.
	Rol string
}

// Anonymous is the principal used for unauthenticated requests.
var Anonymous = Principal{}

type contextKey string

const principalKey contextKey = "tenancy_principal"

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the request's principal, or Anonymous when
// none was set.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey).(Principal); ok {
		return p
	}
	return Anonymous
}
