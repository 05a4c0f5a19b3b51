package tenancy

import (
	"context"
	"fmt"
)

// TenantScoped is implemented by entity types that carry a tenant column.
// Repositories of global reference entities never consult a Scope, and the
// consistency validator only accepts TenantScoped references, so whether a
// type participates in scoping is fixed at compile time.
type TenantScoped interface {
	TenantRef() *int64
}

type scopeKind int

const (
	scopeAll scopeKind = iota
	scopeTenant
	scopeTenantOrShared
	scopeSharedOnly
	scopeNone
)

// Scope is a tenant predicate computed once per request and applied by
// repositories to every read. The zero value fails closed.
type Scope struct {
	kind     scopeKind
	tenantID int64
}

// ScopeForRead returns the scope governing what the principal may read.
// Global principals see everything. A principal whose tenant cannot be
// resolved sees nothing: absence of tenant fails closed, never open.
func (r *Resolver) ScopeForRead(ctx context.Context, p Principal) Scope {
	if r.IsGlobalScope(ctx, p) {
		return Scope{kind: scopeAll}
	}
	tid := r.Resolve(ctx, p)
	if tid == nil {
		return Scope{kind: scopeNone}
	}
	return Scope{kind: scopeTenant, tenantID: *tid}
}

// ScopeForReadIncludingShared is the variant for tables holding shared
// defaults in null-tenant rows. A tenant principal sees its own rows plus the
// shared ones; a tenantless principal sees only the shared rows.
func (r *Resolver) ScopeForReadIncludingShared(ctx context.Context, p Principal) Scope {
	if r.IsGlobalScope(ctx, p) {
		return Scope{kind: scopeAll}
	}
	tid := r.Resolve(ctx, p)
	if tid == nil {
		return Scope{kind: scopeSharedOnly}
	}
	return Scope{kind: scopeTenantOrShared, tenantID: *tid}
}

// Apply appends the scope's predicate over col to a WHERE condition list.
// Placeholders continue from len(args)+1.
func (s Scope) Apply(col string, conds []string, args []interface{}) ([]string, []interface{}) {
	switch s.kind {
	case scopeAll:
		return conds, args
	case scopeTenant:
		args = append(args, s.tenantID)
		return append(conds, fmt.Sprintf("%s = $%d", col, len(args))), args
	case scopeTenantOrShared:
		args = append(args, s.tenantID)
		return append(conds, fmt.Sprintf("(%s = $%d OR %s IS NULL)", col, len(args), col)), args
	case scopeSharedOnly:
		return append(conds, col+" IS NULL"), args
	default:
		return append(conds, "FALSE"), args
	}
}

// IsGlobal reports whether the scope applies no tenant filtering.
func (s Scope) IsGlobal() bool { return s.kind == scopeAll }

// IncludesShared reports whether null-tenant rows pass the scope.
func (s Scope) IncludesShared() bool {
	return s.kind == scopeAll || s.kind == scopeTenantOrShared || s.kind == scopeSharedOnly
}

// TenantID returns the scoped tenant, when the scope pins one.
func (s Scope) TenantID() *int64 {
	if s.kind == scopeTenant || s.kind == scopeTenantOrShared {
		tid := s.tenantID
		return &tid
	}
	return nil
}

// AssignTenantOnWrite pins the tenant a write lands in. A global principal
// may target any tenant, including none. A tenant principal's writes always
// land in its own tenant no matter what the payload claimed, and fail with
// ErrTenantRequired when no tenant resolves.
func (r *Resolver) AssignTenantOnWrite(ctx context.Context, p Principal, requested *int64) (*int64, error) {
	if r.IsGlobalScope(ctx, p) {
		return requested, nil
	}
	tid := r.Resolve(ctx, p)
	if tid == nil {
		return nil, ErrTenantRequired
	}
	return tid, nil
}
