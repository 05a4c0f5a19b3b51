package tenancy

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func applied(s Scope, col string) (string, []interface{}) {
	conds, args := s.Apply(col, nil, nil)
	return strings.Join(conds, " AND "), args
}

func TestScopeForRead_GlobalPrincipalUnfiltered(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true, Superuser: true}

	s := r.ScopeForRead(context.Background(), p)
	where, args := applied(s, "tenant_id")
	if where != "" || len(args) != 0 {
		t.Errorf("global scope should add no predicate, got %q %v", where, args)
	}
	if !s.IsGlobal() {
		t.Error("expected IsGlobal")
	}
}

func TestScopeForRead_TenantPrincipal(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true, TenantID: ptr(7)}

	s := r.ScopeForRead(context.Background(), p)
	where, args := applied(s, "tenant_id")
	if where != "tenant_id = $1" {
		t.Errorf("unexpected predicate %q", where)
	}
	if len(args) != 1 || args[0].(int64) != 7 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestScopeForRead_NoTenantFailsClosed(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true}

	s := r.ScopeForRead(context.Background(), p)
	where, _ := applied(s, "tenant_id")
	if where != "FALSE" {
		t.Errorf("missing tenant must fail closed, got %q", where)
	}
}

func TestScopeForRead_PlaceholderNumberingContinues(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true, TenantID: ptr(7)}

	s := r.ScopeForRead(context.Background(), p)
	conds := []string{"deleted_at IS NULL", "name ILIKE $1"}
	args := []interface{}{"%ana%"}
	conds, args = s.Apply("tenant_id", conds, args)
	if conds[len(conds)-1] != "tenant_id = $2" {
		t.Errorf("expected $2 placeholder, got %q", conds[len(conds)-1])
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}
}

func TestScopeIncludingShared_TenantPrincipal(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true, TenantID: ptr(4)}

	s := r.ScopeForReadIncludingShared(context.Background(), p)
	where, args := applied(s, "tenant_id")
	if where != "(tenant_id = $1 OR tenant_id IS NULL)" {
		t.Errorf("unexpected predicate %q", where)
	}
	if len(args) != 1 || args[0].(int64) != 4 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestScopeIncludingShared_NoTenantSeesSharedOnly(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true}

	s := r.ScopeForReadIncludingShared(context.Background(), p)
	where, args := applied(s, "tenant_id")
	if where != "tenant_id IS NULL" || len(args) != 0 {
		t.Errorf("tenantless principal must see shared rows only, got %q %v", where, args)
	}
}

func TestZeroScopeFailsClosed(t *testing.T) {
	var s Scope
	where, _ := applied(s, "tenant_id")
	if where != "FALSE" {
		t.Errorf("zero scope must fail closed, got %q", where)
	}
}

func TestAssignTenantOnWrite_GlobalKeepsRequested(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true, Superuser: true}

	got, err := r.AssignTenantOnWrite(context.Background(), p, ptr(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != 9 {
		t.Errorf("global principal should keep requested tenant, got %v", got)
	}

	got, err = r.AssignTenantOnWrite(context.Background(), p, nil)
	if err != nil || got != nil {
		t.Errorf("global principal may leave tenant absent, got %v %v", got, err)
	}
}

func TestAssignTenantOnWrite_ForgedTenantOverwritten(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true, TenantID: ptr(2)}

	got, err := r.AssignTenantOnWrite(context.Background(), p, ptr(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != 2 {
		t.Errorf("forged tenant must be overwritten with 2, got %v", got)
	}
}

func TestAssignTenantOnWrite_NoTenantRejected(t *testing.T) {
	r := newTestResolver(newMockUserSource())
	p := Principal{UserID: 1, Authenticated: true}

	_, err := r.AssignTenantOnWrite(context.Background(), p, ptr(9))
	if !errors.Is(err, ErrTenantRequired) {
		t.Errorf("expected ErrTenantRequired, got %v", err)
	}
}
