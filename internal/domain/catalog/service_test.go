package catalog

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// =========== Mocks ===========

type mockUserSource struct{}

func (mockUserSource) TenantIDByUserID(context.Context, int64) (*int64, error) { return nil, nil }
func (mockUserSource) ProfileTenantID(context.Context, int64) (*int64, error)  { return nil, nil }
func (mockUserSource) HasBypassPermission(context.Context, int64) (bool, error) {
	return false, nil
}

type mockPriceRepo struct {
	store  map[int64]*PredeterminedPrice
	nextID int64
}

func (m *mockPriceRepo) visible(scope tenancy.Scope, p *PredeterminedPrice) bool {
	if scope.IsGlobal() {
		return true
	}
	if p.TenantID == nil {
		return scope.IncludesShared()
	}
	tid := scope.TenantID()
	return tid != nil && *p.TenantID == *tid
}

func (m *mockPriceRepo) Create(_ context.Context, p *PredeterminedPrice) error {
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPriceRepo) GetByID(_ context.Context, scope tenancy.Scope, id int64) (*PredeterminedPrice, error) {
	p, ok := m.store[id]
	if !ok || p.DeletedAt != nil || !m.visible(scope, p) {
		return nil, tenancy.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPriceRepo) Update(_ context.Context, scope tenancy.Scope, p *PredeterminedPrice) error {
	existing, ok := m.store[p.ID]
	if !ok || existing.DeletedAt != nil || !m.visible(scope, existing) {
		return tenancy.ErrNotFound
	}
	existing.Name = p.Name
	existing.Price = p.Price
	return nil
}

func (m *mockPriceRepo) SoftDelete(_ context.Context, scope tenancy.Scope, id int64) error {
	p, ok := m.store[id]
	if !ok || p.DeletedAt != nil || !m.visible(scope, p) {
		return tenancy.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockPriceRepo) List(_ context.Context, scope tenancy.Scope, limit, offset int) ([]*PredeterminedPrice, int, error) {
	var items []*PredeterminedPrice
	for _, p := range m.store {
		if p.DeletedAt == nil && m.visible(scope, p) {
			cp := *p
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

// =========== Helpers ===========

func ptr(v int64) *int64 { return &v }

func newTestService(prices PriceRepository) *Service {
	resolver := tenancy.NewResolver(mockUserSource{}, zerolog.Nop())
	return NewService(nil, nil, prices, resolver)
}

func tenantCtx(tenantID int64) context.Context {
	p := tenancy.Principal{UserID: 1, Authenticated: true, TenantID: ptr(tenantID)}
	return tenancy.WithPrincipal(context.Background(), p)
}

func adminCtx() context.Context {
	p := tenancy.Principal{UserID: 99, Authenticated: true, Superuser: true}
	return tenancy.WithPrincipal(context.Background(), p)
}

// =========== Tests ===========

func TestCreatePrice_TenantPinned(t *testing.T) {
	repo := &mockPriceRepo{store: make(map[int64]*PredeterminedPrice)}
	svc := newTestService(repo)

	p, err := svc.CreatePrice(tenantCtx(3), &PredeterminedPrice{Name: "Session", Price: 80, TenantID: ptr(9)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TenantID == nil || *p.TenantID != 3 {
		t.Errorf("forged tenant must be pinned to 3, got %v", p.TenantID)
	}
}

func TestCreatePrice_AdminMayCreateShared(t *testing.T) {
	repo := &mockPriceRepo{store: make(map[int64]*PredeterminedPrice)}
	svc := newTestService(repo)

	p, err := svc.CreatePrice(adminCtx(), &PredeterminedPrice{Name: "Default session", Price: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TenantID != nil {
		t.Errorf("shared row should keep null tenant, got %v", p.TenantID)
	}
}

func TestListPrices_TenantSeesOwnAndShared(t *testing.T) {
	repo := &mockPriceRepo{store: make(map[int64]*PredeterminedPrice)}
	svc := newTestService(repo)

	svc.CreatePrice(adminCtx(), &PredeterminedPrice{Name: "Shared", Price: 60})
	svc.CreatePrice(tenantCtx(1), &PredeterminedPrice{Name: "Mine", Price: 90})
	svc.CreatePrice(tenantCtx(2), &PredeterminedPrice{Name: "Theirs", Price: 70})

	items, total, err := svc.ListPrices(tenantCtx(1), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected own row plus shared row, got %d", total)
	}
	for _, p := range items {
		if p.Name == "Theirs" {
			t.Error("another tenant's price leaked into the listing")
		}
	}
}

func TestUpdatePrice_SharedRowHiddenFromTenant(t *testing.T) {
	repo := &mockPriceRepo{store: make(map[int64]*PredeterminedPrice)}
	svc := newTestService(repo)

	shared, _ := svc.CreatePrice(adminCtx(), &PredeterminedPrice{Name: "Shared", Price: 60})

	err := svc.UpdatePrice(tenantCtx(1), &PredeterminedPrice{ID: shared.ID, Name: "Hijacked", Price: 1})
	if err == nil {
		t.Fatal("tenant must not modify a shared default")
	}

	if err := svc.UpdatePrice(adminCtx(), &PredeterminedPrice{ID: shared.ID, Name: "Shared", Price: 65}); err != nil {
		t.Errorf("global principal should update shared rows: %v", err)
	}
}

func TestCreatePrice_Validation(t *testing.T) {
	svc := newTestService(&mockPriceRepo{store: make(map[int64]*PredeterminedPrice)})

	if _, err := svc.CreatePrice(tenantCtx(1), &PredeterminedPrice{Price: 10}); err == nil {
		t.Fatal("expected error for missing name")
	}
	_, err := svc.CreatePrice(tenantCtx(1), &PredeterminedPrice{Name: "X", Price: -5})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["price"] == "" {
		t.Errorf("expected price validation error, got %v", err)
	}
}
