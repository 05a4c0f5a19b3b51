package patient

import (
	"context"
	"testing"
	"time"

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

type nopTx struct{}

func (nopTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockPatientRepo struct {
	store  map[int64]*Patient
	nextID int64
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{store: make(map[int64]*Patient), nextID: 1}
}

func (m *mockPatientRepo) visible(scope tenancy.Scope, p *Patient) bool {
	if scope.IsGlobal() {
		return true
	}
	tid := scope.TenantID()
	if tid == nil {
		return false
	}
	return p.TenantID != nil && *p.TenantID == *tid
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = m.nextID
	m.nextID++
	if p.TenantID != nil {
		var max int64
		for _, other := range m.store {
			if other.TenantID != nil && *other.TenantID == *p.TenantID &&
				other.LocalID != nil && *other.LocalID > max {
				max = *other.LocalID
			}
		}
		lid := max + 1
		p.LocalID = &lid
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, scope tenancy.Scope, id int64) (*Patient, error) {
	p, ok := m.store[id]
	if !ok || p.DeletedAt != nil || !m.visible(scope, p) {
		return nil, tenancy.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetByDocument(_ context.Context, doc string) (*Patient, error) {
	for _, p := range m.store {
		if p.DocumentNumber == doc {
			cp := *p
			return &cp, nil
		}
	}
	return nil, tenancy.ErrNotFound
}

func (m *mockPatientRepo) Update(_ context.Context, scope tenancy.Scope, p *Patient) error {
	existing, ok := m.store[p.ID]
	if !ok || !m.visible(scope, existing) {
		return tenancy.ErrNotFound
	}
	p.TenantID = existing.TenantID
	p.LocalID = existing.LocalID
	cp := *p
	cp.DeletedAt = existing.DeletedAt
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) SoftDelete(_ context.Context, scope tenancy.Scope, id int64) error {
	p, ok := m.store[id]
	if !ok || p.DeletedAt != nil || !m.visible(scope, p) {
		return tenancy.ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (m *mockPatientRepo) Restore(_ context.Context, scope tenancy.Scope, id int64) error {
	p, ok := m.store[id]
	if !ok || p.DeletedAt == nil || !m.visible(scope, p) {
		return tenancy.ErrNotFound
	}
	p.DeletedAt = nil
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, scope tenancy.Scope, search string, limit, offset int) ([]*Patient, int, error) {
	var items []*Patient
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

func newTestService(repo Repository) *Service {
	resolver := tenancy.NewResolver(mockUserSource{}, zerolog.Nop())
	return NewService(repo, resolver, nopTx{})
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

func TestCreatePatient_AssignsTenantAndLocalID(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	p, err := svc.Create(tenantCtx(7), &Patient{DocumentNumber: "123", Name: "Ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TenantID == nil || *p.TenantID != 7 {
		t.Errorf("expected tenant 7, got %v", p.TenantID)
	}
	if p.LocalID == nil || *p.LocalID != 1 {
		t.Errorf("expected local_id 1 for first row, got %v", p.LocalID)
	}
}

func TestCreatePatient_ForgedTenantOverwritten(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	p, err := svc.Create(tenantCtx(2), &Patient{DocumentNumber: "123", Name: "Ana", TenantID: ptr(9)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TenantID == nil || *p.TenantID != 2 {
		t.Errorf("forged tenant must be pinned to 2, got %v", p.TenantID)
	}
}

func TestCreatePatient_NoTenantRejected(t *testing.T) {
	svc := newTestService(newMockPatientRepo())
	ctx := tenancy.WithPrincipal(context.Background(),
		tenancy.Principal{UserID: 1, Authenticated: true})

	if _, err := svc.Create(ctx, &Patient{DocumentNumber: "123", Name: "Ana"}); err == nil {
		t.Fatal("expected tenant-required error")
	}
}

func TestCreatePatient_GlobalAdminMayPickTenant(t *testing.T) {
	svc := newTestService(newMockPatientRepo())

	p, err := svc.Create(adminCtx(), &Patient{DocumentNumber: "123", Name: "Ana", TenantID: ptr(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TenantID == nil || *p.TenantID != 5 {
		t.Errorf("admin-specified tenant should be kept, got %v", p.TenantID)
	}
}

func TestCreatePatient_MissingFields(t *testing.T) {
	svc := newTestService(newMockPatientRepo())
	if _, err := svc.Create(tenantCtx(1), &Patient{Name: "Ana"}); err == nil {
		t.Fatal("expected error for missing document_number")
	}
	if _, err := svc.Create(tenantCtx(1), &Patient{DocumentNumber: "1"}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestCreatePatient_LocalIDsSequential(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	for i, doc := range []string{"a", "b", "c"} {
		p, err := svc.Create(tenantCtx(3), &Patient{DocumentNumber: doc, Name: "P"})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if p.LocalID == nil || *p.LocalID != int64(i+1) {
			t.Errorf("expected local_id %d, got %v", i+1, p.LocalID)
		}
	}
}

func TestCreatePatient_DeletedLocalIDNotReused(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)
	ctx := tenantCtx(3)

	first, _ := svc.Create(ctx, &Patient{DocumentNumber: "a", Name: "P"})
	svc.Create(ctx, &Patient{DocumentNumber: "b", Name: "P"})
	if err := svc.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	third, err := svc.Create(ctx, &Patient{DocumentNumber: "c", Name: "P"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if third.LocalID == nil || *third.LocalID != 3 {
		t.Errorf("freed local id must not be reused, expected 3 got %v", third.LocalID)
	}
}

func TestCreatePatient_DuplicateDocumentRejected(t *testing.T) {
	svc := newTestService(newMockPatientRepo())
	ctx := tenantCtx(1)

	svc.Create(ctx, &Patient{DocumentNumber: "123", Name: "Ana"})
	_, err := svc.Create(ctx, &Patient{DocumentNumber: "123", Name: "Eva"})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["document_number"] == "" {
		t.Errorf("expected document_number validation error, got %v", err)
	}
}

func TestCreatePatient_RestoresSoftDeletedDocument(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)
	ctx := tenantCtx(1)

	orig, _ := svc.Create(ctx, &Patient{DocumentNumber: "123", Name: "Ana"})
	if err := svc.Delete(ctx, orig.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	restored, err := svc.Create(ctx, &Patient{DocumentNumber: "123", Name: "Ana Maria"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.ID != orig.ID {
		t.Errorf("restore should reuse row %d, got %d", orig.ID, restored.ID)
	}
	if restored.LocalID == nil || *restored.LocalID != *orig.LocalID {
		t.Errorf("restore should keep local_id %v, got %v", orig.LocalID, restored.LocalID)
	}
	got, err := svc.Get(ctx, orig.ID)
	if err != nil {
		t.Fatalf("get after restore: %v", err)
	}
	if got.Name != "Ana Maria" {
		t.Errorf("restore should apply new fields, got name %q", got.Name)
	}
}

func TestCreatePatient_ForeignDocumentReadsLikeDuplicate(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	orig, _ := svc.Create(tenantCtx(1), &Patient{DocumentNumber: "123", Name: "Ana"})
	if err := svc.Delete(tenantCtx(1), orig.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, foreignErr := svc.Create(tenantCtx(2), &Patient{DocumentNumber: "123", Name: "Eva"})
	ve, ok := tenancy.IsValidation(foreignErr)
	if !ok || ve.Fields["document_number"] == "" {
		t.Fatalf("expected document_number validation error, got %v", foreignErr)
	}

	svc2 := newTestService(newMockPatientRepo())
	svc2.Create(tenantCtx(2), &Patient{DocumentNumber: "123", Name: "Ana"})
	_, dupErr := svc2.Create(tenantCtx(2), &Patient{DocumentNumber: "123", Name: "Eva"})
	dup, ok := tenancy.IsValidation(dupErr)
	if !ok {
		t.Fatalf("expected validation error, got %v", dupErr)
	}
	if ve.Fields["document_number"] != dup.Fields["document_number"] {
		t.Errorf("foreign-tenant message %q must match in-tenant duplicate %q",
			ve.Fields["document_number"], dup.Fields["document_number"])
	}
}

func TestGetPatient_OtherTenantHidden(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	p, _ := svc.Create(tenantCtx(1), &Patient{DocumentNumber: "123", Name: "Ana"})

	if _, err := svc.Get(tenantCtx(2), p.ID); err == nil {
		t.Fatal("tenant 2 must not see tenant 1's patient")
	}
	if _, err := svc.Get(tenantCtx(1), p.ID); err != nil {
		t.Errorf("owner tenant should see its patient: %v", err)
	}
}

func TestListPatients_FailsClosedWithoutTenant(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)
	svc.Create(tenantCtx(1), &Patient{DocumentNumber: "123", Name: "Ana"})

	ctx := tenancy.WithPrincipal(context.Background(),
		tenancy.Principal{UserID: 5, Authenticated: true})
	items, total, err := svc.List(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("tenantless principal must see nothing, got %d", total)
	}
}

func TestListPatients_GlobalSeesAllTenants(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)
	svc.Create(tenantCtx(1), &Patient{DocumentNumber: "a", Name: "P"})
	svc.Create(tenantCtx(2), &Patient{DocumentNumber: "b", Name: "P"})
	svc.Create(tenantCtx(3), &Patient{DocumentNumber: "c", Name: "P"})

	_, total, err := svc.List(adminCtx(), "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("global principal should see all 3 tenants' rows, got %d", total)
	}
}
