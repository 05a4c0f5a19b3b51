package medicalrecord

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reflexo/clinic/internal/domain/catalog"
	"github.com/reflexo/clinic/internal/domain/patient"
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

type mockPatients struct {
	store map[int64]*patient.Patient
}

func (m *mockPatients) GetScoped(_ context.Context, scope tenancy.Scope, id int64) (*patient.Patient, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, tenancy.ErrNotFound
	}
	if !scope.IsGlobal() {
		tid := scope.TenantID()
		if tid == nil || p.TenantID == nil || *p.TenantID != *tid {
			return nil, tenancy.ErrNotFound
		}
	}
	return p, nil
}

type mockDiagnoses struct {
	store map[int64]*catalog.Diagnosis
}

func (m *mockDiagnoses) GetDiagnosis(_ context.Context, id int64) (*catalog.Diagnosis, error) {
	d, ok := m.store[id]
	if !ok {
		return nil, tenancy.ErrNotFound
	}
	return d, nil
}

type mockRecordRepo struct {
	store  map[int64]*MedicalRecord
	nextID int64
}

func (m *mockRecordRepo) visible(scope tenancy.Scope, rec *MedicalRecord) bool {
	if scope.IsGlobal() {
		return true
	}
	tid := scope.TenantID()
	return tid != nil && rec.TenantID != nil && *rec.TenantID == *tid
}

func (m *mockRecordRepo) Create(_ context.Context, rec *MedicalRecord) error {
	m.nextID++
	rec.ID = m.nextID
	if rec.TenantID != nil {
		var max int64
		for _, other := range m.store {
			if other.TenantID != nil && *other.TenantID == *rec.TenantID &&
				other.LocalID != nil && *other.LocalID > max {
				max = *other.LocalID
			}
		}
		lid := max + 1
		rec.LocalID = &lid
	}
	cp := *rec
	m.store[rec.ID] = &cp
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, scope tenancy.Scope, id int64) (*MedicalRecord, error) {
	rec, ok := m.store[id]
	if !ok || rec.DeletedAt != nil || !m.visible(scope, rec) {
		return nil, tenancy.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRecordRepo) Update(_ context.Context, scope tenancy.Scope, rec *MedicalRecord) error {
	existing, ok := m.store[rec.ID]
	if !ok || existing.DeletedAt != nil || !m.visible(scope, existing) {
		return tenancy.ErrNotFound
	}
	existing.DiagnosisID = rec.DiagnosisID
	existing.Notes = rec.Notes
	return nil
}

func (m *mockRecordRepo) SoftDelete(_ context.Context, scope tenancy.Scope, id int64) error {
	rec, ok := m.store[id]
	if !ok || rec.DeletedAt != nil || !m.visible(scope, rec) {
		return tenancy.ErrNotFound
	}
	now := time.Now()
	rec.DeletedAt = &now
	return nil
}

func (m *mockRecordRepo) Restore(_ context.Context, scope tenancy.Scope, id int64) error {
	rec, ok := m.store[id]
	if !ok || rec.DeletedAt == nil || !m.visible(scope, rec) {
		return tenancy.ErrNotFound
	}
	rec.DeletedAt = nil
	return nil
}

func (m *mockRecordRepo) ListByPatient(_ context.Context, scope tenancy.Scope, patientID int64, limit, offset int) ([]*MedicalRecord, int, error) {
	var items []*MedicalRecord
	for _, rec := range m.store {
		if rec.PatientID == patientID && rec.DeletedAt == nil && m.visible(scope, rec) {
			cp := *rec
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

// =========== Helpers ===========

func ptr(v int64) *int64 { return &v }

type fixture struct {
	svc       *Service
	patients  *mockPatients
	diagnoses *mockDiagnoses
	records   *mockRecordRepo
}

func newFixture() *fixture {
	f := &fixture{
		patients:  &mockPatients{store: make(map[int64]*patient.Patient)},
		diagnoses: &mockDiagnoses{store: make(map[int64]*catalog.Diagnosis)},
		records:   &mockRecordRepo{store: make(map[int64]*MedicalRecord)},
	}
	resolver := tenancy.NewResolver(mockUserSource{}, zerolog.Nop())
	f.svc = NewService(f.records, f.patients, f.diagnoses, resolver, nopTx{})
	return f
}

func (f *fixture) addPatient(id int64, tenantID *int64) {
	f.patients.store[id] = &patient.Patient{ID: id, TenantID: tenantID, DocumentNumber: "d", Name: "P"}
}

func (f *fixture) addDiagnosis(id int64, code string) {
	f.diagnoses.store[id] = &catalog.Diagnosis{ID: id, Code: code, Name: "Dx"}
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

func TestCreateRecord_AssignsTenantAndLocalID(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))
	f.addDiagnosis(3, "M54.5")

	rec, err := f.svc.Create(tenantCtx(7), &MedicalRecord{PatientID: 1, DiagnosisID: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.TenantID == nil || *rec.TenantID != 7 {
		t.Errorf("expected tenant 7, got %v", rec.TenantID)
	}
	if rec.LocalID == nil || *rec.LocalID != 1 {
		t.Errorf("expected local_id 1, got %v", rec.LocalID)
	}
	if rec.RecordDate.IsZero() {
		t.Error("record date should default to now")
	}
}

func TestCreateRecord_AdminInfersTenantFromPatient(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(5))
	f.addDiagnosis(3, "M54.5")

	rec, err := f.svc.Create(adminCtx(), &MedicalRecord{PatientID: 1, DiagnosisID: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.TenantID == nil || *rec.TenantID != 5 {
		t.Errorf("tenant should be inferred from the patient, got %v", rec.TenantID)
	}
}

func TestCreateRecord_TenantlessPrincipalRejected(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))
	f.addDiagnosis(3, "M54.5")

	ctx := tenancy.WithPrincipal(context.Background(),
		tenancy.Principal{UserID: 5, Authenticated: true})
	_, err := f.svc.Create(ctx, &MedicalRecord{PatientID: 1, DiagnosisID: 3})
	if err != tenancy.ErrTenantRequired {
		t.Errorf("expected ErrTenantRequired, got %v", err)
	}
}

func TestCreateRecord_CrossTenantPatientHidden(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(9))
	f.addDiagnosis(3, "M54.5")

	_, err := f.svc.Create(tenantCtx(7), &MedicalRecord{PatientID: 1, DiagnosisID: 3})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["patient_id"] == "" {
		t.Errorf("expected patient_id error, got %v", err)
	}
}

func TestCreateRecord_UnknownDiagnosisRejected(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))

	_, err := f.svc.Create(tenantCtx(7), &MedicalRecord{PatientID: 1, DiagnosisID: 99})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["diagnosis_id"] == "" {
		t.Errorf("expected diagnosis_id error, got %v", err)
	}
}

func TestCreateRecord_AdminTenantMismatchRejected(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(5))
	f.addDiagnosis(3, "M54.5")

	_, err := f.svc.Create(adminCtx(), &MedicalRecord{PatientID: 1, DiagnosisID: 3, TenantID: ptr(8)})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["patient_id"] == "" {
		t.Errorf("expected patient_id tenant mismatch, got %v", err)
	}
}

func TestRecord_DeleteAndRestore(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))
	f.addDiagnosis(3, "M54.5")
	ctx := tenantCtx(7)

	rec, err := f.svc.Create(ctx, &MedicalRecord{PatientID: 1, DiagnosisID: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, rec.ID); err == nil {
		t.Fatal("deleted record should be hidden")
	}
	if err := f.svc.Restore(ctx, rec.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := f.svc.Get(ctx, rec.ID); err != nil {
		t.Errorf("restored record should be visible: %v", err)
	}
}
