package medicalrecord

import (
	"context"
	"errors"
	"time"

	"github.com/reflexo/clinic/internal/domain/catalog"
	"github.com/reflexo/clinic/internal/domain/patient"
	"github.com/reflexo/clinic/internal/platform/db"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

type PatientSource interface {
	GetScoped(ctx context.Context, scope tenancy.Scope, id int64) (*patient.Patient, error)
}

// DiagnosisSource resolves global diagnosis codes; no scope because the
// catalog is shared by every tenant.
type DiagnosisSource interface {
	GetDiagnosis(ctx context.Context, id int64) (*catalog.Diagnosis, error)
}

type Service struct {
	records   Repository
	patients  PatientSource
	diagnoses DiagnosisSource
	resolver  *tenancy.Resolver
	tx        db.Transactor
}

func NewService(records Repository, patients PatientSource, diagnoses DiagnosisSource,
	resolver *tenancy.Resolver, tx db.Transactor) *Service {
	return &Service{records: records, patients: patients, diagnoses: diagnoses, resolver: resolver, tx: tx}
}

// Create validates both references. The patient check doubles as the tenant
// check: a global principal writing without a tenant inherits the patient's.
func (s *Service) Create(ctx context.Context, m *MedicalRecord) (*MedicalRecord, error) {
	if m.PatientID == 0 {
		return nil, tenancy.NewFieldError("patient_id", "is required")
	}
	if m.DiagnosisID == 0 {
		return nil, tenancy.NewFieldError("diagnosis_id", "is required")
	}
	if m.RecordDate.IsZero() {
		m.RecordDate = time.Now()
	}

	principal := tenancy.PrincipalFromContext(ctx)
	tid, err := s.resolver.AssignTenantOnWrite(ctx, principal, m.TenantID)
	if err != nil {
		return nil, err
	}
	m.TenantID = tid

	scope := s.resolver.ScopeForRead(ctx, principal)
	p, err := s.patients.GetScoped(ctx, scope, m.PatientID)
	if err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			return nil, tenancy.NewFieldError("patient_id", "not found")
		}
		return nil, err
	}
	if _, err := s.diagnoses.GetDiagnosis(ctx, m.DiagnosisID); err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			return nil, tenancy.NewFieldError("diagnosis_id", "not found")
		}
		return nil, err
	}

	effective, err := tenancy.CheckConsistency(m.TenantID,
		tenancy.Ref{Field: "patient_id", Entity: p})
	if err != nil {
		return nil, err
	}
	m.TenantID = effective

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.records.Create(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*MedicalRecord, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.records.GetByID(ctx, scope, id)
}

func (s *Service) Update(ctx context.Context, m *MedicalRecord) error {
	if m.DiagnosisID == 0 {
		return tenancy.NewFieldError("diagnosis_id", "is required")
	}
	if _, err := s.diagnoses.GetDiagnosis(ctx, m.DiagnosisID); err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			return tenancy.NewFieldError("diagnosis_id", "not found")
		}
		return err
	}
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.records.Update(ctx, scope, m)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.records.SoftDelete(ctx, scope, id)
}

func (s *Service) Restore(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.records.Restore(ctx, scope, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*MedicalRecord, int, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.records.ListByPatient(ctx, scope, patientID, limit, offset)
}
