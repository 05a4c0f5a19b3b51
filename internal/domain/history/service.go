package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/reflexo/clinic/internal/platform/db"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

type Service struct {
	histories Repository
	resolver  *tenancy.Resolver
	tx        db.Transactor
}

func NewService(histories Repository, resolver *tenancy.Resolver, tx db.Transactor) *Service {
	return &Service{histories: histories, resolver: resolver, tx: tx}
}

func (s *Service) Create(ctx context.Context, h *History) (*History, error) {
	if h.PatientID == 0 {
		return nil, tenancy.NewFieldError("patient_id", "is required")
	}
	principal := tenancy.PrincipalFromContext(ctx)
	tid, err := s.resolver.AssignTenantOnWrite(ctx, principal, h.TenantID)
	if err != nil {
		return nil, err
	}
	h.TenantID = tid

	scope := s.resolver.ScopeForRead(ctx, principal)
	if existing, err := s.histories.GetByPatient(ctx, scope, h.PatientID); err == nil && existing != nil {
		return nil, tenancy.NewFieldError("patient_id", "patient already has a history")
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.histories.Create(ctx, h)
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*History, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.histories.GetByID(ctx, scope, id)
}

func (s *Service) GetByPatient(ctx context.Context, patientID int64) (*History, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.histories.GetByPatient(ctx, scope, patientID)
}

// GetOrCreateForPatient returns the patient's history, creating an empty one
// when none exists. Appointments call this inside their own transaction so
// the created history commits together with the appointment.
func (s *Service) GetOrCreateForPatient(ctx context.Context, scope tenancy.Scope, patientID int64, tenantID *int64) (*History, error) {
	h, err := s.histories.GetByPatient(ctx, scope, patientID)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, tenancy.ErrNotFound) {
		return nil, fmt.Errorf("history for patient %d: %w", patientID, err)
	}

	h = &History{PatientID: patientID, TenantID: tenantID}
	if err := s.histories.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create history for patient %d: %w", patientID, err)
	}
	return h, nil
}

func (s *Service) Update(ctx context.Context, h *History) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.histories.Update(ctx, scope, h)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.histories.SoftDelete(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*History, int, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.histories.List(ctx, scope, limit, offset)
}

// GetScoped fetches a history under an explicit scope for cross-entity
// consistency checks.
func (s *Service) GetScoped(ctx context.Context, scope tenancy.Scope, id int64) (*History, error) {
	h, err := s.histories.GetByID(ctx, scope, id)
	if err != nil {
		return nil, fmt.Errorf("history %d: %w", id, err)
	}
	return h, nil
}
