package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/reflexo/clinic/internal/platform/db"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Service provides business logic for patients.
type Service struct {
	patients Repository
	resolver *tenancy.Resolver
	tx       db.Transactor
}

func NewService(patients Repository, resolver *tenancy.Resolver, tx db.Transactor) *Service {
	return &Service{patients: patients, resolver: resolver, tx: tx}
}

func (s *Service) validate(p *Patient) error {
	if p.DocumentNumber == "" {
		return tenancy.NewFieldError("document_number", "is required")
	}
	if p.Name == "" {
		return tenancy.NewFieldError("name", "is required")
	}
	return nil
}

// Create stores a new patient, or restores a soft-deleted one that holds the
// same document number. The tenant is pinned to the caller's tenant for
// non-global principals; local id allocation and the insert share one
// transaction so the sequence lock covers both.
func (s *Service) Create(ctx context.Context, p *Patient) (*Patient, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}

	principal := tenancy.PrincipalFromContext(ctx)
	tid, err := s.resolver.AssignTenantOnWrite(ctx, principal, p.TenantID)
	if err != nil {
		return nil, err
	}
	p.TenantID = tid

	existing, err := s.patients.GetByDocument(ctx, p.DocumentNumber)
	if err != nil && !errors.Is(err, tenancy.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.DeletedAt == nil {
			return nil, tenancy.NewFieldError("document_number", "already registered")
		}
		// The document index is global, so the lookup sees other tenants'
		// rows. The response must not: a foreign row reads exactly like an
		// in-tenant duplicate.
		if existing.TenantID != nil && p.TenantID != nil && *existing.TenantID != *p.TenantID {
			return nil, tenancy.NewFieldError("document_number", "already registered")
		}
		return s.restoreInto(ctx, existing, p)
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.patients.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// restoreInto reactivates a soft-deleted row with the new payload's fields.
// The row keeps its id and local id; the freed number is never reissued, so
// reusing the row is the only way back.
func (s *Service) restoreInto(ctx context.Context, existing, p *Patient) (*Patient, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Restore(ctx, scope, existing.ID); err != nil {
			return err
		}
		p.ID = existing.ID
		p.LocalID = existing.LocalID
		p.TenantID = existing.TenantID
		return s.patients.Update(ctx, scope, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.patients.GetByID(ctx, scope, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.patients.Update(ctx, scope, p)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.patients.SoftDelete(ctx, scope, id)
}

func (s *Service) Restore(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.patients.Restore(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.patients.List(ctx, scope, search, limit, offset)
}

// GetScoped fetches a patient under an explicit scope. Other services use it
// for cross-entity consistency checks.
func (s *Service) GetScoped(ctx context.Context, scope tenancy.Scope, id int64) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, scope, id)
	if err != nil {
		return nil, fmt.Errorf("patient %d: %w", id, err)
	}
	return p, nil
}
