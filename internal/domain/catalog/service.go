package catalog

import (
	"context"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Service serves the global reference catalogs and the tenant price list.
// Reference writes are gated at the router by the global guard; prices go
// through the usual tenant pinning.
type Service struct {
	refs      map[string]RefRepository
	diagnoses DiagnosisRepository
	prices    PriceRepository
	resolver  *tenancy.Resolver
}

func NewService(refs map[string]RefRepository, diagnoses DiagnosisRepository,
	prices PriceRepository, resolver *tenancy.Resolver) *Service {
	return &Service{refs: refs, diagnoses: diagnoses, prices: prices, resolver: resolver}
}

func (s *Service) ref(table string) (RefRepository, error) {
	repo, ok := s.refs[table]
	if !ok {
		return nil, tenancy.ErrNotFound
	}
	return repo, nil
}

func (s *Service) CreateRefItem(ctx context.Context, table string, item *RefItem) (*RefItem, error) {
	repo, err := s.ref(table)
	if err != nil {
		return nil, err
	}
	if item.Name == "" {
		return nil, tenancy.NewFieldError("name", "is required")
	}
	if err := repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) GetRefItem(ctx context.Context, table string, id int64) (*RefItem, error) {
	repo, err := s.ref(table)
	if err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, id)
}

func (s *Service) UpdateRefItem(ctx context.Context, table string, item *RefItem) error {
	repo, err := s.ref(table)
	if err != nil {
		return err
	}
	if item.Name == "" {
		return tenancy.NewFieldError("name", "is required")
	}
	return repo.Update(ctx, item)
}

func (s *Service) DeleteRefItem(ctx context.Context, table string, id int64) error {
	repo, err := s.ref(table)
	if err != nil {
		return err
	}
	return repo.Delete(ctx, id)
}

func (s *Service) ListRefItems(ctx context.Context, table string) ([]*RefItem, error) {
	repo, err := s.ref(table)
	if err != nil {
		return nil, err
	}
	return repo.List(ctx)
}

// =========== Diagnoses ===========

func (s *Service) CreateDiagnosis(ctx context.Context, d *Diagnosis) (*Diagnosis, error) {
	if d.Code == "" {
		return nil, tenancy.NewFieldError("code", "is required")
	}
	if d.Name == "" {
		return nil, tenancy.NewFieldError("name", "is required")
	}
	if err := s.diagnoses.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDiagnosis(ctx context.Context, id int64) (*Diagnosis, error) {
	return s.diagnoses.GetByID(ctx, id)
}

func (s *Service) UpdateDiagnosis(ctx context.Context, d *Diagnosis) error {
	if d.Code == "" {
		return tenancy.NewFieldError("code", "is required")
	}
	if d.Name == "" {
		return tenancy.NewFieldError("name", "is required")
	}
	return s.diagnoses.Update(ctx, d)
}

func (s *Service) DeleteDiagnosis(ctx context.Context, id int64) error {
	return s.diagnoses.Delete(ctx, id)
}

func (s *Service) ListDiagnoses(ctx context.Context, search string, limit, offset int) ([]*Diagnosis, int, error) {
	return s.diagnoses.List(ctx, search, limit, offset)
}

// =========== Predetermined prices ===========

// CreatePrice pins the tenant for tenant principals. A global principal may
// leave the tenant null to create a shared default every tenant sees.
func (s *Service) CreatePrice(ctx context.Context, p *PredeterminedPrice) (*PredeterminedPrice, error) {
	if p.Name == "" {
		return nil, tenancy.NewFieldError("name", "is required")
	}
	if p.Price < 0 {
		return nil, tenancy.NewFieldError("price", "must not be negative")
	}
	principal := tenancy.PrincipalFromContext(ctx)
	tid, err := s.resolver.AssignTenantOnWrite(ctx, principal, p.TenantID)
	if err != nil {
		return nil, err
	}
	p.TenantID = tid
	if err := s.prices.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPrice(ctx context.Context, id int64) (*PredeterminedPrice, error) {
	scope := s.resolver.ScopeForReadIncludingShared(ctx, tenancy.PrincipalFromContext(ctx))
	return s.prices.GetByID(ctx, scope, id)
}

// UpdatePrice scopes without the shared rows: a tenant may read shared
// defaults but only a global principal can change them.
func (s *Service) UpdatePrice(ctx context.Context, p *PredeterminedPrice) error {
	if p.Name == "" {
		return tenancy.NewFieldError("name", "is required")
	}
	if p.Price < 0 {
		return tenancy.NewFieldError("price", "must not be negative")
	}
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.prices.Update(ctx, scope, p)
}

func (s *Service) DeletePrice(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.prices.SoftDelete(ctx, scope, id)
}

func (s *Service) ListPrices(ctx context.Context, limit, offset int) ([]*PredeterminedPrice, int, error) {
	scope := s.resolver.ScopeForReadIncludingShared(ctx, tenancy.PrincipalFromContext(ctx))
	return s.prices.List(ctx, scope, limit, offset)
}
