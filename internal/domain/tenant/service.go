package tenant

import (
	"context"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Service provides business logic for tenant management.
type Service struct {
	tenants Repository
}

func NewService(tenants Repository) *Service {
	return &Service{tenants: tenants}
}

func (s *Service) Create(ctx context.Context, t *Tenant) error {
	if t.Name == "" {
		return tenancy.NewFieldError("name", "is required")
	}
	return s.tenants.Create(ctx, t)
}

func (s *Service) Get(ctx context.Context, id int64) (*Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, t *Tenant) error {
	if t.Name == "" {
		return tenancy.NewFieldError("name", "is required")
	}
	return s.tenants.Update(ctx, t)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tenants.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Tenant, int, error) {
	return s.tenants.List(ctx, limit, offset)
}
