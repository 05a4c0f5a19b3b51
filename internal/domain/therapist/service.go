package therapist

import (
	"context"
	"fmt"

	"github.com/reflexo/clinic/internal/platform/db"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

type Service struct {
	therapists Repository
	resolver   *tenancy.Resolver
	tx         db.Transactor
}

func NewService(therapists Repository, resolver *tenancy.Resolver, tx db.Transactor) *Service {
	return &Service{therapists: therapists, resolver: resolver, tx: tx}
}

func (s *Service) validate(t *Therapist) error {
	if t.DocumentNumber == "" {
		return tenancy.NewFieldError("document_number", "is required")
	}
	if t.Name == "" {
		return tenancy.NewFieldError("name", "is required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, t *Therapist) (*Therapist, error) {
	if err := s.validate(t); err != nil {
		return nil, err
	}
	principal := tenancy.PrincipalFromContext(ctx)
	tid, err := s.resolver.AssignTenantOnWrite(ctx, principal, t.TenantID)
	if err != nil {
		return nil, err
	}
	t.TenantID = tid

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.therapists.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Therapist, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.therapists.GetByID(ctx, scope, id)
}

func (s *Service) Update(ctx context.Context, t *Therapist) error {
	if err := s.validate(t); err != nil {
		return err
	}
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.therapists.Update(ctx, scope, t)
}

// Delete honors the entity's CallerChoice policy: soft by default, hard on
// request.
func (s *Service) Delete(ctx context.Context, id int64, hard bool) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	if hard {
		if !DeletePolicy.AllowsHard() {
			return fmt.Errorf("hard delete not permitted for therapists")
		}
		return s.therapists.HardDelete(ctx, scope, id)
	}
	return s.therapists.SoftDelete(ctx, scope, id)
}

func (s *Service) Restore(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.therapists.Restore(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Therapist, int, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.therapists.List(ctx, scope, search, limit, offset)
}

// GetScoped fetches a therapist under an explicit scope for cross-entity
// consistency checks.
func (s *Service) GetScoped(ctx context.Context, scope tenancy.Scope, id int64) (*Therapist, error) {
	t, err := s.therapists.GetByID(ctx, scope, id)
	if err != nil {
		return nil, fmt.Errorf("therapist %d: %w", id, err)
	}
	return t, nil
}
