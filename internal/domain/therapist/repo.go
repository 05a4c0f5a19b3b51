package therapist

import (
	"context"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

type Repository interface {
	Create(ctx context.Context, t *Therapist) error
	GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*Therapist, error)
	Update(ctx context.Context, scope tenancy.Scope, t *Therapist) error
	SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error
	HardDelete(ctx context.Context, scope tenancy.Scope, id int64) error
	Restore(ctx context.Context, scope tenancy.Scope, id int64) error
	List(ctx context.Context, scope tenancy.Scope, search string, limit, offset int) ([]*Therapist, int, error)
}
