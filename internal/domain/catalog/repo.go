package catalog

import (
	"context"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// RefRepository serves one global reference table.
type RefRepository interface {
	Create(ctx context.Context, item *RefItem) error
	GetByID(ctx context.Context, id int64) (*RefItem, error)
	Update(ctx context.Context, item *RefItem) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*RefItem, error)
}

type DiagnosisRepository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id int64) (*Diagnosis, error)
	GetByCode(ctx context.Context, code string) (*Diagnosis, error)
	Update(ctx context.Context, d *Diagnosis) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string, limit, offset int) ([]*Diagnosis, int, error)
}

type PriceRepository interface {
	Create(ctx context.Context, p *PredeterminedPrice) error
	GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*PredeterminedPrice, error)
	Update(ctx context.Context, scope tenancy.Scope, p *PredeterminedPrice) error
	SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error
	List(ctx context.Context, scope tenancy.Scope, limit, offset int) ([]*PredeterminedPrice, int, error)
}
