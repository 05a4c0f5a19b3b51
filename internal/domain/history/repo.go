package history

import (
	"context"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

type Repository interface {
	Create(ctx context.Context, h *History) error
	GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*History, error)
	GetByPatient(ctx context.Context, scope tenancy.Scope, patientID int64) (*History, error)
	Update(ctx context.Context, scope tenancy.Scope, h *History) error
	SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error
	List(ctx context.Context, scope tenancy.Scope, limit, offset int) ([]*History, int, error)
}
