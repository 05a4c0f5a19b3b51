package patient

import (
	"context"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Repository persists patients. Every read takes the caller's Scope so
// tenant filtering is applied in the query, not after it.
type Repository interface {
	// Create inserts the patient and, when a tenant is set, allocates its
	// local id inside the surrounding transaction.
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*Patient, error)
	// GetByDocument also returns soft-deleted rows; creation uses it to
	// restore instead of colliding with the document-number constraint.
	GetByDocument(ctx context.Context, documentNumber string) (*Patient, error)
	Update(ctx context.Context, scope tenancy.Scope, p *Patient) error
	SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error
	Restore(ctx context.Context, scope tenancy.Scope, id int64) error
	List(ctx context.Context, scope tenancy.Scope, search string, limit, offset int) ([]*Patient, int, error)
}
