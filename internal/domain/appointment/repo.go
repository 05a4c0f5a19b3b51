package appointment

import (
	"context"
	"time"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// ListFilter narrows appointment listings.
type ListFilter struct {
	PatientID *int64
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*Appointment, error)
	Update(ctx context.Context, scope tenancy.Scope, a *Appointment) error
	SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error
	List(ctx context.Context, scope tenancy.Scope, f ListFilter) ([]*Appointment, int, error)
}

type TicketRepository interface {
	// Create allocates the per-tenant ticket number inside the surrounding
	// transaction and inserts the row.
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*Ticket, error)
	SetStatus(ctx context.Context, scope tenancy.Scope, id int64, status string, paidAt *time.Time) error
	Delete(ctx context.Context, scope tenancy.Scope, id int64) error
	List(ctx context.Context, scope tenancy.Scope, status string, limit, offset int) ([]*Ticket, int, error)
}
