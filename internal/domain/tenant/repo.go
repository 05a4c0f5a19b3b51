package tenant

import "context"

// Repository persists tenants. Tenants are global rows and never pass
// through the tenancy scope filter.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id int64) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, int, error)
	// TenantIDs returns the ids of tenants that own at least one row in
	// table, used by backfill tools to enumerate work.
	TenantIDs(ctx context.Context, table string) ([]int64, error)
}
