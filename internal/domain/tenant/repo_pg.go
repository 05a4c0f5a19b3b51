package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reflexo/clinic/internal/platform/db"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type tenantRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &tenantRepoPG{pool: pool}
}

func (r *tenantRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const tenantCols = `id, name, domain, created_at, updated_at`

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &t, err
}

func (r *tenantRepoPG) Create(ctx context.Context, t *Tenant) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tenants (name, domain)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		t.Name, t.Domain).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return mapTenantConflict(err)
}

func mapTenantConflict(err error) error {
	if !db.IsUniqueViolation(err) {
		return err
	}
	switch db.ConstraintName(err) {
	case "tenants_name_idx":
		return tenancy.NewFieldError("name", "already exists")
	case "tenants_domain_idx":
		return tenancy.NewFieldError("domain", "already exists")
	}
	return err
}

func (r *tenantRepoPG) GetByID(ctx context.Context, id int64) (*Tenant, error) {
	return scanTenant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE id = $1`, id))
}

func (r *tenantRepoPG) Update(ctx context.Context, t *Tenant) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE tenants SET name = $2, domain = $3, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Domain)
	if err != nil {
		return mapTenantConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *tenantRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *tenantRepoPG) List(ctx context.Context, limit, offset int) ([]*Tenant, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+tenantCols+` FROM tenants ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *tenantRepoPG) TenantIDs(ctx context.Context, table string) ([]int64, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT tenant_id FROM %s WHERE tenant_id IS NOT NULL ORDER BY tenant_id`, table)
	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
