package user

import (
	"context"

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

type userRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, tenant_id, email, password_hash, name, superuser, rol,
	created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Name,
		&u.Superuser, &u.Rol, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (tenant_id, email, password_hash, name, superuser, rol)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		u.TenantID, u.Email, u.PasswordHash, u.Name, u.Superuser, u.Rol).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1 AND deleted_at IS NULL`, email))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET tenant_id = $2, email = $3, name = $4, superuser = $5,
			rol = $6, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		u.ID, u.TenantID, u.Email, u.Name, u.Superuser, u.Rol)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users WHERE deleted_at IS NULL ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) TenantIDByUserID(ctx context.Context, userID int64) (*int64, error) {
	var tid *int64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT tenant_id FROM users WHERE id = $1`, userID).Scan(&tid)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return tid, err
}

func (r *userRepoPG) ProfileTenantID(ctx context.Context, userID int64) (*int64, error) {
	var tid *int64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT tenant_id FROM user_profiles WHERE user_id = $1`, userID).Scan(&tid)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return tid, err
}

func (r *userRepoPG) HasBypassPermission(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_permissions WHERE user_id = $1 AND permission = 'view_all_tenants')`,
		userID).Scan(&ok)
	return ok, err
}

func (r *userRepoPG) GrantBypassPermission(ctx context.Context, userID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission)
		VALUES ($1, 'view_all_tenants')
		ON CONFLICT DO NOTHING`, userID)
	return err
}
