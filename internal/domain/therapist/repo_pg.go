package therapist

import (
	"context"
	"strconv"
	"strings"

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

type therapistRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &therapistRepoPG{pool: pool}
}

func (r *therapistRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const therapistCols = `id, tenant_id, local_id, document_number, name,
	paternal_lastname, maternal_lastname, email, phone,
	created_at, updated_at, deleted_at`

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist
	err := row.Scan(&t.ID, &t.TenantID, &t.LocalID, &t.DocumentNumber, &t.Name,
		&t.PaternalLastname, &t.MaternalLastname, &t.Email, &t.Phone,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &t, err
}

func (r *therapistRepoPG) Create(ctx context.Context, t *Therapist) error {
	q := r.conn(ctx)
	if t.TenantID != nil {
		lid, err := tenancy.NextLocalID(ctx, q, "therapists", *t.TenantID)
		if err != nil {
			return err
		}
		t.LocalID = &lid
	}
	err := q.QueryRow(ctx, `
		INSERT INTO therapists (tenant_id, local_id, document_number, name,
			paternal_lastname, maternal_lastname, email, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at`,
		t.TenantID, t.LocalID, t.DocumentNumber, t.Name,
		t.PaternalLastname, t.MaternalLastname, t.Email, t.Phone).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == "therapists_tenant_local_id_idx" {
		return tenancy.ErrSequenceConflict
	}
	return err
}

func (r *therapistRepoPG) GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*Therapist, error) {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	return scanTherapist(r.conn(ctx).QueryRow(ctx,
		`SELECT `+therapistCols+` FROM therapists WHERE `+strings.Join(conds, " AND "), args...))
}

func (r *therapistRepoPG) Update(ctx context.Context, scope tenancy.Scope, t *Therapist) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{t.ID}
	conds, args = scope.Apply("tenant_id", conds, args)

	base := len(args)
	args = append(args, t.DocumentNumber, t.Name, t.PaternalLastname,
		t.MaternalLastname, t.Email, t.Phone)
	set := `document_number = $` + strconv.Itoa(base+1) +
		`, name = $` + strconv.Itoa(base+2) +
		`, paternal_lastname = $` + strconv.Itoa(base+3) +
		`, maternal_lastname = $` + strconv.Itoa(base+4) +
		`, email = $` + strconv.Itoa(base+5) +
		`, phone = $` + strconv.Itoa(base+6) +
		`, updated_at = NOW()`

	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE therapists SET `+set+` WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *therapistRepoPG) SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE therapists SET deleted_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *therapistRepoPG) HardDelete(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM therapists WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *therapistRepoPG) Restore(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NOT NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE therapists SET deleted_at = NULL, updated_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *therapistRepoPG) List(ctx context.Context, scope tenancy.Scope, search string, limit, offset int) ([]*Therapist, int, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []interface{}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds,
			`(name ILIKE $`+n+` OR paternal_lastname ILIKE $`+n+
				` OR maternal_lastname ILIKE $`+n+` OR document_number ILIKE $`+n+`)`)
	}
	conds, args = scope.Apply("tenant_id", conds, args)
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM therapists WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+therapistCols+` FROM therapists WHERE `+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Therapist
	for rows.Next() {
		t, err := scanTherapist(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}
