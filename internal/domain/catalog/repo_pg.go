package catalog

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

// =========== Reference tables ===========

// refRepoPG is table-driven: the four reference tables share one shape, so
// one repo serves them all. The table name comes from the trusted constants
// in model.go, never from request input.
type refRepoPG struct {
	pool  *pgxpool.Pool
	table string
}

func NewRefRepoPG(pool *pgxpool.Pool, table string) RefRepository {
	return &refRepoPG{pool: pool, table: table}
}

func (r *refRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func scanRefItem(row pgx.Row) (*RefItem, error) {
	var it RefItem
	err := row.Scan(&it.ID, &it.Name, &it.CreatedAt, &it.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &it, err
}

func (r *refRepoPG) Create(ctx context.Context, item *RefItem) error {
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO `+r.table+` (name) VALUES ($1) RETURNING id, created_at, updated_at`,
		item.Name).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (r *refRepoPG) GetByID(ctx context.Context, id int64) (*RefItem, error) {
	return scanRefItem(r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM `+r.table+` WHERE id = $1`, id))
}

func (r *refRepoPG) Update(ctx context.Context, item *RefItem) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE `+r.table+` SET name = $2, updated_at = NOW() WHERE id = $1`,
		item.ID, item.Name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *refRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *refRepoPG) List(ctx context.Context) ([]*RefItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, created_at, updated_at FROM `+r.table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RefItem
	for rows.Next() {
		it, err := scanRefItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// =========== Diagnoses ===========

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const diagnosisCols = `id, code, name, created_at, updated_at`

func scanDiagnosis(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	err := row.Scan(&d.ID, &d.Code, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &d, err
}

func (r *diagnosisRepoPG) Create(ctx context.Context, d *Diagnosis) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO diagnoses (code, name) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		d.Code, d.Name).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return tenancy.NewFieldError("code", "already exists")
	}
	return err
}

func (r *diagnosisRepoPG) GetByID(ctx context.Context, id int64) (*Diagnosis, error) {
	return scanDiagnosis(r.conn(ctx).QueryRow(ctx,
		`SELECT `+diagnosisCols+` FROM diagnoses WHERE id = $1`, id))
}

func (r *diagnosisRepoPG) GetByCode(ctx context.Context, code string) (*Diagnosis, error) {
	return scanDiagnosis(r.conn(ctx).QueryRow(ctx,
		`SELECT `+diagnosisCols+` FROM diagnoses WHERE code = $1`, code))
}

func (r *diagnosisRepoPG) Update(ctx context.Context, d *Diagnosis) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE diagnoses SET code = $2, name = $3, updated_at = NOW() WHERE id = $1`,
		d.ID, d.Code, d.Name)
	if db.IsUniqueViolation(err) {
		return tenancy.NewFieldError("code", "already exists")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *diagnosisRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnoses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *diagnosisRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Diagnosis, int, error) {
	conds := []string{"TRUE"}
	var args []interface{}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(code ILIKE $"+n+" OR name ILIKE $"+n+")")
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM diagnoses WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+diagnosisCols+` FROM diagnoses WHERE `+where+
			` ORDER BY code LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Diagnosis
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Predetermined prices ===========

type priceRepoPG struct{ pool *pgxpool.Pool }

func NewPriceRepoPG(pool *pgxpool.Pool) PriceRepository {
	return &priceRepoPG{pool: pool}
}

func (r *priceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const priceCols = `id, tenant_id, local_id, name, price, created_at, updated_at, deleted_at`

func scanPrice(row pgx.Row) (*PredeterminedPrice, error) {
	var p PredeterminedPrice
	err := row.Scan(&p.ID, &p.TenantID, &p.LocalID, &p.Name, &p.Price,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &p, err
}

func (r *priceRepoPG) Create(ctx context.Context, p *PredeterminedPrice) error {
	q := r.conn(ctx)
	if p.TenantID != nil {
		lid, err := tenancy.NextLocalID(ctx, q, "predetermined_prices", *p.TenantID)
		if err != nil {
			return err
		}
		p.LocalID = &lid
	}
	err := q.QueryRow(ctx, `
		INSERT INTO predetermined_prices (tenant_id, local_id, name, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		p.TenantID, p.LocalID, p.Name, p.Price).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == "predetermined_prices_tenant_local_id_idx" {
		return tenancy.ErrSequenceConflict
	}
	return err
}

func (r *priceRepoPG) GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*PredeterminedPrice, error) {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	return scanPrice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+priceCols+` FROM predetermined_prices WHERE `+strings.Join(conds, " AND "), args...))
}

func (r *priceRepoPG) Update(ctx context.Context, scope tenancy.Scope, p *PredeterminedPrice) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{p.ID}
	conds, args = scope.Apply("tenant_id", conds, args)

	base := len(args)
	args = append(args, p.Name, p.Price)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE predetermined_prices SET name = $`+strconv.Itoa(base+1)+
			`, price = $`+strconv.Itoa(base+2)+
			`, updated_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *priceRepoPG) SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE predetermined_prices SET deleted_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *priceRepoPG) List(ctx context.Context, scope tenancy.Scope, limit, offset int) ([]*PredeterminedPrice, int, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []interface{}
	conds, args = scope.Apply("tenant_id", conds, args)
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM predetermined_prices WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+priceCols+` FROM predetermined_prices WHERE `+where+
			` ORDER BY name LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PredeterminedPrice
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
