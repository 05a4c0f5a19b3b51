package history

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

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const historyCols = `id, tenant_id, local_id, patient_id, observation,
	private_observation, height, weight, last_weight,
	created_at, updated_at, deleted_at`

func scanHistory(row pgx.Row) (*History, error) {
	var h History
	err := row.Scan(&h.ID, &h.TenantID, &h.LocalID, &h.PatientID, &h.Observation,
		&h.PrivateObservation, &h.Height, &h.Weight, &h.LastWeight,
		&h.CreatedAt, &h.UpdatedAt, &h.DeletedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &h, err
}

func (r *historyRepoPG) Create(ctx context.Context, h *History) error {
	q := r.conn(ctx)
	if h.TenantID != nil {
		lid, err := tenancy.NextLocalID(ctx, q, "histories", *h.TenantID)
		if err != nil {
			return err
		}
		h.LocalID = &lid
	}
	err := q.QueryRow(ctx, `
		INSERT INTO histories (tenant_id, local_id, patient_id, observation,
			private_observation, height, weight, last_weight)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at`,
		h.TenantID, h.LocalID, h.PatientID, h.Observation,
		h.PrivateObservation, h.Height, h.Weight, h.LastWeight).
		Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	return mapHistoryConflict(err)
}

// mapHistoryConflict translates the table's unique indexes. The patient index
// fires when two transactions race past the service's existence check; the
// loser must see the same error a sequential duplicate would.
func mapHistoryConflict(err error) error {
	if !db.IsUniqueViolation(err) {
		return err
	}
	switch db.ConstraintName(err) {
	case "histories_tenant_local_id_idx":
		return tenancy.ErrSequenceConflict
	case "histories_patient_idx":
		return tenancy.NewFieldError("patient_id", "patient already has a history")
	}
	return err
}

func (r *historyRepoPG) GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*History, error) {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	return scanHistory(r.conn(ctx).QueryRow(ctx,
		`SELECT `+historyCols+` FROM histories WHERE `+strings.Join(conds, " AND "), args...))
}

func (r *historyRepoPG) GetByPatient(ctx context.Context, scope tenancy.Scope, patientID int64) (*History, error) {
	conds := []string{"patient_id = $1", "deleted_at IS NULL"}
	args := []interface{}{patientID}
	conds, args = scope.Apply("tenant_id", conds, args)
	return scanHistory(r.conn(ctx).QueryRow(ctx,
		`SELECT `+historyCols+` FROM histories WHERE `+strings.Join(conds, " AND ")+
			` ORDER BY id LIMIT 1`, args...))
}

func (r *historyRepoPG) Update(ctx context.Context, scope tenancy.Scope, h *History) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{h.ID}
	conds, args = scope.Apply("tenant_id", conds, args)

	base := len(args)
	args = append(args, h.Observation, h.PrivateObservation, h.Height, h.Weight, h.LastWeight)
	set := `observation = $` + strconv.Itoa(base+1) +
		`, private_observation = $` + strconv.Itoa(base+2) +
		`, height = $` + strconv.Itoa(base+3) +
		`, weight = $` + strconv.Itoa(base+4) +
		`, last_weight = $` + strconv.Itoa(base+5) +
		`, updated_at = NOW()`

	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE histories SET `+set+` WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *historyRepoPG) SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE histories SET deleted_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *historyRepoPG) List(ctx context.Context, scope tenancy.Scope, limit, offset int) ([]*History, int, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []interface{}
	conds, args = scope.Apply("tenant_id", conds, args)
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM histories WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+historyCols+` FROM histories WHERE `+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}
