package medicalrecord

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, tenant_id, local_id, patient_id, diagnosis_id, record_date,
	notes, created_at, updated_at, deleted_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.TenantID, &m.LocalID, &m.PatientID, &m.DiagnosisID, &m.RecordDate,
		&m.Notes, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *MedicalRecord) error {
	q := r.conn(ctx)
	if m.TenantID != nil {
		lid, err := tenancy.NextLocalID(ctx, q, "medical_records", *m.TenantID)
		if err != nil {
			return err
		}
		m.LocalID = &lid
	}
	err := q.QueryRow(ctx, `
		INSERT INTO medical_records (tenant_id, local_id, patient_id, diagnosis_id, record_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		m.TenantID, m.LocalID, m.PatientID, m.DiagnosisID, m.RecordDate, m.Notes).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == "medical_records_tenant_local_id_idx" {
		return tenancy.ErrSequenceConflict
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*MedicalRecord, error) {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE `+strings.Join(conds, " AND "), args...))
}

func (r *repoPG) Update(ctx context.Context, scope tenancy.Scope, m *MedicalRecord) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{m.ID}
	conds, args = scope.Apply("tenant_id", conds, args)

	base := len(args)
	args = append(args, m.DiagnosisID, m.RecordDate, m.Notes)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medical_records SET diagnosis_id = $`+strconv.Itoa(base+1)+
			`, record_date = $`+strconv.Itoa(base+2)+
			`, notes = $`+strconv.Itoa(base+3)+
			`, updated_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *repoPG) SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medical_records SET deleted_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *repoPG) Restore(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NOT NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medical_records SET deleted_at = NULL, updated_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, scope tenancy.Scope, patientID int64, limit, offset int) ([]*MedicalRecord, int, error) {
	conds := []string{"patient_id = $1", "deleted_at IS NULL"}
	args := []interface{}{patientID}
	conds, args = scope.Apply("tenant_id", conds, args)
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE `+where+
			` ORDER BY record_date DESC, id DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
