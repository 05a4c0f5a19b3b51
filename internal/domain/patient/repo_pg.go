package patient

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

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, tenant_id, local_id, document_type_id, document_number,
	name, paternal_lastname, maternal_lastname, email, phone, address,
	birth_date, sex, created_at, updated_at, deleted_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.TenantID, &p.LocalID, &p.DocumentTypeID, &p.DocumentNumber,
		&p.Name, &p.PaternalLastname, &p.MaternalLastname, &p.Email, &p.Phone, &p.Address,
		&p.BirthDate, &p.Sex, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	q := r.conn(ctx)
	if p.TenantID != nil {
		lid, err := tenancy.NextLocalID(ctx, q, "patients", *p.TenantID)
		if err != nil {
			return err
		}
		p.LocalID = &lid
	}
	err := q.QueryRow(ctx, `
		INSERT INTO patients (tenant_id, local_id, document_type_id, document_number,
			name, paternal_lastname, maternal_lastname, email, phone, address,
			birth_date, sex)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at`,
		p.TenantID, p.LocalID, p.DocumentTypeID, p.DocumentNumber,
		p.Name, p.PaternalLastname, p.MaternalLastname, p.Email, p.Phone, p.Address,
		p.BirthDate, p.Sex).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == "patients_tenant_local_id_idx" {
		return tenancy.ErrSequenceConflict
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*Patient, error) {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE `+strings.Join(conds, " AND "), args...))
}

func (r *patientRepoPG) GetByDocument(ctx context.Context, documentNumber string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE document_number = $1`, documentNumber))
}

func (r *patientRepoPG) Update(ctx context.Context, scope tenancy.Scope, p *Patient) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{p.ID}
	conds, args = scope.Apply("tenant_id", conds, args)

	set := `document_type_id = $` + itoa(len(args)+1) + `, document_number = $` + itoa(len(args)+2) +
		`, name = $` + itoa(len(args)+3) + `, paternal_lastname = $` + itoa(len(args)+4) +
		`, maternal_lastname = $` + itoa(len(args)+5) + `, email = $` + itoa(len(args)+6) +
		`, phone = $` + itoa(len(args)+7) + `, address = $` + itoa(len(args)+8) +
		`, birth_date = $` + itoa(len(args)+9) + `, sex = $` + itoa(len(args)+10) +
		`, updated_at = NOW()`
	args = append(args, p.DocumentTypeID, p.DocumentNumber, p.Name, p.PaternalLastname,
		p.MaternalLastname, p.Email, p.Phone, p.Address, p.BirthDate, p.Sex)

	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET `+set+` WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET deleted_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) Restore(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NOT NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET deleted_at = NULL, updated_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, scope tenancy.Scope, search string, limit, offset int) ([]*Patient, int, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []interface{}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := itoa(len(args))
		conds = append(conds,
			`(name ILIKE $`+n+` OR paternal_lastname ILIKE $`+n+
				` OR maternal_lastname ILIKE $`+n+` OR document_number ILIKE $`+n+`)`)
	}
	conds, args = scope.Apply("tenant_id", conds, args)
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients WHERE `+where+
			` ORDER BY created_at DESC LIMIT $`+itoa(len(args)-1)+` OFFSET $`+itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func itoa(n int) string { return strconv.Itoa(n) }
