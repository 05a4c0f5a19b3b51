package appointment

import (
	"context"
	"strconv"
	"strings"
	"time"

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

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const appointmentCols = `id, tenant_id, local_id, patient_id, history_id, therapist_id,
	appointment_date, hour, diagnosis, observation, payment, payment_type_id,
	appointment_status_id, created_at, updated_at, deleted_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.TenantID, &a.LocalID, &a.PatientID, &a.HistoryID, &a.TherapistID,
		&a.AppointmentDate, &a.Hour, &a.Diagnosis, &a.Observation, &a.Payment, &a.PaymentTypeID,
		&a.AppointmentStatusID, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	q := r.conn(ctx)
	if a.TenantID != nil {
		lid, err := tenancy.NextLocalID(ctx, q, "appointments", *a.TenantID)
		if err != nil {
			return err
		}
		a.LocalID = &lid
	}
	err := q.QueryRow(ctx, `
		INSERT INTO appointments (tenant_id, local_id, patient_id, history_id, therapist_id,
			appointment_date, hour, diagnosis, observation, payment, payment_type_id,
			appointment_status_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at`,
		a.TenantID, a.LocalID, a.PatientID, a.HistoryID, a.TherapistID,
		a.AppointmentDate, a.Hour, a.Diagnosis, a.Observation, a.Payment, a.PaymentTypeID,
		a.AppointmentStatusID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == "appointments_tenant_local_id_idx" {
		return tenancy.ErrSequenceConflict
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*Appointment, error) {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE `+strings.Join(conds, " AND "), args...))
}

func (r *appointmentRepoPG) Update(ctx context.Context, scope tenancy.Scope, a *Appointment) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{a.ID}
	conds, args = scope.Apply("tenant_id", conds, args)

	base := len(args)
	args = append(args, a.TherapistID, a.AppointmentDate, a.Hour, a.Diagnosis,
		a.Observation, a.Payment, a.PaymentTypeID, a.AppointmentStatusID)
	set := `therapist_id = $` + strconv.Itoa(base+1) +
		`, appointment_date = $` + strconv.Itoa(base+2) +
		`, hour = $` + strconv.Itoa(base+3) +
		`, diagnosis = $` + strconv.Itoa(base+4) +
		`, observation = $` + strconv.Itoa(base+5) +
		`, payment = $` + strconv.Itoa(base+6) +
		`, payment_type_id = $` + strconv.Itoa(base+7) +
		`, appointment_status_id = $` + strconv.Itoa(base+8) +
		`, updated_at = NOW()`

	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET `+set+` WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET deleted_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, scope tenancy.Scope, f ListFilter) ([]*Appointment, int, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []interface{}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, "patient_id = $"+strconv.Itoa(len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, "appointment_date >= $"+strconv.Itoa(len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, "appointment_date <= $"+strconv.Itoa(len(args)))
	}
	conds, args = scope.Apply("tenant_id", conds, args)
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE `+where+
			` ORDER BY appointment_date DESC, id DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// =========== Ticket Repository ===========

type ticketRepoPG struct{ pool *pgxpool.Pool }

func NewTicketRepoPG(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepoPG{pool: pool}
}

func (r *ticketRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ticketCols = `id, tenant_id, appointment_id, ticket_number, amount,
	payment_method, description, status, paid_at, created_at, updated_at`

func scanTicket(row pgx.Row) (*Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.TenantID, &t.AppointmentID, &t.TicketNumber, &t.Amount,
		&t.PaymentMethod, &t.Description, &t.Status, &t.PaidAt, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	return &t, err
}

func (r *ticketRepoPG) Create(ctx context.Context, t *Ticket) error {
	q := r.conn(ctx)
	if t.TenantID != nil {
		num, err := tenancy.NextTicketNumber(ctx, q, *t.TenantID)
		if err != nil {
			return err
		}
		t.TicketNumber = num
	}
	err := q.QueryRow(ctx, `
		INSERT INTO tickets (tenant_id, appointment_id, ticket_number, amount,
			payment_method, description, status, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at`,
		t.TenantID, t.AppointmentID, t.TicketNumber, t.Amount,
		t.PaymentMethod, t.Description, t.Status, t.PaidAt).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == "tickets_tenant_number_idx" {
		return tenancy.ErrSequenceConflict
	}
	return err
}

func (r *ticketRepoPG) GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*Ticket, error) {
	conds := []string{"id = $1"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	return scanTicket(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ticketCols+` FROM tickets WHERE `+strings.Join(conds, " AND "), args...))
}

func (r *ticketRepoPG) SetStatus(ctx context.Context, scope tenancy.Scope, id int64, status string, paidAt *time.Time) error {
	conds := []string{"id = $1"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)

	base := len(args)
	args = append(args, status, paidAt)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE tickets SET status = $`+strconv.Itoa(base+1)+
			`, paid_at = $`+strconv.Itoa(base+2)+
			`, updated_at = NOW() WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *ticketRepoPG) Delete(ctx context.Context, scope tenancy.Scope, id int64) error {
	conds := []string{"id = $1"}
	args := []interface{}{id}
	conds, args = scope.Apply("tenant_id", conds, args)
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM tickets WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

func (r *ticketRepoPG) List(ctx context.Context, scope tenancy.Scope, status string, limit, offset int) ([]*Ticket, int, error) {
	var conds []string
	var args []interface{}
	if status != "" {
		args = append(args, status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	conds, args = scope.Apply("tenant_id", conds, args)
	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+ticketCols+` FROM tickets WHERE `+where+
			` ORDER BY created_at DESC, id DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}
