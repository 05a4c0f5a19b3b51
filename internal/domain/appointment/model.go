package appointment

import (
	"time"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Appointment is a tenant-scoped visit. It references the patient's history
// sheet and optionally a therapist; all references must agree on tenant
// before the row commits.
type Appointment struct {
	ID                  int64      `json:"id"`
	TenantID            *int64     `json:"tenant_id"`
	LocalID             *int64     `json:"local_id"`
	PatientID           int64      `json:"patient_id"`
	HistoryID           *int64     `json:"history_id"`
	TherapistID         *int64     `json:"therapist_id"`
	AppointmentDate     time.Time  `json:"appointment_date"`
	Hour                *string    `json:"hour"`
	Diagnosis           *string    `json:"diagnosis"`
	Observation         *string    `json:"observation"`
	Payment             *float64   `json:"payment"`
	PaymentTypeID       *int64     `json:"payment_type_id"`
	AppointmentStatusID *int64     `json:"appointment_status_id"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
}

func (a *Appointment) TenantRef() *int64 { return a.TenantID }

const DeletePolicy = tenancy.SoftDeleteOnly

// Ticket statuses.
const (
	TicketPending   = "pending"
	TicketPaid      = "paid"
	TicketCancelled = "cancelled"
)

// Ticket is the payment receipt attached to an appointment. Numbers are
// per-tenant TKT-NNN sequences; rows are hard-deleted by policy.
type Ticket struct {
	ID            int64      `json:"id"`
	TenantID      *int64     `json:"tenant_id"`
	AppointmentID int64      `json:"appointment_id"`
	TicketNumber  string     `json:"ticket_number"`
	Amount        float64    `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	Description   *string    `json:"description"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (t *Ticket) TenantRef() *int64 { return t.TenantID }

const TicketDeletePolicy = tenancy.HardDeleteOnly
