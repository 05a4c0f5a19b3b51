package catalog

import (
	"time"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// RefItem is a row in one of the global reference tables (document types,
// payment types, payment statuses, appointment statuses). Reference rows have
// no tenant: every tenant reads the same catalog, and only global principals
// may write it.
type RefItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reference table names.
const (
	TableDocumentTypes       = "document_types"
	TablePaymentTypes        = "payment_types"
	TablePaymentStatuses     = "payment_statuses"
	TableAppointmentStatuses = "appointment_statuses"
)

// Diagnosis is a globally shared code, unique by code across the system.
type Diagnosis struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PredeterminedPrice is a price list entry. Rows with a tenant belong to that
// tenant; rows with a null tenant are shared defaults visible to everyone.
type PredeterminedPrice struct {
	ID        int64      `json:"id"`
	TenantID  *int64     `json:"tenant_id"`
	LocalID   *int64     `json:"local_id"`
	Name      string     `json:"name"`
	Price     float64    `json:"price"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (p *PredeterminedPrice) TenantRef() *int64 { return p.TenantID }

const PriceDeletePolicy = tenancy.SoftDeleteOnly
