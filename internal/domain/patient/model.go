package patient

import (
	"time"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Patient is a tenant-scoped clinical record. LocalID is the gap-free
// per-tenant sequence number; ID is the global primary key used by all
// foreign keys.
type Patient struct {
	ID               int64      `json:"id"`
	TenantID         *int64     `json:"tenant_id"`
	LocalID          *int64     `json:"local_id"`
	DocumentTypeID   *int64     `json:"document_type_id"`
	DocumentNumber   string     `json:"document_number"`
	Name             string     `json:"name"`
	PaternalLastname string     `json:"paternal_lastname"`
	MaternalLastname string     `json:"maternal_lastname"`
	Email            *string    `json:"email"`
	Phone            *string    `json:"phone"`
	Address          *string    `json:"address"`
	BirthDate        *time.Time `json:"birth_date"`
	Sex              string     `json:"sex"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

func (p *Patient) TenantRef() *int64 { return p.TenantID }

// DeletePolicy is fixed: patient rows are only ever soft-deleted so their
// local ids stay occupied.
const DeletePolicy = tenancy.SoftDeleteOnly
