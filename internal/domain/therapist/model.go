package therapist

import (
	"time"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Therapist is a tenant-scoped staff record.
type Therapist struct {
	ID               int64      `json:"id"`
	TenantID         *int64     `json:"tenant_id"`
	LocalID          *int64     `json:"local_id"`
	DocumentNumber   string     `json:"document_number"`
	Name             string     `json:"name"`
	PaternalLastname string     `json:"paternal_lastname"`
	MaternalLastname string     `json:"maternal_lastname"`
	Email            *string    `json:"email"`
	Phone            *string    `json:"phone"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

func (t *Therapist) TenantRef() *int64 { return t.TenantID }

// DeletePolicy: admin tooling may purge a therapist outright, so the caller
// picks soft or hard per request.
const DeletePolicy = tenancy.CallerChoice
