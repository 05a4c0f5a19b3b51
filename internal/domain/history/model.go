package history

import (
	"time"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// History is a patient's medical history sheet. Each patient has at most one
// active history; appointments reference it and create it on demand.
type History struct {
	ID                 int64      `json:"id"`
	TenantID           *int64     `json:"tenant_id"`
	LocalID            *int64     `json:"local_id"`
	PatientID          int64      `json:"patient_id"`
	Observation        *string    `json:"observation"`
	PrivateObservation *string    `json:"private_observation"`
	Height             *float64   `json:"height"`
	Weight             *float64   `json:"weight"`
	LastWeight         *float64   `json:"last_weight"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

func (h *History) TenantRef() *int64 { return h.TenantID }

const DeletePolicy = tenancy.SoftDeleteOnly
