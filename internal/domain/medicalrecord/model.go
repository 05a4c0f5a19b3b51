package medicalrecord

import (
	"time"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// MedicalRecord ties a tenant's patient to a globally shared diagnosis code.
// The diagnosis side carries no tenant, so only the patient reference
// participates in tenant agreement.
type MedicalRecord struct {
	ID          int64      `json:"id"`
	TenantID    *int64     `json:"tenant_id"`
	LocalID     *int64     `json:"local_id"`
	PatientID   int64      `json:"patient_id"`
	DiagnosisID int64      `json:"diagnosis_id"`
	RecordDate  time.Time  `json:"record_date"`
	Notes       *string    `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (m *MedicalRecord) TenantRef() *int64 { return m.TenantID }

const DeletePolicy = tenancy.SoftDeleteOnly
