package medicalrecord

import (
	"context"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

type Repository interface {
	Create(ctx context.Context, m *MedicalRecord) error
	GetByID(ctx context.Context, scope tenancy.Scope, id int64) (*MedicalRecord, error)
	Update(ctx context.Context, scope tenancy.Scope, m *MedicalRecord) error
	SoftDelete(ctx context.Context, scope tenancy.Scope, id int64) error
	Restore(ctx context.Context, scope tenancy.Scope, id int64) error
	ListByPatient(ctx context.Context, scope tenancy.Scope, patientID int64, limit, offset int) ([]*MedicalRecord, int, error)
}
