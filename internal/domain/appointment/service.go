package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/reflexo/clinic/internal/domain/history"
	"github.com/reflexo/clinic/internal/domain/patient"
	"github.com/reflexo/clinic/internal/domain/therapist"
	"github.com/reflexo/clinic/internal/platform/db"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// PatientSource resolves the patient an appointment points at, under the
// caller's scope so cross-tenant ids read as not found.
type PatientSource interface {
	GetScoped(ctx context.Context, scope tenancy.Scope, id int64) (*patient.Patient, error)
}

type TherapistSource interface {
	GetScoped(ctx context.Context, scope tenancy.Scope, id int64) (*therapist.Therapist, error)
}

// HistoryProvider returns (or lazily creates) the patient's history sheet
// inside the appointment's transaction.
type HistoryProvider interface {
	GetScoped(ctx context.Context, scope tenancy.Scope, id int64) (*history.History, error)
	GetOrCreateForPatient(ctx context.Context, scope tenancy.Scope, patientID int64, tenantID *int64) (*history.History, error)
}

// Payment method aliases accepted on input, normalized before storage.
var paymentMethodAliases = map[string]string{
	"cash":     "efectivo",
	"card":     "tarjeta",
	"transfer": "transferencia",
	"check":    "cheque",
	"other":    "otro",
}

var validPaymentMethods = map[string]bool{
	"efectivo":      true,
	"tarjeta":       true,
	"transferencia": true,
	"cheque":        true,
	"yape":          true,
	"plin":          true,
	"otro":          true,
}

func normalizePaymentMethod(m string) (string, bool) {
	m = strings.ToLower(strings.TrimSpace(m))
	if canonical, ok := paymentMethodAliases[m]; ok {
		return canonical, true
	}
	if validPaymentMethods[m] {
		return m, true
	}
	return "", false
}

type Service struct {
	appointments Repository
	tickets      TicketRepository
	patients     PatientSource
	therapists   TherapistSource
	histories    HistoryProvider
	resolver     *tenancy.Resolver
	tx           db.Transactor
}

func NewService(appointments Repository, tickets TicketRepository, patients PatientSource,
	therapists TherapistSource, histories HistoryProvider, resolver *tenancy.Resolver,
	tx db.Transactor) *Service {
	return &Service{
		appointments: appointments,
		tickets:      tickets,
		patients:     patients,
		therapists:   therapists,
		histories:    histories,
		resolver:     resolver,
		tx:           tx,
	}
}

// CreateInput carries the optional immediate payment a caller can attach to a
// new appointment; when present a ticket is issued in the same transaction.
type CreateInput struct {
	Appointment   *Appointment
	PaymentMethod string
	Description   *string
}

// Create validates tenant agreement across the referenced patient, therapist
// and history, pins or infers the tenant, allocates the local id, and issues
// a ticket when the appointment carries a payment. Everything commits in one
// transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, *Ticket, error) {
	a := in.Appointment
	if a.PatientID == 0 {
		return nil, nil, tenancy.NewFieldError("patient_id", "is required")
	}
	if a.AppointmentDate.IsZero() {
		return nil, nil, tenancy.NewFieldError("appointment_date", "is required")
	}

	method := ""
	if a.Payment != nil {
		if *a.Payment <= 0 {
			return nil, nil, tenancy.NewFieldError("payment", "must be greater than zero")
		}
		m, ok := normalizePaymentMethod(in.PaymentMethod)
		if !ok {
			return nil, nil, tenancy.NewFieldError("payment_method", "is not a recognized method")
		}
		method = m
	}

	principal := tenancy.PrincipalFromContext(ctx)
	tid, err := s.resolver.AssignTenantOnWrite(ctx, principal, a.TenantID)
	if err != nil {
		return nil, nil, err
	}
	a.TenantID = tid

	scope := s.resolver.ScopeForRead(ctx, principal)

	p, err := s.patients.GetScoped(ctx, scope, a.PatientID)
	if err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			return nil, nil, tenancy.NewFieldError("patient_id", "not found")
		}
		return nil, nil, err
	}

	refs := []tenancy.Ref{{Field: "patient_id", Entity: p}}

	var th *therapist.Therapist
	if a.TherapistID != nil {
		th, err = s.therapists.GetScoped(ctx, scope, *a.TherapistID)
		if err != nil {
			if errors.Is(err, tenancy.ErrNotFound) {
				return nil, nil, tenancy.NewFieldError("therapist_id", "not found")
			}
			return nil, nil, err
		}
		refs = append(refs, tenancy.Ref{Field: "therapist_id", Entity: th})
	}

	var hist *history.History
	if a.HistoryID != nil {
		hist, err = s.histories.GetScoped(ctx, scope, *a.HistoryID)
		if err != nil {
			if errors.Is(err, tenancy.ErrNotFound) {
				return nil, nil, tenancy.NewFieldError("history_id", "not found")
			}
			return nil, nil, err
		}
		if err := tenancy.SameOwner("history_id", hist.PatientID, a.PatientID); err != nil {
			return nil, nil, err
		}
		refs = append(refs, tenancy.Ref{Field: "history_id", Entity: hist})
	}

	effective, err := tenancy.CheckConsistency(a.TenantID, refs...)
	if err != nil {
		return nil, nil, err
	}
	a.TenantID = effective

	var ticket *Ticket
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if a.HistoryID == nil {
			h, err := s.histories.GetOrCreateForPatient(ctx, scope, a.PatientID, a.TenantID)
			if err != nil {
				return err
			}
			a.HistoryID = &h.ID
		}
		if err := s.appointments.Create(ctx, a); err != nil {
			return err
		}
		if a.Payment != nil {
			ticket = &Ticket{
				TenantID:      a.TenantID,
				AppointmentID: a.ID,
				Amount:        *a.Payment,
				PaymentMethod: method,
				Description:   in.Description,
				Status:        TicketPending,
			}
			return s.tickets.Create(ctx, ticket)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return a, ticket, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.appointments.GetByID(ctx, scope, id)
}

func (s *Service) Update(ctx context.Context, a *Appointment) error {
	principal := tenancy.PrincipalFromContext(ctx)
	scope := s.resolver.ScopeForRead(ctx, principal)

	current, err := s.appointments.GetByID(ctx, scope, a.ID)
	if err != nil {
		return err
	}
	// Tenant, patient and sequence identity never change through update.
	a.TenantID = current.TenantID
	a.PatientID = current.PatientID
	a.LocalID = current.LocalID

	if a.TherapistID != nil {
		th, err := s.therapists.GetScoped(ctx, scope, *a.TherapistID)
		if err != nil {
			if errors.Is(err, tenancy.ErrNotFound) {
				return tenancy.NewFieldError("therapist_id", "not found")
			}
			return err
		}
		if _, err := tenancy.CheckConsistency(a.TenantID,
			tenancy.Ref{Field: "therapist_id", Entity: th}); err != nil {
			return err
		}
	}
	return s.appointments.Update(ctx, scope, a)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.appointments.SoftDelete(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.appointments.List(ctx, scope, f)
}

// =========== Tickets ===========

func (s *Service) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.tickets.GetByID(ctx, scope, id)
}

func (s *Service) ListTickets(ctx context.Context, status string, limit, offset int) ([]*Ticket, int, error) {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.tickets.List(ctx, scope, status, limit, offset)
}

func (s *Service) MarkTicketPaid(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	t, err := s.tickets.GetByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if t.Status == TicketCancelled {
		return tenancy.NewFieldError("status", "cancelled tickets cannot be paid")
	}
	now := time.Now()
	return s.tickets.SetStatus(ctx, scope, id, TicketPaid, &now)
}

func (s *Service) MarkTicketCancelled(ctx context.Context, id int64) error {
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	if _, err := s.tickets.GetByID(ctx, scope, id); err != nil {
		return err
	}
	return s.tickets.SetStatus(ctx, scope, id, TicketCancelled, nil)
}

// DeleteTicket removes the row outright. Ticket numbers are never reissued,
// so a deleted number leaves a gap in the tenant's sequence.
func (s *Service) DeleteTicket(ctx context.Context, id int64) error {
	if !TicketDeletePolicy.AllowsHard() {
		return tenancy.ErrNotFound
	}
	scope := s.resolver.ScopeForRead(ctx, tenancy.PrincipalFromContext(ctx))
	return s.tickets.Delete(ctx, scope, id)
}
