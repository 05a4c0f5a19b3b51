package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reflexo/clinic/internal/domain/history"
	"github.com/reflexo/clinic/internal/domain/patient"
	"github.com/reflexo/clinic/internal/domain/therapist"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// =========== Mocks ===========

type mockUserSource struct{}

func (mockUserSource) TenantIDByUserID(context.Context, int64) (*int64, error) { return nil, nil }
func (mockUserSource) ProfileTenantID(context.Context, int64) (*int64, error)  { return nil, nil }
func (mockUserSource) HasBypassPermission(context.Context, int64) (bool, error) {
	return false, nil
}

type nopTx struct{}

func (nopTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func visible(scope tenancy.Scope, tenantID *int64) bool {
	if scope.IsGlobal() {
		return true
	}
	tid := scope.TenantID()
	if tid == nil {
		return false
	}
	return tenantID != nil && *tenantID == *tid
}

type mockPatients struct {
	store map[int64]*patient.Patient
}

func (m *mockPatients) GetScoped(_ context.Context, scope tenancy.Scope, id int64) (*patient.Patient, error) {
	p, ok := m.store[id]
	if !ok || !visible(scope, p.TenantID) {
		return nil, tenancy.ErrNotFound
	}
	return p, nil
}

type mockTherapists struct {
	store map[int64]*therapist.Therapist
}

func (m *mockTherapists) GetScoped(_ context.Context, scope tenancy.Scope, id int64) (*therapist.Therapist, error) {
	th, ok := m.store[id]
	if !ok || !visible(scope, th.TenantID) {
		return nil, tenancy.ErrNotFound
	}
	return th, nil
}

type mockHistories struct {
	store  map[int64]*history.History
	nextID int64
}

func (m *mockHistories) GetScoped(_ context.Context, scope tenancy.Scope, id int64) (*history.History, error) {
	h, ok := m.store[id]
	if !ok || !visible(scope, h.TenantID) {
		return nil, tenancy.ErrNotFound
	}
	return h, nil
}

func (m *mockHistories) GetOrCreateForPatient(_ context.Context, scope tenancy.Scope, patientID int64, tenantID *int64) (*history.History, error) {
	for _, h := range m.store {
		if h.PatientID == patientID && visible(scope, h.TenantID) {
			return h, nil
		}
	}
	m.nextID++
	h := &history.History{ID: m.nextID, PatientID: patientID, TenantID: tenantID}
	m.store[h.ID] = h
	return h, nil
}

type mockAppointmentRepo struct {
	store  map[int64]*Appointment
	nextID int64
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.nextID++
	a.ID = m.nextID
	if a.TenantID != nil {
		var max int64
		for _, other := range m.store {
			if other.TenantID != nil && *other.TenantID == *a.TenantID &&
				other.LocalID != nil && *other.LocalID > max {
				max = *other.LocalID
			}
		}
		lid := max + 1
		a.LocalID = &lid
	}
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, scope tenancy.Scope, id int64) (*Appointment, error) {
	a, ok := m.store[id]
	if !ok || a.DeletedAt != nil || !visible(scope, a.TenantID) {
		return nil, tenancy.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, scope tenancy.Scope, a *Appointment) error {
	existing, ok := m.store[a.ID]
	if !ok || existing.DeletedAt != nil || !visible(scope, existing.TenantID) {
		return tenancy.ErrNotFound
	}
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) SoftDelete(_ context.Context, scope tenancy.Scope, id int64) error {
	a, ok := m.store[id]
	if !ok || a.DeletedAt != nil || !visible(scope, a.TenantID) {
		return tenancy.ErrNotFound
	}
	now := time.Now()
	a.DeletedAt = &now
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, scope tenancy.Scope, f ListFilter) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.store {
		if a.DeletedAt == nil && visible(scope, a.TenantID) {
			cp := *a
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

type mockTicketRepo struct {
	store  map[int64]*Ticket
	nextID int64
}

func (m *mockTicketRepo) Create(_ context.Context, t *Ticket) error {
	m.nextID++
	t.ID = m.nextID
	if t.TenantID != nil {
		seq := 0
		for _, other := range m.store {
			if other.TenantID != nil && *other.TenantID == *t.TenantID {
				if n, ok := tenancy.ParseTicketNumber(other.TicketNumber); ok && int(n) > seq {
					seq = int(n)
				}
			}
		}
		t.TicketNumber = tenancy.FormatTicketNumber(int64(seq + 1))
	}
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *mockTicketRepo) GetByID(_ context.Context, scope tenancy.Scope, id int64) (*Ticket, error) {
	t, ok := m.store[id]
	if !ok || !visible(scope, t.TenantID) {
		return nil, tenancy.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTicketRepo) SetStatus(_ context.Context, scope tenancy.Scope, id int64, status string, paidAt *time.Time) error {
	t, ok := m.store[id]
	if !ok || !visible(scope, t.TenantID) {
		return tenancy.ErrNotFound
	}
	t.Status = status
	t.PaidAt = paidAt
	return nil
}

func (m *mockTicketRepo) Delete(_ context.Context, scope tenancy.Scope, id int64) error {
	t, ok := m.store[id]
	if !ok || !visible(scope, t.TenantID) {
		return tenancy.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockTicketRepo) List(_ context.Context, scope tenancy.Scope, status string, limit, offset int) ([]*Ticket, int, error) {
	var items []*Ticket
	for _, t := range m.store {
		if visible(scope, t.TenantID) && (status == "" || t.Status == status) {
			cp := *t
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

// =========== Helpers ===========

func ptr(v int64) *int64 { return &v }

type fixture struct {
	svc        *Service
	patients   *mockPatients
	therapists *mockTherapists
	histories  *mockHistories
	appts      *mockAppointmentRepo
	tickets    *mockTicketRepo
}

func newFixture() *fixture {
	f := &fixture{
		patients:   &mockPatients{store: make(map[int64]*patient.Patient)},
		therapists: &mockTherapists{store: make(map[int64]*therapist.Therapist)},
		histories:  &mockHistories{store: make(map[int64]*history.History)},
		appts:      &mockAppointmentRepo{store: make(map[int64]*Appointment)},
		tickets:    &mockTicketRepo{store: make(map[int64]*Ticket)},
	}
	resolver := tenancy.NewResolver(mockUserSource{}, zerolog.Nop())
	f.svc = NewService(f.appts, f.tickets, f.patients, f.therapists, f.histories, resolver, nopTx{})
	return f
}

func (f *fixture) addPatient(id int64, tenantID *int64) {
	f.patients.store[id] = &patient.Patient{ID: id, TenantID: tenantID, DocumentNumber: "d", Name: "P"}
}

func (f *fixture) addTherapist(id int64, tenantID *int64) {
	f.therapists.store[id] = &therapist.Therapist{ID: id, TenantID: tenantID, Name: "T"}
}

func tenantCtx(tenantID int64) context.Context {
	p := tenancy.Principal{UserID: 1, Authenticated: true, TenantID: ptr(tenantID)}
	return tenancy.WithPrincipal(context.Background(), p)
}

func adminCtx() context.Context {
	p := tenancy.Principal{UserID: 99, Authenticated: true, Superuser: true}
	return tenancy.WithPrincipal(context.Background(), p)
}

func baseAppointment(patientID int64) *Appointment {
	return &Appointment{PatientID: patientID, AppointmentDate: time.Now()}
}

// =========== Tests ===========

func TestCreateAppointment_AssignsTenantAndLocalID(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))

	a, _, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: baseAppointment(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.TenantID == nil || *a.TenantID != 7 {
		t.Errorf("expected tenant 7, got %v", a.TenantID)
	}
	if a.LocalID == nil || *a.LocalID != 1 {
		t.Errorf("expected local_id 1, got %v", a.LocalID)
	}
}

func TestCreateAppointment_AutoCreatesHistory(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))

	a, _, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: baseAppointment(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.HistoryID == nil {
		t.Fatal("appointment should be linked to an auto-created history")
	}
	h := f.histories.store[*a.HistoryID]
	if h == nil || h.PatientID != 1 {
		t.Errorf("history should belong to patient 1, got %+v", h)
	}
	if h.TenantID == nil || *h.TenantID != 7 {
		t.Errorf("auto-created history should carry tenant 7, got %v", h.TenantID)
	}
}

func TestCreateAppointment_ReusesExistingHistory(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))
	f.histories.store[10] = &history.History{ID: 10, PatientID: 1, TenantID: ptr(7)}

	a, _, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: baseAppointment(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.HistoryID == nil || *a.HistoryID != 10 {
		t.Errorf("should reuse existing history 10, got %v", a.HistoryID)
	}
}

func TestCreateAppointment_CrossTenantPatientHidden(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(9))

	_, _, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: baseAppointment(1)})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["patient_id"] == "" {
		t.Errorf("cross-tenant patient should read as not found, got %v", err)
	}
}

func TestCreateAppointment_CrossTenantTherapistRejectedForAdmin(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))
	f.addTherapist(2, ptr(9))

	a := baseAppointment(1)
	a.TherapistID = ptr(2)
	_, _, err := f.svc.Create(adminCtx(), CreateInput{Appointment: a})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["therapist_id"] == "" {
		t.Errorf("expected therapist_id mismatch error, got %v", err)
	}
}

func TestCreateAppointment_AdminInfersTenantFromPatient(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(5))

	a, _, err := f.svc.Create(adminCtx(), CreateInput{Appointment: baseAppointment(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.TenantID == nil || *a.TenantID != 5 {
		t.Errorf("tenant should be inferred from the patient, got %v", a.TenantID)
	}
}

func TestCreateAppointment_HistoryOwnedByOtherPatient(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))
	f.addPatient(2, ptr(7))
	f.histories.store[10] = &history.History{ID: 10, PatientID: 2, TenantID: ptr(7)}

	a := baseAppointment(1)
	a.HistoryID = ptr(10)
	_, _, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: a})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["history_id"] == "" {
		t.Errorf("expected history_id ownership error, got %v", err)
	}
}

func TestCreateAppointment_WithPaymentIssuesTicket(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))

	a := baseAppointment(1)
	pay := 50.0
	a.Payment = &pay
	_, ticket, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: a, PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket == nil {
		t.Fatal("payment should issue a ticket")
	}
	if ticket.TicketNumber != "TKT-001" {
		t.Errorf("first ticket should be TKT-001, got %q", ticket.TicketNumber)
	}
	if ticket.PaymentMethod != "efectivo" {
		t.Errorf("cash should normalize to efectivo, got %q", ticket.PaymentMethod)
	}
	if ticket.Status != TicketPending {
		t.Errorf("new ticket should be pending, got %q", ticket.Status)
	}
}

func TestCreateAppointment_TicketNumbersPerTenant(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(1))
	f.addPatient(2, ptr(2))

	pay := 10.0
	a1 := baseAppointment(1)
	a1.Payment = &pay
	_, t1, err := f.svc.Create(tenantCtx(1), CreateInput{Appointment: a1, PaymentMethod: "yape"})
	if err != nil {
		t.Fatalf("tenant 1 create: %v", err)
	}

	a2 := baseAppointment(2)
	a2.Payment = &pay
	_, t2, err := f.svc.Create(tenantCtx(2), CreateInput{Appointment: a2, PaymentMethod: "yape"})
	if err != nil {
		t.Fatalf("tenant 2 create: %v", err)
	}

	if t1.TicketNumber != "TKT-001" || t2.TicketNumber != "TKT-001" {
		t.Errorf("each tenant starts its own sequence, got %q and %q", t1.TicketNumber, t2.TicketNumber)
	}
}

func TestCreateAppointment_PaymentMethodAliases(t *testing.T) {
	cases := map[string]string{
		"cash":     "efectivo",
		"card":     "tarjeta",
		"transfer": "transferencia",
		"check":    "cheque",
		"other":    "otro",
		"YAPE":     "yape",
		"cheque":   "cheque",
	}
	for in, want := range cases {
		f := newFixture()
		f.addPatient(1, ptr(7))

		a := baseAppointment(1)
		pay := 10.0
		a.Payment = &pay
		_, ticket, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: a, PaymentMethod: in})
		if err != nil {
			t.Errorf("method %q: unexpected error: %v", in, err)
			continue
		}
		if ticket.PaymentMethod != want {
			t.Errorf("method %q: expected %q, got %q", in, want, ticket.PaymentMethod)
		}
	}
}

func TestCreateAppointment_UnknownPaymentMethodRejected(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))

	a := baseAppointment(1)
	pay := 10.0
	a.Payment = &pay
	_, _, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: a, PaymentMethod: "bitcoin"})
	ve, ok := tenancy.IsValidation(err)
	if !ok || ve.Fields["payment_method"] == "" {
		t.Errorf("expected payment_method error, got %v", err)
	}
}

func TestMarkTicketPaid_SetsPaidAt(t *testing.T) {
	f := newFixture()
	f.tickets.store[1] = &Ticket{ID: 1, TenantID: ptr(7), Status: TicketPending, Amount: 10}

	if err := f.svc.MarkTicketPaid(tenantCtx(7), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := f.tickets.store[1]
	if got.Status != TicketPaid || got.PaidAt == nil {
		t.Errorf("expected paid with timestamp, got status %q paid_at %v", got.Status, got.PaidAt)
	}
}

func TestMarkTicketPaid_CancelledRejected(t *testing.T) {
	f := newFixture()
	f.tickets.store[1] = &Ticket{ID: 1, TenantID: ptr(7), Status: TicketCancelled, Amount: 10}

	if err := f.svc.MarkTicketPaid(tenantCtx(7), 1); err == nil {
		t.Fatal("cancelled ticket must not be payable")
	}
}

func TestTicket_CrossTenantHidden(t *testing.T) {
	f := newFixture()
	f.tickets.store[1] = &Ticket{ID: 1, TenantID: ptr(1), Status: TicketPending, Amount: 10}

	if _, err := f.svc.GetTicket(tenantCtx(2), 1); err == nil {
		t.Fatal("tenant 2 must not see tenant 1's ticket")
	}
	if err := f.svc.MarkTicketPaid(tenantCtx(2), 1); err == nil {
		t.Fatal("tenant 2 must not pay tenant 1's ticket")
	}
}

func TestUpdateAppointment_TenantPinned(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))
	a, _, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: baseAppointment(1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	upd := *a
	upd.TenantID = ptr(9)
	if err := f.svc.Update(tenantCtx(7), &upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := f.svc.Get(tenantCtx(7), a.ID)
	if got.TenantID == nil || *got.TenantID != 7 {
		t.Errorf("update must not move the row between tenants, got %v", got.TenantID)
	}
}

func TestListAppointments_FailsClosedWithoutTenant(t *testing.T) {
	f := newFixture()
	f.addPatient(1, ptr(7))
	if _, _, err := f.svc.Create(tenantCtx(7), CreateInput{Appointment: baseAppointment(1)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx := tenancy.WithPrincipal(context.Background(),
		tenancy.Principal{UserID: 5, Authenticated: true})
	items, total, err := f.svc.List(ctx, ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("tenantless principal must see nothing, got %d", total)
	}
}
