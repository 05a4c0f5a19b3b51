package tenancy

import "testing"

type scopedStub struct{ tenant *int64 }

func (s scopedStub) TenantRef() *int64 { return s.tenant }

func TestCheckConsistency_AllAgree(t *testing.T) {
	got, err := CheckConsistency(ptr(3),
		Ref{Field: "patient_id", Entity: scopedStub{ptr(3)}},
		Ref{Field: "therapist_id", Entity: scopedStub{ptr(3)}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != 3 {
		t.Errorf("expected tenant 3, got %v", got)
	}
}

func TestCheckConsistency_MismatchNamesField(t *testing.T) {
	_, err := CheckConsistency(nil,
		Ref{Field: "patient_id", Entity: scopedStub{ptr(1)}},
		Ref{Field: "therapist_id", Entity: scopedStub{ptr(2)}},
	)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	ve, ok := IsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if _, ok := ve.Fields["therapist_id"]; !ok {
		t.Errorf("mismatch should be keyed by therapist_id, got %v", ve.Fields)
	}
}

func TestCheckConsistency_OwnTenantBeatsRelations(t *testing.T) {
	_, err := CheckConsistency(ptr(1),
		Ref{Field: "patient_id", Entity: scopedStub{ptr(2)}},
	)
	if err == nil {
		t.Fatal("relation disagreeing with the entity's own tenant must fail")
	}
}

func TestCheckConsistency_InferenceOnNullOnly(t *testing.T) {
	got, err := CheckConsistency(nil,
		Ref{Field: "patient_id", Entity: scopedStub{ptr(5)}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != 5 {
		t.Errorf("expected inferred tenant 5, got %v", got)
	}
}

func TestCheckConsistency_NullRelationsIgnored(t *testing.T) {
	got, err := CheckConsistency(nil,
		Ref{Field: "patient_id", Entity: scopedStub{nil}},
		Ref{Field: "therapist_id", Entity: nil},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no inferred tenant, got %d", *got)
	}
}

func TestSameOwner(t *testing.T) {
	if err := SameOwner("history_id", 10, 10); err != nil {
		t.Errorf("matching owner should pass: %v", err)
	}
	err := SameOwner("history_id", 10, 11)
	if err == nil {
		t.Fatal("expected owner mismatch error")
	}
	ve, ok := IsValidation(err)
	if !ok || ve.Fields["history_id"] == "" {
		t.Errorf("expected field-keyed error, got %v", err)
	}
}
