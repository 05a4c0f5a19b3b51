package tenancy

import "fmt"

// Ref names a related entity participating in a cross-entity tenant check.
// Field is the payload field the relation arrived through, so a mismatch can
// be attributed to it in the validation error.
type Ref struct {
	Field  string
	Entity TenantScoped
}

// CheckConsistency verifies that every related entity with a tenant agrees,
// and returns the entity's effective tenant id.
//
// When own is nil and the relations agree on exactly one tenant, that tenant
// is returned: inference is allowed only on the null-to-value transition,
// never to silently move a row between tenants. A disagreement is a caller
// data error, keyed by the first field whose tenant departs from the
// baseline.
func CheckConsistency(own *int64, refs ...Ref) (*int64, error) {
	var baseline *int64
	if own != nil {
		v := *own
		baseline = &v
	}

	for _, ref := range refs {
		if ref.Entity == nil {
			continue
		}
		tid := ref.Entity.TenantRef()
		if tid == nil {
			continue
		}
		if baseline == nil {
			v := *tid
			baseline = &v
			continue
		}
		if *tid != *baseline {
			// The earlier relation (or the entity itself) set the baseline,
			// so the later relation is the one flagged.
			return nil, NewFieldError(ref.Field,
				fmt.Sprintf("belongs to a different tenant (%d, expected %d)", *tid, *baseline))
		}
	}

	if own != nil {
		return own, nil
	}
	return baseline, nil
}

// SameOwner checks a structural relation independent of tenant: a sub-entity
// (e.g. a medical history) must belong to the same owner (e.g. patient) the
// payload declares elsewhere.
func SameOwner(field string, got, want int64) error {
	if got != want {
		return NewFieldError(field,
			fmt.Sprintf("does not belong to the referenced parent (owner %d, expected %d)", got, want))
	}
	return nil
}
