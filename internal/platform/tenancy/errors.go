package tenancy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrTenantRequired means a non-global principal attempted a write but no
	// tenant could be resolved for it. Writes never default to a guessable
	// tenant.
	ErrTenantRequired = errors.New("tenant required")

	// ErrSequenceConflict is a unique-constraint violation on
	// (tenant_id, local_id) or (tenant_id, ticket_number). It surfaces only
	// when the allocator's lock was bypassed and maps to a 409 response.
	ErrSequenceConflict = errors.New("sequence conflict")

	// ErrNotFound is returned by repositories when no row matches. A row
	// hidden by tenant scoping is indistinguishable from an absent one.
	ErrNotFound = errors.New("not found")
)

// ValidationError is a field-keyed validation failure intended to propagate
// as a 400-class response. The caller renders per-field feedback from Fields.
type ValidationError struct {
	Fields map[string]string
}

// NonFieldKey is used when a failure cannot be attributed to one field.
const NonFieldKey = "non_field_errors"

func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// IsValidation reports whether err is a field-keyed validation error and
// returns it when so.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
