package tenancy

// DeletePolicy fixes how an entity type may be deleted. It replaces the ad
// hoc per-endpoint flags of older revisions with one explicit declaration per
// entity.
type DeletePolicy int

const (
	// SoftDeleteOnly marks rows deleted via a timestamp; they stay in
	// storage and keep their local id.
	SoftDeleteOnly DeletePolicy = iota
	// HardDeleteOnly removes the row outright.
	HardDeleteOnly
	// CallerChoice soft-deletes by default and hard-deletes on request.
	CallerChoice
)

// AllowsHard reports whether a hard delete is permitted.
func (p DeletePolicy) AllowsHard() bool { return p != SoftDeleteOnly }

// AllowsSoft reports whether a soft delete is permitted.
func (p DeletePolicy) AllowsSoft() bool { return p != HardDeleteOnly }
