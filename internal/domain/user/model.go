package user

import "time"

// User is an authenticated account. TenantID is the primary tenant
// assignment; Profile may carry one independently (legacy dual storage) and
// the tenancy resolver consults it as a fallback.
type User struct {
	ID           int64      `json:"id"`
	TenantID     *int64     `json:"tenant_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Superuser    bool       `json:"superuser"`
	Rol          string     `json:"rol"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func (u *User) TenantRef() *int64 { return u.TenantID }
