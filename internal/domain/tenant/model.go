package tenant

import "time"

// Tenant is an organizational unit (a clinic). All tenant-scoped data hangs
// off its id. Tenants are managed only by global-scope principals.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
