package user

import "context"

// Repository persists users and their legacy profiles. It also serves as the
// tenancy resolver's UserSource: TenantIDByUserID, ProfileTenantID and
// HasBypassPermission are the resolver's fallback chain.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)

	TenantIDByUserID(ctx context.Context, userID int64) (*int64, error)
	ProfileTenantID(ctx context.Context, userID int64) (*int64, error)
	HasBypassPermission(ctx context.Context, userID int64) (bool, error)
	GrantBypassPermission(ctx context.Context, userID int64) error
}
