package user

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/reflexo/clinic/internal/platform/auth"
)

const tokenTTL = 12 * time.Hour

// Service provides account management and login.
type Service struct {
	users     Repository
	jwtSecret []byte
}

func NewService(users Repository, jwtSecret []byte) *Service {
	return &Service{users: users, jwtSecret: jwtSecret}
}

func (s *Service) Register(ctx context.Context, u *User, password string) error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.users.Create(ctx, u)
}

// Login verifies credentials and returns a signed token plus the account.
// The generic error message does not reveal whether the account exists.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, fmt.Errorf("invalid credentials")
	}

	token, err := auth.IssueToken(s.jwtSecret, u.ID, u.TenantID, u.Superuser, u.Rol, tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// MintToken issues a token for an existing user without a credential check.
// Used by the development `token` CLI command only.
func (s *Service) MintToken(ctx context.Context, userID int64) (string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return auth.IssueToken(s.jwtSecret, u.ID, u.TenantID, u.Superuser, u.Rol, tokenTTL)
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}
