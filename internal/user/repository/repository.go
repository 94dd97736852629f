package repository

import (
	"context"
	"errors"

	"openmarket/backend/internal/user/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already taken.
// Detection happens at the database level (unique index), so concurrent
// registrations for the same address cannot both succeed.
var ErrDuplicateEmail = errors.New("email already taken")

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// UpdateRole sets the user's role. Already-issued access tokens keep their
	// old role claim; the new role takes effect on the next issuance.
	UpdateRole(ctx context.Context, userID string, role domain.Role) error
}
