package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository provides read access to user accounts
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	ListAdmins(ctx context.Context) ([]*User, error)
	Save(ctx context.Context, user *User) error
	Create(ctx context.Context, user *User) error
}

// RoleRepository answers role-membership questions. Callers must not cache
// results across authorisation decisions.
type RoleRepository interface {
	// RolesForUser returns the roles currently held by the user
	RolesForUser(ctx context.Context, userID uuid.UUID) (RoleSet, error)
	// HoldersOfRole returns the IDs of all users currently holding the role
	HoldersOfRole(ctx context.Context, role OperationalRole) ([]uuid.UUID, error)
	// Grant adds a role binding, ignoring duplicates
	Grant(ctx context.Context, userID uuid.UUID, role OperationalRole) error
	// Revoke removes a role binding
	Revoke(ctx context.Context, userID uuid.UUID, role OperationalRole) error
}
