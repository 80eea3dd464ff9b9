package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/shared"
)

// GormUserRepository implements identity.UserRepository using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID retrieves a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	var user identity.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// FindByUsername retrieves a user by username
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	var user identity.User
	err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// FindByIDs retrieves the users matching the given IDs. Missing IDs are
// silently absent from the result.
func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*identity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*identity.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ListAdmins returns all active system administrators
func (r *GormUserRepository) ListAdmins(ctx context.Context) ([]*identity.User, error) {
	var users []*identity.User
	err := r.db.WithContext(ctx).
		Where("is_system_admin = ? AND active = ?", true, true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Save persists the full user row
func (r *GormUserRepository) Save(ctx context.Context, user *identity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// Create inserts a new user
func (r *GormUserRepository) Create(ctx context.Context, user *identity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

var _ identity.UserRepository = (*GormUserRepository)(nil)

// GormRoleRepository implements identity.RoleRepository using GORM. Every
// method hits the database so grants and revocations take effect on the next
// authorisation decision.
type GormRoleRepository struct {
	db *gorm.DB
}

// NewGormRoleRepository creates a new role repository
func NewGormRoleRepository(db *gorm.DB) *GormRoleRepository {
	return &GormRoleRepository{db: db}
}

// RolesForUser returns the roles currently held by the user
func (r *GormRoleRepository) RolesForUser(ctx context.Context, userID uuid.UUID) (identity.RoleSet, error) {
	var roles []identity.OperationalRole
	err := r.db.WithContext(ctx).Model(&identity.RoleBinding{}).
		Where("user_id = ?", userID).
		Pluck("role", &roles).Error
	if err != nil {
		return nil, err
	}
	return identity.RoleSet(roles), nil
}

// HoldersOfRole returns the IDs of all users currently holding the role
func (r *GormRoleRepository) HoldersOfRole(ctx context.Context, role identity.OperationalRole) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&identity.RoleBinding{}).
		Where("role = ?", role).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Grant adds a role binding, ignoring duplicates
func (r *GormRoleRepository) Grant(ctx context.Context, userID uuid.UUID, role identity.OperationalRole) error {
	binding := &identity.RoleBinding{
		BaseEntity: shared.NewBaseEntity(),
		UserID:     userID,
		Role:       role,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "role"}},
			DoNothing: true,
		}).
		Create(binding).Error
}

// Revoke removes a role binding
func (r *GormRoleRepository) Revoke(ctx context.Context, userID uuid.UUID, role identity.OperationalRole) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, role).
		Delete(&identity.RoleBinding{}).Error
}

var _ identity.RoleRepository = (*GormRoleRepository)(nil)
