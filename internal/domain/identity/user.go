package identity

import (
	"strings"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// OperationalRole is a fulfilment role a user can hold. Role membership is
// stored in its own table and re-queried for every authorisation decision,
// so a grant or revocation takes effect immediately.
type OperationalRole string

const (
	RoleForeman   OperationalRole = "foreman"
	RoleDelivery  OperationalRole = "delivery"
	RoleRequester OperationalRole = "requester"
	RoleWarehouse OperationalRole = "warehouse"
)

// ValidRoles lists every operational role known to the engine.
var ValidRoles = []OperationalRole{RoleForeman, RoleDelivery, RoleRequester, RoleWarehouse}

// ParseRole validates and normalises a role string
func ParseRole(s string) (OperationalRole, error) {
	r := OperationalRole(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidRoles {
		if r == v {
			return r, nil
		}
	}
	return "", shared.NewDomainError("INVALID_INPUT", "unknown operational role: "+s)
}

// RoleSet is the set of roles held by one user at one point in time.
type RoleSet []OperationalRole

// Has reports whether the set contains the given role
func (rs RoleSet) Has(role OperationalRole) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Strings returns the roles as plain strings
func (rs RoleSet) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// User is an account in the operations platform. The engine only reads
// users; account management lives in the chat layer.
type User struct {
	shared.BaseEntity
	Username      string `gorm:"size:128;uniqueIndex;not null"`
	DisplayName   string `gorm:"size:255"`
	Email         string `gorm:"size:255"`
	IsSystemAdmin bool   `gorm:"not null;default:false"`
	Active        bool   `gorm:"not null;default:true"`
}

// TableName returns the database table name
func (User) TableName() string {
	return "users"
}

// RoleBinding links a user to an operational role.
type RoleBinding struct {
	shared.BaseEntity
	UserID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_role_bindings_user_role"`
	Role   OperationalRole `gorm:"size:32;not null;uniqueIndex:idx_role_bindings_user_role"`
}

// TableName returns the database table name
func (RoleBinding) TableName() string {
	return "role_bindings"
}
