package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// Action names for sensitive operations recorded in the audit log.
const (
	ActionClaimOverride       = "claimOverride"
	ActionMissingRequiredRole = "missingRequiredRole"
	ActionReassignment        = "reassignment"
	ActionAdminForceComplete  = "adminForceComplete"
	ActionThresholdChanged    = "thresholdChanged"
	ActionStockAdjusted       = "stockAdjusted"
)

// Record is one append-only audit entry for a sensitive operation.
type Record struct {
	shared.BaseEntity
	ActorUserID *uuid.UUID     `gorm:"type:uuid;index"`
	Action      string         `gorm:"size:64;not null;index"`
	EntityType  string         `gorm:"size:64;not null"`
	EntityID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Detail      shared.JSONMap `gorm:"type:jsonb"`
}

// TableName returns the database table name
func (Record) TableName() string {
	return "audit_records"
}

// NewRecord creates an audit entry. A nil actor records a system action.
func NewRecord(actor *uuid.UUID, action, entityType string, entityID uuid.UUID, detail shared.JSONMap) *Record {
	return &Record{
		BaseEntity:  shared.NewBaseEntity(),
		ActorUserID: actor,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Detail:      detail,
	}
}

// Repository appends to and reads the audit log
type Repository interface {
	Append(ctx context.Context, record *Record) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*Record, error)
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[*Record], error)
}
