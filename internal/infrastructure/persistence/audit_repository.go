package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/audit"
	"github.com/opsflow/backend/internal/domain/shared"
)

// GormAuditRepository implements audit.Repository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new audit repository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts an audit record. Records are never updated or deleted.
func (r *GormAuditRepository) Append(ctx context.Context, record *audit.Record) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListByEntity returns the entity's audit trail, newest first
func (r *GormAuditRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*audit.Record, error) {
	var records []*audit.Record
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// List returns a page of audit records, newest first
func (r *GormAuditRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*audit.Record], error) {
	query := r.db.WithContext(ctx).Model(&audit.Record{})
	return findPage[*audit.Record](query, filter)
}

var _ audit.Repository = (*GormAuditRepository)(nil)
