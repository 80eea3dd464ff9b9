package persistence

import (
	"gorm.io/gorm"

	"github.com/opsflow/backend/internal/domain/shared"
)

// allowedOrderColumns guards ORDER BY against injection through filters.
var allowedOrderColumns = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"status":       true,
	"completed_at": true,
	"assigned_at":  true,
	"position":     true,
}

func applyOrdering(query *gorm.DB, filter shared.Filter) *gorm.DB {
	column := filter.OrderBy
	if !allowedOrderColumns[column] {
		column = "created_at"
	}
	direction := "DESC"
	if filter.OrderDir == "asc" {
		direction = "ASC"
	}
	return query.Order(column + " " + direction)
}

func normalizePage(filter *shared.Filter) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 200 {
		filter.PageSize = 20
	}
}

// findPage counts and fetches one page in the conventional count-then-find
// shape used by every listing repository.
func findPage[T any](query *gorm.DB, filter shared.Filter) (shared.Paginated[T], error) {
	normalizePage(&filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return shared.Paginated[T]{}, err
	}

	var items []T
	page := applyOrdering(query.Session(&gorm.Session{}), filter).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize)
	if err := page.Find(&items).Error; err != nil {
		return shared.Paginated[T]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}
