package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/sales"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/interfaces/http/dto"
)

// toSharedFilter converts list request parameters into a repository filter
func toSharedFilter(req dto.ListRequest) shared.Filter {
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	return filter
}

// parseUUIDPtr parses an optional uuid string, returning nil for empty input
func parseUUIDPtr(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseDateRange parses optional RFC 3339 from/to query parameters. Nil is
// returned when neither bound is set.
func parseDateRange(from, to string) (*sales.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	var r sales.DateRange
	var err error
	if from != "" {
		if r.From, err = time.Parse(time.RFC3339, from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if r.To, err = time.Parse(time.RFC3339, to); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
