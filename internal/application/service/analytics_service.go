package service

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// AnalyticsService exposes aggregate statistics to accounts staff
type AnalyticsService interface {
	Stats(ctx context.Context, p entity.Principal, filter entity.AnalyticsFilter) (*entity.AnalyticsStats, error)
}

type analyticsServiceImpl struct {
	repo port.AnalyticsRepository
}

func NewAnalyticsService(repo port.AnalyticsRepository) AnalyticsService {
	return &analyticsServiceImpl{repo: repo}
}

func (s *analyticsServiceImpl) Stats(ctx context.Context, p entity.Principal, filter entity.AnalyticsFilter) (*entity.AnalyticsStats, error) {
	if err := workflow.RequireApprover(p.Role); err != nil {
		return nil, err
	}
	if filter.Category != "" && !filter.Category.IsValid() {
		filter.Category = ""
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, apperr.InvalidArgument("endDate must not be before startDate")
	}

	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("compute analytics: %w", err)
	}
	return stats, nil
}
