package repository

import (
	"context"

	"emmo-data/internal/domain"
)

type InspectionsFilter struct {
	DriveID string
	Result  string
}

// InspectionsRepository 巡检Repository接口
type InspectionsRepository interface {
	CreateInspection(ctx context.Context, inspection *domain.Inspection) error
	GetInspection(ctx context.Context, id string) (*domain.Inspection, error)
	ListInspections(ctx context.Context, filter InspectionsFilter, page, size int) ([]*domain.Inspection, int, error)
	UpdateInspection(ctx context.Context, inspection *domain.Inspection) error
	DeleteInspection(ctx context.Context, id string) error
}
