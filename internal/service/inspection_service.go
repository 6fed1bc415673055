package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"emmo-data/internal/domain"
	"emmo-data/internal/repository"

	"go.uber.org/zap"
)

// InspectionService 巡检服务
type InspectionService struct {
	inspections repository.InspectionsRepository
	drives      repository.DrivesRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewInspectionService(inspections repository.InspectionsRepository, drives repository.DrivesRepository, logger *zap.Logger) *InspectionService {
	return &InspectionService{
		inspections: inspections,
		drives:      drives,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type CreateInspectionRequest struct {
	DriveID     string     `json:"drive_id"`
	Inspector   string     `json:"inspector"`
	InspectedAt *time.Time `json:"inspected_at"` // default now
	Result      string     `json:"result"`
	Notes       string     `json:"notes"`
}

func (s *InspectionService) CreateInspection(ctx context.Context, req CreateInspectionRequest) (*domain.Inspection, error) {
	inspector := strings.TrimSpace(req.Inspector)
	if inspector == "" {
		return nil, domain.Validationf("inspector is required")
	}
	result := domain.InspectionResult(strings.TrimSpace(req.Result))
	if !result.IsValid() {
		return nil, domain.Validationf("invalid inspection result: %s", req.Result)
	}
	driveID := strings.TrimSpace(req.DriveID)
	if err := s.requireDrive(ctx, driveID); err != nil {
		return nil, err
	}

	now := s.now()
	inspectedAt := now
	if req.InspectedAt != nil {
		inspectedAt = req.InspectedAt.UTC()
	}
	ins := &domain.Inspection{
		ID:          newID(),
		DriveID:     driveID,
		Inspector:   inspector,
		InspectedAt: inspectedAt,
		Result:      result,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
	}
	if err := s.inspections.CreateInspection(ctx, ins); err != nil {
		return nil, err
	}
	if result != domain.InspectionPassed {
		s.logger.Warn("Inspection reported a problem",
			zap.String("inspection_id", ins.ID),
			zap.String("drive_id", driveID),
			zap.String("result", string(result)),
		)
	}
	return ins, nil
}

func (s *InspectionService) GetInspection(ctx context.Context, id string) (*domain.Inspection, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validationf("inspection id is required")
	}
	return s.inspections.GetInspection(ctx, id)
}

type ListInspectionsRequest struct {
	DriveID string
	Result  string
	Page    int
	Size    int
}

type ListInspectionsResponse struct {
	Items []*domain.Inspection `json:"items"`
	Total int                  `json:"total"`
}

func (s *InspectionService) ListInspections(ctx context.Context, req ListInspectionsRequest) (*ListInspectionsResponse, error) {
	if req.Result != "" && !domain.InspectionResult(req.Result).IsValid() {
		return nil, domain.Validationf("invalid inspection result: %s", req.Result)
	}
	page, size := normalizePage(req.Page, req.Size)
	items, total, err := s.inspections.ListInspections(ctx, repository.InspectionsFilter{
		DriveID: strings.TrimSpace(req.DriveID),
		Result:  req.Result,
	}, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	if items == nil {
		items = []*domain.Inspection{}
	}
	return &ListInspectionsResponse{Items: items, Total: total}, nil
}

type UpdateInspectionRequest struct {
	ID          string     `json:"-"`
	DriveID     *string    `json:"drive_id"`
	Inspector   *string    `json:"inspector"`
	InspectedAt *time.Time `json:"inspected_at"`
	Result      *string    `json:"result"`
	Notes       *string    `json:"notes"`
}

func (s *InspectionService) UpdateInspection(ctx context.Context, req UpdateInspectionRequest) (*domain.Inspection, error) {
	ins, err := s.GetInspection(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.DriveID != nil {
		driveID := strings.TrimSpace(*req.DriveID)
		if err := s.requireDrive(ctx, driveID); err != nil {
			return nil, err
		}
		ins.DriveID = driveID
	}
	if req.Inspector != nil {
		if ins.Inspector = strings.TrimSpace(*req.Inspector); ins.Inspector == "" {
			return nil, domain.Validationf("inspector cannot be empty")
		}
	}
	if req.Result != nil {
		result := domain.InspectionResult(strings.TrimSpace(*req.Result))
		if !result.IsValid() {
			return nil, domain.Validationf("invalid inspection result: %s", *req.Result)
		}
		ins.Result = result
	}
	if req.InspectedAt != nil {
		ins.InspectedAt = req.InspectedAt.UTC()
	}
	ins.Notes = trimmedOr(req.Notes, ins.Notes)

	if err := s.inspections.UpdateInspection(ctx, ins); err != nil {
		return nil, err
	}
	return ins, nil
}

func (s *InspectionService) DeleteInspection(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Validationf("inspection id is required")
	}
	return s.inspections.DeleteInspection(ctx, id)
}

func (s *InspectionService) requireDrive(ctx context.Context, driveID string) error {
	if driveID == "" {
		return domain.Validationf("drive_id is required")
	}
	if _, err := s.drives.GetDrive(ctx, driveID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Validationf("drive %s does not exist", driveID)
		}
		return err
	}
	return nil
}
