package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"emmo-data/internal/domain"
	"emmo-data/internal/repository"

	"go.uber.org/zap"
)

// PartService 配件服务
type PartService struct {
	parts  repository.PartsRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewPartService(parts repository.PartsRepository, logger *zap.Logger) *PartService {
	return &PartService{
		parts:  parts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreatePartRequest 创建配件请求; a new part is always spare.
type CreatePartRequest struct {
	Name         string `json:"name"`
	PartNumber   string `json:"part_number"`
	Manufacturer string `json:"manufacturer"`
	Notes        string `json:"notes"`
}

func (s *PartService) CreatePart(ctx context.Context, req CreatePartRequest) (*domain.Part, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Validationf("name is required")
	}
	number := strings.TrimSpace(req.PartNumber)
	if number == "" {
		return nil, domain.Validationf("part_number is required")
	}
	now := s.now()
	part := &domain.Part{
		ID:           newID(),
		Name:         name,
		PartNumber:   number,
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.parts.CreatePart(ctx, part); err != nil {
		return nil, err
	}
	s.logger.Info("Part created", zap.String("part_id", part.ID), zap.String("part_number", number))
	return part, nil
}

func (s *PartService) GetPart(ctx context.Context, id string) (*domain.Part, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validationf("part id is required")
	}
	return s.parts.GetPart(ctx, id)
}

// ListPartsRequest 查询配件列表请求
type ListPartsRequest struct {
	DriveID  string
	Attached *bool
	Search   string
	Page     int
	Size     int
}

type ListPartsResponse struct {
	Items []*domain.Part `json:"items"`
	Total int            `json:"total"`
}

func (s *PartService) ListParts(ctx context.Context, req ListPartsRequest) (*ListPartsResponse, error) {
	page, size := normalizePage(req.Page, req.Size)
	items, total, err := s.parts.ListParts(ctx, repository.PartsFilter{
		DriveID:  strings.TrimSpace(req.DriveID),
		Attached: req.Attached,
		Search:   strings.TrimSpace(req.Search),
	}, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	if items == nil {
		items = []*domain.Part{}
	}
	return &ListPartsResponse{Items: items, Total: total}, nil
}

// UpdatePartRequest is a partial update. The attached drive changes only through Attach/Detach.
type UpdatePartRequest struct {
	ID           string  `json:"-"`
	Name         *string `json:"name"`
	PartNumber   *string `json:"part_number"`
	Manufacturer *string `json:"manufacturer"`
	Notes        *string `json:"notes"`
}

func (s *PartService) UpdatePart(ctx context.Context, req UpdatePartRequest) (*domain.Part, error) {
	part, err := s.GetPart(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if part.Name = strings.TrimSpace(*req.Name); part.Name == "" {
			return nil, domain.Validationf("name cannot be empty")
		}
	}
	if req.PartNumber != nil {
		if part.PartNumber = strings.TrimSpace(*req.PartNumber); part.PartNumber == "" {
			return nil, domain.Validationf("part_number cannot be empty")
		}
	}
	part.Manufacturer = trimmedOr(req.Manufacturer, part.Manufacturer)
	part.Notes = trimmedOr(req.Notes, part.Notes)
	part.UpdatedAt = s.now()

	if err := s.parts.UpdatePart(ctx, part); err != nil {
		return nil, err
	}
	return part, nil
}

func (s *PartService) DeletePart(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Validationf("part id is required")
	}
	if err := s.parts.DeletePart(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Part deleted", zap.String("part_id", id))
	return nil
}

// AttachPart installs a part on a drive, closing any previous installation.
func (s *PartService) AttachPart(ctx context.Context, partID, driveID, actor, notes string) (*domain.PartAttachment, error) {
	if strings.TrimSpace(partID) == "" {
		return nil, domain.Validationf("part id is required")
	}
	driveID = strings.TrimSpace(driveID)
	if driveID == "" {
		return nil, domain.Validationf("drive_id is required")
	}
	actor = actorOrDefault(actor)
	att, err := s.parts.AttachPart(ctx, partID, driveID, actor, strings.TrimSpace(notes), s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Part attached",
		zap.String("part_id", partID),
		zap.String("drive_id", driveID),
		zap.String("actor", actor),
	)
	return att, nil
}

func (s *PartService) DetachPart(ctx context.Context, partID, actor string) (*domain.PartAttachment, error) {
	if strings.TrimSpace(partID) == "" {
		return nil, domain.Validationf("part id is required")
	}
	actor = actorOrDefault(actor)
	att, err := s.parts.DetachPart(ctx, partID, actor, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Part detached",
		zap.String("part_id", partID),
		zap.String("drive_id", att.DriveID),
		zap.String("actor", actor),
	)
	return att, nil
}

func (s *PartService) ListAttachments(ctx context.Context, partID string) ([]*domain.PartAttachment, error) {
	if _, err := s.GetPart(ctx, partID); err != nil {
		return nil, err
	}
	items, err := s.parts.ListAttachmentsByPart(ctx, partID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.PartAttachment{}
	}
	return items, nil
}
