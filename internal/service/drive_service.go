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

// DriveService 设备服务
type DriveService struct {
	drives repository.DrivesRepository
	parts  repository.PartsRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewDriveService(drives repository.DrivesRepository, parts repository.PartsRepository, logger *zap.Logger) *DriveService {
	return &DriveService{
		drives: drives,
		parts:  parts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateDriveRequest 创建设备请求
type CreateDriveRequest struct {
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	Location     string `json:"location"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
}

func (s *DriveService) CreateDrive(ctx context.Context, req CreateDriveRequest) (*domain.Drive, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Validationf("name is required")
	}
	serial := strings.TrimSpace(req.SerialNumber)
	if serial == "" {
		return nil, domain.Validationf("serial_number is required")
	}
	status := domain.DriveStatus(strings.TrimSpace(req.Status))
	if status == "" {
		status = domain.DriveActive
	}
	if !status.IsValid() {
		return nil, domain.Validationf("invalid drive status: %s", req.Status)
	}

	now := s.now()
	drive := &domain.Drive{
		ID:           newID(),
		Name:         name,
		SerialNumber: serial,
		Location:     strings.TrimSpace(req.Location),
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		Model:        strings.TrimSpace(req.Model),
		Status:       status,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.drives.CreateDrive(ctx, drive); err != nil {
		return nil, err
	}
	s.logger.Info("Drive created", zap.String("drive_id", drive.ID), zap.String("serial_number", serial))
	return drive, nil
}

func (s *DriveService) GetDrive(ctx context.Context, id string) (*domain.Drive, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validationf("drive id is required")
	}
	return s.drives.GetDrive(ctx, id)
}

// ListDrivesRequest 查询设备列表请求
type ListDrivesRequest struct {
	Status string
	Search string
	Page   int
	Size   int
}

type ListDrivesResponse struct {
	Items []*domain.Drive `json:"items"`
	Total int             `json:"total"`
}

func (s *DriveService) ListDrives(ctx context.Context, req ListDrivesRequest) (*ListDrivesResponse, error) {
	if req.Status != "" && !domain.DriveStatus(req.Status).IsValid() {
		return nil, domain.Validationf("invalid drive status: %s", req.Status)
	}
	page, size := normalizePage(req.Page, req.Size)
	items, total, err := s.drives.ListDrives(ctx, repository.DrivesFilter{
		Status: req.Status,
		Search: strings.TrimSpace(req.Search),
	}, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list drives: %w", err)
	}
	if items == nil {
		items = []*domain.Drive{}
	}
	return &ListDrivesResponse{Items: items, Total: total}, nil
}

// UpdateDriveRequest is a partial update; nil fields are kept.
type UpdateDriveRequest struct {
	ID           string  `json:"-"`
	Name         *string `json:"name"`
	SerialNumber *string `json:"serial_number"`
	Location     *string `json:"location"`
	Manufacturer *string `json:"manufacturer"`
	Model        *string `json:"model"`
	Status       *string `json:"status"`
	Notes        *string `json:"notes"`
}

func (s *DriveService) UpdateDrive(ctx context.Context, req UpdateDriveRequest) (*domain.Drive, error) {
	drive, err := s.GetDrive(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if drive.Name = strings.TrimSpace(*req.Name); drive.Name == "" {
			return nil, domain.Validationf("name cannot be empty")
		}
	}
	if req.SerialNumber != nil {
		if drive.SerialNumber = strings.TrimSpace(*req.SerialNumber); drive.SerialNumber == "" {
			return nil, domain.Validationf("serial_number cannot be empty")
		}
	}
	if req.Status != nil {
		st := domain.DriveStatus(strings.TrimSpace(*req.Status))
		if !st.IsValid() {
			return nil, domain.Validationf("invalid drive status: %s", *req.Status)
		}
		drive.Status = st
	}
	drive.Location = trimmedOr(req.Location, drive.Location)
	drive.Manufacturer = trimmedOr(req.Manufacturer, drive.Manufacturer)
	drive.Model = trimmedOr(req.Model, drive.Model)
	drive.Notes = trimmedOr(req.Notes, drive.Notes)
	drive.UpdatedAt = s.now()

	if err := s.drives.UpdateDrive(ctx, drive); err != nil {
		return nil, err
	}
	return drive, nil
}

func (s *DriveService) DeleteDrive(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Validationf("drive id is required")
	}
	if err := s.drives.DeleteDrive(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Drive deleted", zap.String("drive_id", id))
	return nil
}

// ListAttachments returns the part installation history of a drive, newest first.
func (s *DriveService) ListAttachments(ctx context.Context, driveID string) ([]*domain.PartAttachment, error) {
	if _, err := s.GetDrive(ctx, driveID); err != nil {
		return nil, err
	}
	items, err := s.parts.ListAttachmentsByDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.PartAttachment{}
	}
	return items, nil
}

// LookupResult is what a scanned code resolved to. Exactly one of Drive/Part is set.
type LookupResult struct {
	Type  string        `json:"type"` // "drive" or "part"
	Drive *domain.Drive `json:"drive,omitempty"`
	Part  *domain.Part  `json:"part,omitempty"`
}

// LookupByCode resolves a barcode: drive serial numbers first, then part numbers.
func (s *DriveService) LookupByCode(ctx context.Context, code string) (*LookupResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Validationf("code is required")
	}
	drive, err := s.drives.GetDriveBySerial(ctx, code)
	if err == nil {
		return &LookupResult{Type: "drive", Drive: drive}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	part, err := s.parts.GetPartByNumber(ctx, code)
	if err == nil {
		return &LookupResult{Type: "part", Part: part}, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundf("no drive or part with code %s", code)
	}
	return nil, err
}
