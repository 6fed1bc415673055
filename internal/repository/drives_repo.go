package repository

import (
	"context"

	"emmo-data/internal/domain"
)

// DrivesFilter narrows ListDrives. Empty fields are ignored.
type DrivesFilter struct {
	Status string
	Search string // name, serial number or location
}

// DrivesRepository 设备Repository接口
type DrivesRepository interface {
	CreateDrive(ctx context.Context, drive *domain.Drive) error
	GetDrive(ctx context.Context, id string) (*domain.Drive, error)
	// GetDriveBySerial resolves a scanned barcode to its drive.
	GetDriveBySerial(ctx context.Context, serial string) (*domain.Drive, error)
	ListDrives(ctx context.Context, filter DrivesFilter, page, size int) ([]*domain.Drive, int, error)
	UpdateDrive(ctx context.Context, drive *domain.Drive) error
	DeleteDrive(ctx context.Context, id string) error
}
