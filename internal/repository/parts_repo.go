package repository

import (
	"context"
	"time"

	"emmo-data/internal/domain"
)

// PartsFilter narrows ListParts. Attached nil means both installed and spare parts.
type PartsFilter struct {
	DriveID  string
	Attached *bool
	Search   string // name or part number
}

// PartsRepository 配件Repository接口
type PartsRepository interface {
	CreatePart(ctx context.Context, part *domain.Part) error
	GetPart(ctx context.Context, id string) (*domain.Part, error)
	GetPartByNumber(ctx context.Context, partNumber string) (*domain.Part, error)
	ListParts(ctx context.Context, filter PartsFilter, page, size int) ([]*domain.Part, int, error)
	// UpdatePart never changes drive_id; use AttachPart/DetachPart.
	UpdatePart(ctx context.Context, part *domain.Part) error
	DeletePart(ctx context.Context, id string) error

	// AttachPart closes the part's open attachment (if any), opens a new one on driveID
	// and points the part at it, all in one transaction.
	AttachPart(ctx context.Context, partID, driveID, actor, notes string, at time.Time) (*domain.PartAttachment, error)
	// DetachPart closes the open attachment and clears the part's drive.
	DetachPart(ctx context.Context, partID, actor string, at time.Time) (*domain.PartAttachment, error)
	ListAttachmentsByPart(ctx context.Context, partID string) ([]*domain.PartAttachment, error)
	ListAttachmentsByDrive(ctx context.Context, driveID string) ([]*domain.PartAttachment, error)
}
