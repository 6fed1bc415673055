package repository

import (
	"context"

	"emmo-data/internal/domain"
)

// DocumentsRepository stores metadata of files attached to maintenance records.
type DocumentsRepository interface {
	CreateDocument(ctx context.Context, doc *domain.RecordDocument) error
	GetDocument(ctx context.Context, recordID, id string) (*domain.RecordDocument, error)
	ListDocuments(ctx context.Context, recordID string) ([]*domain.RecordDocument, error)
	DeleteDocument(ctx context.Context, recordID, id string) error
}
