package repository

import (
	"context"
	"fmt"

	"emmo-data/internal/domain"

	"github.com/jmoiron/sqlx"
)

const documentColumns = `id, record_id, file_name, content_type, size, object_key, uploaded_by, uploaded_at`

type SQLDocumentsRepository struct {
	db *sqlx.DB
}

func NewSQLDocumentsRepository(db *sqlx.DB) *SQLDocumentsRepository {
	return &SQLDocumentsRepository{db: db}
}

var _ DocumentsRepository = (*SQLDocumentsRepository)(nil)

func (r *SQLDocumentsRepository) CreateDocument(ctx context.Context, d *domain.RecordDocument) error {
	query := r.db.Rebind(`INSERT INTO record_documents (` + documentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.RecordID, d.FileName, d.ContentType, d.Size, d.ObjectKey, d.UploadedBy, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *SQLDocumentsRepository) GetDocument(ctx context.Context, recordID, id string) (*domain.RecordDocument, error) {
	var d domain.RecordDocument
	query := r.db.Rebind(`SELECT ` + documentColumns + ` FROM record_documents WHERE record_id = ? AND id = ?`)
	if err := r.db.GetContext(ctx, &d, query, recordID, id); err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("document %s not found", id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

func (r *SQLDocumentsRepository) ListDocuments(ctx context.Context, recordID string) ([]*domain.RecordDocument, error) {
	docs := []*domain.RecordDocument{}
	query := r.db.Rebind(`SELECT ` + documentColumns + ` FROM record_documents WHERE record_id = ? ORDER BY uploaded_at DESC, id`)
	if err := r.db.SelectContext(ctx, &docs, query, recordID); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (r *SQLDocumentsRepository) DeleteDocument(ctx context.Context, recordID, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM record_documents WHERE record_id = ? AND id = ?`), recordID, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectAffected(res, "document", id)
}
