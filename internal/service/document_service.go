package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"emmo-data/internal/domain"
	"emmo-data/internal/objectstore"
	"emmo-data/internal/repository"

	"go.uber.org/zap"
)

// ErrStorageDisabled is returned by every DocumentService call when no object store is configured.
var ErrStorageDisabled = domain.NotFoundf("document storage is not configured")

// DocumentService 维护记录附件服务
type DocumentService struct {
	documents repository.DocumentsRepository
	records   repository.MaintenanceRecordsRepository
	store     objectstore.Store // nil when storage is disabled
	maxBytes  int64
	logger    *zap.Logger
	now       func() time.Time
}

func NewDocumentService(
	documents repository.DocumentsRepository,
	records repository.MaintenanceRecordsRepository,
	store objectstore.Store,
	maxBytes int64,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		documents: documents,
		records:   records,
		store:     store,
		maxBytes:  maxBytes,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *DocumentService) Enabled() bool { return s.store != nil }

// UploadDocumentRequest 上传附件请求
type UploadDocumentRequest struct {
	RecordID    string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Actor       string
}

// Upload stores the bytes first and then the metadata row; a failed insert removes the object.
func (s *DocumentService) Upload(ctx context.Context, req UploadDocumentRequest) (*domain.RecordDocument, error) {
	if !s.Enabled() {
		return nil, ErrStorageDisabled
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, domain.Validationf("file name is required")
	}
	name := objectstore.SafeFileName(req.FileName)
	if req.Size <= 0 {
		return nil, domain.Validationf("file is empty")
	}
	if s.maxBytes > 0 && req.Size > s.maxBytes {
		return nil, domain.Validationf("file exceeds the %d byte upload limit", s.maxBytes)
	}
	if _, err := s.records.GetRecord(ctx, req.RecordID); err != nil {
		return nil, err
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &domain.RecordDocument{
		ID:          newID(),
		RecordID:    req.RecordID,
		FileName:    name,
		ContentType: contentType,
		Size:        req.Size,
		UploadedBy:  actorOrDefault(req.Actor),
		UploadedAt:  s.now(),
	}
	doc.ObjectKey = objectstore.DocumentKey(doc.RecordID, doc.ID, name)

	if err := s.store.Put(ctx, doc.ObjectKey, req.Body, req.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		if rmErr := s.store.Remove(ctx, doc.ObjectKey); rmErr != nil {
			s.logger.Warn("Failed to remove orphaned document object",
				zap.String("object_key", doc.ObjectKey), zap.Error(rmErr))
		}
		return nil, err
	}
	s.logger.Info("Document uploaded",
		zap.String("record_id", doc.RecordID),
		zap.String("document_id", doc.ID),
		zap.Int64("size", doc.Size),
	)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, recordID string) ([]*domain.RecordDocument, error) {
	if !s.Enabled() {
		return nil, ErrStorageDisabled
	}
	if _, err := s.records.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListDocuments(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*domain.RecordDocument{}
	}
	return docs, nil
}

// Open returns the document metadata and a reader over its bytes; the caller closes the reader.
func (s *DocumentService) Open(ctx context.Context, recordID, id string) (*domain.RecordDocument, io.ReadCloser, error) {
	if !s.Enabled() {
		return nil, nil, ErrStorageDisabled
	}
	doc, err := s.documents.GetDocument(ctx, recordID, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.store.Get(ctx, doc.ObjectKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, nil, domain.NotFoundf("document %s content is missing", id)
		}
		return nil, nil, fmt.Errorf("failed to read document: %w", err)
	}
	return doc, body, nil
}

// Delete removes the metadata row, then the object. A failed object removal is only logged.
func (s *DocumentService) Delete(ctx context.Context, recordID, id string) error {
	if !s.Enabled() {
		return ErrStorageDisabled
	}
	doc, err := s.documents.GetDocument(ctx, recordID, id)
	if err != nil {
		return err
	}
	if err := s.documents.DeleteDocument(ctx, recordID, id); err != nil {
		return err
	}
	s.removeObject(ctx, doc)
	return nil
}

// DeleteRecord runs deleteRecord and then removes the stored objects of the record's
// documents. The metadata rows go with the record (ON DELETE CASCADE); object removal
// failures are only logged.
func (s *DocumentService) DeleteRecord(ctx context.Context, recordID string, deleteRecord func(ctx context.Context, recordID string) error) error {
	var docs []*domain.RecordDocument
	if s.Enabled() {
		var err error
		if docs, err = s.documents.ListDocuments(ctx, recordID); err != nil {
			return err
		}
	}
	if err := deleteRecord(ctx, recordID); err != nil {
		return err
	}
	for _, doc := range docs {
		s.removeObject(ctx, doc)
	}
	return nil
}

func (s *DocumentService) removeObject(ctx context.Context, doc *domain.RecordDocument) {
	if err := s.store.Remove(ctx, doc.ObjectKey); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		s.logger.Warn("Failed to remove document object",
			zap.String("document_id", doc.ID),
			zap.String("object_key", doc.ObjectKey),
			zap.Error(err),
		)
	}
}
