package service

import (
	"context"
	"fmt"
	"time"

	"emmo-data/internal/domain"
	"emmo-data/internal/repository"

	"go.uber.org/zap"
)

const recordsSheet = "Maintenance Records"

var recordExportColumns = []sheetColumn{
	{Header: "Title", Width: 30},
	{Header: "Status", Width: 14},
	{Header: "Priority", Width: 10},
	{Header: "Drive Serial", Width: 20},
	{Header: "Drive Name", Width: 22},
	{Header: "Part Number", Width: 18},
	{Header: "Scheduled Date", Width: 20},
	{Header: "Completed At", Width: 20},
	{Header: "Checklist Items", Width: 15},
	{Header: "Completed Items", Width: 15},
	{Header: "Failed Items", Width: 12},
	{Header: "Completion %", Width: 13},
	{Header: "Created By", Width: 16},
	{Header: "Updated By", Width: 16},
	{Header: "Updated At", Width: 20},
}

// ExportService 导出服务
type ExportService struct {
	records repository.MaintenanceRecordsRepository
	drives  repository.DrivesRepository
	parts   repository.PartsRepository
	logger  *zap.Logger
}

func NewExportService(
	records repository.MaintenanceRecordsRepository,
	drives repository.DrivesRepository,
	parts repository.PartsRepository,
	logger *zap.Logger,
) *ExportService {
	return &ExportService{records: records, drives: drives, parts: parts, logger: logger}
}

// ExportRecordsRequest narrows the export; empty fields export everything.
type ExportRecordsRequest struct {
	DriveID  string
	Status   string
	Priority string
}

// ExportRecords renders matching maintenance records as an XLSX workbook.
func (s *ExportService) ExportRecords(ctx context.Context, req ExportRecordsRequest) ([]byte, error) {
	if req.Status != "" && !domain.MaintenanceStatus(req.Status).IsValid() {
		return nil, domain.Validationf("invalid status: %s", req.Status)
	}
	if req.Priority != "" && !domain.Priority(req.Priority).IsValid() {
		return nil, domain.Validationf("invalid priority: %s", req.Priority)
	}
	records, _, err := s.records.ListRecords(ctx, repository.RecordsFilter{
		DriveID:  req.DriveID,
		Status:   req.Status,
		Priority: req.Priority,
		Sort:     repository.RecordSortScheduled,
	}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for export: %w", err)
	}

	drives, _, err := s.drives.ListDrives(ctx, repository.DrivesFilter{}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load drives for export: %w", err)
	}
	driveByID := make(map[string]*domain.Drive, len(drives))
	for _, d := range drives {
		driveByID[d.ID] = d
	}
	parts, _, err := s.parts.ListParts(ctx, repository.PartsFilter{}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load parts for export: %w", err)
	}
	partNumber := make(map[string]string, len(parts))
	for _, p := range parts {
		partNumber[p.ID] = p.PartNumber
	}

	f, err := newSheetWorkbook(recordsSheet, recordExportColumns)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		stats := rec.Checklist.Stats()
		values := []any{
			rec.Title,
			string(rec.Status),
			string(rec.Priority),
			nil, nil, nil,
			formatTime(rec.ScheduledDate),
			formatTime(rec.CompletedAt),
			stats.Total,
			stats.Completed,
			stats.Failed,
			stats.CompletionPercentage,
			rec.CreatedBy,
			rec.UpdatedBy,
			formatTime(&rec.UpdatedAt),
		}
		if rec.DriveID != nil {
			if d, ok := driveByID[*rec.DriveID]; ok {
				values[3], values[4] = d.SerialNumber, d.Name
			}
		}
		if rec.PartID != nil {
			if n, ok := partNumber[*rec.PartID]; ok {
				values[5] = n
			}
		}
		if err := writeSheetRow(f, recordsSheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}
	}

	data, err := workbookBytes(f)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Maintenance records exported", zap.Int("records", len(records)))
	return data, nil
}

// formatTime returns nil for a missing time so the cell stays empty.
func formatTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
